package mailer

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"portfolio/backend/internal/domain"
)

// Throttled 对出站调用做进程级限速，避免触发服务商的 API 速率限制
type Throttled struct {
	next    Sender
	limiter *rate.Limiter
}

// NewThrottled 包装一个 Sender
//
// perSecond <= 0 时不限速，直接返回 next。
func NewThrottled(next Sender, perSecond float64) Sender {
	if perSecond <= 0 {
		return next
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return &Throttled{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Name 返回被包装的投递器名称
func (t *Throttled) Name() string {
	return t.next.Name()
}

// Send 等待令牌后转发；ctx 结束时放弃等待
func (t *Throttled) Send(ctx context.Context, apiKey string, env *domain.Envelope) (*domain.SendResult, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("outbound throttle: %w", err)
	}
	return t.next.Send(ctx, apiKey, env)
}
