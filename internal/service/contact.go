package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"portfolio/backend/internal/config"
	"portfolio/backend/internal/domain"
	"portfolio/backend/internal/mailer"
	"portfolio/backend/internal/monitoring"
	"portfolio/backend/internal/ratelimit"
	"portfolio/backend/internal/security"
)

// DefaultSendTimeout 出站调用默认超时
const DefaultSendTimeout = 10 * time.Second

// EnvReport 部署配置是否齐全，只包含布尔值
type EnvReport struct {
	HasAPIKey bool `json:"hasApiKey"`
	HasFrom   bool `json:"hasFrom"`
	HasTo     bool `json:"hasTo"`
}

// ContactService 封装联系表单提交流程。
type ContactService struct {
	email   config.EmailConfig
	limiter ratelimit.Limiter
	sender  mailer.Sender
	metrics *monitoring.Metrics
	logger  *zap.Logger

	filter         *security.ContentFilter // 可选
	sendTimeout    time.Duration
	limiterBackend string
}

// NewContactService 创建联系表单服务。
func NewContactService(
	email config.EmailConfig,
	limiter ratelimit.Limiter,
	sender mailer.Sender,
	metrics *monitoring.Metrics,
	logger *zap.Logger,
) *ContactService {
	return &ContactService{
		email:          email,
		limiter:        limiter,
		sender:         sender,
		metrics:        metrics,
		logger:         logger,
		sendTimeout:    DefaultSendTimeout,
		limiterBackend: "memory",
	}
}

// SetContentFilter 设置内容过滤器，命中只记录不拒绝
func (s *ContactService) SetContentFilter(filter *security.ContentFilter) {
	s.filter = filter
}

// SetSendTimeout 设置出站调用超时，<=0 时沿用默认值
func (s *ContactService) SetSendTimeout(timeout time.Duration) {
	if timeout > 0 {
		s.sendTimeout = timeout
	}
}

// SetLimiterBackend 设置限流后端名称，仅用于指标标签
func (s *ContactService) SetLimiterBackend(name string) {
	s.limiterBackend = name
}

// Env 返回配置是否齐全，不暴露任何值
func (s *ContactService) Env() EnvReport {
	return EnvReport{
		HasAPIKey: s.email.HasAPIKey(),
		HasFrom:   s.email.HasFrom(),
		HasTo:     s.email.HasTo(),
	}
}

// Submit 处理一次提交
//
// 步骤顺序固定：限流 → 配置检查 → 解析请求体 → 字段校验 → 清洗 → 投递。
// 限流在接受时即记录，后续步骤失败不会退还。
func (s *ContactService) Submit(ctx context.Context, clientID string, body io.Reader) (*domain.SendResult, error) {
	if clientID == "" {
		clientID = ratelimit.UnknownClient
	}
	log := s.logger.With(zap.String("client", clientID))

	decision, err := s.limiter.Allow(ctx, clientID)
	if err != nil {
		s.metrics.RecordSubmission(monitoring.OutcomeError)
		s.metrics.RecordError("rate_limit", "ratelimit")
		log.Error("Rate limiter unavailable", zap.Error(err))
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	if !decision.Allowed {
		s.metrics.RecordSubmission(monitoring.OutcomeRateLimited)
		s.metrics.RecordRateLimitBlock(s.limiterBackend)
		log.Info("Submission rate limited", zap.Duration("retry_after", decision.RetryAfter))
		return nil, &domain.RateLimitError{RetryAfter: decision.RetryAfter}
	}

	if !s.email.HasAPIKey() {
		s.metrics.RecordSubmission(monitoring.OutcomeMisconfigured)
		log.Error("Email API key is not configured")
		return nil, domain.ErrMissingAPIKey
	}
	if !s.email.HasFrom() || !s.email.HasTo() {
		s.metrics.RecordSubmission(monitoring.OutcomeMisconfigured)
		log.Error("Email from/to address is not configured",
			zap.Bool("has_from", s.email.HasFrom()),
			zap.Bool("has_to", s.email.HasTo()),
		)
		return nil, domain.ErrMissingFromTo
	}

	raw, err := readBody(body)
	if err != nil {
		if errors.Is(err, domain.ErrBodyTooLarge) {
			s.metrics.RecordSubmission(monitoring.OutcomeInvalidJSON)
			return nil, err
		}
		s.metrics.RecordSubmission(monitoring.OutcomeError)
		log.Error("Failed to read request body", zap.Error(err))
		return nil, err
	}

	submission, err := domain.ParseSubmission(raw)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidJSON):
			s.metrics.RecordSubmission(monitoring.OutcomeInvalidJSON)
		case errors.Is(err, domain.ErrMissingFields):
			s.metrics.RecordSubmission(monitoring.OutcomeMissingFields)
		}
		log.Debug("Rejected submission body", zap.Error(err))
		return nil, err
	}

	s.inspect(log, submission)

	envelope := domain.NewEnvelope(s.email.From, s.email.To, domain.Sanitize(submission))

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	start := time.Now()
	result, err := s.sender.Send(sendCtx, s.email.APIKey, envelope)
	s.metrics.RecordProviderCall(s.sender.Name(), time.Since(start), err)
	if err != nil {
		var providerErr *domain.ProviderError
		if errors.As(err, &providerErr) {
			s.metrics.RecordSubmission(monitoring.OutcomeProviderError)
			log.Error("Email provider rejected message",
				zap.String("provider", providerErr.Provider),
				zap.Int("status", providerErr.StatusCode),
				zap.String("name", providerErr.Name),
				zap.String("message", providerErr.Message),
			)
			return nil, err
		}

		s.metrics.RecordSubmission(monitoring.OutcomeError)
		s.metrics.RecordError("send", s.sender.Name())
		log.Error("Failed to send email", zap.String("provider", s.sender.Name()), zap.Error(err))
		return nil, fmt.Errorf("send email: %w", err)
	}
	if result == nil {
		result = &domain.SendResult{}
	}

	s.metrics.RecordSubmission(monitoring.OutcomeSuccess)
	log.Info("Contact email sent",
		zap.String("provider", s.sender.Name()),
		zap.String("id", result.ID),
	)

	return result, nil
}

// inspect 记录内容过滤器的命中
func (s *ContactService) inspect(log *zap.Logger, submission domain.Submission) {
	if s.filter == nil {
		return
	}
	for _, flag := range s.filter.Inspect(submission) {
		s.metrics.RecordSpamFlag(flag.Rule)
		log.Warn("Submission flagged by content filter",
			zap.String("rule", flag.Rule),
			zap.String("detail", flag.Detail),
		)
	}
}

func readBody(body io.Reader) ([]byte, error) {
	if body == nil {
		return nil, nil
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, domain.ErrBodyTooLarge
		}
		return nil, fmt.Errorf("read body: %w", err)
	}
	return raw, nil
}
