// Package mailer 把出站邮件交给外部投递服务。
package mailer

import (
	"context"

	"portfolio/backend/internal/domain"
)

// Sender 邮件投递服务的最小接口
//
// 服务商在响应中报告的失败以 *domain.ProviderError 返回；
// 网络错误、超时等其他错误原样返回。
type Sender interface {
	Send(ctx context.Context, apiKey string, env *domain.Envelope) (*domain.SendResult, error)
	Name() string
}
