package domain

import (
	"errors"
	"fmt"
	"time"
)

// 提交流程中的业务错误
var (
	ErrRateLimited   = errors.New("rate limited")
	ErrMissingAPIKey = errors.New("missing api key")
	ErrMissingFromTo = errors.New("missing from/to email")
	ErrInvalidJSON   = errors.New("invalid json body")
	ErrMissingFields = errors.New("missing fields")
	ErrBodyTooLarge  = errors.New("request body too large")
)

// RateLimitError 携带建议的重试等待时间
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: retry after %s", e.RetryAfter.Round(time.Second))
}

// Unwrap 使 errors.Is(err, ErrRateLimited) 成立
func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// ProviderError 邮件服务商在响应中报告的失败
//
// Message 会原样返回给调用方，不得包含 API Key。
type ProviderError struct {
	Provider   string
	StatusCode int
	Name       string
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}
