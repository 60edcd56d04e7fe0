package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"portfolio/backend/internal/domain"
)

const defaultResendBaseURL = "https://api.resend.com"

// ResendSender 通过 Resend HTTP API 投递邮件
type ResendSender struct {
	baseURL    string
	httpClient *http.Client
}

// NewResendSender 创建 Resend 投递器
//
// 参数:
//   - baseURL: API 地址，留空使用 https://api.resend.com
//   - timeout: 单次请求超时，<=0 表示只受 ctx 约束
func NewResendSender(baseURL string, timeout time.Duration) *ResendSender {
	url := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if url == "" {
		url = defaultResendBaseURL
	}
	return &ResendSender{
		baseURL: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name 投递器名称
func (s *ResendSender) Name() string {
	return "resend"
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	ReplyTo string   `json:"reply_to,omitempty"`
	HTML    string   `json:"html"`
}

type resendError struct {
	StatusCode int    `json:"statusCode"`
	Name       string `json:"name"`
	Message    string `json:"message"`
}

// Send 调用 POST /emails
func (s *ResendSender) Send(ctx context.Context, apiKey string, env *domain.Envelope) (*domain.SendResult, error) {
	payload, err := json.Marshal(resendRequest{
		From:    env.From,
		To:      []string{env.To},
		Subject: env.Subject,
		ReplyTo: env.ReplyTo,
		HTML:    env.HTML,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, parseResendError(resp.StatusCode, body)
	}

	var result domain.SendResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

// parseResendError 把非 2xx 响应转换为 ProviderError
func parseResendError(status int, body []byte) *domain.ProviderError {
	pe := &domain.ProviderError{Provider: "resend", StatusCode: status}

	var re resendError
	if err := json.Unmarshal(body, &re); err == nil && re.Message != "" {
		pe.Name = re.Name
		pe.Message = re.Message
		return pe
	}

	pe.Message = strings.TrimSpace(string(body))
	if pe.Message == "" {
		pe.Message = http.StatusText(status)
	}
	return pe
}
