// Package client 是联系表单的调用端：HTTP 客户端和表单提交状态机。
package client

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

// SendEmailPath 提交接口路径
const SendEmailPath = "/api/send-email"

// Client 联系表单接口客户端
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option 客户端选项
type Option func(*Client)

// WithHTTPClient 替换默认的 http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New 创建客户端，baseURL 形如 http://localhost:8080
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError 服务端返回的非 2xx 响应
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Message)
}

// SendResponse 提交成功的响应体
type SendResponse struct {
	OK     bool               `json:"ok"`
	Result *domain.SendResult `json:"result"`
}

// HealthReport GET /api/send-email 的响应体
type HealthReport struct {
	OK  bool `json:"ok"`
	Env struct {
		HasAPIKey bool `json:"hasApiKey"`
		HasFrom   bool `json:"hasFrom"`
		HasTo     bool `json:"hasTo"`
	} `json:"env"`
	Note string `json:"note"`
}

// RawResponse 未经解释的响应
type RawResponse struct {
	StatusCode int
	Body       []byte
}

// Post 提交并原样返回状态码和响应体
func (c *Client) Post(ctx context.Context, sub domain.Submission) (*RawResponse, error) {
	payload, err := json.Marshal(sub)
	if err != nil {
		return nil, fmt.Errorf("encode submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+SendEmailPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

// Send 提交表单
//
// 2xx 时解析响应体，解析失败返回 nil 响应而不是错误；
// 非 2xx 返回 *APIError，消息取响应体的 error 字段。
func (c *Client) Send(ctx context.Context, sub domain.Submission) (*SendResponse, error) {
	raw, err := c.Post(ctx, sub)
	if err != nil {
		return nil, err
	}

	if raw.StatusCode < http.StatusOK || raw.StatusCode >= http.StatusMultipleChoices {
		return nil, newAPIError(raw)
	}

	var resp SendResponse
	if err := json.Unmarshal(raw.Body, &resp); err != nil {
		return nil, nil
	}
	return &resp, nil
}

// Health 读取配置齐全情况
func (c *Client) Health(ctx context.Context) (*HealthReport, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+SendEmailPath, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	raw, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if raw.StatusCode != http.StatusOK {
		return nil, newAPIError(raw)
	}

	var report HealthReport
	if err := json.Unmarshal(raw.Body, &report); err != nil {
		return nil, fmt.Errorf("decode health report: %w", err)
	}
	return &report, nil
}

func (c *Client) do(req *http.Request) (*RawResponse, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return &RawResponse{StatusCode: resp.StatusCode, Body: body}, nil
}

func newAPIError(raw *RawResponse) *APIError {
	var body struct {
		Error string `json:"error"`
	}
	message := "Unknown API error"
	if err := json.Unmarshal(raw.Body, &body); err == nil && body.Error != "" {
		message = body.Error
	}
	return &APIError{StatusCode: raw.StatusCode, Message: message}
}
