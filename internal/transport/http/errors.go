package httptransport

import (
	"errors"
	"net/http"

	"portfolio/backend/internal/domain"
)

// errorResponse 业务错误对应的状态码和对外消息
type errorResponse struct {
	status  int
	message string
}

// 错误映射表（业务错误 -> 状态码 + 消息），消息是对外契约，不可随意修改
var errorMessages = map[error]errorResponse{
	domain.ErrRateLimited:   {http.StatusTooManyRequests, MsgTooManyRequests},
	domain.ErrMissingAPIKey: {http.StatusInternalServerError, MsgMissingAPIKey},
	domain.ErrMissingFromTo: {http.StatusInternalServerError, MsgMissingFromTo},
	domain.ErrInvalidJSON:   {http.StatusBadRequest, MsgInvalidJSON},
	domain.ErrMissingFields: {http.StatusBadRequest, MsgMissingFields},
	domain.ErrBodyTooLarge:  {http.StatusRequestEntityTooLarge, MsgBodyTooLarge},
}

// 对外错误消息
const (
	MsgTooManyRequests = "Too many requests. Please try again later."
	MsgMissingAPIKey   = "Server misconfiguration: missing API key"
	MsgMissingFromTo   = "Server misconfiguration: missing from/to email"
	MsgInvalidJSON     = "Invalid JSON body"
	MsgMissingFields   = "Missing fields: name, email, message"
	MsgBodyTooLarge    = "Request body too large"
	MsgUnknownError    = "Unknown server error"
)

// resolveError 把提交流程的错误转换为状态码和消息
//
// 服务商错误返回 500 和服务商给出的消息；未知错误返回 500 和错误文本。
func resolveError(err error) (int, string) {
	for target, resp := range errorMessages {
		if errors.Is(err, target) {
			return resp.status, resp.message
		}
	}

	var providerErr *domain.ProviderError
	if errors.As(err, &providerErr) {
		if providerErr.Message != "" {
			return http.StatusInternalServerError, providerErr.Message
		}
		return http.StatusInternalServerError, MsgUnknownError
	}

	if msg := err.Error(); msg != "" {
		return http.StatusInternalServerError, msg
	}
	return http.StatusInternalServerError, MsgUnknownError
}
