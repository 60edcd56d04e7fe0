package httptransport

import (
	"context"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"portfolio/backend/internal/domain"
	"portfolio/backend/internal/ratelimit"
	"portfolio/backend/internal/service"
)

// ContactSubmitter 联系表单业务接口
type ContactSubmitter interface {
	Submit(ctx context.Context, clientID string, body io.Reader) (*domain.SendResult, error)
	Env() service.EnvReport
}

// ContactHandler /api/send-email 的处理器
type ContactHandler struct {
	contact      ContactSubmitter
	clientHeader string
	logger       *zap.Logger
}

// NewContactHandler 创建联系表单处理器
//
// clientHeader 为空时使用 X-Forwarded-For。
func NewContactHandler(contact ContactSubmitter, clientHeader string, logger *zap.Logger) *ContactHandler {
	if clientHeader == "" {
		clientHeader = "X-Forwarded-For"
	}
	return &ContactHandler{
		contact:      contact,
		clientHeader: clientHeader,
		logger:       logger,
	}
}

// Health GET /api/send-email，只报告配置是否齐全
func (h *ContactHandler) Health(c *gin.Context) {
	Success(c, HealthResponse{
		OK:   true,
		Env:  h.contact.Env(),
		Note: HealthNote,
	})
}

// Send POST /api/send-email
func (h *ContactHandler) Send(c *gin.Context) {
	result, err := h.contact.Submit(c.Request.Context(), h.clientID(c), c.Request.Body)
	if err != nil {
		status, msg := resolveError(err)

		var rlErr *domain.RateLimitError
		if errors.As(err, &rlErr) && rlErr.RetryAfter > 0 {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(rlErr.RetryAfter.Seconds()))))
		}
		if status >= 500 {
			_ = c.Error(err)
		}

		Error(c, status, msg)
		return
	}

	Success(c, SendResponse{OK: true, Result: result})
}

// clientID 取转发头的原始值（不拆分逗号列表），缺失时归入 unknown
func (h *ContactHandler) clientID(c *gin.Context) string {
	id := strings.TrimSpace(c.GetHeader(h.clientHeader))
	if id == "" {
		return ratelimit.UnknownClient
	}
	return id
}
