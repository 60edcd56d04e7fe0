package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"portfolio/backend/internal/domain"
	"portfolio/backend/internal/service"
)

// HealthNote 健康检查响应中的固定说明
const HealthNote = "Health-check only. Does not expose secret values."

// HealthResponse GET /api/send-email 的响应
type HealthResponse struct {
	OK   bool              `json:"ok"`
	Env  service.EnvReport `json:"env"`
	Note string            `json:"note"`
}

// SendResponse 投递成功的响应
type SendResponse struct {
	OK     bool               `json:"ok"`
	Result *domain.SendResult `json:"result"`
}

// ErrorResponse 所有失败响应的形状
type ErrorResponse struct {
	Error string `json:"error"`
}

// Success 成功响应（200）
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Error 失败响应
func Error(c *gin.Context, httpCode int, msg string) {
	c.JSON(httpCode, ErrorResponse{Error: msg})
}
