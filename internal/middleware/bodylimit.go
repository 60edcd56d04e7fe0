package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// DefaultBodyLimit 联系表单请求体上限
const DefaultBodyLimit = 64 * 1024

// BodySizeLimit 限制请求体大小的中间件
//
// 这里不提前拒绝：请求体在读取时截断，由读取方把 *http.MaxBytesError
// 转换为 413。这样限流和配置检查仍然先于请求体大小生效。
func BodySizeLimit(maxBytes int64) gin.HandlerFunc {
	if maxBytes <= 0 {
		maxBytes = DefaultBodyLimit
	}

	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Header("X-Max-Body-Size", strconv.FormatInt(maxBytes, 10))

		c.Next()
	}
}
