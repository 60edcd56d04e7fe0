package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"portfolio/backend/internal/config"
)

const checkTimeout = 2 * time.Second

// Pinger 可探活的外部依赖（Redis 限流后端）
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker 健康检查器
type HealthChecker struct {
	health healthcheck.Handler
	logger *zap.Logger
}

// NewHealthChecker 创建健康检查器
//
// 参数:
//   - email: 邮件配置，三项齐全才算就绪
//   - redis: 限流后端，内存模式传 nil
func NewHealthChecker(email config.EmailConfig, redis Pinger, logger *zap.Logger) *HealthChecker {
	hc := &HealthChecker{
		health: healthcheck.NewHandler(),
		logger: logger,
	}

	hc.health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(10000))

	hc.health.AddReadinessCheck("email-config", EmailConfigCheck(email))
	if redis != nil {
		hc.health.AddReadinessCheck("redis", healthcheck.Timeout(RedisHealthCheck(redis), checkTimeout))
	}

	return hc
}

// LiveEndpoint 存活探针
func (hc *HealthChecker) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	hc.health.LiveEndpoint(w, r)
}

// ReadyEndpoint 就绪探针，失败时记录日志
func (hc *HealthChecker) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	hc.health.ReadyEndpoint(rec, r)
	if rec.status != http.StatusOK {
		hc.logger.Warn("readiness check failed", zap.Int("status", rec.status))
	}
}

// EmailConfigCheck 检查邮件配置是否齐全，不输出任何配置值
func EmailConfigCheck(email config.EmailConfig) healthcheck.Check {
	return func() error {
		if !email.HasAPIKey() {
			return fmt.Errorf("missing api key")
		}
		if !email.HasFrom() || !email.HasTo() {
			return fmt.Errorf("missing from/to email")
		}
		return nil
	}
}

// RedisHealthCheck Redis 健康检查
func RedisHealthCheck(p Pinger) healthcheck.Check {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
		defer cancel()

		return p.Ping(ctx)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
