package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"portfolio/backend/internal/config"
	"portfolio/backend/internal/health"
	"portfolio/backend/internal/logger"
	"portfolio/backend/internal/mailer"
	"portfolio/backend/internal/monitoring"
	"portfolio/backend/internal/ratelimit"
	"portfolio/backend/internal/security"
	"portfolio/backend/internal/service"
	httptransport "portfolio/backend/internal/transport/http"
)

// main 启动联系表单转发服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() { _ = log.Sync() }()

	// 只记录密钥是否存在，不记录值
	log.Info("starting contact relay",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
		zap.Bool("has_api_key", cfg.Email.HasAPIKey()),
		zap.Bool("has_from", cfg.Email.HasFrom()),
		zap.Bool("has_to", cfg.Email.HasTo()),
	)

	metrics := monitoring.NewMetrics()

	limiter, memLimiter, rdb, err := buildLimiter(cfg, metrics, log)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize rate limiter: %v", err))
	}

	sender := mailer.NewThrottled(buildSender(cfg, log), cfg.Provider.MaxPerSecond)

	contact := service.NewContactService(cfg.Email, limiter, sender, metrics, log)
	contact.SetContentFilter(security.NewContentFilter())
	contact.SetSendTimeout(cfg.Provider.Timeout)
	contact.SetLimiterBackend(cfg.RateLimit.Backend)

	var pinger health.Pinger
	if rdb != nil {
		pinger = limiter.(*ratelimit.RedisLimiter)
	}
	healthChecker := health.NewHealthChecker(cfg.Email, pinger, log)

	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:  cfg,
		Contact: contact,
		Health:  healthChecker,
		Metrics: metrics,
		Logger:  log,
	})

	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.Provider.Timeout + 15*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 内存限流表定时清理 goroutine
	if memLimiter != nil {
		group.Go(func() error {
			log.Info("starting rate limit sweeper", zap.Duration("interval", cfg.RateLimit.SweepInterval))
			memLimiter.Run(groupCtx, cfg.RateLimit.SweepInterval)
			log.Info("rate limit sweeper stopped")
			return nil
		})
	}

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownWait)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}
		if rdb != nil {
			if err := rdb.Close(); err != nil {
				log.Warn("redis close warning", zap.Error(err))
			}
		}

		log.Info("server stopped")
		return nil
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}

// buildLimiter 按配置创建限流器
//
// memory 后端额外返回 *MemoryLimiter 以便启动清理任务；redis 后端返回客户端以便关闭。
func buildLimiter(cfg *config.Config, metrics *monitoring.Metrics, log *zap.Logger) (ratelimit.Limiter, *ratelimit.MemoryLimiter, *redis.Client, error) {
	switch cfg.RateLimit.Backend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			// 启动时连不上也继续，提交时会返回 500，就绪检查会失败
			log.Warn("redis unreachable at startup", zap.String("address", cfg.Redis.Address), zap.Error(err))
		}
		log.Info("using redis rate limiter",
			zap.String("address", cfg.Redis.Address),
			zap.Duration("window", cfg.RateLimit.Window),
		)
		return ratelimit.NewRedisLimiter(rdb, cfg.RateLimit.Window), nil, rdb, nil
	case "memory", "":
		l := ratelimit.NewMemoryLimiter(cfg.RateLimit.Window, cfg.RateLimit.MaxEntries,
			ratelimit.WithLogger(log),
			ratelimit.WithSweepHook(metrics.UpdateRateLimitEntries),
		)
		log.Info("using memory rate limiter",
			zap.Duration("window", cfg.RateLimit.Window),
			zap.Int("max_entries", cfg.RateLimit.MaxEntries),
		)
		return l, l, nil, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown rate limit backend %q", cfg.RateLimit.Backend)
	}
}

// buildSender 按配置创建邮件投递实现
func buildSender(cfg *config.Config, log *zap.Logger) mailer.Sender {
	if cfg.Provider.Type == "smtp" {
		log.Info("using SMTP provider",
			zap.String("addr", cfg.SMTP.Addr),
			zap.Bool("auth", cfg.SMTP.Username != ""),
		)
		return mailer.NewSMTPSender(cfg.SMTP.Addr, cfg.SMTP.Username, config.SMTPPassword())
	}

	log.Info("using Resend provider",
		zap.String("base_url", cfg.Provider.BaseURL),
		zap.Duration("timeout", cfg.Provider.Timeout),
	)
	return mailer.NewResendSender(cfg.Provider.BaseURL, cfg.Provider.Timeout)
}
