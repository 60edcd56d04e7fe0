package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host         string        // 监听地址，默认 "0.0.0.0"
	Port         int           // 监听端口，默认 8080
	MaxBodyBytes int64         // 请求体上限，默认 64KB（联系表单足够）
	ShutdownWait time.Duration // 优雅关闭等待时间
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
	File        string // 日志文件路径，留空只输出到控制台
}

// EmailConfig 定义联系表单转发所需的三个部署密钥
//
// 任何一个缺失都不会阻止进程启动，而是在每次提交时返回 500。
type EmailConfig struct {
	APIKey string // 邮件服务商 API Key
	From   string // 发件人地址
	To     string // 收件人地址（站点主人）
}

// HasAPIKey 是否配置了 API Key
func (e EmailConfig) HasAPIKey() bool { return e.APIKey != "" }

// HasFrom 是否配置了发件人
func (e EmailConfig) HasFrom() bool { return e.From != "" }

// HasTo 是否配置了收件人
func (e EmailConfig) HasTo() bool { return e.To != "" }

// RateLimitConfig 定义提交限流配置
type RateLimitConfig struct {
	Backend       string        // "memory" 或 "redis"
	Window        time.Duration // 同一客户端两次提交的最小间隔，默认 60s
	MaxEntries    int           // 内存后端的最大条目数
	SweepInterval time.Duration // 内存后端清理过期条目的周期
	ClientHeader  string        // 用于识别客户端的转发头
}

// RedisConfig 定义 Redis 服务配置（仅 ratelimit.backend=redis 时使用）
type RedisConfig struct {
	Address  string // Redis 服务地址，格式 "host:port"，默认 "localhost:6379"
	Password string // Redis 认证密码，留空表示无密码
	DB       int    // Redis 数据库编号，默认 0
}

// ProviderConfig 定义外部邮件投递服务配置
type ProviderConfig struct {
	Type         string        // "resend" 或 "smtp"
	BaseURL      string        // Resend API 地址
	Timeout      time.Duration // 单次投递超时
	MaxPerSecond float64       // 全局出站速率
}

// SMTPConfig 定义 SMTP 中继配置（provider.type=smtp 时使用）
type SMTPConfig struct {
	Addr     string // 中继地址，格式 "host:port"
	Username string // 认证用户名，留空表示不认证
}

// Config 是系统核心配置的根结构体
type Config struct {
	Server    ServerConfig
	CORS      CORSConfig
	Log       LogConfig
	Email     EmailConfig
	RateLimit RateLimitConfig
	Redis     RedisConfig
	Provider  ProviderConfig
	SMTP      SMTPConfig
}

// Load 从环境变量、可选配置文件和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量
//  2. .env 文件（如果存在）
//  3. PORTFOLIO_CONFIG 指定的配置文件（yaml/json/toml）
//  4. 默认值
//
// 环境变量前缀: PORTFOLIO_，例如 PORTFOLIO_SERVER_PORT。
// 邮件密钥同时接受原部署使用的 RESEND_API_KEY / RESEND_FROM_EMAIL / RESEND_TO_EMAIL。
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetEnvPrefix("portfolio")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("email.api_key", "PORTFOLIO_EMAIL_API_KEY", "RESEND_API_KEY")
	_ = v.BindEnv("email.from", "PORTFOLIO_EMAIL_FROM", "RESEND_FROM_EMAIL")
	_ = v.BindEnv("email.to", "PORTFOLIO_EMAIL_TO", "RESEND_TO_EMAIL")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_body_bytes", 64*1024)
	v.SetDefault("server.shutdown_wait", "10s")
	v.SetDefault("cors.allowed_origins", "*")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("log.file", "")
	v.SetDefault("ratelimit.backend", "memory")
	v.SetDefault("ratelimit.window", "60s")
	v.SetDefault("ratelimit.max_entries", 10000)
	v.SetDefault("ratelimit.sweep_interval", "1m")
	v.SetDefault("ratelimit.client_header", "X-Forwarded-For")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("provider.type", "resend")
	v.SetDefault("provider.base_url", "https://api.resend.com")
	v.SetDefault("provider.timeout", "10s")
	v.SetDefault("provider.max_per_second", 2)
	v.SetDefault("smtp.addr", "localhost:587")
	v.SetDefault("smtp.username", "")

	if path := os.Getenv("PORTFOLIO_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	window, err := time.ParseDuration(v.GetString("ratelimit.window"))
	if err != nil {
		return nil, fmt.Errorf("invalid ratelimit.window: %w", err)
	}
	if window <= 0 {
		return nil, fmt.Errorf("ratelimit.window must be positive")
	}

	sweepInterval, err := time.ParseDuration(v.GetString("ratelimit.sweep_interval"))
	if err != nil || sweepInterval <= 0 {
		sweepInterval = time.Minute
	}

	backend := strings.ToLower(strings.TrimSpace(v.GetString("ratelimit.backend")))
	if backend != "memory" && backend != "redis" {
		return nil, fmt.Errorf("invalid ratelimit.backend %q: want memory or redis", backend)
	}

	providerType := strings.ToLower(strings.TrimSpace(v.GetString("provider.type")))
	if providerType != "resend" && providerType != "smtp" {
		return nil, fmt.Errorf("invalid provider.type %q: want resend or smtp", providerType)
	}

	providerTimeout, err := time.ParseDuration(v.GetString("provider.timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid provider.timeout: %w", err)
	}

	shutdownWait, err := time.ParseDuration(v.GetString("server.shutdown_wait"))
	if err != nil {
		shutdownWait = 10 * time.Second
	}

	maxEntries := v.GetInt("ratelimit.max_entries")
	if maxEntries <= 0 {
		maxEntries = 10000
	}

	corsOrigins := parseList(v.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:         v.GetString("server.host"),
			Port:         v.GetInt("server.port"),
			MaxBodyBytes: v.GetInt64("server.max_body_bytes"),
			ShutdownWait: shutdownWait,
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
			File:        v.GetString("log.file"),
		},
		Email: EmailConfig{
			APIKey: strings.TrimSpace(v.GetString("email.api_key")),
			From:   strings.TrimSpace(v.GetString("email.from")),
			To:     strings.TrimSpace(v.GetString("email.to")),
		},
		RateLimit: RateLimitConfig{
			Backend:       backend,
			Window:        window,
			MaxEntries:    maxEntries,
			SweepInterval: sweepInterval,
			ClientHeader:  v.GetString("ratelimit.client_header"),
		},
		Redis: RedisConfig{
			Address:  v.GetString("redis.address"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Provider: ProviderConfig{
			Type:         providerType,
			BaseURL:      v.GetString("provider.base_url"),
			Timeout:      providerTimeout,
			MaxPerSecond: v.GetFloat64("provider.max_per_second"),
		},
		SMTP: SMTPConfig{
			Addr:     v.GetString("smtp.addr"),
			Username: v.GetString("smtp.username"),
		},
	}

	return cfg, nil
}

// SMTPPassword 返回 SMTP 中继密码
//
// 密码不放进 Config，避免被整体打印到日志。
func SMTPPassword() string {
	return os.Getenv("PORTFOLIO_SMTP_PASSWORD")
}

// parseList 将逗号分隔的字符串解析为字符串切片
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 文件不存在时静默跳过；已存在的环境变量不会被覆盖。
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
