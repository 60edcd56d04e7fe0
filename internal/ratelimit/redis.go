package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix Redis 中限流键的命名空间
const keyPrefix = "portfolio:contact:rl:"

// RedisLimiter 基于 Redis 的时间窗口限流器，多个实例共享同一窗口
//
// 每次被接受的提交写入一个带 TTL 的键；键存在即处于窗口内。
// 过期由 Redis 负责，不需要清理协程。
type RedisLimiter struct {
	rdb    redis.UniversalClient
	window time.Duration
	now    func() time.Time
}

// NewRedisLimiter 创建 Redis 限流器
func NewRedisLimiter(rdb redis.UniversalClient, window time.Duration) *RedisLimiter {
	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisLimiter{
		rdb:    rdb,
		window: window,
		now:    time.Now,
	}
}

// Allow 使用 SET NX PX 原子地检查并占位
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	redisKey := keyPrefix + key

	set, err := l.rdb.SetNX(ctx, redisKey, l.now().UnixMilli(), l.window).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit SETNX: %w", err)
	}
	if set {
		return Decision{Allowed: true}, nil
	}

	ttl, err := l.rdb.PTTL(ctx, redisKey).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit PTTL: %w", err)
	}
	// 键在 SETNX 与 PTTL 之间过期时 ttl 为负数
	if ttl < 0 {
		ttl = 0
	}
	return Decision{Allowed: false, RetryAfter: ttl}, nil
}

// Ping 检查 Redis 连接，用于就绪检查
func (l *RedisLimiter) Ping(ctx context.Context) error {
	return l.rdb.Ping(ctx).Err()
}
