// Package ratelimit 限制同一客户端在时间窗口内只能成功提交一次。
//
// 检查与占位是一个原子操作：内存后端在同一把锁内完成，
// Redis 后端依赖 SET NX PX。被拒绝的请求不会刷新窗口。
package ratelimit

import (
	"context"
	"time"
)

// DefaultWindow 默认窗口：60 秒
const DefaultWindow = 60 * time.Second

// UnknownClient 无法识别客户端时使用的标识，所有此类请求共享同一个窗口
const UnknownClient = "unknown"

// Decision 一次限流判定的结果
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration // 被拒绝时距离窗口结束的时间
}

// Limiter 判定某个客户端当前能否提交，允许时同时记录本次提交
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}
