package ratelimit

import (
	"container/list"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MemoryLimiter 进程内的时间窗口限流器
//
// 特点：
//   - 每个客户端只保存最近一次被接受的提交时间
//   - 按接受时间排序的链表，表头总是最旧的条目，过期清理与淘汰都是 O(1)
//   - 容量上限 maxEntries，满了之后淘汰最旧的条目
//   - Run 启动的后台协程定期清理过期条目
type MemoryLimiter struct {
	mu         sync.Mutex
	window     time.Duration
	maxEntries int
	order      *list.List               // *entry，按 acceptedAt 升序
	index      map[string]*list.Element // key -> order 中的节点
	now        func() time.Time
	log        *zap.Logger
	onSweep    func(remaining int)
}

type entry struct {
	key        string
	acceptedAt time.Time
}

// MemoryOption 配置 MemoryLimiter
type MemoryOption func(*MemoryLimiter)

// WithClock 替换时间来源（测试用）
func WithClock(now func() time.Time) MemoryOption {
	return func(l *MemoryLimiter) { l.now = now }
}

// WithLogger 设置日志记录器
func WithLogger(log *zap.Logger) MemoryOption {
	return func(l *MemoryLimiter) { l.log = log }
}

// WithSweepHook 每次周期清理后回调当前条目数（用于上报指标）
func WithSweepHook(fn func(remaining int)) MemoryOption {
	return func(l *MemoryLimiter) { l.onSweep = fn }
}

// NewMemoryLimiter 创建内存限流器
//
// 参数:
//   - window: 同一客户端两次被接受的提交之间的最小间隔
//   - maxEntries: 最多跟踪的客户端数量
func NewMemoryLimiter(window time.Duration, maxEntries int, opts ...MemoryOption) *MemoryLimiter {
	if window <= 0 {
		window = DefaultWindow
	}
	if maxEntries <= 0 {
		maxEntries = 1
	}

	l := &MemoryLimiter{
		window:     window,
		maxEntries: maxEntries,
		order:      list.New(),
		index:      make(map[string]*list.Element),
		now:        time.Now,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow 判定并在允许时记录本次提交
func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if elem, ok := l.index[key]; ok {
		e := elem.Value.(*entry)
		elapsed := now.Sub(e.acceptedAt)
		if elapsed < l.window {
			return Decision{Allowed: false, RetryAfter: l.window - elapsed}, nil
		}
		e.acceptedAt = now
		l.order.MoveToBack(elem)
		return Decision{Allowed: true}, nil
	}

	l.sweepLocked(now)
	if l.order.Len() >= l.maxEntries {
		oldest := l.order.Front()
		l.removeLocked(oldest)
		l.log.Warn("rate limit table full, evicting oldest client",
			zap.Int("max_entries", l.maxEntries),
		)
	}

	l.index[key] = l.order.PushBack(&entry{key: key, acceptedAt: now})
	return Decision{Allowed: true}, nil
}

// Sweep 删除已经走出窗口的条目，返回删除数量
func (l *MemoryLimiter) Sweep() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.sweepLocked(now)
}

// Len 当前跟踪的客户端数量
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.order.Len()
}

// Run 按 interval 周期清理，直到 ctx 结束
func (l *MemoryLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				l.log.Debug("rate limit entries swept", zap.Int("count", n))
			}
			if l.onSweep != nil {
				l.onSweep(l.Len())
			}
		}
	}
}

func (l *MemoryLimiter) sweepLocked(now time.Time) int {
	removed := 0
	for elem := l.order.Front(); elem != nil; elem = l.order.Front() {
		if now.Sub(elem.Value.(*entry).acceptedAt) < l.window {
			break
		}
		l.removeLocked(elem)
		removed++
	}
	return removed
}

func (l *MemoryLimiter) removeLocked(elem *list.Element) {
	e := l.order.Remove(elem).(*entry)
	delete(l.index, e.key)
}
