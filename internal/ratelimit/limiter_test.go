package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// fakeClock 可手动推进的时钟
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryLimiter_Window(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	limiter := NewMemoryLimiter(DefaultWindow, 100, WithClock(clock.Now))

	d, err := limiter.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	clock.Advance(10 * time.Second)
	d, err = limiter.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 50*time.Second, d.RetryAfter)

	// 其他客户端不受影响
	d, _ = limiter.Allow(ctx, "5.6.7.8")
	assert.True(t, d.Allowed)

	// 被拒绝的请求不刷新窗口：距离首次提交满 60s 即可再次提交
	clock.Advance(50 * time.Second)
	d, _ = limiter.Allow(ctx, "1.2.3.4")
	assert.True(t, d.Allowed)

	// 新的窗口从这次提交开始
	clock.Advance(59 * time.Second)
	d, _ = limiter.Allow(ctx, "1.2.3.4")
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Second, d.RetryAfter)
}

func TestMemoryLimiter_Sweep(t *testing.T) {
	clock := newFakeClock()
	limiter := NewMemoryLimiter(time.Minute, 100, WithClock(clock.Now))

	for i := 0; i < 5; i++ {
		_, _ = limiter.Allow(context.Background(), fmt.Sprintf("client-%d", i))
		clock.Advance(10 * time.Second)
	}
	assert.Equal(t, 5, limiter.Len())

	// 推进到 t=70s，t=0 和 t=10 的条目已满一个窗口
	clock.Advance(20 * time.Second)
	assert.Equal(t, 2, limiter.Sweep())
	assert.Equal(t, 3, limiter.Len())

	clock.Advance(time.Hour)
	assert.Equal(t, 3, limiter.Sweep())
	assert.Equal(t, 0, limiter.Len())
}

func TestMemoryLimiter_Capacity(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	limiter := NewMemoryLimiter(time.Minute, 3, WithClock(clock.Now))

	for _, key := range []string{"a", "b", "c"} {
		d, _ := limiter.Allow(ctx, key)
		require.True(t, d.Allowed)
		clock.Advance(time.Second)
	}

	// 表已满，淘汰最旧的 "a"
	d, _ := limiter.Allow(ctx, "d")
	assert.True(t, d.Allowed)
	assert.Equal(t, 3, limiter.Len())

	d, _ = limiter.Allow(ctx, "a")
	assert.True(t, d.Allowed, "evicted client starts a fresh window")

	d, _ = limiter.Allow(ctx, "c")
	assert.False(t, d.Allowed)
	assert.LessOrEqual(t, limiter.Len(), 3)
}

func TestMemoryLimiter_ConcurrentClaim(t *testing.T) {
	limiter := NewMemoryLimiter(time.Minute, 100)

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := limiter.Allow(context.Background(), UnknownClient)
			if err == nil && d.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), allowed.Load())
}

func TestMemoryLimiter_Run(t *testing.T) {
	defer goleak.VerifyNone(t)

	clock := newFakeClock()
	var reported atomic.Int32
	reported.Store(-1)
	limiter := NewMemoryLimiter(time.Minute, 100,
		WithClock(clock.Now),
		WithSweepHook(func(remaining int) { reported.Store(int32(remaining)) }),
	)
	_, _ = limiter.Allow(context.Background(), "a")
	clock.Advance(2 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		limiter.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return limiter.Len() == 0 && reported.Load() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestRedisLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx := context.Background()
	limiter := NewRedisLimiter(rdb, time.Minute)

	d, err := limiter.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.True(t, mr.Exists(keyPrefix+"1.2.3.4"))

	d, err = limiter.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, d.RetryAfter, time.Minute)

	// 被拒绝的请求不会延长窗口
	mr.FastForward(30 * time.Second)
	_, _ = limiter.Allow(ctx, "1.2.3.4")
	mr.FastForward(31 * time.Second)

	d, err = limiter.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	require.NoError(t, limiter.Ping(ctx))
}

func TestRedisLimiter_Unavailable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 200 * time.Millisecond,
	})
	t.Cleanup(func() { _ = rdb.Close() })

	_, err := NewRedisLimiter(rdb, time.Minute).Allow(context.Background(), "a")
	assert.ErrorContains(t, err, "rate limit SETNX")
}
