package xlimit

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/omeyang/flux/pkg/storage/xredis"
)

// =============================================================================
// 测试辅助函数
// =============================================================================

// fakeClock 可手动推进的测试时钟
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	// 固定起点，保证判定序列完全确定
	return &fakeClock{t: time.UnixMilli(1_000_000)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func setupStore(t *testing.T, opts ...xredis.Option) (*xredis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := xredis.New(mr.Addr(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}

func setupLimiter(t *testing.T, requests int, period time.Duration, opts ...Option) (*Limiter, *miniredis.Miniredis, *fakeClock) {
	t.Helper()

	client, mr := setupStore(t)
	clock := newFakeClock()

	limiter, err := New(client, requests, period, append([]Option{WithClock(clock.Now)}, opts...)...)
	require.NoError(t, err)

	return limiter, mr, clock
}

func mustAllow(t *testing.T, l *Limiter, key string) *Result {
	t.Helper()
	result, err := l.Allow(context.Background(), key)
	require.NoError(t, err)
	require.True(t, result.Allowed, "expected allow, got deny (retry after %v)", result.RetryAfter)
	return result
}

func mustDeny(t *testing.T, l *Limiter, key string) *Result {
	t.Helper()
	result, err := l.Allow(context.Background(), key)
	require.NoError(t, err)
	require.False(t, result.Allowed, "expected deny, got allow (remaining %d)", result.Remaining)
	return result
}

// =============================================================================
// 构造校验
// =============================================================================

func TestNewLimiter_Validation(t *testing.T) {
	client, _ := setupStore(t)

	tests := []struct {
		name     string
		client   *xredis.Client
		requests int
		period   time.Duration
		opts     []Option
		wantErr  error
	}{
		{"nil client", nil, 10, time.Second, nil, ErrNilClient},
		{"zero requests", client, 0, time.Second, nil, ErrInvalidRequests},
		{"negative requests", client, -1, time.Second, nil, ErrInvalidRequests},
		{"zero period", client, 10, 0, nil, ErrInvalidPeriod},
		{"negative burst", client, 10, time.Second, []Option{WithBurst(-1)}, ErrInvalidBurst},
		{"bogus policy", client, 10, time.Second, []Option{WithPolicy("sliding_window")}, ErrInvalidPolicy},
		{"bogus fail mode", client, 10, time.Second, []Option{WithFailMode("maybe")}, ErrInvalidFailMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter, err := New(tt.client, tt.requests, tt.period, tt.opts...)
			assert.Nil(t, limiter)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNewLimiter_Defaults(t *testing.T) {
	client, _ := setupStore(t)

	limiter, err := New(client, 10, time.Second)
	require.NoError(t, err)

	assert.Equal(t, 10, limiter.Requests())
	assert.Equal(t, time.Second, limiter.Period())
	// 突发容量默认等于配额
	assert.Equal(t, 10, limiter.Burst())
	assert.Equal(t, PolicyGCRA, limiter.Policy())
}

func TestLimiter_EmptyKey(t *testing.T) {
	limiter, _, _ := setupLimiter(t, 10, time.Second)

	result, err := limiter.Allow(context.Background(), "")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrEmptyKey)
}

// =============================================================================
// GCRA
// =============================================================================

func TestGCRA_BurstThenDeny(t *testing.T) {
	// 10 req/s，突发 5：发射间隔 100ms，容忍窗口 500ms
	limiter, _, _ := setupLimiter(t, 10, time.Second, WithBurst(5))

	// 同一时刻连续 5 次通过，剩余额度递减
	for i := 0; i < 5; i++ {
		result := mustAllow(t, limiter, "u1")
		assert.Equal(t, 4-i, result.Remaining)
		assert.Equal(t, 5, result.Limit)
	}

	// 第 6 次拒绝，等待时间向上取整到秒
	result := mustDeny(t, limiter, "u1")
	assert.Equal(t, 0, result.Remaining)
	assert.Equal(t, time.Second, result.RetryAfter)
}

func TestGCRA_RecoverAfterWait(t *testing.T) {
	limiter, _, clock := setupLimiter(t, 10, time.Second, WithBurst(5))

	for i := 0; i < 5; i++ {
		mustAllow(t, limiter, "u1")
	}
	mustDeny(t, limiter, "u1")

	// 等满 1 秒后额度回流
	clock.Advance(time.Second)
	mustAllow(t, limiter, "u1")
}

func TestGCRA_SteadyRate(t *testing.T) {
	// 按发射间隔匀速到达的流量永远通过
	limiter, _, clock := setupLimiter(t, 10, time.Second, WithBurst(1))

	for i := 0; i < 20; i++ {
		mustAllow(t, limiter, "u1")
		clock.Advance(100 * time.Millisecond)
	}
}

func TestGCRA_DenyDoesNotMutate(t *testing.T) {
	limiter, mr, _ := setupLimiter(t, 10, time.Second, WithBurst(2))

	mustAllow(t, limiter, "u1")
	mustAllow(t, limiter, "u1")

	before, err := mr.Get("flux:u1")
	require.NoError(t, err)

	// 拒绝不得改变存储状态
	mustDeny(t, limiter, "u1")
	mustDeny(t, limiter, "u1")

	after, err := mr.Get("flux:u1")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestGCRA_MonotonicTAT(t *testing.T) {
	limiter, mr, clock := setupLimiter(t, 10, time.Second, WithBurst(3))

	var lastTat int64
	for i := 0; i < 12; i++ {
		_, err := limiter.Allow(context.Background(), "u1")
		require.NoError(t, err)

		raw, err := mr.Get("flux:u1")
		require.NoError(t, err)
		tat, err := strconv.ParseInt(raw, 10, 64)
		require.NoError(t, err)

		// now 非递减的调用序列下，TAT 只会前进
		assert.GreaterOrEqual(t, tat, lastTat)
		lastTat = tat

		if i%3 == 0 {
			clock.Advance(50 * time.Millisecond)
		}
	}
}

func TestGCRA_IndependentKeys(t *testing.T) {
	limiter, _, _ := setupLimiter(t, 10, time.Second, WithBurst(1))

	mustAllow(t, limiter, "u1")
	mustDeny(t, limiter, "u1")
	// 其他键不受影响
	mustAllow(t, limiter, "u2")
}

func TestGCRA_StateExpires(t *testing.T) {
	limiter, mr, _ := setupLimiter(t, 10, time.Second, WithBurst(5))

	mustAllow(t, limiter, "u1")
	require.True(t, mr.Exists("flux:u1"))

	// 过期时间为两倍容忍窗口（2*500ms）
	mr.FastForward(1100 * time.Millisecond)
	assert.False(t, mr.Exists("flux:u1"))
}

// =============================================================================
// 令牌桶
// =============================================================================

func TestTokenBucket_SequenceAtFixedInstant(t *testing.T) {
	// 容量 5，补充速率 1 令牌/秒
	limiter, _, clock := setupLimiter(t, 1, time.Second,
		WithPolicy(PolicyTokenBucket), WithBurst(5))

	// 同一时刻 5 次通过，剩余令牌 4,3,2,1,0
	for i := 0; i < 5; i++ {
		result := mustAllow(t, limiter, "u1")
		assert.Equal(t, 4-i, result.Remaining)
	}

	// 第 6 次同一时刻拒绝：同一时间戳不重复补充
	result := mustDeny(t, limiter, "u1")
	assert.Equal(t, time.Second, result.RetryAfter)

	// 1 秒后补充 1 枚，恰好再通过一次
	clock.Advance(time.Second)
	result = mustAllow(t, limiter, "u1")
	assert.Equal(t, 0, result.Remaining)
	mustDeny(t, limiter, "u1")
}

func TestTokenBucket_FloorRefill(t *testing.T) {
	limiter, _, clock := setupLimiter(t, 1, time.Second,
		WithPolicy(PolicyTokenBucket), WithBurst(5))

	for i := 0; i < 5; i++ {
		mustAllow(t, limiter, "u1")
	}

	// 2.5 秒补充 floor(2.5) = 2 枚
	clock.Advance(2500 * time.Millisecond)
	result := mustAllow(t, limiter, "u1")
	assert.Equal(t, 1, result.Remaining)
	mustAllow(t, limiter, "u1")
	mustDeny(t, limiter, "u1")
}

func TestTokenBucket_CapacityClamp(t *testing.T) {
	limiter, _, clock := setupLimiter(t, 1, time.Second,
		WithPolicy(PolicyTokenBucket), WithBurst(3))

	mustAllow(t, limiter, "u1")

	// 长时间闲置后补充封顶在容量
	clock.Advance(time.Hour)
	result := mustAllow(t, limiter, "u1")
	assert.Equal(t, 2, result.Remaining)
}

func TestTokenBucket_FractionalRate(t *testing.T) {
	// 1 令牌 / 2 秒：rate = 0.5
	limiter, _, clock := setupLimiter(t, 1, 2*time.Second,
		WithPolicy(PolicyTokenBucket), WithBurst(1))

	mustAllow(t, limiter, "u1")

	// 双重取整：ceil(ceil(2000)/1000) = 2 秒
	result := mustDeny(t, limiter, "u1")
	assert.Equal(t, 2*time.Second, result.RetryAfter)

	clock.Advance(2 * time.Second)
	mustAllow(t, limiter, "u1")
}

func TestTokenBucket_ProbeAdvancesRefillWindow(t *testing.T) {
	// 补充按 floor 计算且 last_refill 随每次非零流逝前进：
	// 以低于单枚令牌所需间隔反复探测会不断重置补充窗口
	limiter, _, clock := setupLimiter(t, 1, 2*time.Second,
		WithPolicy(PolicyTokenBucket), WithBurst(1))

	mustAllow(t, limiter, "u1")

	for i := 0; i < 3; i++ {
		clock.Advance(time.Second)
		mustDeny(t, limiter, "u1")
	}

	// 距最后一次探测攒满一整枚令牌后恢复
	clock.Advance(2 * time.Second)
	mustAllow(t, limiter, "u1")
}

func TestTokenBucket_StateExpires(t *testing.T) {
	limiter, mr, _ := setupLimiter(t, 1, time.Second,
		WithPolicy(PolicyTokenBucket), WithBurst(2))

	mustAllow(t, limiter, "u1")
	require.True(t, mr.Exists("flux:u1"))

	// 过期时间 ceil(2*capacity/rate) = 4 秒
	mr.FastForward(5 * time.Second)
	assert.False(t, mr.Exists("flux:u1"))
}

// =============================================================================
// 键前缀
// =============================================================================

func TestLimiter_KeyPrefix(t *testing.T) {
	t.Run("default prefix", func(t *testing.T) {
		limiter, mr, _ := setupLimiter(t, 10, time.Second)

		result := mustAllow(t, limiter, "user:42")
		assert.Equal(t, "flux:user:42", result.Key)
		assert.True(t, mr.Exists("flux:user:42"))
	})

	t.Run("custom prefix", func(t *testing.T) {
		limiter, mr, _ := setupLimiter(t, 10, time.Second, WithKeyPrefix("rl:api:"))

		result := mustAllow(t, limiter, "user:42")
		assert.Equal(t, "rl:api:user:42", result.Key)
		assert.True(t, mr.Exists("rl:api:user:42"))
	})
}

// =============================================================================
// 抖动
// =============================================================================

func TestLimiter_JitterOnDeny(t *testing.T) {
	limiter, _, _ := setupLimiter(t, 10, time.Second,
		WithBurst(1), WithJitter(500*time.Millisecond))

	mustAllow(t, limiter, "u1")

	seen := make(map[time.Duration]bool)
	for i := 0; i < 16; i++ {
		result := mustDeny(t, limiter, "u1")
		// 基础等待 1s，叠加 [0, 500ms) 抖动
		assert.GreaterOrEqual(t, result.RetryAfter, time.Second)
		assert.Less(t, result.RetryAfter, 1500*time.Millisecond)
		seen[result.RetryAfter] = true
	}
	// 抖动应产生离散取值（16 次全部相同的概率可忽略）
	assert.Greater(t, len(seen), 1)
}

func TestLimiter_NoJitterByDefault(t *testing.T) {
	limiter, _, _ := setupLimiter(t, 10, time.Second, WithBurst(1))

	mustAllow(t, limiter, "u1")
	for i := 0; i < 4; i++ {
		result := mustDeny(t, limiter, "u1")
		assert.Equal(t, time.Second, result.RetryAfter)
	}
}

func TestJitterDuration(t *testing.T) {
	assert.Zero(t, jitterDuration(0))
	assert.Zero(t, jitterDuration(-time.Second))

	for i := 0; i < 100; i++ {
		d := jitterDuration(200 * time.Millisecond)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.Less(t, d, 200*time.Millisecond)
	}
}

// =============================================================================
// 故障策略
// =============================================================================

func setupUnreachableLimiter(t *testing.T, opts ...Option) *Limiter {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client, err := xredis.New(mr.Addr(), xredis.WithMaxRetries(0))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	limiter, err := New(client, 10, time.Second, opts...)
	require.NoError(t, err)

	// 限流器就绪后存储下线
	mr.Close()
	return limiter
}

func TestFailClosed_DeniesOnStoreFailure(t *testing.T) {
	limiter := setupUnreachableLimiter(t)

	result, err := limiter.Allow(context.Background(), "u1")
	require.Error(t, err)
	require.NotNil(t, result)
	assert.False(t, result.Allowed)
}

func TestFailOpen_AllowsOnStoreFailure(t *testing.T) {
	limiter := setupUnreachableLimiter(t, WithFailMode(FailOpen))

	result, err := limiter.Allow(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Allowed)
	// 没有有效配额信息，Limit 置零
	assert.Zero(t, result.Limit)
}

func TestFailOpen_DoesNotSwallowContractErrors(t *testing.T) {
	limiter, _, _ := setupLimiter(t, 10, time.Second, WithFailMode(FailOpen))

	// 非网络错误（空键）不走故障放行
	result, err := limiter.Allow(context.Background(), "")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrEmptyKey)
}

// =============================================================================
// 并发
// =============================================================================

func TestLimiter_ConcurrentSameKey(t *testing.T) {
	limiter, _, _ := setupLimiter(t, 100, time.Second, WithBurst(10))

	const callers = 40
	var allowed atomic.Int32

	var g errgroup.Group
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			result, err := limiter.Allow(context.Background(), "hot")
			if err != nil {
				return err
			}
			if result.Allowed {
				allowed.Add(1)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	// 脚本原子执行：恰好突发容量次通过，无多放也无少放
	assert.Equal(t, int32(10), allowed.Load())
}
