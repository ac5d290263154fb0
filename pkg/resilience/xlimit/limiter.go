package xlimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/omeyang/flux/pkg/storage/xredis"
)

// Limiter 分布式限流器。
// 判定在存储端原子执行，Limiter 本身无可变状态，可被任意多个
// goroutine 并发使用。
type Limiter struct {
	client   *xredis.Client
	requests int
	period   time.Duration
	opts     *options
	scripts  *scripts
}

// New 创建限流器。
//
// requests 为周期 period 内的请求配额。突发容量默认等于 requests，
// 可用 [WithBurst] 单独设置。
func New(client *xredis.Client, requests int, period time.Duration, opts ...Option) (*Limiter, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if requests <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRequests, requests)
	}
	if period <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPeriod, period)
	}

	cfg := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	if cfg.burst == 0 {
		cfg.burst = requests
	}
	if cfg.burst < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBurst, cfg.burst)
	}
	if !cfg.policy.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPolicy, cfg.policy)
	}
	if !cfg.failMode.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFailMode, cfg.failMode)
	}

	return &Limiter{
		client:   client,
		requests: requests,
		period:   period,
		opts:     cfg,
		scripts:  getScripts(),
	}, nil
}

// Requests 返回周期内请求配额
func (l *Limiter) Requests() int { return l.requests }

// Period 返回限流周期
func (l *Limiter) Period() time.Duration { return l.period }

// Burst 返回突发容量
func (l *Limiter) Burst() int { return l.opts.burst }

// Policy 返回限流策略
func (l *Limiter) Policy() Policy { return l.opts.policy }

// =============================================================================
// 判定
// =============================================================================

// allowOptions 单次判定的附加参数
type allowOptions struct {
	endpoint string
}

// AllowOption 单次判定的选项函数
type AllowOption func(*allowOptions)

// WithEndpoint 标注本次判定所属的端点，仅用于分析事件上报。
func WithEndpoint(ep string) AllowOption {
	return func(o *allowOptions) {
		o.endpoint = ep
	}
}

// Allow 对 key 执行一次限流判定。
//
// key 会拼接配置的前缀后作为存储键。判定脚本由存储原子执行，
// 同一个键上的并发调用观察到线性历史。
func (l *Limiter) Allow(ctx context.Context, key string, opts ...AllowOption) (*Result, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	var ao allowOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&ao)
		}
	}

	fullKey := l.opts.keyPrefix + key
	nowMs := l.opts.now().UnixMilli()
	sc := l.scripts.forPolicy(l.opts.policy)

	reply, err := l.client.EvalWithFallback(ctx, sc.sha, sc.src,
		[]string{fullKey}, l.scriptArgs(nowMs))
	if err != nil {
		return l.handleStoreError(ctx, fullKey, err)
	}

	result, err := l.parseReply(reply, fullKey, nowMs)
	if err != nil {
		return nil, err
	}

	l.emit(result, ao.endpoint)
	return result, nil
}

// scriptArgs 按策略换算脚本参数
func (l *Limiter) scriptArgs(nowMs int64) []any {
	switch l.opts.policy {
	case PolicyTokenBucket:
		// 容量 = 突发上限，补充速率 = 配额/周期（令牌/秒，可为小数）
		refillRate := float64(l.requests) / l.period.Seconds()
		return []any{l.opts.burst, refillRate, nowMs}
	default:
		emission := l.emissionIntervalMs()
		tolerance := emission * int64(l.opts.burst)
		return []any{emission, tolerance, nowMs}
	}
}

// emissionIntervalMs 返回 GCRA 发射间隔（毫秒，最小 1）
func (l *Limiter) emissionIntervalMs() int64 {
	emission := l.period.Milliseconds() / int64(l.requests)
	if emission < 1 {
		emission = 1
	}
	return emission
}

// parseReply 将脚本回复换算为判定结果
func (l *Limiter) parseReply(reply xredis.Reply, fullKey string, nowMs int64) (*Result, error) {
	if !reply.HasValue {
		return nil, fmt.Errorf("%w: single integer reply", xredis.ErrProtocol)
	}

	switch reply.Status {
	case scriptStatusAllowed:
		result := &Result{
			Allowed: true,
			Limit:   l.opts.burst,
			Key:     fullKey,
		}
		if l.opts.policy == PolicyTokenBucket {
			// 令牌桶的 value 即消费后的剩余令牌数
			result.Remaining = int(reply.Value)
		} else {
			result.Remaining = l.gcraRemaining(reply.Value, nowMs)
		}
		return result, nil

	case scriptStatusDenied:
		return &Result{
			Allowed:    false,
			Limit:      l.opts.burst,
			Key:        fullKey,
			RetryAfter: time.Duration(reply.Value)*time.Second + jitterDuration(l.opts.jitterMax),
		}, nil

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownScriptStatus, reply.Status)
	}
}

// gcraRemaining 由新 TAT 推导剩余突发额度。
// TAT 领先当前时间的量按发射间隔折算成已占用的突发格子数。
func (l *Limiter) gcraRemaining(newTat, nowMs int64) int {
	emission := l.emissionIntervalMs()
	ahead := newTat - nowMs
	if ahead <= 0 {
		return l.opts.burst
	}
	used := int((ahead + emission - 1) / emission)
	if used >= l.opts.burst {
		return 0
	}
	return l.opts.burst - used
}

// handleStoreError 按故障策略处理存储错误。
//
// 只有网络类错误（重试已耗尽）参与故障策略；脚本契约类错误
// 无论何种策略都直接上抛。FailOpen 放行并记日志；FailClosed
// 返回拒绝结果并附带原始错误，由调用方决定如何呈现。
func (l *Limiter) handleStoreError(ctx context.Context, fullKey string, err error) (*Result, error) {
	if !xredis.IsRetryable(err) {
		return nil, err
	}

	if l.opts.failMode == FailOpen {
		l.opts.logger.Warn(ctx, "store unavailable, failing open",
			slog.String("key", fullKey),
			slog.String("error", err.Error()),
		)
		// Limit 置 0 表示没有有效配额信息，响应头会被跳过
		return &Result{Allowed: true, Key: fullKey}, nil
	}

	return &Result{Allowed: false, Key: fullKey}, err
}

// emit 异步上报判定事件
func (l *Limiter) emit(result *Result, endpoint string) {
	if l.opts.analytics == nil {
		return
	}
	l.opts.analytics.emit(Event{
		Endpoint: endpoint,
		Key:      result.Key,
		Policy:   l.opts.policy,
		Allowed:  result.Allowed,
		At:       l.opts.now(),
	})
}
