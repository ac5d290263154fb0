package xlimit

import (
	"time"

	"github.com/omeyang/flux/pkg/observability/xlog"
)

// =============================================================================
// 故障策略
// =============================================================================

// FailMode 存储不可达时的故障策略
type FailMode string

const (
	// FailClosed 拒绝请求并上抛错误（默认）。
	// 适用于限流是硬性要求的场景。
	FailClosed FailMode = "closed"

	// FailOpen 放行请求并记录日志。
	// 适用于可用性优先于限流精度的场景。
	FailOpen FailMode = "open"
)

// IsValid 检查故障策略是否有效
func (m FailMode) IsValid() bool {
	switch m {
	case FailClosed, FailOpen:
		return true
	default:
		return false
	}
}

// =============================================================================
// 限流器配置选项
// =============================================================================

// options 限流器内部配置
type options struct {
	policy    Policy
	burst     int
	keyPrefix string
	failMode  FailMode
	jitterMax time.Duration
	now       func() time.Time
	logger    xlog.Logger
	analytics *AnalyticsEmitter
}

// Option 限流器配置选项函数
type Option func(*options)

// defaultOptions 返回默认限流器配置
func defaultOptions() *options {
	return &options{
		policy:    PolicyGCRA,
		keyPrefix: DefaultKeyPrefix,
		failMode:  FailClosed,
		now:       time.Now,
		logger:    xlog.Discard(),
	}
}

// WithPolicy 设置限流策略，默认 PolicyGCRA。
// 无效策略会在 New 中返回 [ErrInvalidPolicy]。
func WithPolicy(p Policy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithBurst 设置突发容量。
// 未设置时默认等于周期内请求配额。非正值会在 New 中返回 [ErrInvalidBurst]。
func WithBurst(n int) Option {
	return func(o *options) {
		o.burst = n
	}
}

// WithKeyPrefix 设置限流键前缀，默认 "flux:"。
// 空值保持默认前缀不变。
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.keyPrefix = prefix
		}
	}
}

// WithFailMode 设置存储不可达时的故障策略，默认 FailClosed。
func WithFailMode(m FailMode) Option {
	return func(o *options) {
		o.failMode = m
	}
}

// WithJitter 为拒绝结果的建议等待时间叠加 [0, max) 的均匀抖动，
// 打散被拒客户端的重试时刻。非正值表示禁用（默认禁用）。
func WithJitter(max time.Duration) Option {
	return func(o *options) {
		if max > 0 {
			o.jitterMax = max
		}
	}
}

// WithClock 设置时钟源，默认 time.Now。
// 判定使用调用方时钟换算毫秒时间戳，测试中注入固定时钟可获得
// 完全确定的判定序列。传入 nil 会被静默忽略。
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger 设置日志器。
// 默认丢弃所有日志输出。传入 nil 会被静默忽略。
func WithLogger(l xlog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithAnalytics 设置判定事件上报器。
// 设置后每次判定都会异步发布一条事件，详见 [AnalyticsEmitter]。
func WithAnalytics(e *AnalyticsEmitter) Option {
	return func(o *options) {
		o.analytics = e
	}
}
