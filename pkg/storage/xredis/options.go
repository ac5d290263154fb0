package xredis

import (
	"time"

	"github.com/omeyang/flux/pkg/observability/xlog"
)

// =============================================================================
// 默认配置常量
// =============================================================================

const (
	// DefaultPoolSize 默认连接池大小
	DefaultPoolSize = 5

	// DefaultConnectTimeout 默认建连超时
	DefaultConnectTimeout = 200 * time.Millisecond

	// DefaultMaxRetries 默认最大重试次数（不含首次尝试）
	DefaultMaxRetries = 3

	// DefaultBaseDelay 默认重试退避基础间隔。
	// 第 n 次重试前等待 baseDelay * n（线性退避：50ms、100ms、150ms …）。
	DefaultBaseDelay = 50 * time.Millisecond
)

// =============================================================================
// 客户端配置选项
// =============================================================================

// options 客户端内部配置
type options struct {
	poolSize       int
	connectTimeout time.Duration
	maxRetries     int
	baseDelay      time.Duration
	logger         xlog.Logger
	onRetry        func(attempt int, err error)
}

// Option 客户端配置选项函数
type Option func(*options)

// defaultOptions 返回默认客户端配置
func defaultOptions() *options {
	return &options{
		poolSize:       DefaultPoolSize,
		connectTimeout: DefaultConnectTimeout,
		maxRetries:     DefaultMaxRetries,
		baseDelay:      DefaultBaseDelay,
		logger:         xlog.Discard(),
	}
}

// WithPoolSize 设置连接池大小。
// 池大小在客户端生命周期内固定不变，非正值会在 New 中返回 [ErrInvalidPoolSize]。
func WithPoolSize(n int) Option {
	return func(o *options) {
		o.poolSize = n
	}
}

// WithConnectTimeout 设置建连超时。
// 非正值保持默认值不变。
func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.connectTimeout = d
		}
	}
}

// WithMaxRetries 设置最大重试次数（不含首次尝试）。
// 0 表示失败后不重试；负值保持默认值不变。
func WithMaxRetries(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

// WithBaseDelay 设置线性退避的基础间隔。
// 非正值保持默认值不变。
func WithBaseDelay(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.baseDelay = d
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

// WithOnRetry 设置重试回调。
// attempt 从 1 开始计数，err 为本次失败的原因。主要用于测试和指标上报。
func WithOnRetry(f func(attempt int, err error)) Option {
	return func(o *options) {
		if f != nil {
			o.onRetry = f
		}
	}
}
