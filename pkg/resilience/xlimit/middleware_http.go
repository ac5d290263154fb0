package xlimit

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/omeyang/flux/pkg/observability/xlog"
)

// =============================================================================
// HTTP 中间件
// =============================================================================

// KeyFunc 从请求提取限流键
type KeyFunc func(r *http.Request) string

// SkipFunc 判断请求是否跳过限流
type SkipFunc func(r *http.Request) bool

// middlewareOptions 中间件内部配置
type middlewareOptions struct {
	keyFunc       KeyFunc
	skipFunc      SkipFunc
	denyHandler   http.Handler
	enableHeaders bool
	logger        xlog.Logger
}

// MiddlewareOption 中间件配置选项函数
type MiddlewareOption func(*middlewareOptions)

// WithKeyFunc 设置限流键提取函数，默认取客户端 IP。
func WithKeyFunc(fn KeyFunc) MiddlewareOption {
	return func(o *middlewareOptions) {
		if fn != nil {
			o.keyFunc = fn
		}
	}
}

// WithSkipFunc 设置跳过判定函数，返回 true 的请求直接放行。
func WithSkipFunc(fn SkipFunc) MiddlewareOption {
	return func(o *middlewareOptions) {
		o.skipFunc = fn
	}
}

// WithDenyHandler 设置拒绝响应处理器，
// 默认返回 429 Too Many Requests。
func WithDenyHandler(h http.Handler) MiddlewareOption {
	return func(o *middlewareOptions) {
		if h != nil {
			o.denyHandler = h
		}
	}
}

// WithRateLimitHeaders 在响应中写入 X-RateLimit-* 头，默认开启。
func WithRateLimitHeaders(enable bool) MiddlewareOption {
	return func(o *middlewareOptions) {
		o.enableHeaders = enable
	}
}

// WithMiddlewareLogger 设置中间件日志器
func WithMiddlewareLogger(l xlog.Logger) MiddlewareOption {
	return func(o *middlewareOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// HTTPMiddleware 返回按客户端维度限流的 net/http 中间件。
//
// 限流键默认取客户端 IP（优先 X-Forwarded-For 首跳）。判定出错
// 时遵循 Limiter 的故障策略：FailOpen 放行，FailClosed 拒绝。
func HTTPMiddleware(limiter *Limiter, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := &middlewareOptions{
		keyFunc:       ClientIPKey,
		denyHandler:   http.HandlerFunc(defaultDenyHandler),
		enableHeaders: true,
		logger:        xlog.Discard(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.skipFunc != nil && cfg.skipFunc(r) {
				next.ServeHTTP(w, r)
				return
			}

			key := cfg.keyFunc(r)
			if key == "" {
				// 提不出键时不做判定，避免所有未知来源共享一个桶
				next.ServeHTTP(w, r)
				return
			}

			result, err := limiter.Allow(r.Context(), key, WithEndpoint(r.URL.Path))
			if err != nil {
				cfg.logger.Warn(r.Context(), "rate limit check failed",
					slog.String("key", key),
					slog.String("error", err.Error()),
				)
				if result != nil && !result.Allowed {
					cfg.denyHandler.ServeHTTP(w, r)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			if cfg.enableHeaders {
				result.SetHeaders(w)
			}
			if !result.Allowed {
				cfg.denyHandler.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// defaultDenyHandler 默认的拒绝响应
func defaultDenyHandler(w http.ResponseWriter, _ *http.Request) {
	http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
}

// ClientIPKey 提取客户端 IP 作为限流键。
// 优先取 X-Forwarded-For 的首跳地址，其次回退到连接对端地址。
func ClientIPKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
