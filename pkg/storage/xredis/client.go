package xredis

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	retry "github.com/avast/retry-go/v5"
	"github.com/redis/go-redis/v9"
)

// Client 带固定大小连接池和重试执行器的 Redis 客户端。
//
// 所有命令走同一条执行路径：借连接（有保证的归还）→ 执行 →
// 失败分类 → 线性退避重试。详见包文档。
type Client struct {
	base   *redis.Client
	pool   *pool
	opts   *options
	closed atomic.Bool
}

// New 创建客户端并预热连接池。
//
// addr 形如 "host:port"。池中每条连接在构造阶段都会完成拨号并
// PING 验证，任意一条失败则整体失败（返回 [ErrConnectFailed]），
// 不会留下部分池。
func New(addr string, opts ...Option) (*Client, error) {
	if addr == "" {
		return nil, ErrEmptyAddr
	}

	cfg := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	if cfg.poolSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPoolSize, cfg.poolSize)
	}

	// 底座 client 只承担 RESP 编解码：
	//   - MaxRetries: -1 禁用 go-redis 内部重试，重试语义由本包独占
	//   - PoolSize 预留一个余量，坏连接替换时旧句柄关闭与新句柄创建
	//     之间存在短暂的双持窗口
	base := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: cfg.connectTimeout,
		MaxRetries:  -1,
		PoolSize:    cfg.poolSize + 1,
	})

	p, err := newPool(context.Background(), cfg.poolSize, newDialer(base, cfg.connectTimeout))
	if err != nil {
		_ = base.Close()
		return nil, err
	}

	return &Client{
		base: base,
		pool: p,
		opts: cfg,
	}, nil
}

// Close 关闭客户端，幂等。
// 关闭连接池（唤醒所有阻塞的借用者）并释放底座资源。
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.pool.shutdown()
	return c.base.Close()
}

// =============================================================================
// 重试执行器
// =============================================================================

// execute 带重试地执行一个需要连接的操作。
//
// 每次尝试：借连接（defer 保证归还，包括 panic 路径）→ 执行 op →
// 失败时标记坏连接。只有 [IsRetryable] 判定为瞬时的错误参与重试，
// 退避严格线性：baseDelay * 尝试序号。重试耗尽返回最后一次错误。
//
// 方法不能声明类型参数，因此实现为包级泛型函数。
func execute[T any](ctx context.Context, c *Client, op func(ctx context.Context, rc *redis.Conn) (T, error)) (T, error) {
	attempts := uint(c.opts.maxRetries + 1)

	return retry.NewWithData[T](
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.LastErrorOnly(true),
		retry.DelayType(func(n uint, _ error, _ retry.DelayContext) time.Duration {
			// n 从 1 开始：50ms、100ms、150ms …
			return c.opts.baseDelay * time.Duration(n)
		}),
		retry.RetryIf(func(err error) bool {
			if !retry.IsRecoverable(err) {
				return false
			}
			return IsRetryable(err)
		}),
		retry.OnRetry(func(n uint, err error) {
			attempt := int(n) + 1
			c.opts.logger.Warn(ctx, "redis attempt failed, retrying",
				slog.Int("attempt", attempt),
				slog.Int("max_retries", c.opts.maxRetries),
				slog.String("error", err.Error()),
			)
			if c.opts.onRetry != nil {
				c.opts.onRetry(attempt, err)
			}
		}),
	).Do(func() (T, error) {
		var zero T

		cn, err := c.pool.borrow()
		if err != nil {
			// 池关闭是终态，立刻短路整个重试循环
			return zero, retry.Unrecoverable(err)
		}
		defer c.pool.giveBack(cn)

		v, err := op(ctx, cn.rc)
		if err != nil && isConnError(err) {
			cn.markBroken()
		}
		return v, err
	})
}

// =============================================================================
// 基础命令
// =============================================================================

// Ping 发送状态探测，返回服务端回复（通常为 "PONG"）。
func (c *Client) Ping(ctx context.Context) (string, error) {
	return execute(ctx, c, func(ctx context.Context, rc *redis.Conn) (string, error) {
		return rc.Ping(ctx).Result()
	})
}

// Set 写入字符串值，px 为毫秒级过期时间（0 表示不过期）。
func (c *Client) Set(ctx context.Context, key, value string, px time.Duration) error {
	_, err := execute(ctx, c, func(ctx context.Context, rc *redis.Conn) (struct{}, error) {
		return struct{}{}, rc.Set(ctx, key, value, px).Err()
	})
	return err
}

// Get 读取字符串值。键不存在时返回 redis.Nil。
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return execute(ctx, c, func(ctx context.Context, rc *redis.Conn) (string, error) {
		return rc.Get(ctx, key).Result()
	})
}

// HMGet 读取哈希的多个字段，缺失字段对应位置为 nil。
func (c *Client) HMGet(ctx context.Context, key string, fields ...string) ([]any, error) {
	return execute(ctx, c, func(ctx context.Context, rc *redis.Conn) ([]any, error) {
		return rc.HMGet(ctx, key, fields...).Result()
	})
}

// HMSet 写入哈希的多个字段。
func (c *Client) HMSet(ctx context.Context, key string, values ...any) error {
	_, err := execute(ctx, c, func(ctx context.Context, rc *redis.Conn) (struct{}, error) {
		return struct{}{}, rc.HMSet(ctx, key, values...).Err()
	})
	return err
}

// Expire 设置键的秒级过期时间。
func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) error {
	_, err := execute(ctx, c, func(ctx context.Context, rc *redis.Conn) (struct{}, error) {
		return struct{}{}, rc.Expire(ctx, key, ttl).Err()
	})
	return err
}

// XAdd 向流追加一条事件，返回消息 ID。
func (c *Client) XAdd(ctx context.Context, stream string, values map[string]any) (string, error) {
	return execute(ctx, c, func(ctx context.Context, rc *redis.Conn) (string, error) {
		return rc.XAdd(ctx, &redis.XAddArgs{
			Stream: stream,
			Values: values,
		}).Result()
	})
}

// XRange 读取流的全部事件。
func (c *Client) XRange(ctx context.Context, stream string) ([]redis.XMessage, error) {
	return execute(ctx, c, func(ctx context.Context, rc *redis.Conn) ([]redis.XMessage, error) {
		return rc.XRange(ctx, stream, "-", "+").Result()
	})
}

// =============================================================================
// 脚本缓存协议
// =============================================================================

// LoadScript 按源码注册脚本，返回服务端计算的内容哈希。
func (c *Client) LoadScript(ctx context.Context, source string) (string, error) {
	c.opts.logger.Debug(ctx, "loading script", slog.Int("source_len", len(source)))
	return execute(ctx, c, func(ctx context.Context, rc *redis.Conn) (string, error) {
		return rc.ScriptLoad(ctx, source).Result()
	})
}

// EvalSha 按内容哈希执行已注册的脚本。
//
// 脚本未注册时返回 [ErrNoScript]（包装了服务端原始错误），
// 调用方据此走显式的回退分支，而不是把异常当控制流。
// 回复按约定形状解码，形状不符返回 [ErrProtocol]。
func (c *Client) EvalSha(ctx context.Context, sha string, keys []string, args []any) (Reply, error) {
	val, err := execute(ctx, c, func(ctx context.Context, rc *redis.Conn) (any, error) {
		v, err := rc.EvalSha(ctx, sha, keys, args...).Result()
		if err != nil && redis.HasErrorPrefix(err, "NOSCRIPT") {
			return nil, fmt.Errorf("%w: %v", ErrNoScript, err)
		}
		return v, err
	})
	if err != nil {
		return Reply{}, err
	}
	return decodeReply(val)
}

// EvalWithFallback 执行脚本，透明处理缓存未命中。
//
// 先尝试 EVALSHA；收到 NOSCRIPT 时按源码注册脚本并用原哈希重试
// 恰好一次。sha 必须是调用方对 source 预先计算的内容哈希——若与
// 服务端计算结果不一致，第二次 EVALSHA 仍会 NOSCRIPT，此时返回
// 错误而不是无限循环（每次调用至多一次重新注册）。
//
// 脚本源码带宽只在首次调用（或服务端脚本缓存被清空后）支付一次，
// 之后每次调用只传输短哈希引用。
func (c *Client) EvalWithFallback(ctx context.Context, sha, source string, keys []string, args []any) (Reply, error) {
	reply, err := c.EvalSha(ctx, sha, keys, args)
	if err == nil || !IsNoScript(err) {
		return reply, err
	}

	c.opts.logger.Warn(ctx, "script not cached, re-registering", slog.String("sha", sha))

	loaded, err := c.LoadScript(ctx, source)
	if err != nil {
		return Reply{}, err
	}
	if loaded != sha {
		return Reply{}, fmt.Errorf("%w: precomputed hash %s differs from server hash %s",
			ErrProtocol, sha, loaded)
	}

	return c.EvalSha(ctx, sha, keys, args)
}
