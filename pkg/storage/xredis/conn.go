package xredis

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// conn 连接池中的一个槽位，持有一条独占的物理连接。
//
// broken 标记该连接已观察到网络层错误：这类连接不允许以可复用的
// 姿态回到池里，归还路径会将其关闭并换上新句柄。
type conn struct {
	rc     *redis.Conn
	broken atomic.Bool
}

// markBroken 标记连接不可复用
func (c *conn) markBroken() {
	c.broken.Store(true)
}

// isBroken 检查连接是否已被标记为不可复用
func (c *conn) isBroken() bool {
	return c.broken.Load()
}

// close 关闭底层连接
func (c *conn) close() error {
	return c.rc.Close()
}

// dialer 创建连接槽位的工厂函数。
// verify 为 true 时立即 PING 验证连通性（池预热路径）；
// 为 false 时返回惰性句柄，首个命令触发实际拨号（坏连接替换路径）。
type dialer func(ctx context.Context, verify bool) (*conn, error)

// newDialer 基于底座 client 构造 dialer。
// 底座 client 只提供单连接句柄和 RESP 编解码，
// 其内部重试已禁用，池化行为完全由本包的 pool 接管。
func newDialer(base *redis.Client, connectTimeout time.Duration) dialer {
	return func(ctx context.Context, verify bool) (*conn, error) {
		rc := base.Conn()
		if !verify {
			return &conn{rc: rc}, nil
		}

		pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()

		if err := rc.Ping(pingCtx).Err(); err != nil {
			_ = rc.Close()
			return nil, fmt.Errorf("%w: %v", ErrConnectFailed, err)
		}
		return &conn{rc: rc}, nil
	}
}
