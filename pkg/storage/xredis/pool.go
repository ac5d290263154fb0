package xredis

import (
	"context"
	"fmt"
	"sync"
)

// pool 固定大小的连接池。
//
// 不变量：
//   - 借出中 + 队列中的连接数恒等于构造时的 size
//   - 一条连接在归还前只被一个借用者持有
//   - 借出永远不会按需新建连接：坏连接在归还路径上被替换，
//     槽位数不会悄悄缩水
//
// 队列、关闭标记和条件变量共享同一把互斥锁，避免丢失唤醒。
type pool struct {
	mu     sync.Mutex
	cond   *sync.Cond
	idle   []*conn
	size   int
	closed bool
	dial   dialer
}

// newPool 预热创建 size 条连接。
// 任意一条建连失败则整体失败并回收已建连接：不允许部分池。
func newPool(ctx context.Context, size int, dial dialer) (*pool, error) {
	p := &pool{
		size: size,
		idle: make([]*conn, 0, size),
		dial: dial,
	}
	p.cond = sync.NewCond(&p.mu)

	for i := 0; i < size; i++ {
		c, err := dial(ctx, true)
		if err != nil {
			for _, created := range p.idle {
				_ = created.close()
			}
			return nil, fmt.Errorf("warm up connection %d/%d: %w", i+1, size, err)
		}
		p.idle = append(p.idle, c)
	}

	return p, nil
}

// borrow 借出一条连接。
// 池空时阻塞调用方，直到有连接归还或池关闭。
// 池关闭（包括等待期间关闭）返回 [ErrPoolClosed]。
func (p *pool) borrow() (*conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.idle) == 0 && !p.closed {
		p.cond.Wait()
	}

	if p.closed {
		return nil, ErrPoolClosed
	}

	c := p.idle[0]
	p.idle = p.idle[1:]
	return c, nil
}

// giveBack 归还一条连接，并唤醒恰好一个等待者。
//
// 池已关闭时直接关闭连接（借出期间发生关闭的收尾路径）。
// 被标记为坏的连接在这里被关闭并换上新的惰性句柄：
// 新句柄的首个命令自然触发重连，失败则由其借用者的重试路径处理。
func (p *pool) giveBack(c *conn) {
	if c.isBroken() {
		_ = c.close()
		// 惰性句柄创建不会失败（实际拨号延迟到首次使用）
		c, _ = p.dial(context.Background(), false)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		_ = c.close()
		return
	}

	p.idle = append(p.idle, c)
	p.cond.Signal()
}

// shutdown 关闭池，幂等。
// 关闭所有在池连接并唤醒全部等待者，让它们以 [ErrPoolClosed] 返回。
// 借出中的连接由其持有者的归还路径关闭。
func (p *pool) shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true

	for _, c := range p.idle {
		_ = c.close()
	}
	p.idle = nil

	p.cond.Broadcast()
}

// available 返回当前在池（未借出）的连接数，仅用于测试观察。
func (p *pool) available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}
