package xpool

import (
	"context"
	"log/slog"
	"sync"

	"github.com/omeyang/flux/pkg/observability/xlog"
)

// WorkerPool 是一个泛型 worker pool 实现。
// 用于异步执行任务，支持优雅关闭和 panic 恢复。
type WorkerPool[T any] struct {
	workers   int
	queueSize int
	handler   func(T)
	logger    xlog.Logger
	queue     chan T
	wg        sync.WaitGroup
	stopOnce  sync.Once
	stopped   chan struct{}
	started   bool
	startMu   sync.Mutex
}

// Option worker pool 配置选项
type Option[T any] func(*WorkerPool[T])

// WithLogger 设置日志器。
// 默认丢弃所有日志输出。传入 nil 会被静默忽略。
func WithLogger[T any](l xlog.Logger) Option[T] {
	return func(p *WorkerPool[T]) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewWorkerPool 创建 worker pool。
//
// 参数：
//   - workers: worker 数量，最小为 1
//   - queueSize: 任务队列大小，最小为 1（默认 100）
//   - handler: 任务处理函数，不能为 nil
//
// 如果 handler 为 nil，会 panic。
func NewWorkerPool[T any](workers, queueSize int, handler func(T), opts ...Option[T]) *WorkerPool[T] {
	if handler == nil {
		panic("xpool: handler cannot be nil")
	}
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 100
	}
	p := &WorkerPool[T]{
		workers:   workers,
		queueSize: queueSize,
		handler:   handler,
		logger:    xlog.Discard(),
		queue:     make(chan T, queueSize),
		stopped:   make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Start 启动 worker pool。
// 该方法是幂等的：多次调用只会启动一次 worker。
func (p *WorkerPool[T]) Start() {
	p.startMu.Lock()
	defer p.startMu.Unlock()

	if p.started {
		return
	}
	p.started = true

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// worker 只从 queue 中读取任务，不检查 stopped 信号。
// 这确保 Stop() 时能处理完队列中的剩余任务（优雅关闭）。
func (p *WorkerPool[T]) worker() {
	defer p.wg.Done()
	for task := range p.queue {
		func() {
			defer func() {
				if r := recover(); r != nil {
					p.logger.Error(context.Background(), "xpool: worker panic recovered",
						slog.Any("panic", r))
				}
			}()
			p.handler(task)
		}()
	}
}

// Submit 提交任务到 worker pool。
// 队列满时任务被丢弃并记录日志；pool 已停止时返回 false。
func (p *WorkerPool[T]) Submit(task T) (ok bool) {
	// Stop() 关闭 p.stopped 后、关闭 p.queue 前存在极短窗口，
	// select 可能恰好选中 p.queue <- task 分支，用 recover 兜底
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()

	select {
	case <-p.stopped:
		return false
	case p.queue <- task:
		return true
	default:
		p.logger.Warn(context.Background(), "xpool: async queue full, task dropped")
		return false
	}
}

// Stop 停止 worker pool。
// 会等待队列中所有剩余任务处理完成后再退出（优雅关闭）。
func (p *WorkerPool[T]) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopped)
		close(p.queue)
		p.wg.Wait()
	})
}

// Workers 返回 worker 数量。
func (p *WorkerPool[T]) Workers() int {
	return p.workers
}

// QueueSize 返回队列大小。
func (p *WorkerPool[T]) QueueSize() int {
	return p.queueSize
}
