package xlimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strconv"
	"time"

	"github.com/omeyang/flux/pkg/observability/xlog"
	"github.com/omeyang/flux/pkg/storage/xredis"
	"github.com/omeyang/flux/pkg/util/xpool"
)

// Event 限流判定事件
type Event struct {
	Endpoint string
	Key      string
	Policy   Policy
	Allowed  bool
	At       time.Time
}

// 上报默认参数
const (
	defaultAnalyticsQueue   = 1024
	defaultAnalyticsTimeout = 500 * time.Millisecond
)

// AnalyticsEmitter 将判定事件异步写入存储端的 stream。
//
// 事件经内部工作池缓冲后批外上报，限流热路径不等待写入完成；
// 队列满时事件被丢弃而非阻塞判定。键在上报前做摘要脱敏。
type AnalyticsEmitter struct {
	client  *xredis.Client
	stream  string
	timeout time.Duration
	logger  xlog.Logger
	pool    *xpool.WorkerPool[Event]
}

// AnalyticsOption 上报器选项函数
type AnalyticsOption func(*AnalyticsEmitter)

// WithAnalyticsLogger 设置上报器日志
func WithAnalyticsLogger(logger xlog.Logger) AnalyticsOption {
	return func(e *AnalyticsEmitter) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithAnalyticsTimeout 设置单条事件写入的超时
func WithAnalyticsTimeout(d time.Duration) AnalyticsOption {
	return func(e *AnalyticsEmitter) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// NewAnalyticsEmitter 创建事件上报器并启动后台工作池。
// 用完必须调用 [AnalyticsEmitter.Close] 释放工作池。
func NewAnalyticsEmitter(client *xredis.Client, stream string, opts ...AnalyticsOption) (*AnalyticsEmitter, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if stream == "" {
		return nil, ErrEmptyStream
	}

	e := &AnalyticsEmitter{
		client:  client,
		stream:  stream,
		timeout: defaultAnalyticsTimeout,
		logger:  xlog.Discard(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}

	e.pool = xpool.NewWorkerPool(1, defaultAnalyticsQueue, e.publish,
		xpool.WithLogger[Event](e.logger))
	e.pool.Start()
	return e, nil
}

// Close 停止工作池，等待队列中的事件写完
func (e *AnalyticsEmitter) Close() {
	e.pool.Stop()
}

// emit 入队一个事件，队列满时丢弃
func (e *AnalyticsEmitter) emit(ev Event) {
	e.pool.Submit(ev)
}

// publish 写入单条事件，由工作池回调
func (e *AnalyticsEmitter) publish(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	decision := "0"
	if ev.Allowed {
		decision = "1"
	}
	_, err := e.client.XAdd(ctx, e.stream, map[string]any{
		"ep":  ev.Endpoint,
		"key": hashKey(ev.Key),
		"p":   string(ev.Policy),
		"d":   decision,
		"ts":  strconv.FormatInt(ev.At.UnixMilli(), 10),
	})
	if err != nil {
		e.logger.Warn(ctx, "publish analytics event failed",
			slog.String("stream", e.stream),
			slog.String("error", err.Error()),
		)
	}
}

// hashKey 对限流键做摘要，避免原始键进入分析流
func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
