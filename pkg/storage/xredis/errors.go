package xredis

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/redis/go-redis/v9"
)

// =============================================================================
// 预定义错误
// =============================================================================

// 预定义错误，使用 errors.Is 进行比较
var (
	// ErrConnectFailed 建立连接失败。
	// 池构造阶段出现时致命（不允许部分池）；运行期出现时作为瞬时错误重试。
	ErrConnectFailed = errors.New("xredis: connect failed")

	// ErrPoolClosed 连接池已关闭。
	// 终态错误：关闭后所有借出尝试立即失败，不会阻塞。
	ErrPoolClosed = errors.New("xredis: pool is closed")

	// ErrNoScript 脚本未在服务端注册。
	// EvalSha 在收到 NOSCRIPT 回复时返回此错误；
	// EvalWithFallback 会透明处理，正常情况下不会穿透到调用方。
	ErrNoScript = errors.New("xredis: script not registered")

	// ErrProtocol 回复形状不符合约定（元素个数或类型错误）。
	// 说明脚本契约不匹配而非瞬时故障，不重试，立即上抛。
	ErrProtocol = errors.New("xredis: unexpected reply shape")

	// ErrInvalidPoolSize 无效的池大小配置。
	ErrInvalidPoolSize = errors.New("xredis: invalid pool size")

	// ErrEmptyAddr 地址为空。
	ErrEmptyAddr = errors.New("xredis: addr is empty")
)

// =============================================================================
// 错误分类
// =============================================================================

// connRelatedErrors 视为连接层故障的已知错误
var connRelatedErrors = []error{
	syscall.ECONNREFUSED,
	syscall.ECONNRESET,
	syscall.EPIPE,
	syscall.ETIMEDOUT,
	io.EOF,
	io.ErrUnexpectedEOF,
}

// IsNoScript 检查错误是否为 NOSCRIPT 回复。
// 通过 go-redis 的错误前缀匹配识别服务端的缓存未命中信号。
func IsNoScript(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNoScript) {
		return true
	}
	return redis.HasErrorPrefix(err, "NOSCRIPT")
}

// IsRetryable 检查错误是否应该参与重试。
//
// 规则：
//   - ErrPoolClosed / ErrProtocol / ErrNoScript 不重试：
//     前者是终态，后两者重试相同输入不可能成功
//   - 服务端回复错误（redis.Error，包括脚本逻辑错误）不重试
//   - context 取消/超时不重试，由调用方决定
//   - 建连失败和网络层错误（无回复）重试
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPoolClosed) || errors.Is(err, ErrProtocol) || errors.Is(err, ErrNoScript) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// 服务端正常回复的 -ERR：重试相同请求不会改变结果
	var replyErr redis.Error
	if errors.As(err, &replyErr) {
		return false
	}

	if errors.Is(err, ErrConnectFailed) {
		return true
	}

	for _, target := range connRelatedErrors {
		if errors.Is(err, target) {
			return true
		}
	}

	return isNetworkError(err)
}

// isConnError 检查错误是否意味着底层连接已不可信。
// 借出的连接在观察到此类错误后会被标记为坏连接，归还时换新。
func isConnError(err error) bool {
	if err == nil {
		return false
	}
	// 服务端回复错误说明连接本身工作正常
	var replyErr redis.Error
	if errors.As(err, &replyErr) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		// 命令可能已写出但回复未读取，连接状态未知，保守弃用
		return true
	}
	if errors.Is(err, ErrConnectFailed) {
		return true
	}
	for _, target := range connRelatedErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return isNetworkError(err)
}

// isNetworkError 检查是否是网络相关错误
func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
