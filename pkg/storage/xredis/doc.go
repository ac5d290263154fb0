// Package xredis 提供带固定大小连接池的 Redis 客户端，
// 专为分布式限流的同步请求路径设计。
//
// # 设计理念
//
// 限流判定是请求路径上的同步往返，延迟和原子性都不可妥协。
// xredis 围绕三个紧耦合的机制构建：
//   - 固定大小连接池：预热创建，借出/归还在单一互斥域下完成，
//     每次归还只唤醒一个等待者，避免惊群
//   - 重试执行器：借连接 + 执行操作作为一个整体重试单元，
//     线性退避（baseDelay * 尝试次数），底层使用 [avast/retry-go/v5]
//   - 脚本缓存协议：EVALSHA 优先，收到 NOSCRIPT 时注册脚本源码并
//     重试一次（每次调用至多一次重新注册）
//
// go-redis 在这里只承担 RESP 编解码职责：每个池槽位持有一个
// 独占的 *redis.Conn 单连接句柄，go-redis 自身的连接池复用和
// 内部重试均被禁用，池语义和重试语义完全由本包定义。
//
// # 连接故障处理
//
// 观察到命令/网络错误的连接被标记为不可复用，归还路径会将其
// 关闭并换上新的连接句柄（新句柄惰性拨号，下一个借用者的首个
// 命令自然触发重连）。单个坏 socket 不会永久污染池槽位。
//
// # 使用方式
//
//	client, err := xredis.New("127.0.0.1:6379",
//	    xredis.WithPoolSize(5),
//	    xredis.WithConnectTimeout(200*time.Millisecond),
//	)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	reply, err := client.EvalWithFallback(ctx, sha, source,
//	    []string{"flux:user:1"}, []any{100, 500, nowMs})
//
// # 错误分类
//
//   - [ErrConnectFailed]：建连失败。构造池时致命；运行期作为
//     瞬时错误参与重试
//   - [ErrPoolClosed]：池已关闭，终态，不再接受任何操作
//   - [ErrNoScript]：脚本未注册，由 EvalWithFallback 透明处理
//   - [ErrProtocol]：回复形状不符合约定，属脚本契约错误，不重试
//   - 服务端回复错误（脚本逻辑被 Redis 拒绝等）不重试，立即上抛
//
// 只有网络层错误（无回复）参与重试。重试耗尽后返回最后一次
// 观察到的错误，失败放行/失败拒绝策略由上层决定。
//
// # 并发模型
//
// Borrow 阻塞调用方直到有连接可用或池关闭；阻塞等待不响应
// context 取消（整体超时预算应通过 maxRetries 和 baseDelay 控制，
// context 取消在两次重试之间生效）。连接一旦借出即被调用方独占，
// 归还前不会被任何其他 goroutine 触碰。
//
// [avast/retry-go/v5]: https://github.com/avast/retry-go
package xredis
