// Package xlimit 提供基于共享状态存储的分布式限流器。
//
// # 设计理念
//
// 判定逻辑以 Lua 脚本形式在 Redis 内原子执行，调用进程只负责
// 参数换算与结果解析。两种判定算法：
//   - GCRA（通用信元速率算法）：单个前移的理论到达时间标量，
//     平滑限速，推荐默认
//   - 令牌桶：按时补充的封顶计数器，适合突发型流量
//
// 脚本内容哈希在进程内预先计算（SHA-1，与服务端 SCRIPT LOAD
// 的结果一致），执行走 [xredis.Client.EvalWithFallback] 的
// 缓存协议：服务端脚本缓存被清空（如重启）时自动重新注册。
//
// # 使用方式
//
//	client, err := xredis.New("127.0.0.1:6379")
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	limiter, err := xlimit.New(client, 100, time.Minute,
//	    xlimit.WithPolicy(xlimit.PolicyGCRA),
//	    xlimit.WithBurst(10),
//	)
//	if err != nil {
//	    return err
//	}
//
//	result, err := limiter.Allow(ctx, "user:42")
//	if err != nil {
//	    return err
//	}
//	if !result.Allowed {
//	    // 建议客户端在 result.RetryAfter 之后重试
//	}
//
// # 并发语义
//
// 同一个键上的并发判定由存储端的原子脚本执行串行化，
// 不会丢失更新；不同键之间没有任何顺序保证。
//
// # 故障策略
//
// 存储在重试耗尽后仍不可达时，按配置的 [FailMode] 处理：
// FailClosed（默认）上抛错误并附带拒绝结果，FailOpen 放行并记日志。
// 两者都只对网络类错误生效，脚本契约错误始终上抛。
//
// # 配套能力
//
//   - HTTP 中间件：[HTTPMiddleware]
//   - 判定事件异步上报到 Redis Stream：[NewAnalyticsEmitter]
//   - 具名预设从配置加载：[NewFromConfig]
//   - 拒绝等待时间抖动：[WithJitter]
package xlimit
