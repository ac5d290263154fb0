// Package xlog 提供基于 log/slog 的结构化日志接口。
//
// # 设计理念
//
//   - 显式传递的日志器引用：没有任何包级全局状态，
//     每个组件通过选项注入自己的 Logger，测试之间互不干扰
//   - 强制 context 传递，方便 Handler 链提取请求上下文
//   - 动态级别控制：Build 出的 Logger 共享一个 slog.LevelVar，
//     运行时调整即时生效
//   - 类型安全：方法签名只接受 slog.Attr，避免隐式 key-value 转换
//
// # 使用方式
//
//	logger, cleanup, err := xlog.New().
//	    SetLevelString("debug").
//	    SetFormat("json").
//	    Build()
//	if err != nil {
//	    return err
//	}
//	defer cleanup()
//
//	logger.Info(ctx, "limiter ready", slog.String("policy", "gcra"))
//
// 需要文件落盘加轮转时使用 SetRotation（底层为 lumberjack）：
//
//	logger, cleanup, err := xlog.New().
//	    SetRotation("/var/log/flux/flux.log").
//	    Build()
//
// 测试或不需要日志的场景使用 [Discard]。
package xlog
