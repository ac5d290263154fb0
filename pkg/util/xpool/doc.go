// Package xpool 提供泛型异步 worker pool。
//
// 用于把非关键路径的工作（如判定事件上报）从请求路径上剥离：
// Submit 非阻塞，队列满时丢弃任务，Stop 优雅排空队列后退出。
//
// 日志通过选项显式注入，没有任何进程级全局状态。
//
//	pool := xpool.NewWorkerPool(2, 256, handleEvent,
//	    xpool.WithLogger[Event](logger))
//	pool.Start()
//	defer pool.Stop()
//
//	pool.Submit(Event{...})
package xpool
