// Package util 提供通用工具相关的子包。
//
// 子包列表：
//   - xpool: 泛型 Worker Pool，可配置 worker/队列大小、优雅关闭
//
// 设计原则：
//   - 无进程级全局状态，依赖显式注入
//   - 非关键路径的工作不阻塞调用方
package util
