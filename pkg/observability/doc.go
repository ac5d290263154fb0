// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xlog: 结构化日志，基于 log/slog 扩展，支持动态级别与文件轮转
//
// 设计原则：
//   - 日志器通过选项显式注入，组件默认静默
//   - 支持运行时动态调整级别
package observability
