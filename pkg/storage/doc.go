// Package storage 提供数据存储相关的子包。
//
// 子包列表：
//   - xredis: Redis 客户端封装，固定大小连接池 + 线性退避重试 + 脚本缓存协议
//
// 设计原则：
//   - 池化语义自持：连接数固定、借还显式、关闭是终态
//   - 错误按瞬时/确定性分类，只重试有可能成功的失败
//   - 脚本按内容哈希寻址，缓存未命中透明恢复
package storage
