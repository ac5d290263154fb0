package xlimit

import "time"

// =============================================================================
// 默认配置常量
// =============================================================================

const (
	// DefaultKeyPrefix 默认限流键前缀
	DefaultKeyPrefix = "flux:"

	// DefaultRequests 默认周期内请求配额
	DefaultRequests = 100

	// DefaultPeriod 默认限流周期
	DefaultPeriod = 60 * time.Second
)

// =============================================================================
// 脚本状态码常量
// =============================================================================

const (
	// scriptStatusAllowed 判定通过
	scriptStatusAllowed = 0

	// scriptStatusDenied 判定拒绝
	scriptStatusDenied = -1
)
