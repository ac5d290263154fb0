package xlimit

import "errors"

// 预定义错误，使用 errors.Is 进行比较
var (
	// ErrNilClient 客户端为空。
	// 传入 nil 存储客户端时返回此错误。
	ErrNilClient = errors.New("xlimit: client is nil")

	// ErrInvalidRequests 无效的请求配额。
	// 周期内请求数必须为正整数。
	ErrInvalidRequests = errors.New("xlimit: invalid requests")

	// ErrInvalidPeriod 无效的限流周期。
	// 周期必须为正。
	ErrInvalidPeriod = errors.New("xlimit: invalid period")

	// ErrInvalidBurst 无效的突发容量。
	// 突发容量必须为正整数。
	ErrInvalidBurst = errors.New("xlimit: invalid burst")

	// ErrInvalidPolicy 无效的限流策略。
	// 策略必须为 PolicyGCRA 或 PolicyTokenBucket。
	ErrInvalidPolicy = errors.New("xlimit: invalid policy")

	// ErrInvalidFailMode 无效的故障策略。
	ErrInvalidFailMode = errors.New("xlimit: invalid fail mode")

	// ErrEmptyKey 限流键为空。
	ErrEmptyKey = errors.New("xlimit: key is empty")

	// ErrUnknownScriptStatus 脚本返回未知状态码。
	// 说明脚本与客户端的契约不一致。
	ErrUnknownScriptStatus = errors.New("xlimit: unknown script status code")

	// ErrEmptyStream 分析流名称为空。
	ErrEmptyStream = errors.New("xlimit: analytics stream is empty")
)
