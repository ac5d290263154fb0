package xlimit

import "fmt"

// Policy 限流策略
type Policy string

const (
	// PolicyGCRA 通用信元速率算法（平滑限速，推荐默认）
	PolicyGCRA Policy = "gcra"

	// PolicyTokenBucket 令牌桶（突发型流量）
	PolicyTokenBucket Policy = "token_bucket"
)

// IsValid 检查策略是否有效
func (p Policy) IsValid() bool {
	switch p {
	case PolicyGCRA, PolicyTokenBucket:
		return true
	default:
		return false
	}
}

// String 返回策略的字符串表示
func (p Policy) String() string {
	return string(p)
}

// ParsePolicy 解析字符串为限流策略。
// 空字符串返回默认策略 PolicyGCRA。
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "":
		return PolicyGCRA, nil
	case PolicyGCRA:
		return PolicyGCRA, nil
	case PolicyTokenBucket:
		return PolicyTokenBucket, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
	}
}
