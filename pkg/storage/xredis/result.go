package xredis

import (
	"fmt"
	"math"
)

// Reply 脚本执行的约定回复。
//
// 限流脚本返回两种形状之一：
//   - 整数对 {status, value}：status 为判定结果，value 为
//     新状态值（允许时）或建议等待秒数（拒绝时）
//   - 单个整数：只有 Status 有效，HasValue 为 false
type Reply struct {
	// Status 判定状态码
	Status int64

	// Value 附带值，仅在 HasValue 为 true 时有意义
	Value int64

	// HasValue 回复是否为整数对
	HasValue bool
}

// Pair 返回 (status, value) 对。
// 单整数回复的 value 为 0。
func (r Reply) Pair() (int64, int64) {
	return r.Status, r.Value
}

// decodeReply 将脚本回复严格解码为 Reply。
// 形状不符（元素个数错误、元素非整数）返回 [ErrProtocol]：
// 这是脚本契约不匹配，不是瞬时故障。
func decodeReply(val any) (Reply, error) {
	switch v := val.(type) {
	case int64:
		return Reply{Status: v}, nil
	case []any:
		ints, err := decodeInts(v)
		if err != nil {
			return Reply{}, err
		}
		if len(ints) != 2 {
			return Reply{}, fmt.Errorf("%w: got %d elements, want 2", ErrProtocol, len(ints))
		}
		return Reply{Status: ints[0], Value: ints[1], HasValue: true}, nil
	default:
		return Reply{}, fmt.Errorf("%w: got %T, want integer or integer pair", ErrProtocol, val)
	}
}

// decodeInts 将脚本返回的数组安全转换为 []int64。
// Redis Lua 脚本返回数组时，go-redis 解析为 []any，
// 元素逐个做严格类型检查，防止非预期类型穿透。
func decodeInts(arr []any) ([]int64, error) {
	result := make([]int64, len(arr))
	for i, v := range arr {
		switch n := v.(type) {
		case int64:
			result[i] = n
		case int:
			result[i] = int64(n)
		case float64:
			if n != math.Trunc(n) {
				return nil, fmt.Errorf("%w: element %d is non-integer float64 %g", ErrProtocol, i, n)
			}
			result[i] = int64(n)
		default:
			return nil, fmt.Errorf("%w: element %d is %T, expected integer", ErrProtocol, i, v)
		}
	}
	return result, nil
}

// encodeReply 将 Reply 编码回脚本回复的线上形状。
// 与 decodeReply 构成无损往返，用于测试和本地模拟。
func encodeReply(r Reply) any {
	if !r.HasValue {
		return r.Status
	}
	return []any{r.Status, r.Value}
}
