package xlimit

import (
	crand "crypto/rand"
	"encoding/binary"
	"time"
)

// jitterDuration 返回 [0, max) 内的均匀随机时长。
// 使用 crypto/rand 生成随机数，无共享状态，天然并发安全。
// max 非正时返回 0。
func jitterDuration(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(randomFloat64() * float64(max))
}

// randomFloat64 返回 [0, 1) 内的随机浮点数。
// crypto/rand 读取失败时退化为 0（无抖动），不中断判定路径。
func randomFloat64() float64 {
	var buf [8]byte
	if _, err := crand.Read(buf[:]); err != nil {
		return 0
	}
	// 取 53 位尾数精度，保证均匀分布
	return float64(binary.BigEndian.Uint64(buf[:])>>11) / float64(1<<53)
}
