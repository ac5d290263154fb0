package xlimit

import (
	"math"
	"net/http"
	"strconv"
	"time"
)

// Result 限流判定结果
type Result struct {
	// Allowed 是否允许请求通过
	Allowed bool

	// Remaining 剩余配额估计。
	// 令牌桶为消费后的精确剩余令牌数；GCRA 为由 TAT 推导的
	// 剩余突发额度估计。
	Remaining int

	// Limit 突发容量上限
	Limit int

	// RetryAfter 建议重试等待时间（仅在 Allowed=false 时有意义）。
	// 已包含配置的抖动。
	RetryAfter time.Duration

	// Key 本次判定的完整限流键（含前缀）
	Key string
}

// Headers 返回标准限流响应头。
//   - X-RateLimit-Limit: 突发容量上限
//   - X-RateLimit-Remaining: 剩余配额
//   - Retry-After: 重试等待秒数（仅在被限流时，向上取整）
func (r *Result) Headers() map[string]string {
	headers := map[string]string{
		"X-RateLimit-Limit":     strconv.Itoa(r.Limit),
		"X-RateLimit-Remaining": strconv.Itoa(r.Remaining),
	}

	if !r.Allowed && r.RetryAfter > 0 {
		// 向上取整，避免亚秒级等待被截断为 0 导致客户端立即重试
		retryAfterSec := int64(math.Ceil(r.RetryAfter.Seconds()))
		headers["Retry-After"] = strconv.FormatInt(retryAfterSec, 10)
	}

	return headers
}

// SetHeaders 将限流响应头写入 http.ResponseWriter
func (r *Result) SetHeaders(w http.ResponseWriter) {
	if r.Limit <= 0 {
		return
	}
	for key, value := range r.Headers() {
		w.Header().Set(key, value)
	}
}
