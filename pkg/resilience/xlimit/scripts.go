package xlimit

import (
	"context"
	"crypto/sha1"
	_ "embed"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/omeyang/flux/pkg/storage/xredis"
)

// =============================================================================
// Lua 脚本嵌入
// =============================================================================

var (
	//go:embed lua/gcra.lua
	gcraLuaSource string

	//go:embed lua/token_bucket.lua
	tokenBucketLuaSource string
)

// =============================================================================
// 脚本管理器 - 单例模式确保哈希只计算一次
// =============================================================================

// script 一段脚本源码及其进程内预计算的内容哈希。
// 哈希必须与服务端 SCRIPT LOAD 对同一源码的计算结果一致，
// 缓存协议的一次性回退才能收敛。
type script struct {
	src string
	sha string
}

// scripts 持有所有限流脚本实例
type scripts struct {
	gcra        *script
	tokenBucket *script
}

var (
	globalScripts     *scripts
	globalScriptsOnce sync.Once
)

// getScripts 获取脚本实例（线程安全的单例）
func getScripts() *scripts {
	globalScriptsOnce.Do(func() {
		globalScripts = &scripts{
			gcra:        newScript(gcraLuaSource),
			tokenBucket: newScript(tokenBucketLuaSource),
		}
	})
	return globalScripts
}

// newScript 用 SHA-1 对源码取内容哈希。
// 与 Redis 服务端 SCRIPT LOAD 的哈希算法一致。
func newScript(src string) *script {
	sum := sha1.Sum([]byte(src))
	return &script{
		src: src,
		sha: hex.EncodeToString(sum[:]),
	}
}

// forPolicy 返回策略对应的脚本
func (s *scripts) forPolicy(p Policy) *script {
	switch p {
	case PolicyTokenBucket:
		return s.tokenBucket
	default:
		return s.gcra
	}
}

// =============================================================================
// 脚本预热
// =============================================================================

// WarmupScripts 预热脚本，将脚本注册进服务端缓存，
// 并校验服务端计算的哈希与进程内预计算结果一致。
//
// 建议在应用启动时调用，把脚本源码带宽的一次性成本移出请求路径。
// 不调用也不影响正确性：首次判定会经由缓存协议自动注册。
func WarmupScripts(ctx context.Context, client *xredis.Client) error {
	if client == nil {
		return ErrNilClient
	}

	s := getScripts()
	for name, sc := range map[string]*script{
		"gcra":         s.gcra,
		"token_bucket": s.tokenBucket,
	} {
		loaded, err := client.LoadScript(ctx, sc.src)
		if err != nil {
			return fmt.Errorf("load %s script: %w", name, err)
		}
		if loaded != sc.sha {
			return fmt.Errorf("%s script hash mismatch: precomputed %s, server %s", name, sc.sha, loaded)
		}
	}
	return nil
}
