package xredis

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/omeyang/flux/pkg/config/xconf"
)

// StoreConfig 配置文件中的存储连接段。
//
// 对应约定布局：
//
//	redis:
//	  host: "127.0.0.1"
//	  port: 6379
//	  pool_size: 5
//	  connect_timeout_ms: 200
//	  max_retries: 3
//	  base_delay_ms: 50
type StoreConfig struct {
	Host             string `koanf:"host"`
	Port             int    `koanf:"port"`
	PoolSize         int    `koanf:"pool_size"`
	ConnectTimeoutMs int    `koanf:"connect_timeout_ms"`
	MaxRetries       int    `koanf:"max_retries"`
	BaseDelayMs      int    `koanf:"base_delay_ms"`
}

// Addr 返回 "host:port" 形式的地址
func (c StoreConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// defaultStoreConfig 返回配置段的默认值
func defaultStoreConfig() StoreConfig {
	return StoreConfig{
		Host:             "127.0.0.1",
		Port:             6379,
		PoolSize:         DefaultPoolSize,
		ConnectTimeoutMs: int(DefaultConnectTimeout / time.Millisecond),
		MaxRetries:       DefaultMaxRetries,
		BaseDelayMs:      int(DefaultBaseDelay / time.Millisecond),
	}
}

// NewFromConfig 从配置的 path 段（通常为 "redis"）构建客户端。
// 未出现在配置中的字段使用默认值；显式 opts 优先于配置值。
func NewFromConfig(cfg xconf.Config, path string, opts ...Option) (*Client, error) {
	sc := defaultStoreConfig()
	if err := cfg.Unmarshal(path, &sc); err != nil {
		return nil, fmt.Errorf("xredis: unmarshal %q: %w", path, err)
	}

	configured := []Option{
		WithPoolSize(sc.PoolSize),
		WithConnectTimeout(time.Duration(sc.ConnectTimeoutMs) * time.Millisecond),
		WithMaxRetries(sc.MaxRetries),
		WithBaseDelay(time.Duration(sc.BaseDelayMs) * time.Millisecond),
	}

	return New(sc.Addr(), append(configured, opts...)...)
}
