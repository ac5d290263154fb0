package xlimit

import (
	"fmt"
	"time"

	"github.com/omeyang/flux/pkg/config/xconf"
	"github.com/omeyang/flux/pkg/storage/xredis"
)

// 配置路径约定：rate_limit 为全局默认，rate_limits.<name> 为命名预设。
const (
	configPathDefaults = "rate_limit"
	configPathPresets  = "rate_limits"
)

// preset 限流预设的配置映射
type preset struct {
	Requests    int    `koanf:"requests"`
	PeriodSec   int    `koanf:"period"`
	Burst       int    `koanf:"burst"`
	Policy      string `koanf:"policy"`
	FailMode    string `koanf:"fail_mode"`
	KeyPrefix   string `koanf:"key_prefix"`
	JitterMaxMs int    `koanf:"jitter_max_ms"`
}

// defaultPreset 返回未配置时的兜底预设
func defaultPreset() preset {
	return preset{
		Requests:  DefaultRequests,
		PeriodSec: int(DefaultPeriod / time.Second),
	}
}

// NewFromConfig 从配置创建限流器。
//
// 先读取 rate_limit 段作为全局默认，name 非空时再用
// rate_limits.<name> 段覆盖。显式传入的 opts 优先级最高。
func NewFromConfig(client *xredis.Client, cfg xconf.Config, name string, opts ...Option) (*Limiter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", xconf.ErrLoadFailed)
	}

	p := defaultPreset()
	if cfg.Client().Exists(configPathDefaults) {
		if err := cfg.Unmarshal(configPathDefaults, &p); err != nil {
			return nil, fmt.Errorf("parse %s: %w", configPathDefaults, err)
		}
	}
	if name != "" {
		path := configPathPresets + "." + name
		if !cfg.Client().Exists(path) {
			return nil, fmt.Errorf("%w: preset %q", xconf.ErrNotFound, name)
		}
		if err := cfg.Unmarshal(path, &p); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	configured, err := p.toOptions()
	if err != nil {
		return nil, err
	}
	// 调用方显式选项放在最后，覆盖配置值
	configured = append(configured, opts...)

	return New(client, p.Requests, time.Duration(p.PeriodSec)*time.Second, configured...)
}

// toOptions 将预设换算为选项列表，仅下发显式配置过的字段
func (p preset) toOptions() ([]Option, error) {
	var opts []Option
	if p.Burst > 0 {
		opts = append(opts, WithBurst(p.Burst))
	}
	if p.Policy != "" {
		policy, err := ParsePolicy(p.Policy)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithPolicy(policy))
	}
	if p.FailMode != "" {
		opts = append(opts, WithFailMode(FailMode(p.FailMode)))
	}
	if p.KeyPrefix != "" {
		opts = append(opts, WithKeyPrefix(p.KeyPrefix))
	}
	if p.JitterMaxMs > 0 {
		opts = append(opts, WithJitter(time.Duration(p.JitterMaxMs)*time.Millisecond))
	}
	return opts, nil
}
