// Package xconf 提供 Flux 的配置加载能力，底层为 [koanf]。
//
// # 设计理念
//
//   - 只支持 YAML 和 JSON 两种格式，按扩展名自动识别
//   - 基础操作直接暴露底层 koanf 实例，本包只提供增值能力：
//     路径反序列化、并发安全的 Reload、文件变更监视
//   - 配置文件发现遵循原项目约定：$FLUX_CONFIG 指定路径优先，
//     其次当前目录下的 flux.yaml / flux.yml / flux.json
//
// # 使用方式
//
//	cfg, err := xconf.Load()            // 按约定发现配置文件
//	cfg, err := xconf.New("flux.yaml")  // 显式路径
//
//	var preset struct {
//	    Requests int `koanf:"requests"`
//	    Period   int `koanf:"period"`
//	}
//	if err := cfg.Unmarshal("rate_limits.api", &preset); err != nil {
//	    return err
//	}
//
// 需要热加载时配合 [Watch]：
//
//	w, err := xconf.Watch(cfg, func(c xconf.Config, err error) {
//	    // 配置已重载（或重载失败）
//	})
//	if err != nil {
//	    return err
//	}
//	if err := w.Start(); err != nil {
//	    return err
//	}
//	defer w.Stop()
//
// [koanf]: https://github.com/knadh/koanf
package xconf
