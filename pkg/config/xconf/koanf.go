package xconf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	kjson "github.com/knadh/koanf/parsers/json"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// 配置文件发现约定
const (
	// EnvConfigPath 指定配置文件路径的环境变量
	EnvConfigPath = "FLUX_CONFIG"

	// keyDelim koanf 的路径分隔符
	keyDelim = "."
)

// discoveryCandidates 当前目录下按序探测的候选文件名
var discoveryCandidates = []string{"flux.yaml", "flux.yml", "flux.json"}

// koanfConfig 是 Config 接口的 koanf 实现。
type koanfConfig struct {
	k       *koanf.Koanf
	path    string
	format  Format
	mu      sync.RWMutex
	isBytes bool
}

// New 从文件路径创建配置实例。
// 根据文件扩展名自动检测格式（.yaml/.yml 或 .json）。
func New(path string) (Config, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	format, err := detectFormat(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	k := koanf.New(keyDelim)
	if err := loadData(k, data, format); err != nil {
		return nil, err
	}

	return &koanfConfig{
		k:      k,
		path:   path,
		format: format,
	}, nil
}

// NewFromBytes 从字节数据创建配置实例。
// 需要显式指定格式。空数据会创建一个空配置实例。
func NewFromBytes(data []byte, format Format) (Config, error) {
	if !isValidFormat(format) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	k := koanf.New(keyDelim)
	if err := loadData(k, data, format); err != nil {
		return nil, err
	}

	return &koanfConfig{
		k:       k,
		format:  format,
		isBytes: true,
	}, nil
}

// Load 按约定发现并加载配置文件。
// 优先使用 $FLUX_CONFIG 指定的路径，其次探测当前目录下的
// flux.yaml / flux.yml / flux.json。都不存在时返回 [ErrNotFound]。
func Load() (Config, error) {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return New(path)
	}

	for _, name := range discoveryCandidates {
		if _, err := os.Stat(name); err == nil {
			return New(name)
		}
	}

	return nil, ErrNotFound
}

func (c *koanfConfig) Client() *koanf.Koanf {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.k
}

func (c *koanfConfig) Unmarshal(path string, target any) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.k.Unmarshal(path, target)
}

func (c *koanfConfig) Reload() error {
	if c.isBytes {
		return ErrNotFromFile
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	// 解析到新实例成功后再原子替换，失败不影响现有配置
	fresh := koanf.New(keyDelim)
	if err := loadData(fresh, data, c.format); err != nil {
		return err
	}

	c.mu.Lock()
	c.k = fresh
	c.mu.Unlock()
	return nil
}

func (c *koanfConfig) Path() string {
	return c.path
}

func (c *koanfConfig) Format() Format {
	return c.format
}

// loadData 将原始字节按格式加载进 koanf 实例
func loadData(k *koanf.Koanf, data []byte, format Format) error {
	var parser koanf.Parser
	switch format {
	case FormatYAML:
		parser = kyaml.Parser()
	case FormatJSON:
		parser = kjson.Parser()
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return fmt.Errorf("%w: %w", ErrParseFailed, err)
	}
	return nil
}

// detectFormat 按文件扩展名检测配置格式
func detectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// isValidFormat 检查格式是否受支持
func isValidFormat(f Format) bool {
	return f == FormatYAML || f == FormatJSON
}
