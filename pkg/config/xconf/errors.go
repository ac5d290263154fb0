package xconf

import "errors"

// 预定义错误，使用 errors.Is 进行比较
var (
	// ErrEmptyPath 配置文件路径为空
	ErrEmptyPath = errors.New("xconf: path is empty")

	// ErrUnsupportedFormat 不支持的配置格式（仅支持 yaml/json）
	ErrUnsupportedFormat = errors.New("xconf: unsupported format")

	// ErrLoadFailed 读取配置文件失败
	ErrLoadFailed = errors.New("xconf: load failed")

	// ErrParseFailed 解析配置内容失败
	ErrParseFailed = errors.New("xconf: parse failed")

	// ErrNotFromFile 配置不是从文件创建的。
	// Reload 和 Watch 仅对从文件创建的配置有效。
	ErrNotFromFile = errors.New("xconf: config was not created from a file")

	// ErrNotFound 按约定路径未发现任何配置文件
	ErrNotFound = errors.New("xconf: no config file found")

	// ErrWatcherRunning 监视器已在运行
	ErrWatcherRunning = errors.New("xconf: watcher already running")
)
