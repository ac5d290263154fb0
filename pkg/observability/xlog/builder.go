package xlog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Builder 日志配置构建器
type Builder struct {
	output    io.Writer
	levelVar  *slog.LevelVar
	format    string
	addSource bool
	rotator   *lumberjack.Logger
	err       error
}

// New 创建配置构建器。
// 默认输出到 os.Stderr，Info 级别，text 格式。
func New() *Builder {
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelInfo)

	return &Builder{
		output:   os.Stderr,
		levelVar: levelVar,
		format:   "text",
	}
}

// SetOutput 设置日志输出目标
func (b *Builder) SetOutput(w io.Writer) *Builder {
	if w != nil {
		b.output = w
	}
	return b
}

// SetLevel 设置日志级别
func (b *Builder) SetLevel(level Level) *Builder {
	b.levelVar.Set(slog.Level(level))
	return b
}

// SetLevelString 通过字符串设置日志级别
func (b *Builder) SetLevelString(s string) *Builder {
	level, err := ParseLevel(s)
	if err != nil {
		b.err = err
		return b
	}
	return b.SetLevel(level)
}

// SetFormat 设置输出格式：text 或 json。
// 空值视为默认格式 text。
func (b *Builder) SetFormat(format string) *Builder {
	normalized := strings.ToLower(strings.TrimSpace(format))
	if normalized == "" {
		b.format = "text"
		return b
	}
	if normalized != "text" && normalized != "json" {
		b.err = fmt.Errorf("xlog: unknown format %q", format)
		return b
	}
	b.format = normalized
	return b
}

// SetAddSource 是否在日志中添加源码位置
func (b *Builder) SetAddSource(enable bool) *Builder {
	b.addSource = enable
	return b
}

// SetRotation 设置文件输出和轮转。
// maxSizeMB 为单文件体积上限，maxBackups 为保留的历史文件数。
func (b *Builder) SetRotation(filename string, maxSizeMB, maxBackups int) *Builder {
	if filename == "" {
		b.err = fmt.Errorf("xlog: rotation filename is empty")
		return b
	}
	b.rotator = &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
	}
	b.output = b.rotator
	return b
}

// Build 构建 Logger。
// 返回的 cleanup 函数负责释放输出资源（如轮转文件句柄），
// 调用方应在进程退出前调用。
func (b *Builder) Build() (LoggerWithLevel, func(), error) {
	if b.err != nil {
		return nil, nil, b.err
	}

	hopts := &slog.HandlerOptions{
		Level:     b.levelVar,
		AddSource: b.addSource,
	}

	var handler slog.Handler
	if b.format == "json" {
		handler = slog.NewJSONHandler(b.output, hopts)
	} else {
		handler = slog.NewTextHandler(b.output, hopts)
	}

	cleanup := func() {}
	if b.rotator != nil {
		rotator := b.rotator
		cleanup = func() { _ = rotator.Close() }
	}

	return &xlogger{
		sl:       slog.New(handler),
		levelVar: b.levelVar,
	}, cleanup, nil
}
