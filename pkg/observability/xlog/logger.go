package xlog

import (
	"context"
	"io"
	"log/slog"
)

// 编译时接口检查
var (
	_ Logger          = (*xlogger)(nil)
	_ Leveler         = (*xlogger)(nil)
	_ LoggerWithLevel = (*xlogger)(nil)
)

// xlogger Logger 接口的实现。
// 薄封装 slog.Handler，级别由共享的 LevelVar 控制。
type xlogger struct {
	sl       *slog.Logger
	levelVar *slog.LevelVar
}

func (l *xlogger) Debug(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.sl.LogAttrs(ctx, slog.LevelDebug, msg, attrs...)
}

func (l *xlogger) Info(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.sl.LogAttrs(ctx, slog.LevelInfo, msg, attrs...)
}

func (l *xlogger) Warn(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.sl.LogAttrs(ctx, slog.LevelWarn, msg, attrs...)
}

func (l *xlogger) Error(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.sl.LogAttrs(ctx, slog.LevelError, msg, attrs...)
}

func (l *xlogger) With(attrs ...slog.Attr) Logger {
	if len(attrs) == 0 {
		return l
	}
	args := make([]any, 0, len(attrs))
	for _, a := range attrs {
		args = append(args, a)
	}
	return &xlogger{
		sl:       l.sl.With(args...),
		levelVar: l.levelVar,
	}
}

func (l *xlogger) SetLevel(level Level) {
	l.levelVar.Set(slog.Level(level))
}

func (l *xlogger) GetLevel() Level {
	return Level(l.levelVar.Level())
}

// Discard 返回丢弃所有输出的 Logger。
// 用于测试以及不关心日志的组件默认值。
func Discard() Logger {
	levelVar := new(slog.LevelVar)
	return &xlogger{
		sl:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		levelVar: levelVar,
	}
}
