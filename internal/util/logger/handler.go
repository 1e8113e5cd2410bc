package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

// switchWriter 写入当前全局输出，SetOutput 后已创建的 Handler 同样生效
type switchWriter struct {
	w atomic.Value // writerBox
}

type writerBox struct{ io.Writer }

var output = newSwitchWriter(os.Stderr)

func newSwitchWriter(w io.Writer) *switchWriter {
	s := &switchWriter{}
	s.set(w)
	return s
}

func (s *switchWriter) set(w io.Writer) {
	s.w.Store(writerBox{w})
}

func (s *switchWriter) Write(p []byte) (int, error) {
	return s.w.Load().(writerBox).Write(p)
}

// subsystemHandler 以 LevelVar 控制级别，派生的 Handler 共享同一级别
type subsystemHandler struct {
	level *slog.LevelVar
	inner slog.Handler
}

func newHandler(subsystem string, level *slog.LevelVar, format LogFormat, addSource bool) *subsystemHandler {
	opts := &slog.HandlerOptions{
		// 过滤交给 subsystemHandler.Enabled
		Level:       slog.LevelDebug,
		AddSource:   addSource,
		ReplaceAttr: replaceAttr,
	}

	var inner slog.Handler
	if format == FormatJSON {
		inner = slog.NewJSONHandler(output, opts)
	} else {
		inner = slog.NewTextHandler(output, opts)
	}

	return &subsystemHandler{
		level: level,
		inner: inner.WithAttrs([]slog.Attr{slog.String("subsystem", subsystem)}),
	}
}

func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.TimeKey:
		a.Key = "ts"
	case slog.LevelKey:
		if lvl, ok := a.Value.Any().(slog.Level); ok {
			a.Value = slog.StringValue(levelName(lvl))
		}
	}
	return a
}

func (h *subsystemHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *subsystemHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.inner.Handle(ctx, r)
}

func (h *subsystemHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &subsystemHandler{level: h.level, inner: h.inner.WithAttrs(attrs)}
}

func (h *subsystemHandler) WithGroup(name string) slog.Handler {
	return &subsystemHandler{level: h.level, inner: h.inner.WithGroup(name)}
}

func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
