// Package log provides structured logging for go-pepper.
// It wraps slog with sensible defaults for production use.
package log

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"
)

var (
	logger *slog.Logger
	once   sync.Once

	mirrorMu sync.RWMutex
	mirror   Mirror
)

// Mirror receives a copy of every record, for live feeds like the
// dashboard. It runs on the logging goroutine and must not block.
type Mirror func(t time.Time, level, msg string)

// SetMirror registers fn to receive every record logged from now on.
// Pass nil to detach.
func SetMirror(fn Mirror) {
	mirrorMu.Lock()
	mirror = fn
	mirrorMu.Unlock()
}

// teeHandler forwards records to the mirror before the real handler.
type teeHandler struct {
	slog.Handler
}

func (h teeHandler) Handle(ctx context.Context, r slog.Record) error {
	mirrorMu.RLock()
	fn := mirror
	mirrorMu.RUnlock()
	if fn != nil {
		fn(r.Time, r.Level.String(), formatRecord(r))
	}
	return h.Handler.Handle(ctx, r)
}

func (h teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return teeHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h teeHandler) WithGroup(name string) slog.Handler {
	return teeHandler{Handler: h.Handler.WithGroup(name)}
}

func formatRecord(r slog.Record) string {
	msg := r.Message
	r.Attrs(func(a slog.Attr) bool {
		msg += " " + a.Key + "=" + a.Value.String()
		return true
	})
	return msg
}

// Init initializes the global logger with the specified level.
// Valid levels: "debug", "info", "warn", "error"
func Init(level string) {
	once.Do(func() {
		var lvl slog.Level
		switch level {
		case "debug":
			lvl = slog.LevelDebug
		case "warn":
			lvl = slog.LevelWarn
		case "error":
			lvl = slog.LevelError
		default:
			lvl = slog.LevelInfo
		}

		opts := &slog.HandlerOptions{
			Level: lvl,
		}

		// Use JSON in production, text in development
		var handler slog.Handler
		if os.Getenv("GO_ENV") == "production" {
			handler = slog.NewJSONHandler(os.Stdout, opts)
		} else {
			handler = slog.NewTextHandler(os.Stdout, opts)
		}
		logger = slog.New(teeHandler{Handler: handler})

		slog.SetDefault(logger)
	})
}

// L returns the global logger instance.
func L() *slog.Logger {
	if logger == nil {
		Init("info")
	}
	return logger
}

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	L().Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	L().Info(msg, args...)
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	L().Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	L().Error(msg, args...)
}

// With returns a logger with the given attributes.
func With(args ...any) *slog.Logger {
	return L().With(args...)
}
