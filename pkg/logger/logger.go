// Package logger provides the service's structured, levelled logger built on
// log/slog.
//
// WithCtx returns a logger already tagged with the request ID, so every line
// written while handling a checkout or webhook is correlated:
//
//	log := logger.WithCtx(r.Context())
//	log.Info("order reconciled", "intent_id", id, "result", "applied")
//	// → time=... level=INFO msg="order reconciled" request_id=a1b2c3d4 intent_id=pi_123 result=applied
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/shashiranjanraj/checkout/config"
)

var L *slog.Logger

func init() {
	Setup(config.AppEnv(), os.Stdout)
}

// Setup rebuilds the base logger: JSON in production, text elsewhere.
func Setup(env string, w io.Writer) {
	var handler slog.Handler

	switch env {
	case "production", "prod":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
	case "test":
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelWarn})
	default:
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	}

	L = slog.New(handler)
	slog.SetDefault(L)
}

// AttachSink mirrors every record of the base logger to sink as well.
// Loggers derived from L before the call keep writing only to the base.
func AttachSink(sink slog.Handler) {
	L = slog.New(teeHandler{L.Handler(), sink})
	slog.SetDefault(L)
}

type teeHandler []slog.Handler

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var first error
	for _, h := range t {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}

type ctxKey struct{}

// WithCtx returns the per-request logger stored by the Logger middleware,
// or the base logger outside a request.
func WithCtx(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return L
	}
	if log, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && log != nil {
		return log
	}
	return L
}

// InjectLogger stores log in ctx. Called by the Logger middleware and by
// background workers that want their own tags.
func InjectLogger(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

// Debug logs at DEBUG level.
func Debug(msg string, args ...any) { L.Debug(msg, args...) }

// Info logs at INFO level.
func Info(msg string, args ...any) { L.Info(msg, args...) }

// Warn logs at WARN level.
func Warn(msg string, args ...any) { L.Warn(msg, args...) }

// Error logs at ERROR level.
func Error(msg string, args ...any) { L.Error(msg, args...) }
