package orm

import (
	"context"
	"log/slog"
)

// Logger is the interface for query logging.
type Logger interface {
	Log(ctx context.Context, query string, args ...any)
}

// LoggerFunc adapts an ordinary function to Logger.
type LoggerFunc func(ctx context.Context, query string, args ...any)

func (f LoggerFunc) Log(ctx context.Context, query string, args ...any) { f(ctx, query, args...) }

// NewSlogLogger returns a Logger writing every statement to l at debug level.
func NewSlogLogger(l *slog.Logger) Logger {
	return LoggerFunc(func(ctx context.Context, query string, args ...any) {
		l.DebugContext(ctx, "orm: query", slog.String("query", query), slog.Any("args", args))
	})
}

func logQuery(ctx context.Context, l Logger, query string, args []any) {
	if l != nil {
		l.Log(ctx, query, args...)
	}
}
