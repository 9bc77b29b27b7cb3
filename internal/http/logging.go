package http

import (
	"context"
	"log/slog"

	"github.com/example/tutorbook/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

// handlerLogger derives the logger for one handler call. The request logger
// installed by RequestLogger and RequireIdentity wins over fallback.
func handlerLogger(ctx context.Context, fallback *slog.Logger, handlerName, operation string, attrs ...any) *slog.Logger {
	pairs := make([]any, 0, 4+len(attrs))
	pairs = append(pairs, "handler", handlerName, "operation", operation)
	return logging.FromContextOr(ctx, fallback).With(append(pairs, attrs...)...)
}
