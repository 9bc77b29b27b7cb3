package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/tutorbook/internal/logging"
	"github.com/example/tutorbook/internal/oauth"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContextOr(ctx, base)
	if logger == nil {
		logger = slog.Default()
	}

	pairs := []any{"service", serviceName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if len(attrs) > 0 {
		pairs = append(pairs, attrs...)
	}
	return logger.With(pairs...)
}

// ErrorKind maps domain, token and validation errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}

	var dErr *DomainError
	if errors.As(err, &dErr) {
		return dErr.Code
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, oauth.ErrNotConnected):
		return string(oauth.KindNotConnected)
	case errors.Is(err, oauth.ErrTokenInvalid):
		return string(oauth.KindTokenInvalid)
	case errors.Is(err, oauth.ErrUnavailable):
		return string(oauth.KindUnavailable)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "canceled"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}

	return "unexpected"
}
