package http

import (
	"context"
	"log/slog"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// handlerLogger prefers the request scoped logger installed by RequestLogger.
// Without one it falls back to base and tags the request id itself.
func handlerLogger(ctx context.Context, base *slog.Logger, handlerName, operation string, attrs ...any) *slog.Logger {
	pairs := make([]any, 0, len(attrs)+6)
	pairs = append(pairs, "handler", handlerName)

	logger := LoggerFromContext(ctx)
	if logger == nil {
		logger = defaultLogger(base)
		if id := RequestIDFromContext(ctx); id != "" {
			pairs = append(pairs, "request_id", id)
		}
	}

	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	pairs = append(pairs, attrs...)
	return logger.With(pairs...)
}
