package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = base
	}
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

// logFailure records a failed operation.  Capacity faults go to ERROR so
// operators see them; user-correctable failures stay at INFO.
func logFailure(ctx context.Context, logger *slog.Logger, msg string, err error) {
	kind := Kind(err)
	level := slog.LevelInfo
	var vErr *ValidationError
	switch {
	case errors.Is(err, ErrCapacityFault):
		level = slog.LevelError
	case kind == "unexpected":
		level = slog.LevelError
	case errors.Is(err, ErrBusy):
		level = slog.LevelWarn
	case errors.As(err, &vErr):
		level = slog.LevelDebug
	}
	logger.Log(ctx, level, msg, "error", err, "error_kind", kind)
}
