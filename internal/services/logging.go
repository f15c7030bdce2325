package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ServiceLogger provides structured logging for service layer operations
type ServiceLogger struct {
	logger *slog.Logger
}

type LogConfig struct {
	Service   string
	Component string
}

func NewServiceLogger(logger *slog.Logger, config LogConfig) *ServiceLogger {
	return &ServiceLogger{
		logger: logger.With("service", config.Service, "component", config.Component),
	}
}

// operationStatus classifies err for dashboards; the level follows it.
func operationStatus(err error) (string, slog.Level) {
	switch {
	case err == nil:
		return "success", slog.LevelInfo
	case IsValidation(err):
		return "validation_error", slog.LevelWarn
	case IsNotFound(err):
		return "not_found", slog.LevelInfo
	case IsConflict(err):
		return "conflict", slog.LevelWarn
	case IsInsufficientData(err):
		return "insufficient_data", slog.LevelWarn
	case IsConfiguration(err):
		return "configuration_error", slog.LevelError
	default:
		return "error", slog.LevelError
	}
}

// LogOperation records the outcome of one service call.
func (l *ServiceLogger) LogOperation(ctx context.Context, operation string, attemptID uint, duration time.Duration, err error) {
	status, level := operationStatus(err)

	attrs := []slog.Attr{
		slog.String("operation", operation),
		slog.String("status", status),
		slog.Duration("duration", duration),
	}
	if attemptID != 0 {
		attrs = append(attrs, slog.Uint64("attempt_id", uint64(attemptID)))
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		var ve ValidationErrors
		if errors.As(err, &ve) {
			attrs = append(attrs, slog.Int("validation_errors_count", len(ve)))
		}
	}

	l.logger.LogAttrs(ctx, level, fmt.Sprintf("%s operation %s", operation, status), attrs...)
}
