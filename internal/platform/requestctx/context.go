package requestctx

import (
	"context"

	"go.uber.org/zap"
)

type contextKey string

const (
	loggerContextKey    contextKey = "github.com/hanko-field/storefront/internal/platform/requestctx/logger"
	operationContextKey contextKey = "github.com/hanko-field/storefront/internal/platform/requestctx/operation"
)

var noopLogger = zap.NewNop()

// Operation identifies the shopper action being processed.
type Operation struct {
	ID   string
	Name string
}

// WithLogger stores the logger in context for downstream consumers.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = noopLogger
	}
	return context.WithValue(ctx, loggerContextKey, logger)
}

// Logger retrieves the zap logger from context or returns a no-op logger.
func Logger(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return noopLogger
	}
	if logger, ok := ctx.Value(loggerContextKey).(*zap.Logger); ok && logger != nil {
		return logger
	}
	return noopLogger
}

// NoopLogger exposes the shared noop logger instance used across the package.
func NoopLogger() *zap.Logger { return noopLogger }

// WithOperation records the current shopper action on the context.
func WithOperation(ctx context.Context, op Operation) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, operationContextKey, op)
}

// OperationFrom retrieves the current operation when present.
func OperationFrom(ctx context.Context) (Operation, bool) {
	if ctx == nil {
		return Operation{}, false
	}
	op, ok := ctx.Value(operationContextKey).(Operation)
	return op, ok
}
