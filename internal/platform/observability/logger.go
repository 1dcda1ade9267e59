package observability

import (
	"context"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hanko-field/storefront/internal/platform/requestctx"
)

const defaultLogLevel = "info"

// EventLogger is the structured logging hook accepted by services.
type EventLogger func(ctx context.Context, event string, fields map[string]any)

// NewLogger constructs a production-ready zap logger emitting structured JSON.
func NewLogger() (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))))); err != nil {
		// Fallback to default level when env var is unset or invalid.
		_ = level.UnmarshalText([]byte(defaultLogLevel))
	}

	encoderCfg := zapcore.EncoderConfig{
		MessageKey: "message",
		TimeKey:    "timestamp",
		LevelKey:   "severity",
		NameKey:    "logger",
		EncodeTime: zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(strings.ToUpper(level.String()))
		},
		CallerKey:     "caller",
		EncodeCaller:  zapcore.ShortCallerEncoder,
		StacktraceKey: "stacktrace",
	}

	cfg := zap.Config{
		Level:             level,
		Encoding:          "json",
		EncoderConfig:     encoderCfg,
		OutputPaths:       []string{"stderr"},
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     false,
		DisableStacktrace: true,
	}

	return cfg.Build()
}

// WithLogger injects the logger into the provided context.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return requestctx.WithLogger(ctx, logger)
}

// FromContext retrieves the logger from context, defaulting to a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	return requestctx.Logger(ctx)
}

// NewEventLogger adapts a zap logger to the EventLogger hook. Events carrying an
// "error" field are written at warn level. Operation metadata stored on the
// context is attached to every entry.
func NewEventLogger(logger *zap.Logger) EventLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields)+3)
		zFields = append(zFields, zap.String("event", event))
		if op, ok := requestctx.OperationFrom(ctx); ok {
			zFields = append(zFields, zap.String("operationId", op.ID), zap.String("operation", op.Name))
		}
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		level := zapcore.InfoLevel
		for _, k := range keys {
			v := fields[k]
			if k == "error" {
				level = zapcore.WarnLevel
				if err, ok := v.(error); ok {
					zFields = append(zFields, zap.Error(err))
					continue
				}
			}
			zFields = append(zFields, zap.Any(k, v))
		}
		if ce := logger.Check(level, event); ce != nil {
			ce.Write(zFields...)
		}
	}
}
