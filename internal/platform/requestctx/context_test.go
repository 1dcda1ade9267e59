package requestctx

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestLoggerFallsBackToNoop(t *testing.T) {
	var empty context.Context
	if got := Logger(empty); got != NoopLogger() {
		t.Fatalf("expected noop logger for nil context")
	}
	if got := Logger(context.Background()); got != NoopLogger() {
		t.Fatalf("expected noop logger for empty context")
	}
	if got := Logger(WithLogger(context.Background(), nil)); got != NoopLogger() {
		t.Fatalf("expected noop logger when nil logger stored")
	}
}

func TestLoggerRoundTrip(t *testing.T) {
	logger := zap.NewExample()
	if got := Logger(WithLogger(context.Background(), logger)); got != logger {
		t.Fatalf("expected stored logger, got %v", got)
	}
}

func TestOperation(t *testing.T) {
	if _, ok := OperationFrom(context.Background()); ok {
		t.Fatalf("expected no operation on empty context")
	}
	ctx := WithOperation(context.Background(), Operation{ID: "01HZ", Name: "checkout.submit"})
	op, ok := OperationFrom(ctx)
	if !ok {
		t.Fatalf("expected operation")
	}
	if op.ID != "01HZ" || op.Name != "checkout.submit" {
		t.Fatalf("unexpected operation: %+v", op)
	}
}
