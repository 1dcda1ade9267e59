package services

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// storeLifecycle serialises mutations through a one-token slot and tracks teardown.
type storeLifecycle struct {
	slot      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newStoreLifecycle() *storeLifecycle {
	return &storeLifecycle{
		slot: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// acquire waits for the writer slot. The returned release must be called exactly once.
func (l *storeLifecycle) acquire(ctx context.Context) (func(), error) {
	if l.closed() {
		return nil, ErrStoreClosed
	}
	select {
	case l.slot <- struct{}{}:
		if l.closed() {
			<-l.slot
			return nil, ErrStoreClosed
		}
		return func() { <-l.slot }, nil
	case <-l.done:
		return nil, ErrStoreClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// bind derives a context that is cancelled when the store closes.
func (l *storeLifecycle) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	bound, cancel := context.WithCancelCause(ctx)
	go func() {
		select {
		case <-l.done:
			cancel(ErrStoreClosed)
		case <-bound.Done():
		}
	}()
	return bound, func() { cancel(context.Canceled) }
}

func (l *storeLifecycle) close() {
	l.closeOnce.Do(func() { close(l.done) })
}

func (l *storeLifecycle) closed() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// mutationOutcome labels a mutation result for metrics.
func mutationOutcome(err error, changed bool) string {
	switch {
	case err == nil && !changed:
		return "noop"
	case err == nil:
		return "applied"
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrOutOfStock), errors.Is(err, ErrInsufficientStock):
		return "rejected"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrStoreClosed):
		return "closed"
	default:
		return "error"
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
