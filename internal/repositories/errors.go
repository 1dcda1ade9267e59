package repositories

import (
	"context"
	"errors"
	"fmt"
)

// ErrCorruptSnapshot is returned when a persisted snapshot cannot be decoded.
var ErrCorruptSnapshot = errors.New("repositories: corrupt snapshot")

// Error implements RepositoryError for the storefront backends.
type Error struct {
	op          string
	err         error
	notFound    bool
	conflict    bool
	unavailable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.op != "" {
		return fmt.Sprintf("%s: %v", e.op, e.err)
	}
	return e.err.Error()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// IsNotFound reports whether the error represents a missing record.
func (e *Error) IsNotFound() bool {
	return e != nil && e.notFound
}

// IsConflict reports whether the error represents a conflicting write.
func (e *Error) IsConflict() bool {
	return e != nil && e.conflict
}

// IsUnavailable reports whether the error represents a backend outage.
func (e *Error) IsUnavailable() bool {
	return e != nil && e.unavailable
}

// NewNotFoundError builds a not-found repository error.
func NewNotFoundError(op string, err error) *Error {
	return &Error{op: op, err: err, notFound: true}
}

// NewConflictError builds a conflict repository error.
func NewConflictError(op string, err error) *Error {
	return &Error{op: op, err: err, conflict: true}
}

// NewUnavailableError builds an unavailable repository error.
func NewUnavailableError(op string, err error) *Error {
	return &Error{op: op, err: err, unavailable: true}
}

// WrapError annotates backend errors as unavailable. Context cancellations,
// corrupt snapshots and errors that are already categorised pass through.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, ErrCorruptSnapshot) {
		return err
	}

	var repoErr *Error
	if errors.As(err, &repoErr) {
		if op != "" && repoErr.op == "" {
			repoErr.op = op
		}
		return repoErr
	}
	return NewUnavailableError(op, err)
}
