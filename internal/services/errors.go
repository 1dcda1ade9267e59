package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/hanko-field/storefront/internal/repositories"
)

var (
	// ErrValidation is matched by every ValidationError.
	ErrValidation = errors.New("storefront: invalid input")
	// ErrOutOfStock indicates the inventory gate refused an add.
	ErrOutOfStock = errors.New("cart: out of stock")
	// ErrInsufficientStock indicates the inventory gate refused a quantity update.
	ErrInsufficientStock = errors.New("cart: insufficient stock")
	// ErrCartItemNotFound indicates the (product, size) line is not in the cart.
	ErrCartItemNotFound = errors.New("cart: item not found")
	// ErrCartConflict indicates the cart changed after the caller read it.
	ErrCartConflict = errors.New("cart: conflict")

	// ErrInvalidPaymentDetails is matched by every InvalidPaymentDetailsError.
	ErrInvalidPaymentDetails = errors.New("checkout: invalid payment details")
	// ErrPaymentDeclined indicates the payment gateway refused the payment.
	ErrPaymentDeclined = errors.New("checkout: payment declined")
	// ErrCheckoutCartEmpty indicates there is nothing to pay for.
	ErrCheckoutCartEmpty = errors.New("checkout: cart is empty")
	// ErrCheckoutInProgress indicates a submission is already running.
	ErrCheckoutInProgress = errors.New("checkout: submission in progress")
	// ErrCheckoutCompleted indicates the flow already produced an order and must be reset.
	ErrCheckoutCompleted = errors.New("checkout: already completed")

	// ErrAuthFailed indicates the authenticator rejected the credentials.
	ErrAuthFailed = errors.New("session: authentication failed")
	// ErrNotAuthenticated indicates the operation needs a signed-in shopper.
	ErrNotAuthenticated = errors.New("session: not authenticated")

	// ErrStorageCorrupt marks a stored snapshot that could not be decoded. Stores
	// recover from it by starting empty; it is only ever logged.
	ErrStorageCorrupt = errors.New("storage: corrupt snapshot")
	// ErrStorageUnavailable indicates the key-value store could not be read or written.
	ErrStorageUnavailable = errors.New("storage: unavailable")
	// ErrStoreClosed indicates the store was torn down.
	ErrStoreClosed = errors.New("store: closed")
	// ErrTimeout indicates a collaborator did not answer in time.
	ErrTimeout = errors.New("storefront: collaborator timed out")
	// ErrProductNotFound indicates the catalog has no such product.
	ErrProductNotFound = errors.New("catalog: product not found")
	// ErrOrderNotFound indicates the order does not exist for the current shopper.
	ErrOrderNotFound = errors.New("orders: not found")
)

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ErrValidation.Error()
	}
	if e.Reason == "" {
		return fmt.Sprintf("%s: %s", ErrValidation.Error(), e.Field)
	}
	return fmt.Sprintf("%s: %s: %s", ErrValidation.Error(), e.Field, e.Reason)
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalidField(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// InvalidPaymentDetailsError reports a payment field that failed format checks.
type InvalidPaymentDetailsError struct {
	Field  string
	Reason string
}

func (e *InvalidPaymentDetailsError) Error() string {
	if e == nil {
		return ErrInvalidPaymentDetails.Error()
	}
	return fmt.Sprintf("%s: %s: %s", ErrInvalidPaymentDetails.Error(), e.Field, e.Reason)
}

// Is matches ErrInvalidPaymentDetails.
func (e *InvalidPaymentDetailsError) Is(target error) bool {
	return target == ErrInvalidPaymentDetails
}

// translateCallError maps collaborator failures onto the service taxonomy.
// Cancellation by the caller is passed through untouched.
func translateCallError(collaborator string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s", ErrTimeout, collaborator)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%s: %w", collaborator, err)
	}
}

func translateStorageError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, repositories.ErrCorruptSnapshot) {
		return fmt.Errorf("%w: %v", ErrStorageCorrupt, err)
	}
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
