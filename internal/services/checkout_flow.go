package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"

	domain "github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/payments"
	"github.com/hanko-field/storefront/internal/platform/observability"
	"github.com/hanko-field/storefront/internal/repositories"
)

// CheckoutState is a state of the checkout flow.
type CheckoutState string

const (
	CheckoutCollecting CheckoutState = "collecting"
	CheckoutSubmitting CheckoutState = "submitting"
	CheckoutSucceeded  CheckoutState = "succeeded"
	CheckoutFailed     CheckoutState = "failed"
)

// CheckoutTransition describes one state change. Err is set when entering Failed.
type CheckoutTransition struct {
	From CheckoutState
	To   CheckoutState
	Err  error
	At   time.Time
}

// Confirmation is what the shopper sees after a successful checkout.
type Confirmation struct {
	Order        Order
	ContactEmail string
}

// CheckoutFlowDeps wires the checkout flow collaborators.
type CheckoutFlowDeps struct {
	Cart              CartSource
	Session           SessionReader
	Payments          payments.Gateway
	Orders            repositories.OrderRepository
	Currency          string
	PreferredProvider string
	PaymentTimeout    time.Duration
	Clock             func() time.Time
	IDGenerator       func() string
	Logger            func(ctx context.Context, event string, fields map[string]any)
	Metrics           *observability.Metrics
	OnTransition      func(CheckoutTransition)
}

// CheckoutFlow drives one checkout: Collecting, Submitting, then Succeeded or
// Failed. Failed immediately returns to Collecting with the form retained.
type CheckoutFlow struct {
	cart         CartSource
	session      SessionReader
	payments     payments.Gateway
	orders       repositories.OrderRepository
	currency     string
	provider     string
	timeout      time.Duration
	now          func() time.Time
	newID        func() string
	logger       func(ctx context.Context, event string, fields map[string]any)
	metrics      *observability.Metrics
	onTransition func(CheckoutTransition)

	mu           sync.Mutex
	state        CheckoutState
	form         CheckoutForm
	confirmation *Confirmation
	lastErr      error
}

// NewCheckoutFlow constructs a flow in the Collecting state.
func NewCheckoutFlow(deps CheckoutFlowDeps) (*CheckoutFlow, error) {
	if deps.Cart == nil {
		return nil, errors.New("checkout flow: cart is required")
	}
	if deps.Session == nil {
		return nil, errors.New("checkout flow: session is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("checkout flow: payment gateway is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("checkout flow: order repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = domain.DefaultCurrency
	}

	return &CheckoutFlow{
		cart:         deps.Cart,
		session:      deps.Session,
		payments:     deps.Payments,
		orders:       deps.Orders,
		currency:     currency,
		provider:     deps.PreferredProvider,
		timeout:      deps.PaymentTimeout,
		now:          func() time.Time { return clock().UTC() },
		newID:        idGen,
		logger:       logger,
		metrics:      deps.Metrics,
		onTransition: deps.OnTransition,
		state:        CheckoutCollecting,
	}, nil
}

// State returns the current state.
func (f *CheckoutFlow) State() CheckoutState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Form returns the last submitted form.
func (f *CheckoutFlow) Form() CheckoutForm {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.form
}

// LastError returns the error of the most recent failed submission.
func (f *CheckoutFlow) LastError() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

// Confirmation returns the result of a successful checkout.
func (f *CheckoutFlow) Confirmation() (Confirmation, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.confirmation == nil {
		return Confirmation{}, false
	}
	return *f.confirmation, true
}

// Reset starts a new checkout after a completed one.
func (f *CheckoutFlow) Reset() error {
	f.mu.Lock()
	if f.state == CheckoutSubmitting {
		f.mu.Unlock()
		return ErrCheckoutInProgress
	}
	var transitions []CheckoutTransition
	if f.state != CheckoutCollecting {
		transitions = append(transitions, f.moveLocked(CheckoutCollecting, nil))
	}
	f.form = CheckoutForm{}
	f.confirmation = nil
	f.lastErr = nil
	f.mu.Unlock()
	f.notify(transitions...)
	return nil
}

// Submit validates form, verifies the payment for the current cart total and,
// on success, records the order and clears the cart.
func (f *CheckoutFlow) Submit(ctx context.Context, form CheckoutForm) (conf Confirmation, err error) {
	ctx, span := observability.StartSpan(ctx, "checkout.submit",
		attribute.String("checkout.payment_method", string(form.PaymentMethod)))
	defer func() {
		endSpan(span, err)
		f.metrics.RecordCheckout(ctx, checkoutOutcome(err))
	}()

	f.mu.Lock()
	switch f.state {
	case CheckoutSubmitting:
		f.mu.Unlock()
		return Confirmation{}, ErrCheckoutInProgress
	case CheckoutSucceeded:
		f.mu.Unlock()
		return Confirmation{}, ErrCheckoutCompleted
	}
	f.form = form

	user, err := f.session.Require()
	if err != nil {
		f.mu.Unlock()
		return Confirmation{}, err
	}
	if err := validateCheckoutForm(form, f.now()); err != nil {
		f.mu.Unlock()
		f.logger(ctx, "checkout.form_rejected", map[string]any{"error": err})
		return Confirmation{}, err
	}
	cart := f.cart.Snapshot()
	if len(cart.Items) == 0 {
		f.mu.Unlock()
		return Confirmation{}, ErrCheckoutCartEmpty
	}
	submitting := f.moveLocked(CheckoutSubmitting, nil)
	f.lastErr = nil
	f.mu.Unlock()
	f.notify(submitting)

	orderID := f.newID()
	span.SetAttributes(attribute.String("checkout.order_id", orderID), attribute.Int64("checkout.total", cart.Total))

	verification, err := f.verify(ctx, user, form, cart, orderID)
	if err != nil {
		return Confirmation{}, f.fail(ctx, err)
	}

	order := f.buildOrder(orderID, user, form, cart, verification)
	if err := f.orders.Insert(ctx, order); err != nil {
		return Confirmation{}, f.fail(ctx, translateStorageError(err))
	}

	if _, err := f.cart.ClearIfVersion(ctx, cart.Version); err != nil {
		if delErr := f.orders.Delete(ctx, order.ID); delErr != nil && !isRepoNotFound(delErr) {
			f.logger(ctx, "checkout.compensation_failed", map[string]any{
				"orderID": order.ID,
				"error":   delErr,
			})
		}
		return Confirmation{}, f.fail(ctx, err)
	}

	confirmation := Confirmation{Order: order, ContactEmail: order.ContactEmail}
	f.mu.Lock()
	succeeded := f.moveLocked(CheckoutSucceeded, nil)
	f.confirmation = &confirmation
	f.mu.Unlock()
	f.notify(succeeded)

	f.logger(ctx, "checkout.succeeded", map[string]any{
		"orderID":   order.ID,
		"total":     order.Total,
		"currency":  order.Currency,
		"reference": order.Payment.Reference,
	})
	return confirmation, nil
}

func (f *CheckoutFlow) verify(ctx context.Context, user User, form CheckoutForm, cart Cart, orderID string) (payments.Verification, error) {
	req := payments.VerifyRequest{
		Method:         payments.Method(form.PaymentMethod),
		Amount:         cart.Total,
		Currency:       f.currency,
		CustomerID:     user.ID,
		IdempotencyKey: orderID,
		Metadata: map[string]string{
			"orderID":     orderID,
			"cartVersion": strconv.FormatInt(cart.Version, 10),
		},
	}
	switch form.PaymentMethod {
	case domain.PaymentMethodCard:
		card := cardInput(form.Card)
		req.Card = &card
	case domain.PaymentMethodUPI:
		req.UPIID = strings.TrimSpace(form.UPI.ID)
	}

	callCtx := ctx
	if f.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	started := time.Now()
	verification, err := f.payments.Verify(callCtx, payments.PaymentContext{
		PreferredProvider: f.provider,
		Method:            req.Method,
		Currency:          req.Currency,
	}, req)
	f.metrics.RecordCollaboratorLatency(ctx, "payment", time.Since(started))
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			return payments.Verification{}, translateCallError("payment", err)
		default:
			return payments.Verification{}, fmt.Errorf("%w: %v", ErrPaymentDeclined, err)
		}
	}
	if verification.Status != payments.StatusSucceeded {
		return payments.Verification{}, fmt.Errorf("%w: status %s", ErrPaymentDeclined, verification.Status)
	}
	return verification, nil
}

func (f *CheckoutFlow) buildOrder(orderID string, user User, form CheckoutForm, cart Cart, verification payments.Verification) Order {
	shipping := sanitizeShipping(form.Shipping)
	now := f.now()
	items := make([]domain.OrderItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, domain.OrderItem{
			ProductID: item.Product.ID,
			Name:      item.Product.Name,
			Price:     item.Product.Price,
			Quantity:  item.Quantity,
			Size:      item.SelectedSize,
			Image:     item.Product.Image,
		})
	}
	return Order{
		ID:       orderID,
		UserID:   user.ID,
		Items:    items,
		Total:    cart.Total,
		Currency: f.currency,
		Status:   domain.OrderStatusPending,
		ShippingAddress: domain.ShippingAddress{
			FirstName: shipping.FirstName,
			LastName:  shipping.LastName,
			Address:   shipping.Address,
			City:      shipping.City,
			State:     shipping.State,
			ZipCode:   shipping.ZipCode,
		},
		ContactEmail:  shipping.Email,
		ContactPhone:  shipping.Phone,
		PaymentMethod: form.PaymentMethod,
		Payment: domain.OrderPayment{
			Method:    form.PaymentMethod,
			Brand:     verification.Brand,
			Last4:     verification.Last4,
			UPIHandle: verification.UPIHandle,
			Reference: verification.Reference,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// fail records err, passes through Failed and returns to Collecting.
func (f *CheckoutFlow) fail(ctx context.Context, err error) error {
	f.mu.Lock()
	failed := f.moveLocked(CheckoutFailed, err)
	collecting := f.moveLocked(CheckoutCollecting, nil)
	f.lastErr = err
	f.mu.Unlock()
	f.notify(failed, collecting)
	f.logger(ctx, "checkout.failed", map[string]any{"error": err})
	return err
}

func (f *CheckoutFlow) moveLocked(to CheckoutState, err error) CheckoutTransition {
	t := CheckoutTransition{From: f.state, To: to, Err: err, At: f.now()}
	f.state = to
	return t
}

func (f *CheckoutFlow) notify(transitions ...CheckoutTransition) {
	if f.onTransition == nil {
		return
	}
	for _, t := range transitions {
		f.onTransition(t)
	}
}

func checkoutOutcome(err error) string {
	switch {
	case err == nil:
		return "succeeded"
	case errors.Is(err, ErrNotAuthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidPaymentDetails):
		return "invalid"
	case errors.Is(err, ErrPaymentDeclined):
		return "declined"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "error"
	}
}
