package services

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	domain "github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/payments"
	"github.com/hanko-field/storefront/internal/repositories"
	"github.com/hanko-field/storefront/internal/repositories/kv"
	"github.com/hanko-field/storefront/internal/repositories/memory"
)

type checkoutFixture struct {
	cart        *cartFixture
	session     *stubSession
	gateway     *stubGateway
	orders      *kv.OrderRepository
	flow        *CheckoutFlow
	mu          sync.Mutex
	transitions []CheckoutTransition
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	return newCheckoutFixtureWithOrders(t, newOrderRepository(t))
}

func newCheckoutFixtureWithOrders(t *testing.T, orders *kv.OrderRepository) *checkoutFixture {
	t.Helper()
	fx := &checkoutFixture{
		cart:    newCartFixture(t),
		session: &stubSession{user: &User{ID: "user-1", Email: "ada@example.com"}},
		gateway: &stubGateway{},
		orders:  orders,
	}
	flow, err := NewCheckoutFlow(CheckoutFlowDeps{
		Cart:        fx.cart.store,
		Session:     fx.session,
		Payments:    fx.gateway,
		Orders:      fx.orders,
		Currency:    "usd",
		Clock:       testClock,
		IDGenerator: func() string { return "ORD-1" },
		OnTransition: func(tr CheckoutTransition) {
			fx.mu.Lock()
			fx.transitions = append(fx.transitions, tr)
			fx.mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("unexpected error creating checkout flow: %v", err)
	}
	fx.flow = flow
	return fx
}

func (fx *checkoutFixture) states() []CheckoutState {
	fx.mu.Lock()
	defer fx.mu.Unlock()
	out := make([]CheckoutState, 0, len(fx.transitions))
	for _, tr := range fx.transitions {
		out = append(out, tr.To)
	}
	return out
}

func (fx *checkoutFixture) fillCart(t *testing.T) Cart {
	t.Helper()
	ctx := context.Background()
	if _, err := fx.cart.store.AddItem(ctx, testProduct("w1", 22500), "M", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cart, err := fx.cart.store.AddItem(ctx, testProduct("w5", 18550, "XS", "S"), "S", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return cart
}

func validShipping() ShippingDetails {
	return ShippingDetails{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		Phone:     "555-0100",
		Address:   "12 Analytical Row",
		City:      "London",
		State:     "LDN",
		ZipCode:   "10001",
	}
}

func cardForm(number string) CheckoutForm {
	return CheckoutForm{
		Shipping:      validShipping(),
		PaymentMethod: domain.PaymentMethodCard,
		Card:          &domain.CardDetails{Number: number, Expiry: "12/99", CVV: "123"},
	}
}

func upiForm(id string) CheckoutForm {
	return CheckoutForm{
		Shipping:      validShipping(),
		PaymentMethod: domain.PaymentMethodUPI,
		UPI:           &domain.UPIDetails{ID: id},
	}
}

func TestCheckoutFlowSuccessClearsCartAndRecordsOrder(t *testing.T) {
	fx := newCheckoutFixture(t)
	cart := fx.fillCart(t)
	if cart.Total != 59600 {
		t.Fatalf("expected cart total 59600, got %d", cart.Total)
	}

	conf, err := fx.flow.Submit(context.Background(), cardForm("4242 4242 4242 4242"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if conf.Order.Total != cart.Total {
		t.Fatalf("expected order total %d, got %d", cart.Total, conf.Order.Total)
	}
	if conf.Order.Status != domain.OrderStatusPending || conf.Order.Currency != "USD" {
		t.Fatalf("unexpected order status/currency: %s %s", conf.Order.Status, conf.Order.Currency)
	}
	if conf.ContactEmail != "ada@example.com" {
		t.Fatalf("expected contact email, got %q", conf.ContactEmail)
	}
	if len(conf.Order.Items) != 2 || conf.Order.Items[1].Quantity != 2 || conf.Order.Items[1].Size != "S" {
		t.Fatalf("unexpected order items: %+v", conf.Order.Items)
	}
	if conf.Order.Payment.Reference != "pay_test" || conf.Order.Payment.Last4 != "4242" {
		t.Fatalf("unexpected payment summary: %+v", conf.Order.Payment)
	}

	after := fx.cart.store.Snapshot()
	if after.ItemCount != 0 || after.Total != 0 || len(after.Items) != 0 {
		t.Fatalf("expected empty cart, got %+v", after)
	}

	stored, err := fx.orders.Get(context.Background(), "ORD-1")
	if err != nil {
		t.Fatalf("expected order to be recorded: %v", err)
	}
	if stored.Total != cart.Total || stored.UserID != "user-1" {
		t.Fatalf("unexpected stored order: %+v", stored)
	}

	if fx.flow.State() != CheckoutSucceeded {
		t.Fatalf("expected succeeded state, got %s", fx.flow.State())
	}
	if got := fx.states(); !reflect.DeepEqual(got, []CheckoutState{CheckoutSubmitting, CheckoutSucceeded}) {
		t.Fatalf("unexpected transitions: %v", got)
	}
	if confirmation, ok := fx.flow.Confirmation(); !ok || confirmation.Order.ID != "ORD-1" {
		t.Fatalf("expected confirmation for ORD-1, got %+v", confirmation)
	}

	req := fx.gateway.requests[0]
	if req.Amount != cart.Total || req.Currency != "USD" || req.CustomerID != "user-1" || req.IdempotencyKey != "ORD-1" {
		t.Fatalf("unexpected verify request: %+v", req)
	}
}

func TestCheckoutFlowRecoversCorruptOrderHistory(t *testing.T) {
	backend := memory.NewKVStore()
	if err := backend.Set(context.Background(), repositories.KeyOrders, "{not json"); err != nil {
		t.Fatalf("unexpected error seeding store: %v", err)
	}
	orders, err := kv.NewOrderRepository(backend)
	if err != nil {
		t.Fatalf("unexpected error creating order repository: %v", err)
	}
	fx := newCheckoutFixtureWithOrders(t, orders)
	fx.fillCart(t)

	conf, err := fx.flow.Submit(context.Background(), cardForm("4242424242424242"))
	if err != nil {
		t.Fatalf("expected checkout to succeed over corrupt history, got %v", err)
	}
	if fx.flow.State() != CheckoutSucceeded {
		t.Fatalf("expected succeeded state, got %s", fx.flow.State())
	}

	service, err := NewOrderService(OrderServiceDeps{Orders: orders, Session: fx.session})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	listed, err := service.ListOrders(context.Background())
	if err != nil {
		t.Fatalf("unexpected error listing orders: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != conf.Order.ID {
		t.Fatalf("expected only %s, got %+v", conf.Order.ID, listed)
	}
}

func TestCheckoutFlowRejectsLuhnFailure(t *testing.T) {
	fx := newCheckoutFixture(t)
	cart := fx.fillCart(t)

	_, err := fx.flow.Submit(context.Background(), cardForm("4111111111111112"))
	var perr *InvalidPaymentDetailsError
	if !errors.As(err, &perr) {
		t.Fatalf("expected InvalidPaymentDetailsError, got %v", err)
	}
	if perr.Field != payments.FieldCardNumber {
		t.Fatalf("expected cardNumber field, got %s", perr.Field)
	}
	if !errors.Is(err, ErrInvalidPaymentDetails) {
		t.Fatalf("expected error to match ErrInvalidPaymentDetails")
	}
	if fx.gateway.callCount() != 0 {
		t.Fatalf("expected no gateway call")
	}
	if got := fx.cart.store.Snapshot(); !reflect.DeepEqual(got, cart) {
		t.Fatalf("expected cart unchanged")
	}
	if orders, _ := fx.orders.ListByUser(context.Background(), "user-1"); len(orders) != 0 {
		t.Fatalf("expected no order, got %d", len(orders))
	}
	if fx.flow.State() != CheckoutCollecting {
		t.Fatalf("expected collecting state, got %s", fx.flow.State())
	}
}

func TestCheckoutFlowRequiresSessionBeforeGateway(t *testing.T) {
	fx := newCheckoutFixture(t)
	fx.fillCart(t)
	fx.session.user = nil

	_, err := fx.flow.Submit(context.Background(), cardForm("4242424242424242"))
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if fx.gateway.callCount() != 0 {
		t.Fatalf("expected gateway untouched, got %d calls", fx.gateway.callCount())
	}
}

func TestCheckoutFlowValidatesForm(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*CheckoutForm)
		field  string
		target error
	}{
		{"missing city", func(f *CheckoutForm) { f.Shipping.City = " " }, "city", ErrValidation},
		{"missing zip", func(f *CheckoutForm) { f.Shipping.ZipCode = "" }, "zipCode", ErrValidation},
		{"unknown method", func(f *CheckoutForm) { f.PaymentMethod = "cash" }, "paymentMethod", ErrValidation},
		{"card with upi", func(f *CheckoutForm) { f.UPI = &domain.UPIDetails{ID: "name@upi"} }, payments.FieldUPIID, ErrValidation},
		{"missing cvv", func(f *CheckoutForm) { f.Card.CVV = "" }, payments.FieldCVV, ErrValidation},
		{"expired card", func(f *CheckoutForm) { f.Card.Expiry = "04/24" }, payments.FieldExpiry, ErrInvalidPaymentDetails},
		{"bad month", func(f *CheckoutForm) { f.Card.Expiry = "13/30" }, payments.FieldExpiry, ErrInvalidPaymentDetails},
		{"short cvv", func(f *CheckoutForm) { f.Card.CVV = "12" }, payments.FieldCVV, ErrInvalidPaymentDetails},
		{"short number", func(f *CheckoutForm) { f.Card.Number = "4242" }, payments.FieldCardNumber, ErrInvalidPaymentDetails},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fx := newCheckoutFixture(t)
			fx.fillCart(t)
			form := cardForm("4242424242424242")
			tc.mutate(&form)

			_, err := fx.flow.Submit(context.Background(), form)
			if !errors.Is(err, tc.target) {
				t.Fatalf("expected %v, got %v", tc.target, err)
			}
			var field string
			var verr *ValidationError
			var perr *InvalidPaymentDetailsError
			switch {
			case errors.As(err, &verr):
				field = verr.Field
			case errors.As(err, &perr):
				field = perr.Field
			}
			if field != tc.field {
				t.Fatalf("expected field %s, got %s", tc.field, field)
			}
			if fx.gateway.callCount() != 0 {
				t.Fatalf("expected no gateway call")
			}
		})
	}
}

func TestCheckoutFlowUPI(t *testing.T) {
	fx := newCheckoutFixture(t)
	fx.fillCart(t)

	if _, err := fx.flow.Submit(context.Background(), upiForm("name@u")); !errors.Is(err, ErrInvalidPaymentDetails) {
		t.Fatalf("expected short handle to be rejected, got %v", err)
	}
	conf, err := fx.flow.Submit(context.Background(), upiForm("name@upi"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conf.Order.PaymentMethod != domain.PaymentMethodUPI {
		t.Fatalf("expected upi order, got %s", conf.Order.PaymentMethod)
	}
	if fx.gateway.requests[0].UPIID != "name@upi" {
		t.Fatalf("expected upi id forwarded, got %+v", fx.gateway.requests[0])
	}
}

func TestCheckoutFlowDeclineReturnsToCollecting(t *testing.T) {
	fx := newCheckoutFixture(t)
	cart := fx.fillCart(t)
	fx.gateway.verifyFn = func(context.Context, payments.VerifyRequest) (payments.Verification, error) {
		return payments.Verification{}, &payments.DeclineError{Provider: "simulated", Reason: "card refused by issuer"}
	}
	form := cardForm("4242424242424242")

	_, err := fx.flow.Submit(context.Background(), form)
	if !errors.Is(err, ErrPaymentDeclined) {
		t.Fatalf("expected ErrPaymentDeclined, got %v", err)
	}
	if fx.flow.State() != CheckoutCollecting {
		t.Fatalf("expected collecting after failure, got %s", fx.flow.State())
	}
	if got := fx.states(); !reflect.DeepEqual(got, []CheckoutState{CheckoutSubmitting, CheckoutFailed, CheckoutCollecting}) {
		t.Fatalf("unexpected transitions: %v", got)
	}
	if !reflect.DeepEqual(fx.flow.Form(), form) {
		t.Fatalf("expected form retained")
	}
	if !errors.Is(fx.flow.LastError(), ErrPaymentDeclined) {
		t.Fatalf("expected last error recorded, got %v", fx.flow.LastError())
	}
	if got := fx.cart.store.Snapshot(); !reflect.DeepEqual(got, cart) {
		t.Fatalf("expected cart untouched")
	}
	if _, err := fx.orders.Get(context.Background(), "ORD-1"); err == nil {
		t.Fatalf("expected no order recorded")
	}

	fx.gateway.verifyFn = nil
	if _, err := fx.flow.Submit(context.Background(), form); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
}

func TestCheckoutFlowPaymentTimeout(t *testing.T) {
	fx := newCheckoutFixture(t)
	fx.fillCart(t)
	fx.flow.timeout = 10 * time.Millisecond
	fx.gateway.verifyFn = func(ctx context.Context, _ payments.VerifyRequest) (payments.Verification, error) {
		<-ctx.Done()
		return payments.Verification{}, ctx.Err()
	}

	if _, err := fx.flow.Submit(context.Background(), cardForm("4242424242424242")); !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if fx.flow.State() != CheckoutCollecting {
		t.Fatalf("expected collecting after timeout, got %s", fx.flow.State())
	}
}

func TestCheckoutFlowEmptyCart(t *testing.T) {
	fx := newCheckoutFixture(t)
	if _, err := fx.flow.Submit(context.Background(), cardForm("4242424242424242")); !errors.Is(err, ErrCheckoutCartEmpty) {
		t.Fatalf("expected ErrCheckoutCartEmpty, got %v", err)
	}
}

func TestCheckoutFlowCompensatesWhenCartChanged(t *testing.T) {
	fx := newCheckoutFixture(t)
	fx.fillCart(t)
	fx.gateway.verifyFn = func(_ context.Context, req payments.VerifyRequest) (payments.Verification, error) {
		// the shopper edits the cart while payment is pending
		if _, err := fx.cart.store.AddItem(context.Background(), testProduct("w2", 34500), "L", 1); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		return payments.Verification{Reference: "pay_x", Status: payments.StatusSucceeded, Amount: req.Amount}, nil
	}

	_, err := fx.flow.Submit(context.Background(), cardForm("4242424242424242"))
	if !errors.Is(err, ErrCartConflict) {
		t.Fatalf("expected ErrCartConflict, got %v", err)
	}
	if _, err := fx.orders.Get(context.Background(), "ORD-1"); err == nil {
		t.Fatalf("expected compensating delete of the order")
	}
	if fx.cart.store.Snapshot().ItemCount != 4 {
		t.Fatalf("expected edited cart to survive, got %+v", fx.cart.store.Snapshot())
	}
	if fx.flow.State() != CheckoutCollecting {
		t.Fatalf("expected collecting, got %s", fx.flow.State())
	}
}

func TestCheckoutFlowCompletedRequiresReset(t *testing.T) {
	fx := newCheckoutFixture(t)
	fx.fillCart(t)
	if _, err := fx.flow.Submit(context.Background(), cardForm("4242424242424242")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := fx.flow.Submit(context.Background(), cardForm("4242424242424242")); !errors.Is(err, ErrCheckoutCompleted) {
		t.Fatalf("expected ErrCheckoutCompleted, got %v", err)
	}
	if err := fx.flow.Reset(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fx.flow.State() != CheckoutCollecting {
		t.Fatalf("expected collecting after reset, got %s", fx.flow.State())
	}
	if _, ok := fx.flow.Confirmation(); ok {
		t.Fatalf("expected confirmation cleared")
	}
}

func TestCheckoutFlowRejectsConcurrentSubmit(t *testing.T) {
	fx := newCheckoutFixture(t)
	fx.fillCart(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	fx.gateway.verifyFn = func(_ context.Context, req payments.VerifyRequest) (payments.Verification, error) {
		close(entered)
		<-release
		return payments.Verification{Reference: "pay_y", Status: payments.StatusSucceeded, Amount: req.Amount}, nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := fx.flow.Submit(context.Background(), cardForm("4242424242424242"))
		done <- err
	}()
	<-entered
	if _, err := fx.flow.Submit(context.Background(), cardForm("4242424242424242")); !errors.Is(err, ErrCheckoutInProgress) {
		t.Fatalf("expected ErrCheckoutInProgress, got %v", err)
	}
	if err := fx.flow.Reset(); !errors.Is(err, ErrCheckoutInProgress) {
		t.Fatalf("expected reset refused while submitting, got %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCheckoutFlowSanitizesShipping(t *testing.T) {
	fx := newCheckoutFixture(t)
	fx.fillCart(t)
	form := cardForm("4242424242424242")
	form.Shipping.Address = "<b>12</b> O'Brien Row<script>alert(1)</script>"

	conf, err := fx.flow.Submit(context.Background(), form)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conf.Order.ShippingAddress.Address != "12 O'Brien Row" {
		t.Fatalf("expected sanitized address, got %q", conf.Order.ShippingAddress.Address)
	}
}
