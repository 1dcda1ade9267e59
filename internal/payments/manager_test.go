package payments

import (
	"context"
	"errors"
	"testing"
)

type fakeProvider struct {
	calls  int
	result Verification
	err    error
}

func (f *fakeProvider) Verify(ctx context.Context, req VerifyRequest) (Verification, error) {
	f.calls++
	return f.result, f.err
}

func TestManagerVerifyUsesPreferredProvider(t *testing.T) {
	ctx := context.Background()
	simulated := &fakeProvider{result: Verification{Reference: "pay_sim"}}
	upiBank := &fakeProvider{result: Verification{Reference: "pay_upi"}}

	mgr, err := NewManager(map[string]Provider{
		SimulatedProviderName: simulated,
		"upibank":             upiBank,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	result, err := mgr.Verify(ctx, PaymentContext{PreferredProvider: "UPIBank"}, VerifyRequest{Method: MethodCard, Currency: "USD"})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result.Provider != "upibank" {
		t.Fatalf("expected provider 'upibank', got %q", result.Provider)
	}
	if upiBank.calls != 1 || simulated.calls != 0 {
		t.Fatalf("expected only upibank to be called, got upibank=%d simulated=%d", upiBank.calls, simulated.calls)
	}
}

func TestManagerRoutesByMethodBeforeCurrency(t *testing.T) {
	ctx := context.Background()
	cards := &fakeProvider{}
	upi := &fakeProvider{}
	inr := &fakeProvider{}

	mgr, err := NewManager(
		map[string]Provider{"cards": cards, "upi": upi, "inr": inr},
		WithMethodRoutes(map[Method]string{MethodUPI: "upi"}),
		WithCurrencyRoutes(map[string]string{"inr": "inr"}),
		WithDefaultProvider("cards"),
	)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	if _, err := mgr.Verify(ctx, PaymentContext{}, VerifyRequest{Method: MethodUPI, Currency: "INR"}); err != nil {
		t.Fatalf("verify upi: %v", err)
	}
	if upi.calls != 1 || inr.calls != 0 {
		t.Fatalf("expected method route to win, got upi=%d inr=%d", upi.calls, inr.calls)
	}

	if _, err := mgr.Verify(ctx, PaymentContext{}, VerifyRequest{Method: MethodCard, Currency: "INR"}); err != nil {
		t.Fatalf("verify card: %v", err)
	}
	if inr.calls != 1 {
		t.Fatalf("expected currency route for card payment, got %d", inr.calls)
	}

	if _, err := mgr.Verify(ctx, PaymentContext{}, VerifyRequest{Method: MethodCard, Currency: "USD"}); err != nil {
		t.Fatalf("verify default: %v", err)
	}
	if cards.calls != 1 {
		t.Fatalf("expected default provider, got %d", cards.calls)
	}
}

func TestManagerFallsBackToSingleProvider(t *testing.T) {
	ctx := context.Background()
	only := &fakeProvider{}

	mgr, err := NewManager(map[string]Provider{"only": only})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	result, err := mgr.Verify(ctx, PaymentContext{}, VerifyRequest{Method: MethodCard})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result.Provider != "only" {
		t.Fatalf("unexpected provider: %q", result.Provider)
	}
}

func TestManagerPropagatesDecline(t *testing.T) {
	ctx := context.Background()
	declining := &fakeProvider{err: &DeclineError{Provider: "simulated", Reason: "insufficient funds"}}

	mgr, err := NewManager(map[string]Provider{SimulatedProviderName: declining})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	_, err = mgr.Verify(ctx, PaymentContext{}, VerifyRequest{Method: MethodCard})
	if !errors.Is(err, ErrDeclined) {
		t.Fatalf("expected ErrDeclined, got %v", err)
	}
	var decline *DeclineError
	if !errors.As(err, &decline) || decline.Reason != "insufficient funds" {
		t.Fatalf("expected decline reason, got %v", err)
	}
}

func TestManagerUnsupportedProvider(t *testing.T) {
	ctx := context.Background()
	mgr, err := NewManager(map[string]Provider{"a": &fakeProvider{}, "b": &fakeProvider{}}, WithDefaultProvider(""))
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	_, err = mgr.Verify(ctx, PaymentContext{PreferredProvider: "unknown"}, VerifyRequest{Currency: "USD"})
	if !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}
}

func TestNewManagerValidatesProviders(t *testing.T) {
	if _, err := NewManager(map[string]Provider{"bad": nil}); err == nil {
		t.Fatalf("expected error for nil provider")
	}
	if _, err := NewManager(nil); err == nil {
		t.Fatalf("expected error when providers empty")
	}
}
