package payments

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// SimulatedProviderName is the registration key of the simulated provider.
const SimulatedProviderName = "simulated"

// DefaultSimulatedLatency matches the delay of the hosted storefront mock.
const DefaultSimulatedLatency = 2 * time.Second

// DeclineRule decides whether a well-formed request is refused and why.
type DeclineRule func(req VerifyRequest) (reason string, declined bool)

// SimulatedProviderConfig wires the simulated provider.
type SimulatedProviderConfig struct {
	Latency     time.Duration
	Clock       func() time.Time
	IDGenerator func() string
	Decline     DeclineRule
}

// SimulatedProvider waits for the configured latency, re-checks the payment
// details and approves anything well formed unless a decline rule matches.
type SimulatedProvider struct {
	latency time.Duration
	clock   func() time.Time
	newID   func() string
	decline DeclineRule
}

// NewSimulatedProvider constructs the provider, filling defaults.
func NewSimulatedProvider(cfg SimulatedProviderConfig) *SimulatedProvider {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := cfg.IDGenerator
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	latency := cfg.Latency
	if latency < 0 {
		latency = 0
	}
	return &SimulatedProvider{
		latency: latency,
		clock:   clock,
		newID:   newID,
		decline: cfg.Decline,
	}
}

// Verify implements Provider.
func (p *SimulatedProvider) Verify(ctx context.Context, req VerifyRequest) (Verification, error) {
	if err := wait(ctx, p.latency); err != nil {
		return Verification{}, err
	}

	now := p.clock().UTC()
	if err := ValidateRequest(req, now); err != nil {
		return Verification{}, &DeclineError{Provider: SimulatedProviderName, Reason: err.Error()}
	}
	if p.decline != nil {
		if reason, declined := p.decline(req); declined {
			return Verification{}, &DeclineError{Provider: SimulatedProviderName, Reason: reason}
		}
	}

	result := Verification{
		Reference:  "pay_" + strings.ToLower(p.newID()),
		Status:     StatusSucceeded,
		Amount:     req.Amount,
		Currency:   strings.ToUpper(strings.TrimSpace(req.Currency)),
		VerifiedAt: now,
	}
	switch req.Method {
	case MethodCard:
		result.Brand = string(CardBrand(req.Card.Number))
		result.Last4 = Last4(req.Card.Number)
	case MethodUPI:
		result.UPIHandle = UPIHandle(req.UPIID)
	}
	return result, nil
}

// DeclineCardsEndingIn refuses card payments whose last four digits are listed.
func DeclineCardsEndingIn(last4 ...string) DeclineRule {
	blocked := make(map[string]struct{}, len(last4))
	for _, value := range last4 {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			blocked[trimmed] = struct{}{}
		}
	}
	return func(req VerifyRequest) (string, bool) {
		if req.Method != MethodCard || req.Card == nil {
			return "", false
		}
		if _, ok := blocked[Last4(req.Card.Number)]; ok {
			return "card refused by issuer", true
		}
		return "", false
	}
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
