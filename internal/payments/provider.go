package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status enumerates the normalised verification outcomes shared across providers.
type Status string

const (
	// StatusSucceeded indicates the provider accepted the payment details.
	StatusSucceeded Status = "succeeded"
	// StatusDeclined indicates the provider refused the payment.
	StatusDeclined Status = "declined"
)

// Method mirrors the checkout payment discriminator.
type Method string

const (
	MethodCard Method = "card"
	MethodUPI  Method = "upi"
)

var (
	// ErrUnsupportedProvider is returned when the manager cannot locate a provider.
	ErrUnsupportedProvider = errors.New("payments: unsupported provider")
	// ErrDeclined is returned when a provider refuses the payment.
	ErrDeclined = errors.New("payments: payment declined")
)

// DeclineError carries the provider supplied reason for a refusal.
type DeclineError struct {
	Provider string
	Reason   string
}

func (e *DeclineError) Error() string {
	if e == nil {
		return ErrDeclined.Error()
	}
	if strings.TrimSpace(e.Reason) == "" {
		return fmt.Sprintf("payments: %s declined the payment", e.Provider)
	}
	return fmt.Sprintf("payments: %s declined the payment: %s", e.Provider, e.Reason)
}

// Is matches ErrDeclined.
func (e *DeclineError) Is(target error) bool {
	return target == ErrDeclined
}

// CardInput carries raw card fields as typed by the shopper.
type CardInput struct {
	Number string
	Expiry string
	CVV    string
}

// VerifyRequest captures the payload required to verify a payment.
type VerifyRequest struct {
	Method         Method
	Amount         int64
	Currency       string
	CustomerID     string
	Card           *CardInput
	UPIID          string
	IdempotencyKey string
	Metadata       map[string]string
}

// Verification is the provider response for an accepted payment.
type Verification struct {
	Provider   string
	Reference  string
	Status     Status
	Amount     int64
	Currency   string
	Brand      string
	Last4      string
	UPIHandle  string
	VerifiedAt time.Time
}

// Provider defines the contract for payment adapters to implement.
type Provider interface {
	Verify(ctx context.Context, req VerifyRequest) (Verification, error)
}

// Gateway is the payment verification surface used by checkout.
type Gateway interface {
	Verify(ctx context.Context, paymentCtx PaymentContext, req VerifyRequest) (Verification, error)
}

// Manager coordinates provider selection and exposes the aggregated interface.
type Manager struct {
	providers       map[string]Provider
	defaultProvider string
	currencyRoutes  map[string]string
	methodRoutes    map[Method]string
}

// ManagerOption configures optional behaviour when building a Manager.
type ManagerOption func(*Manager)

// WithDefaultProvider overrides the provider used when no route matches.
func WithDefaultProvider(provider string) ManagerOption {
	return func(m *Manager) {
		m.defaultProvider = provider
	}
}

// WithCurrencyRoutes configures static currency to provider mappings.
func WithCurrencyRoutes(routes map[string]string) ManagerOption {
	return func(m *Manager) {
		if len(routes) == 0 {
			return
		}
		if m.currencyRoutes == nil {
			m.currencyRoutes = make(map[string]string, len(routes))
		}
		for k, v := range routes {
			m.currencyRoutes[strings.ToUpper(strings.TrimSpace(k))] = strings.TrimSpace(v)
		}
	}
}

// WithMethodRoutes maps payment methods to providers. Method routes win over currency routes.
func WithMethodRoutes(routes map[Method]string) ManagerOption {
	return func(m *Manager) {
		if len(routes) == 0 {
			return
		}
		if m.methodRoutes == nil {
			m.methodRoutes = make(map[Method]string, len(routes))
		}
		for k, v := range routes {
			m.methodRoutes[Method(strings.ToLower(strings.TrimSpace(string(k))))] = strings.TrimSpace(v)
		}
	}
}

// NewManager constructs a Manager over the supplied providers.
func NewManager(providers map[string]Provider, opts ...ManagerOption) (*Manager, error) {
	if len(providers) == 0 {
		return nil, errors.New("payments: at least one provider is required")
	}
	copyMap := make(map[string]Provider, len(providers))
	for k, v := range providers {
		key := strings.TrimSpace(strings.ToLower(k))
		if key == "" || v == nil {
			return nil, fmt.Errorf("payments: invalid provider registration for key %q", k)
		}
		copyMap[key] = v
	}
	m := &Manager{
		providers: copyMap,
	}
	if _, ok := copyMap[SimulatedProviderName]; ok {
		m.defaultProvider = SimulatedProviderName
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// PaymentContext defines the hints available when selecting a provider.
type PaymentContext struct {
	PreferredProvider string
	Method            Method
	Currency          string
}

func (m *Manager) resolveProvider(ctx PaymentContext) (string, Provider, error) {
	if m == nil {
		return "", nil, errors.New("payments: manager is nil")
	}
	if len(m.providers) == 0 {
		return "", nil, errors.New("payments: no providers registered")
	}
	if provider := strings.TrimSpace(strings.ToLower(ctx.PreferredProvider)); provider != "" {
		if p, ok := m.providers[provider]; ok {
			return provider, p, nil
		}
	}
	if ctx.Method != "" && m.methodRoutes != nil {
		if providerKey, ok := m.methodRoutes[ctx.Method]; ok {
			provider := strings.TrimSpace(strings.ToLower(providerKey))
			if p, ok := m.providers[provider]; ok {
				return provider, p, nil
			}
		}
	}
	currency := strings.ToUpper(strings.TrimSpace(ctx.Currency))
	if currency != "" && m.currencyRoutes != nil {
		if providerKey, ok := m.currencyRoutes[currency]; ok {
			provider := strings.TrimSpace(strings.ToLower(providerKey))
			if p, ok := m.providers[provider]; ok {
				return provider, p, nil
			}
		}
	}
	if def := strings.TrimSpace(strings.ToLower(m.defaultProvider)); def != "" {
		if p, ok := m.providers[def]; ok {
			return def, p, nil
		}
	}
	if len(m.providers) == 1 {
		for key, p := range m.providers {
			return key, p, nil
		}
	}
	return "", nil, ErrUnsupportedProvider
}

// Verify delegates to the resolved provider.
func (m *Manager) Verify(ctx context.Context, paymentCtx PaymentContext, req VerifyRequest) (Verification, error) {
	if paymentCtx.Method == "" {
		paymentCtx.Method = req.Method
	}
	if paymentCtx.Currency == "" {
		paymentCtx.Currency = req.Currency
	}
	key, provider, err := m.resolveProvider(paymentCtx)
	if err != nil {
		return Verification{}, err
	}
	result, err := provider.Verify(ctx, req)
	if err != nil {
		return Verification{}, err
	}
	result.Provider = key
	return result, nil
}

var _ Gateway = (*Manager)(nil)
