package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hanko-field/storefront/internal/payments"
	"github.com/hanko-field/storefront/internal/repositories"
	"github.com/hanko-field/storefront/internal/repositories/kv"
	"github.com/hanko-field/storefront/internal/repositories/memory"
)

var testNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func testClock() time.Time { return testNow }

func testProduct(id string, price int64, sizes ...string) Product {
	if len(sizes) == 0 {
		sizes = []string{"S", "M", "L"}
	}
	return Product{
		ID:       id,
		Name:     "Product " + id,
		Price:    price,
		Image:    "/images/" + id + ".jpg",
		Color:    "Black",
		Sizes:    sizes,
		Category: "Topwear",
	}
}

type recordedEvent struct {
	name   string
	fields map[string]any
}

type eventRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *eventRecorder) log(_ context.Context, event string, fields map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{name: event, fields: fields})
}

func (r *eventRecorder) has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.name == name {
			return true
		}
	}
	return false
}

// flakyKV fails writes on demand.
type flakyKV struct {
	repositories.KeyValueStore
	failSet atomic.Bool
}

func (f *flakyKV) Set(ctx context.Context, key string, value string) error {
	if f.failSet.Load() {
		return errors.New("disk full")
	}
	return f.KeyValueStore.Set(ctx, key, value)
}

type stubGate struct {
	mu       sync.Mutex
	calls    []gateCall
	checkFn  func(ctx context.Context, productID, size string, quantity int) (bool, error)
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

type gateCall struct {
	productID string
	size      string
	quantity  int
}

func (g *stubGate) CheckAvailability(ctx context.Context, productID, size string, quantity int) (bool, error) {
	current := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		seen := g.maxSeen.Load()
		if current <= seen || g.maxSeen.CompareAndSwap(seen, current) {
			break
		}
	}
	g.mu.Lock()
	g.calls = append(g.calls, gateCall{productID: productID, size: size, quantity: quantity})
	g.mu.Unlock()
	if g.checkFn != nil {
		return g.checkFn(ctx, productID, size, quantity)
	}
	return true, nil
}

func (g *stubGate) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type stubSession struct {
	user *User
}

func (s *stubSession) Require() (User, error) {
	if s == nil || s.user == nil {
		return User{}, ErrNotAuthenticated
	}
	return *s.user, nil
}

type stubGateway struct {
	mu       sync.Mutex
	calls    int
	requests []payments.VerifyRequest
	verifyFn func(ctx context.Context, req payments.VerifyRequest) (payments.Verification, error)
}

func (g *stubGateway) Verify(ctx context.Context, _ payments.PaymentContext, req payments.VerifyRequest) (payments.Verification, error) {
	g.mu.Lock()
	g.calls++
	g.requests = append(g.requests, req)
	g.mu.Unlock()
	if g.verifyFn != nil {
		return g.verifyFn(ctx, req)
	}
	return payments.Verification{
		Reference: "pay_test",
		Status:    payments.StatusSucceeded,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Last4:     payments.Last4(cardNumber(req)),
	}, nil
}

func (g *stubGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func cardNumber(req payments.VerifyRequest) string {
	if req.Card == nil {
		return ""
	}
	return req.Card.Number
}

type cartFixture struct {
	kv     *flakyKV
	repo   *kv.CartRepository
	gate   *stubGate
	events *eventRecorder
	store  *CartStore
}

func newCartFixture(t *testing.T) *cartFixture {
	t.Helper()
	backend := &flakyKV{KeyValueStore: memory.NewKVStore()}
	return newCartFixtureWithKV(t, backend)
}

func newCartFixtureWithKV(t *testing.T, backend *flakyKV) *cartFixture {
	t.Helper()
	repo, err := kv.NewCartRepository(backend)
	if err != nil {
		t.Fatalf("unexpected error creating cart repository: %v", err)
	}
	fx := &cartFixture{kv: backend, repo: repo, gate: &stubGate{}, events: &eventRecorder{}}
	store, err := NewCartStore(context.Background(), CartStoreDeps{
		Repository: repo,
		Inventory:  fx.gate,
		Clock:      testClock,
		Logger:     fx.events.log,
	})
	if err != nil {
		t.Fatalf("unexpected error creating cart store: %v", err)
	}
	t.Cleanup(store.Close)
	fx.store = store
	return fx
}

func newOrderRepository(t *testing.T) *kv.OrderRepository {
	t.Helper()
	repo, err := kv.NewOrderRepository(memory.NewKVStore())
	if err != nil {
		t.Fatalf("unexpected error creating order repository: %v", err)
	}
	return repo
}
