package services

import (
	"context"
	"strings"
	"sync"
	"time"
)

// DefaultInventoryLatency is the simulated stock lookup delay.
const DefaultInventoryLatency = 500 * time.Millisecond

// SimulatedInventoryGate approves every request after a fixed delay.
type SimulatedInventoryGate struct {
	Latency time.Duration
}

// NewSimulatedInventoryGate returns a gate with the given latency. Negative values mean no delay.
func NewSimulatedInventoryGate(latency time.Duration) *SimulatedInventoryGate {
	if latency < 0 {
		latency = 0
	}
	return &SimulatedInventoryGate{Latency: latency}
}

// CheckAvailability implements InventoryGate.
func (g *SimulatedInventoryGate) CheckAvailability(ctx context.Context, productID, size string, quantity int) (bool, error) {
	var latency time.Duration
	if g != nil {
		latency = g.Latency
	}
	if err := sleepContext(ctx, latency); err != nil {
		return false, err
	}
	return true, nil
}

// StockLevelGate answers from a stock table keyed by "productID/size". Entries
// absent from the table are unlimited unless Strict is set.
type StockLevelGate struct {
	latency time.Duration
	strict  bool

	mu     sync.RWMutex
	levels map[string]int
}

// StockLevelOption customises a StockLevelGate.
type StockLevelOption func(*StockLevelGate)

// WithStockLatency delays every answer.
func WithStockLatency(latency time.Duration) StockLevelOption {
	return func(g *StockLevelGate) {
		if latency > 0 {
			g.latency = latency
		}
	}
}

// WithStrictStock refuses products missing from the table.
func WithStrictStock() StockLevelOption {
	return func(g *StockLevelGate) { g.strict = true }
}

// NewStockLevelGate copies levels into a new gate.
func NewStockLevelGate(levels map[string]int, opts ...StockLevelOption) *StockLevelGate {
	gate := &StockLevelGate{levels: make(map[string]int, len(levels))}
	for key, qty := range levels {
		gate.levels[strings.TrimSpace(key)] = qty
	}
	for _, opt := range opts {
		opt(gate)
	}
	return gate
}

// StockKey builds the table key for a product size.
func StockKey(productID, size string) string {
	return productID + "/" + size
}

// SetLevel replaces the stock of a product size.
func (g *StockLevelGate) SetLevel(productID, size string, quantity int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.levels[StockKey(productID, size)] = quantity
}

// CheckAvailability implements InventoryGate.
func (g *StockLevelGate) CheckAvailability(ctx context.Context, productID, size string, quantity int) (bool, error) {
	if err := sleepContext(ctx, g.latency); err != nil {
		return false, err
	}
	g.mu.RLock()
	level, ok := g.levels[StockKey(productID, size)]
	g.mu.RUnlock()
	if !ok {
		return !g.strict, nil
	}
	return quantity <= level, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
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

var (
	_ InventoryGate = (*SimulatedInventoryGate)(nil)
	_ InventoryGate = (*StockLevelGate)(nil)
)
