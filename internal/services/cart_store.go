package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	domain "github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/platform/observability"
	"github.com/hanko-field/storefront/internal/repositories"
)

var (
	errCartRepositoryRequired = errors.New("cart store: repository is required")
	errCartInventoryRequired  = errors.New("cart store: inventory gate is required")
)

// CartStoreDeps wires the persistence and inventory collaborators of the cart store.
type CartStoreDeps struct {
	Repository       repositories.CartRepository
	Inventory        InventoryGate
	Clock            func() time.Time
	Logger           func(ctx context.Context, event string, fields map[string]any)
	Metrics          *observability.Metrics
	InventoryTimeout time.Duration
}

// CartStore owns the shopper cart. Mutations are applied one at a time, pass
// through ReduceCart and are persisted before they are reported as done.
type CartStore struct {
	repo             repositories.CartRepository
	gate             InventoryGate
	now              func() time.Time
	logger           func(ctx context.Context, event string, fields map[string]any)
	metrics          *observability.Metrics
	inventoryTimeout time.Duration
	life             *storeLifecycle

	mu   sync.RWMutex
	cart Cart
}

// NewCartStore restores the saved cart and returns a ready store. A corrupt
// snapshot is logged and replaced by an empty cart.
func NewCartStore(ctx context.Context, deps CartStoreDeps) (*CartStore, error) {
	if deps.Repository == nil {
		return nil, errCartRepositoryRequired
	}
	if deps.Inventory == nil {
		return nil, errCartInventoryRequired
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	store := &CartStore{
		repo:             deps.Repository,
		gate:             deps.Inventory,
		now:              func() time.Time { return clock().UTC() },
		logger:           logger,
		metrics:          deps.Metrics,
		inventoryTimeout: deps.InventoryTimeout,
		life:             newStoreLifecycle(),
	}

	cart, err := deps.Repository.Load(ctx)
	switch {
	case err == nil:
	case errors.Is(err, repositories.ErrCorruptSnapshot):
		logger(ctx, "cart.snapshot_corrupt", map[string]any{
			"error": translateStorageError(err),
		})
		cart = Cart{}
	default:
		return nil, translateStorageError(err)
	}

	restored := domain.Recalculate(cart)
	if restored.Total != cart.Total || restored.ItemCount != cart.ItemCount {
		logger(ctx, "cart.snapshot_recomputed", map[string]any{
			"storedTotal":     cart.Total,
			"storedItemCount": cart.ItemCount,
			"total":           restored.Total,
			"itemCount":       restored.ItemCount,
		})
	}
	if len(restored.Items) == 0 {
		restored.Items = nil
	}
	store.cart = restored
	return store, nil
}

// Snapshot returns a copy of the current cart.
func (s *CartStore) Snapshot() Cart {
	if s == nil {
		return Cart{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneCart(s.cart)
}

// AddItem adds quantity units of product in size after the inventory gate
// approves the resulting line quantity.
func (s *CartStore) AddItem(ctx context.Context, product Product, size string, quantity int) (Cart, error) {
	cmd := AddItemCommand{Product: product, Size: size, Quantity: quantity}
	if err := validateAddItem(cmd); err != nil {
		return s.Snapshot(), err
	}
	return s.dispatch(ctx, "cart.add_item", cmd, func(ctx context.Context) error {
		target := quantity
		current := s.Snapshot()
		if idx := current.Find(domain.CartItemKey{ProductID: product.ID, Size: size}); idx >= 0 {
			target += current.Items[idx].Quantity
		}
		available, err := s.checkAvailability(ctx, product.ID, size, target)
		if err != nil {
			return err
		}
		if !available {
			return fmt.Errorf("%w: %s size %s", ErrOutOfStock, product.ID, size)
		}
		return nil
	})
}

// RemoveItem drops the (productID, size) line. A missing line is a no-op.
func (s *CartStore) RemoveItem(ctx context.Context, productID, size string) (Cart, error) {
	return s.dispatch(ctx, "cart.remove_item", RemoveItemCommand{ProductID: productID, Size: size}, nil)
}

// UpdateQuantity sets the quantity of an existing line after the inventory gate
// approves the requested quantity. Setting the current quantity is a no-op.
func (s *CartStore) UpdateQuantity(ctx context.Context, productID, size string, quantity int) (Cart, error) {
	if quantity < 1 {
		return s.Snapshot(), invalidField("quantity", "must be at least 1")
	}
	cmd := UpdateQuantityCommand{ProductID: productID, Size: size, Quantity: quantity}
	return s.dispatch(ctx, "cart.update_quantity", cmd, func(ctx context.Context) error {
		available, err := s.checkAvailability(ctx, productID, size, quantity)
		if err != nil {
			return err
		}
		if !available {
			return fmt.Errorf("%w: %s size %s quantity %d", ErrInsufficientStock, productID, size, quantity)
		}
		return nil
	})
}

// Clear empties the cart.
func (s *CartStore) Clear(ctx context.Context) (Cart, error) {
	return s.dispatch(ctx, "cart.clear", ClearCartCommand{}, nil)
}

// ClearIfVersion empties the cart only when it is still at version.
func (s *CartStore) ClearIfVersion(ctx context.Context, version int64) (Cart, error) {
	return s.dispatch(ctx, "cart.clear", ClearCartCommand{}, func(context.Context) error {
		if current := s.Snapshot().Version; current != version {
			return fmt.Errorf("%w: expected version %d, found %d", ErrCartConflict, version, current)
		}
		return nil
	})
}

// Close tears the store down. Pending mutations finish with ErrStoreClosed.
func (s *CartStore) Close() {
	if s == nil {
		return
	}
	s.life.close()
}

// dispatch runs cmd through the single writer slot. guard runs after the
// command is known to change the cart and before it is applied.
func (s *CartStore) dispatch(ctx context.Context, op string, cmd CartCommand, guard func(context.Context) error) (cart Cart, err error) {
	if s == nil {
		return Cart{}, ErrStoreClosed
	}
	ctx, span := observability.StartSpan(ctx, op)
	changed := false
	defer func() {
		span.SetAttributes(attribute.Bool("cart.changed", changed), attribute.Int("cart.item_count", cart.ItemCount))
		endSpan(span, err)
		s.metrics.RecordCartMutation(ctx, op, mutationOutcome(err, changed))
	}()

	release, err := s.life.acquire(ctx)
	if err != nil {
		return s.Snapshot(), err
	}
	defer release()

	current := s.Snapshot()
	if _, willChange, err := ReduceCart(current, cmd); err != nil || !willChange {
		return current, err
	}

	if guard != nil {
		guardCtx, cancel := s.life.bind(ctx)
		guardErr := guard(guardCtx)
		cancel()
		if s.life.closed() {
			s.logger(ctx, "cart.result_discarded", map[string]any{"operation": op})
			return current, ErrStoreClosed
		}
		if guardErr != nil {
			return current, guardErr
		}
	}

	cart, changed, err = s.commit(ctx, op, cmd)
	return cart, err
}

func (s *CartStore) commit(ctx context.Context, op string, cmd CartCommand) (Cart, bool, error) {
	s.mu.Lock()
	prev := s.cart
	next, changed, err := ReduceCart(prev, cmd)
	if err != nil || !changed {
		s.mu.Unlock()
		return cloneCart(prev), false, err
	}
	next.Version = prev.Version + 1
	next.UpdatedAt = s.now()
	s.cart = next
	s.mu.Unlock()

	if err := s.repo.Save(ctx, next); err != nil {
		s.mu.Lock()
		s.cart = prev
		s.mu.Unlock()
		s.logger(ctx, "cart.persist_failed", map[string]any{
			"operation": op,
			"error":     err,
		})
		return cloneCart(prev), false, translateStorageError(err)
	}
	return cloneCart(next), true, nil
}

func (s *CartStore) checkAvailability(ctx context.Context, productID, size string, quantity int) (bool, error) {
	callCtx := ctx
	if s.inventoryTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.inventoryTimeout)
		defer cancel()
	}
	started := time.Now()
	available, err := s.gate.CheckAvailability(callCtx, productID, size, quantity)
	s.metrics.RecordCollaboratorLatency(ctx, "inventory", time.Since(started))
	if err != nil {
		return false, translateCallError("inventory", err)
	}
	return available, nil
}

var _ CartSource = (*CartStore)(nil)
