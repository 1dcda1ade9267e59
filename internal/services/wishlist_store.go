package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/hanko-field/storefront/internal/platform/observability"
	"github.com/hanko-field/storefront/internal/repositories"
)

var errWishlistRepositoryRequired = errors.New("wishlist store: repository is required")

// WishlistStoreDeps wires the wishlist store. When Session is set, mutations
// require a signed-in shopper.
type WishlistStoreDeps struct {
	Repository repositories.WishlistRepository
	Session    SessionReader
	Clock      func() time.Time
	Logger     func(ctx context.Context, event string, fields map[string]any)
	Metrics    *observability.Metrics
}

// WishlistStore owns the saved products list.
type WishlistStore struct {
	repo    repositories.WishlistRepository
	session SessionReader
	now     func() time.Time
	logger  func(ctx context.Context, event string, fields map[string]any)
	metrics *observability.Metrics
	life    *storeLifecycle

	mu       sync.RWMutex
	wishlist Wishlist
}

// NewWishlistStore restores the saved wishlist. A corrupt snapshot is logged and
// replaced by an empty wishlist.
func NewWishlistStore(ctx context.Context, deps WishlistStoreDeps) (*WishlistStore, error) {
	if deps.Repository == nil {
		return nil, errWishlistRepositoryRequired
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	wishlist, err := deps.Repository.Load(ctx)
	switch {
	case err == nil:
	case errors.Is(err, repositories.ErrCorruptSnapshot):
		logger(ctx, "wishlist.snapshot_corrupt", map[string]any{
			"error": translateStorageError(err),
		})
		wishlist = Wishlist{}
	default:
		return nil, translateStorageError(err)
	}
	if len(wishlist.Items) == 0 {
		wishlist.Items = nil
	}

	return &WishlistStore{
		repo:     deps.Repository,
		session:  deps.Session,
		now:      func() time.Time { return clock().UTC() },
		logger:   logger,
		metrics:  deps.Metrics,
		life:     newStoreLifecycle(),
		wishlist: wishlist,
	}, nil
}

// Snapshot returns a copy of the wishlist.
func (s *WishlistStore) Snapshot() Wishlist {
	if s == nil {
		return Wishlist{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneWishlist(s.wishlist)
}

// Contains reports whether the product is saved.
func (s *WishlistStore) Contains(productID string) bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.wishlist.Contains(productID)
}

// Add saves product. Saving an already saved product is a no-op.
func (s *WishlistStore) Add(ctx context.Context, product Product) (Wishlist, error) {
	if strings.TrimSpace(product.ID) == "" {
		return s.Snapshot(), invalidField("productId", "is required")
	}
	return s.apply(ctx, "wishlist.add", func(current Wishlist) (Wishlist, bool) {
		if current.Contains(product.ID) {
			return current, false
		}
		next := cloneWishlist(current)
		next.Items = append(next.Items, cloneProduct(product))
		return next, true
	})
}

// Remove drops the product. A missing product is a no-op.
func (s *WishlistStore) Remove(ctx context.Context, productID string) (Wishlist, error) {
	return s.apply(ctx, "wishlist.remove", func(current Wishlist) (Wishlist, bool) {
		for idx, item := range current.Items {
			if item.ID != productID {
				continue
			}
			next := current
			next.Items = make([]Product, 0, len(current.Items)-1)
			next.Items = append(next.Items, current.Items[:idx]...)
			next.Items = append(next.Items, current.Items[idx+1:]...)
			if len(next.Items) == 0 {
				next.Items = nil
			}
			return next, true
		}
		return current, false
	})
}

// Close tears the store down.
func (s *WishlistStore) Close() {
	if s == nil {
		return
	}
	s.life.close()
}

func (s *WishlistStore) apply(ctx context.Context, op string, reduce func(Wishlist) (Wishlist, bool)) (result Wishlist, err error) {
	if s == nil {
		return Wishlist{}, ErrStoreClosed
	}
	ctx, span := observability.StartSpan(ctx, op)
	changed := false
	defer func() {
		span.SetAttributes(attribute.Bool("wishlist.changed", changed), attribute.Int("wishlist.size", len(result.Items)))
		endSpan(span, err)
		s.metrics.RecordCartMutation(ctx, op, mutationOutcome(err, changed))
	}()

	if s.session != nil {
		if _, err := s.session.Require(); err != nil {
			return s.Snapshot(), err
		}
	}

	release, err := s.life.acquire(ctx)
	if err != nil {
		return s.Snapshot(), err
	}
	defer release()

	s.mu.Lock()
	prev := s.wishlist
	next, willChange := reduce(prev)
	if !willChange {
		s.mu.Unlock()
		return cloneWishlist(prev), nil
	}
	next.UpdatedAt = s.now()
	s.wishlist = next
	s.mu.Unlock()

	if err := s.repo.Save(ctx, next); err != nil {
		s.mu.Lock()
		s.wishlist = prev
		s.mu.Unlock()
		s.logger(ctx, "wishlist.persist_failed", map[string]any{
			"operation": op,
			"error":     err,
		})
		return cloneWishlist(prev), translateStorageError(err)
	}
	changed = true
	return cloneWishlist(next), nil
}

func cloneWishlist(wishlist Wishlist) Wishlist {
	out := wishlist
	if len(wishlist.Items) > 0 {
		out.Items = make([]Product, len(wishlist.Items))
		copy(out.Items, wishlist.Items)
	}
	return out
}
