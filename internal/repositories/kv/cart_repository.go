package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	domain "github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/repositories"
)

// CartRepository stores the cart snapshot as JSON under repositories.KeyCart.
type CartRepository struct {
	store repositories.KeyValueStore
	key   string
}

// NewCartRepository constructs a cart repository over the key-value store.
func NewCartRepository(store repositories.KeyValueStore) (*CartRepository, error) {
	if store == nil {
		return nil, errors.New("cart repository requires key-value store")
	}
	return &CartRepository{store: store, key: repositories.KeyCart}, nil
}

// Load implements repositories.CartRepository.
func (r *CartRepository) Load(ctx context.Context) (domain.Cart, error) {
	raw, found, err := r.store.Get(ctx, r.key)
	if err != nil {
		return domain.Cart{}, repositories.WrapError("cart.load", err)
	}
	if !found || strings.TrimSpace(raw) == "" {
		return domain.Cart{Items: []domain.CartItem{}}, nil
	}

	var doc cartDocument
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return domain.Cart{}, fmt.Errorf("%w: cart: %v", repositories.ErrCorruptSnapshot, err)
	}
	cart := decodeCart(doc)
	if err := validateCart(cart); err != nil {
		return domain.Cart{}, fmt.Errorf("%w: cart: %v", repositories.ErrCorruptSnapshot, err)
	}
	return cart, nil
}

// Save implements repositories.CartRepository.
func (r *CartRepository) Save(ctx context.Context, cart domain.Cart) error {
	payload, err := json.Marshal(encodeCart(cart))
	if err != nil {
		return fmt.Errorf("cart repository: encode: %w", err)
	}
	if err := r.store.Set(ctx, r.key, string(payload)); err != nil {
		return repositories.WrapError("cart.save", err)
	}
	return nil
}

func validateCart(cart domain.Cart) error {
	seen := make(map[domain.CartItemKey]struct{}, len(cart.Items))
	for idx, item := range cart.Items {
		if strings.TrimSpace(item.Product.ID) == "" {
			return fmt.Errorf("item %d has no product id", idx)
		}
		if item.Quantity < 1 {
			return fmt.Errorf("item %d has quantity %d", idx, item.Quantity)
		}
		if item.Product.Price < 0 {
			return fmt.Errorf("item %d has negative price", idx)
		}
		if !item.Product.HasSize(item.SelectedSize) {
			return fmt.Errorf("item %d size %q is not offered", idx, item.SelectedSize)
		}
		key := item.Key()
		if _, dup := seen[key]; dup {
			return fmt.Errorf("item %d duplicates line %s/%s", idx, key.ProductID, key.Size)
		}
		seen[key] = struct{}{}
	}
	return nil
}

var _ repositories.CartRepository = (*CartRepository)(nil)
