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

// WishlistRepository stores the wishlist snapshot as JSON under repositories.KeyWishlist.
type WishlistRepository struct {
	store repositories.KeyValueStore
	key   string
}

// NewWishlistRepository constructs a wishlist repository over the key-value store.
func NewWishlistRepository(store repositories.KeyValueStore) (*WishlistRepository, error) {
	if store == nil {
		return nil, errors.New("wishlist repository requires key-value store")
	}
	return &WishlistRepository{store: store, key: repositories.KeyWishlist}, nil
}

// Load implements repositories.WishlistRepository.
func (r *WishlistRepository) Load(ctx context.Context) (domain.Wishlist, error) {
	raw, found, err := r.store.Get(ctx, r.key)
	if err != nil {
		return domain.Wishlist{}, repositories.WrapError("wishlist.load", err)
	}
	if !found || strings.TrimSpace(raw) == "" {
		return domain.Wishlist{Items: []domain.Product{}}, nil
	}

	var doc wishlistDocument
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return domain.Wishlist{}, fmt.Errorf("%w: wishlist: %v", repositories.ErrCorruptSnapshot, err)
	}
	wishlist := decodeWishlist(doc)
	seen := make(map[string]struct{}, len(wishlist.Items))
	for idx, product := range wishlist.Items {
		if strings.TrimSpace(product.ID) == "" {
			return domain.Wishlist{}, fmt.Errorf("%w: wishlist: item %d has no id", repositories.ErrCorruptSnapshot, idx)
		}
		if _, dup := seen[product.ID]; dup {
			return domain.Wishlist{}, fmt.Errorf("%w: wishlist: duplicate product %s", repositories.ErrCorruptSnapshot, product.ID)
		}
		seen[product.ID] = struct{}{}
	}
	return wishlist, nil
}

// Save implements repositories.WishlistRepository.
func (r *WishlistRepository) Save(ctx context.Context, wishlist domain.Wishlist) error {
	payload, err := json.Marshal(encodeWishlist(wishlist))
	if err != nil {
		return fmt.Errorf("wishlist repository: encode: %w", err)
	}
	if err := r.store.Set(ctx, r.key, string(payload)); err != nil {
		return repositories.WrapError("wishlist.save", err)
	}
	return nil
}

var _ repositories.WishlistRepository = (*WishlistRepository)(nil)
