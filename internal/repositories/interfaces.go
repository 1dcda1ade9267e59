package repositories

import (
	"context"

	domain "github.com/hanko-field/storefront/internal/domain"
)

// Keys used by the storefront inside the key-value store.
const (
	KeyCart     = "cart"
	KeyWishlist = "wishlist"
	KeyOrders   = "orders"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	KeyValues() KeyValueStore
	Carts() CartRepository
	Wishlists() WishlistRepository
	Orders() OrderRepository
	Catalog() CatalogRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// KeyValueStore is the durable string store behind carts, wishlists and orders.
// Get reports found=false for a missing key without returning an error.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// CartRepository persists the single shopper cart snapshot.
// Load returns an empty cart when nothing was saved and ErrCorruptSnapshot when the
// stored payload cannot be decoded.
type CartRepository interface {
	Load(ctx context.Context) (domain.Cart, error)
	Save(ctx context.Context, cart domain.Cart) error
}

// WishlistRepository persists the wishlist snapshot with the same contract as CartRepository.
type WishlistRepository interface {
	Load(ctx context.Context) (domain.Wishlist, error)
	Save(ctx context.Context, wishlist domain.Wishlist) error
}

// OrderRepository records orders created at checkout. An undecodable history is
// treated as empty rather than reported.
type OrderRepository interface {
	// Insert stores a new order. Returns a RepositoryError with IsConflict when the id already exists.
	Insert(ctx context.Context, order domain.Order) error
	// Delete removes an order. Missing orders are reported with IsNotFound.
	Delete(ctx context.Context, orderID string) error
	Get(ctx context.Context, orderID string) (domain.Order, error)
	// ListByUser returns the user's orders newest first.
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
}

// CatalogRepository is the read-only product lookup collaborator.
type CatalogRepository interface {
	GetByID(ctx context.Context, productID string) (domain.Product, error)
	List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
}
