package services

import (
	"context"

	domain "github.com/hanko-field/storefront/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Product         = domain.Product
	Cart            = domain.Cart
	CartItem        = domain.CartItem
	CartItemKey     = domain.CartItemKey
	Wishlist        = domain.Wishlist
	User            = domain.User
	ProfileDetails  = domain.ProfileDetails
	CheckoutForm    = domain.CheckoutForm
	ShippingDetails = domain.ShippingDetails
	Order           = domain.Order
	OrderStatus     = domain.OrderStatus
)

// InventoryGate answers whether a cart line of a product size may hold quantity
// units. quantity is always the line total after the mutation, never the increment.
// Every quantity-changing cart mutation consults it first.
type InventoryGate interface {
	CheckAvailability(ctx context.Context, productID, size string, quantity int) (bool, error)
}

// Authenticator verifies shopper credentials and returns the signed-in user.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string, profile *ProfileDetails) (User, error)
}

// SessionReader exposes the active session to stores and flows that require one.
type SessionReader interface {
	Require() (User, error)
}

// CartSource is the part of the cart store the checkout flow borrows: a read
// snapshot and a clear guarded by the snapshot version.
type CartSource interface {
	Snapshot() Cart
	ClearIfVersion(ctx context.Context, version int64) (Cart, error)
}
