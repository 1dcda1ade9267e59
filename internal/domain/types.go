package domain

import (
	"time"
)

// Product is an immutable catalog entry supplied by the catalog collaborator.
// Price is held in minor units of the storefront currency.
type Product struct {
	ID              string
	Name            string
	Price           int64
	Image           string
	Color           string
	Sizes           []string
	Category        string
	Description     string
	DescriptionHTML string
	Popularity      float64
	CreatedAt       time.Time
	LimitedEdition  bool
}

// HasSize reports whether the product is offered in the given size.
func (p Product) HasSize(size string) bool {
	for _, candidate := range p.Sizes {
		if candidate == size {
			return true
		}
	}
	return false
}

// CartItemKey identifies a cart line. Two lines never share the same key.
type CartItemKey struct {
	ProductID string
	Size      string
}

// CartItem is a product snapshot plus the selected size and quantity.
type CartItem struct {
	Product      Product
	Quantity     int
	SelectedSize string
}

// Key returns the identity of the line.
func (i CartItem) Key() CartItemKey {
	return CartItemKey{ProductID: i.Product.ID, Size: i.SelectedSize}
}

// Cart holds the ordered cart lines and their derived aggregates.
// Version increases on every applied mutation.
type Cart struct {
	Items     []CartItem
	Total     int64
	ItemCount int
	Version   int64
	UpdatedAt time.Time
}

// Find returns the index of the line matching key, or -1.
func (c Cart) Find(key CartItemKey) int {
	for idx, item := range c.Items {
		if item.Key() == key {
			return idx
		}
	}
	return -1
}

// Wishlist holds products unique by id in insertion order.
type Wishlist struct {
	Items     []Product
	UpdatedAt time.Time
}

// Contains reports whether the product is saved in the wishlist.
func (w Wishlist) Contains(productID string) bool {
	for _, item := range w.Items {
		if item.ID == productID {
			return true
		}
	}
	return false
}

// User describes the signed-in shopper.
type User struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	Phone     string
}

// ProfileDetails carries optional profile fields supplied at sign-up.
type ProfileDetails struct {
	FirstName string
	LastName  string
	Phone     string
}

// PaymentMethod discriminates the payment detail branch of a checkout form.
type PaymentMethod string

const (
	// PaymentMethodCard pays with a 16 digit card.
	PaymentMethodCard PaymentMethod = "card"
	// PaymentMethodUPI pays with a UPI virtual payment address.
	PaymentMethodUPI PaymentMethod = "upi"
)

// ShippingDetails are the contact and delivery fields of the checkout form.
type ShippingDetails struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Address   string
	City      string
	State     string
	ZipCode   string
}

// CardDetails carries raw card input.
type CardDetails struct {
	Number string
	Expiry string
	CVV    string
}

// UPIDetails carries the UPI id.
type UPIDetails struct {
	ID string
}

// CheckoutForm is the user submitted checkout payload. Exactly one of Card or
// UPI is expected, matching PaymentMethod.
type CheckoutForm struct {
	Shipping      ShippingDetails
	PaymentMethod PaymentMethod
	Card          *CardDetails
	UPI           *UPIDetails
}

// OrderStatus enumerates order lifecycle states.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// OrderItem snapshots a cart line at checkout time.
type OrderItem struct {
	ProductID string
	Name      string
	Price     int64
	Quantity  int
	Size      string
	Image     string
}

// ShippingAddress is the delivery address recorded on an order.
type ShippingAddress struct {
	FirstName string
	LastName  string
	Address   string
	City      string
	State     string
	ZipCode   string
}

// OrderPayment summarises the verified payment without raw credentials.
type OrderPayment struct {
	Method    PaymentMethod
	Brand     string
	Last4     string
	UPIHandle string
	Reference string
}

// Order is created once, at successful checkout.
type Order struct {
	ID              string
	UserID          string
	Items           []OrderItem
	Total           int64
	Currency        string
	Status          OrderStatus
	ShippingAddress ShippingAddress
	ContactEmail    string
	ContactPhone    string
	PaymentMethod   PaymentMethod
	Payment         OrderPayment
	CreatedAt       time.Time
	UpdatedAt       time.Time
	TrackingNumber  *string
}

// ProductSort indicates the ordering for catalog listings.
type ProductSort string

const (
	ProductSortNewest         ProductSort = "newest"
	ProductSortPriceHighToLow ProductSort = "priceHighToLow"
	ProductSortPriceLowToHigh ProductSort = "priceLowToHigh"
	ProductSortPopularity     ProductSort = "popularity"
)

// PriceRange is an inclusive price window in minor units. A zero Max means unbounded.
type PriceRange struct {
	Label string
	Min   int64
	Max   int64
}

// Contains reports whether price falls inside the range.
func (r PriceRange) Contains(price int64) bool {
	if price < r.Min {
		return false
	}
	return r.Max <= 0 || price <= r.Max
}

// ProductFilter narrows catalog listings. Empty slices do not filter.
type ProductFilter struct {
	Query       string
	PriceRanges []PriceRange
	Colors      []string
	Sizes       []string
	Categories  []string
	LimitedOnly bool
	Sort        ProductSort
}
