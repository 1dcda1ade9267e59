package kv

import (
	"slices"
	"time"

	domain "github.com/hanko-field/storefront/internal/domain"
)

type productDocument struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Price           int64     `json:"price"`
	Image           string    `json:"image,omitempty"`
	Color           string    `json:"color,omitempty"`
	Sizes           []string  `json:"sizes"`
	Category        string    `json:"category,omitempty"`
	Description     string    `json:"description,omitempty"`
	DescriptionHTML string    `json:"descriptionHtml,omitempty"`
	Popularity      float64   `json:"popularity,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	LimitedEdition  bool      `json:"isLimitedEdition,omitempty"`
}

type cartItemDocument struct {
	productDocument
	Quantity     int    `json:"quantity"`
	SelectedSize string `json:"selectedSize"`
}

type cartDocument struct {
	Items     []cartItemDocument `json:"items"`
	Total     int64              `json:"total"`
	ItemCount int                `json:"itemCount"`
	Version   int64              `json:"version"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

type wishlistDocument struct {
	Items     []productDocument `json:"items"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

type orderItemDocument struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size"`
	Image     string `json:"image,omitempty"`
}

type shippingAddressDocument struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state"`
	ZipCode   string `json:"zipCode"`
}

type orderPaymentDocument struct {
	Method    string `json:"method"`
	Brand     string `json:"brand,omitempty"`
	Last4     string `json:"last4,omitempty"`
	UPIHandle string `json:"upiHandle,omitempty"`
	Reference string `json:"reference,omitempty"`
}

type orderDocument struct {
	ID              string                  `json:"id"`
	UserID          string                  `json:"userId"`
	Items           []orderItemDocument     `json:"items"`
	Total           int64                   `json:"total"`
	Currency        string                  `json:"currency"`
	Status          string                  `json:"status"`
	ShippingAddress shippingAddressDocument `json:"shippingAddress"`
	ContactEmail    string                  `json:"contactEmail,omitempty"`
	ContactPhone    string                  `json:"contactPhone,omitempty"`
	PaymentMethod   string                  `json:"paymentMethod"`
	Payment         orderPaymentDocument    `json:"payment"`
	CreatedAt       time.Time               `json:"createdAt"`
	UpdatedAt       time.Time               `json:"updatedAt"`
	TrackingNumber  *string                 `json:"trackingNumber,omitempty"`
}

func encodeProduct(p domain.Product) productDocument {
	return productDocument{
		ID:              p.ID,
		Name:            p.Name,
		Price:           p.Price,
		Image:           p.Image,
		Color:           p.Color,
		Sizes:           slices.Clone(p.Sizes),
		Category:        p.Category,
		Description:     p.Description,
		DescriptionHTML: p.DescriptionHTML,
		Popularity:      p.Popularity,
		CreatedAt:       p.CreatedAt.UTC(),
		LimitedEdition:  p.LimitedEdition,
	}
}

func decodeProduct(doc productDocument) domain.Product {
	return domain.Product{
		ID:              doc.ID,
		Name:            doc.Name,
		Price:           doc.Price,
		Image:           doc.Image,
		Color:           doc.Color,
		Sizes:           slices.Clone(doc.Sizes),
		Category:        doc.Category,
		Description:     doc.Description,
		DescriptionHTML: doc.DescriptionHTML,
		Popularity:      doc.Popularity,
		CreatedAt:       doc.CreatedAt,
		LimitedEdition:  doc.LimitedEdition,
	}
}

func encodeCart(cart domain.Cart) cartDocument {
	doc := cartDocument{
		Items:     make([]cartItemDocument, 0, len(cart.Items)),
		Total:     cart.Total,
		ItemCount: cart.ItemCount,
		Version:   cart.Version,
		UpdatedAt: cart.UpdatedAt.UTC(),
	}
	for _, item := range cart.Items {
		doc.Items = append(doc.Items, cartItemDocument{
			productDocument: encodeProduct(item.Product),
			Quantity:        item.Quantity,
			SelectedSize:    item.SelectedSize,
		})
	}
	return doc
}

func decodeCart(doc cartDocument) domain.Cart {
	cart := domain.Cart{
		Items:     make([]domain.CartItem, 0, len(doc.Items)),
		Total:     doc.Total,
		ItemCount: doc.ItemCount,
		Version:   doc.Version,
		UpdatedAt: doc.UpdatedAt,
	}
	for _, item := range doc.Items {
		cart.Items = append(cart.Items, domain.CartItem{
			Product:      decodeProduct(item.productDocument),
			Quantity:     item.Quantity,
			SelectedSize: item.SelectedSize,
		})
	}
	return cart
}

func encodeWishlist(wishlist domain.Wishlist) wishlistDocument {
	doc := wishlistDocument{
		Items:     make([]productDocument, 0, len(wishlist.Items)),
		UpdatedAt: wishlist.UpdatedAt.UTC(),
	}
	for _, product := range wishlist.Items {
		doc.Items = append(doc.Items, encodeProduct(product))
	}
	return doc
}

func decodeWishlist(doc wishlistDocument) domain.Wishlist {
	wishlist := domain.Wishlist{
		Items:     make([]domain.Product, 0, len(doc.Items)),
		UpdatedAt: doc.UpdatedAt,
	}
	for _, product := range doc.Items {
		wishlist.Items = append(wishlist.Items, decodeProduct(product))
	}
	return wishlist
}

func encodeOrder(order domain.Order) orderDocument {
	doc := orderDocument{
		ID:       order.ID,
		UserID:   order.UserID,
		Items:    make([]orderItemDocument, 0, len(order.Items)),
		Total:    order.Total,
		Currency: order.Currency,
		Status:   string(order.Status),
		ShippingAddress: shippingAddressDocument{
			FirstName: order.ShippingAddress.FirstName,
			LastName:  order.ShippingAddress.LastName,
			Address:   order.ShippingAddress.Address,
			City:      order.ShippingAddress.City,
			State:     order.ShippingAddress.State,
			ZipCode:   order.ShippingAddress.ZipCode,
		},
		ContactEmail:  order.ContactEmail,
		ContactPhone:  order.ContactPhone,
		PaymentMethod: string(order.PaymentMethod),
		Payment: orderPaymentDocument{
			Method:    string(order.Payment.Method),
			Brand:     order.Payment.Brand,
			Last4:     order.Payment.Last4,
			UPIHandle: order.Payment.UPIHandle,
			Reference: order.Payment.Reference,
		},
		CreatedAt:      order.CreatedAt.UTC(),
		UpdatedAt:      order.UpdatedAt.UTC(),
		TrackingNumber: order.TrackingNumber,
	}
	for _, item := range order.Items {
		doc.Items = append(doc.Items, orderItemDocument(item))
	}
	return doc
}

func decodeOrder(doc orderDocument) domain.Order {
	order := domain.Order{
		ID:       doc.ID,
		UserID:   doc.UserID,
		Items:    make([]domain.OrderItem, 0, len(doc.Items)),
		Total:    doc.Total,
		Currency: doc.Currency,
		Status:   domain.OrderStatus(doc.Status),
		ShippingAddress: domain.ShippingAddress{
			FirstName: doc.ShippingAddress.FirstName,
			LastName:  doc.ShippingAddress.LastName,
			Address:   doc.ShippingAddress.Address,
			City:      doc.ShippingAddress.City,
			State:     doc.ShippingAddress.State,
			ZipCode:   doc.ShippingAddress.ZipCode,
		},
		ContactEmail:  doc.ContactEmail,
		ContactPhone:  doc.ContactPhone,
		PaymentMethod: domain.PaymentMethod(doc.PaymentMethod),
		Payment: domain.OrderPayment{
			Method:    domain.PaymentMethod(doc.Payment.Method),
			Brand:     doc.Payment.Brand,
			Last4:     doc.Payment.Last4,
			UPIHandle: doc.Payment.UPIHandle,
			Reference: doc.Payment.Reference,
		},
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
		TrackingNumber: doc.TrackingNumber,
	}
	for _, item := range doc.Items {
		order.Items = append(order.Items, domain.OrderItem(item))
	}
	return order
}
