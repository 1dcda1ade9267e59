package services

import (
	"strings"

	domain "github.com/hanko-field/storefront/internal/domain"
)

// CartCommand is one of AddItemCommand, RemoveItemCommand, UpdateQuantityCommand
// or ClearCartCommand.
type CartCommand interface {
	cartCommand()
}

// AddItemCommand merges quantity units of product in size into the cart.
type AddItemCommand struct {
	Product  Product
	Size     string
	Quantity int
}

// RemoveItemCommand drops the (ProductID, Size) line.
type RemoveItemCommand struct {
	ProductID string
	Size      string
}

// UpdateQuantityCommand replaces the quantity of the (ProductID, Size) line.
type UpdateQuantityCommand struct {
	ProductID string
	Size      string
	Quantity  int
}

// ClearCartCommand empties the cart.
type ClearCartCommand struct{}

func (AddItemCommand) cartCommand()        {}
func (RemoveItemCommand) cartCommand()     {}
func (UpdateQuantityCommand) cartCommand() {}
func (ClearCartCommand) cartCommand()      {}

// ReduceCart applies cmd to cart and returns the next state. changed is false
// when the command is a no-op, in which case next is cart itself. The input is
// never modified and aggregates of next are always recomputed from its items.
// Version and UpdatedAt are left to the caller.
func ReduceCart(cart Cart, cmd CartCommand) (next Cart, changed bool, err error) {
	switch c := cmd.(type) {
	case AddItemCommand:
		if err := validateAddItem(c); err != nil {
			return cart, false, err
		}
		items := cloneItems(cart.Items)
		key := CartItemKey{ProductID: c.Product.ID, Size: c.Size}
		if idx := cart.Find(key); idx >= 0 {
			items[idx].Quantity += c.Quantity
		} else {
			items = append(items, CartItem{
				Product:      cloneProduct(c.Product),
				Quantity:     c.Quantity,
				SelectedSize: c.Size,
			})
		}
		return withItems(cart, items), true, nil

	case RemoveItemCommand:
		idx := cart.Find(CartItemKey{ProductID: c.ProductID, Size: c.Size})
		if idx < 0 {
			return cart, false, nil
		}
		items := make([]CartItem, 0, len(cart.Items)-1)
		items = append(items, cart.Items[:idx]...)
		items = append(items, cart.Items[idx+1:]...)
		return withItems(cart, items), true, nil

	case UpdateQuantityCommand:
		if c.Quantity < 1 {
			return cart, false, invalidField("quantity", "must be at least 1")
		}
		idx := cart.Find(CartItemKey{ProductID: c.ProductID, Size: c.Size})
		if idx < 0 {
			return cart, false, ErrCartItemNotFound
		}
		if cart.Items[idx].Quantity == c.Quantity {
			return cart, false, nil
		}
		items := cloneItems(cart.Items)
		items[idx].Quantity = c.Quantity
		return withItems(cart, items), true, nil

	case ClearCartCommand:
		return withItems(cart, nil), true, nil

	default:
		return cart, false, invalidField("command", "unknown cart command")
	}
}

func validateAddItem(cmd AddItemCommand) error {
	if strings.TrimSpace(cmd.Product.ID) == "" {
		return invalidField("productId", "is required")
	}
	if cmd.Quantity < 1 {
		return invalidField("quantity", "must be at least 1")
	}
	if !cmd.Product.HasSize(cmd.Size) {
		return invalidField("size", "is not offered for this product")
	}
	return nil
}

func withItems(cart Cart, items []CartItem) Cart {
	next := cart
	next.Items = items
	return domain.Recalculate(next)
}

func cloneItems(items []CartItem) []CartItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]CartItem, len(items))
	copy(out, items)
	return out
}

func cloneProduct(product Product) Product {
	if product.Sizes != nil {
		product.Sizes = append([]string(nil), product.Sizes...)
	}
	return product
}

func cloneCart(cart Cart) Cart {
	out := cart
	out.Items = cloneItems(cart.Items)
	return out
}
