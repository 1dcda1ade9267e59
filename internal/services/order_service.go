package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hanko-field/storefront/internal/repositories"
)

// OrderServiceDeps wires order history reads.
type OrderServiceDeps struct {
	Orders  repositories.OrderRepository
	Session SessionReader
	Logger  func(ctx context.Context, event string, fields map[string]any)
}

// OrderService lists the orders of the signed-in shopper.
type OrderService struct {
	orders  repositories.OrderRepository
	session SessionReader
	logger  func(ctx context.Context, event string, fields map[string]any)
}

// NewOrderService validates dependencies.
func NewOrderService(deps OrderServiceDeps) (*OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Session == nil {
		return nil, errors.New("order service: session is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &OrderService{orders: deps.Orders, session: deps.Session, logger: logger}, nil
}

// ListOrders returns the shopper's orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context) ([]Order, error) {
	user, err := s.session.Require()
	if err != nil {
		return nil, err
	}
	orders, err := s.orders.ListByUser(ctx, user.ID)
	if err != nil {
		s.logger(ctx, "orders.list_failed", map[string]any{"userID": user.ID, "error": err})
		return nil, translateStorageError(err)
	}
	return orders, nil
}

// Get returns one of the shopper's orders. Orders of other shoppers are reported as not found.
func (s *OrderService) Get(ctx context.Context, orderID string) (Order, error) {
	user, err := s.session.Require()
	if err != nil {
		return Order{}, err
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, invalidField("orderId", "is required")
	}
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		if isRepoNotFound(err) {
			return Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		return Order{}, translateStorageError(err)
	}
	if order.UserID != user.ID {
		return Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return order, nil
}
