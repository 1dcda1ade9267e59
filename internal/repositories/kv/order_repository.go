package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	domain "github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/platform/requestctx"
	"github.com/hanko-field/storefront/internal/repositories"
)

var (
	errOrderExists   = errors.New("order already exists")
	errOrderNotFound = errors.New("order not found")
)

// OrderRepository keeps the order history as a JSON array under repositories.KeyOrders.
// Writes are read-modify-write and serialised within the process. A history that
// cannot be decoded is logged and read as empty; the next Insert replaces it.
type OrderRepository struct {
	store repositories.KeyValueStore
	key   string
	mu    sync.Mutex
}

// NewOrderRepository constructs an order repository over the key-value store.
func NewOrderRepository(store repositories.KeyValueStore) (*OrderRepository, error) {
	if store == nil {
		return nil, errors.New("order repository requires key-value store")
	}
	return &OrderRepository{store: store, key: repositories.KeyOrders}, nil
}

// Insert implements repositories.OrderRepository.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order repository: order id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	docs, err := r.read(ctx)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if doc.ID == order.ID {
			return repositories.NewConflictError("orders.insert", fmt.Errorf("%w: %s", errOrderExists, order.ID))
		}
	}
	docs = append(docs, encodeOrder(order))
	return r.write(ctx, "orders.insert", docs)
}

// Delete implements repositories.OrderRepository.
func (r *OrderRepository) Delete(ctx context.Context, orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	docs, err := r.read(ctx)
	if err != nil {
		return err
	}
	for idx, doc := range docs {
		if doc.ID == orderID {
			docs = append(docs[:idx], docs[idx+1:]...)
			return r.write(ctx, "orders.delete", docs)
		}
	}
	return repositories.NewNotFoundError("orders.delete", fmt.Errorf("%w: %s", errOrderNotFound, orderID))
}

// Get implements repositories.OrderRepository.
func (r *OrderRepository) Get(ctx context.Context, orderID string) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	docs, err := r.read(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	for _, doc := range docs {
		if doc.ID == orderID {
			return decodeOrder(doc), nil
		}
	}
	return domain.Order{}, repositories.NewNotFoundError("orders.get", fmt.Errorf("%w: %s", errOrderNotFound, orderID))
}

// ListByUser implements repositories.OrderRepository.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	docs, err := r.read(ctx)
	if err != nil {
		return nil, err
	}
	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		if doc.UserID == userID {
			orders = append(orders, decodeOrder(doc))
		}
	}
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

func (r *OrderRepository) read(ctx context.Context) ([]orderDocument, error) {
	raw, found, err := r.store.Get(ctx, r.key)
	if err != nil {
		return nil, repositories.WrapError("orders.read", err)
	}
	if !found || strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var docs []orderDocument
	if err := json.Unmarshal([]byte(raw), &docs); err != nil {
		requestctx.Logger(ctx).Warn("order history corrupt, starting empty",
			zap.String("key", r.key),
			zap.Error(fmt.Errorf("%w: orders: %v", repositories.ErrCorruptSnapshot, err)),
		)
		return nil, nil
	}
	return docs, nil
}

func (r *OrderRepository) write(ctx context.Context, op string, docs []orderDocument) error {
	payload, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("order repository: encode: %w", err)
	}
	if err := r.store.Set(ctx, r.key, string(payload)); err != nil {
		return repositories.WrapError(op, err)
	}
	return nil
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
