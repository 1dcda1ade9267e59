package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/repositories/memory"
)

func TestOrderServiceListsOwnOrdersNewestFirst(t *testing.T) {
	repo := newOrderRepository(t)
	ctx := context.Background()
	for i, o := range []Order{
		{ID: "o1", UserID: "user-1", Total: 1000, CreatedAt: testNow.Add(-2 * time.Hour)},
		{ID: "o2", UserID: "user-2", Total: 2000, CreatedAt: testNow.Add(-time.Hour)},
		{ID: "o3", UserID: "user-1", Total: 3000, CreatedAt: testNow},
	} {
		o.Status = domain.OrderStatusPending
		if err := repo.Insert(ctx, o); err != nil {
			t.Fatalf("insert %d: unexpected error: %v", i, err)
		}
	}

	session := &stubSession{}
	service, err := NewOrderService(OrderServiceDeps{Orders: repo, Session: session})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := service.ListOrders(ctx); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}

	session.user = &User{ID: "user-1"}
	orders, err := service.ListOrders(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(orders) != 2 || orders[0].ID != "o3" || orders[1].ID != "o1" {
		t.Fatalf("expected [o3 o1], got %+v", orders)
	}

	if _, err := service.Get(ctx, "o2"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected other shopper's order hidden, got %v", err)
	}
	if _, err := service.Get(ctx, "missing"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
	order, err := service.Get(ctx, " o1 ")
	if err != nil || order.Total != 1000 {
		t.Fatalf("expected o1, got %+v (%v)", order, err)
	}
}

func TestCatalogServiceGetProduct(t *testing.T) {
	products, err := memory.LoadCatalogSeed(strings.NewReader(`
products:
  - id: w1
    name: Silk Wrap Blouse
    price: 225
    sizes: [S, M]
    category: Topwear
    createdAt: "2024-02-15"
`), "USD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	repo, err := memory.NewCatalogRepository(products)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	service, err := NewCatalogService(repo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	product, err := service.GetProduct(context.Background(), "w1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if product.Price != 22500 {
		t.Fatalf("expected price 22500, got %d", product.Price)
	}
	if _, err := service.GetProduct(context.Background(), "nope"); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
	if _, err := service.GetProduct(context.Background(), " "); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	listed, err := service.ListProducts(context.Background(), domain.ProductFilter{Query: "  silk "})
	if err != nil || len(listed) != 1 {
		t.Fatalf("expected one match, got %d (%v)", len(listed), err)
	}
}
