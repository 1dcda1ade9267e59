package di

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/platform/config"
	"github.com/hanko-field/storefront/internal/repositories"
	"github.com/hanko-field/storefront/internal/repositories/kv"
	"github.com/hanko-field/storefront/internal/repositories/memory"
	redisstore "github.com/hanko-field/storefront/internal/repositories/redis"
	sqlitestore "github.com/hanko-field/storefront/internal/repositories/sqlite"
)

// Registry implements repositories.Registry over a single key-value backend and
// an in-memory catalog.
type Registry struct {
	store     repositories.KeyValueStore
	carts     *kv.CartRepository
	wishlists *kv.WishlistRepository
	orders    *kv.OrderRepository
	catalog   *memory.CatalogRepository
}

// NewRegistry builds the repositories over an already opened backend.
func NewRegistry(store repositories.KeyValueStore, catalog *memory.CatalogRepository) (*Registry, error) {
	if store == nil {
		return nil, errors.New("registry: key-value store is required")
	}
	if catalog == nil {
		return nil, errors.New("registry: catalog is required")
	}
	carts, err := kv.NewCartRepository(store)
	if err != nil {
		return nil, err
	}
	wishlists, err := kv.NewWishlistRepository(store)
	if err != nil {
		return nil, err
	}
	orders, err := kv.NewOrderRepository(store)
	if err != nil {
		return nil, err
	}
	return &Registry{
		store:     store,
		carts:     carts,
		wishlists: wishlists,
		orders:    orders,
		catalog:   catalog,
	}, nil
}

// OpenRegistry opens the configured storage backend and loads the catalog.
func OpenRegistry(ctx context.Context, cfg config.Config) (*Registry, error) {
	catalog, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}
	store, err := openKeyValueStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	reg, err := NewRegistry(store, catalog)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return reg, nil
}

func openKeyValueStore(ctx context.Context, cfg config.StorageConfig) (repositories.KeyValueStore, error) {
	switch cfg.Backend {
	case config.BackendMemory, "":
		return memory.NewKVStore(), nil
	case config.BackendSQLite:
		store, err := sqlitestore.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite storage: %w", err)
		}
		return store, nil
	case config.BackendRedis:
		store, err := redisstore.Open(ctx, redisstore.Options{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
			TTL:       cfg.Redis.TTL,
		})
		if err != nil {
			return nil, fmt.Errorf("open redis storage: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}

func loadCatalog(cfg config.Config) (*memory.CatalogRepository, error) {
	var (
		products []domain.Product
		err      error
	)
	if cfg.Catalog.SeedFile != "" {
		products, err = memory.LoadCatalogSeedFile(cfg.Catalog.SeedFile, cfg.App.Currency)
	} else {
		products, err = memory.DefaultCatalog(cfg.App.Currency)
	}
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return memory.NewCatalogRepository(products)
}

// Close releases the storage backend.
func (r *Registry) Close(context.Context) error {
	if r == nil || r.store == nil {
		return nil
	}
	return r.store.Close()
}

// KeyValues returns the raw backend.
func (r *Registry) KeyValues() repositories.KeyValueStore { return r.store }

// Carts returns the cart snapshot repository.
func (r *Registry) Carts() repositories.CartRepository { return r.carts }

// Wishlists returns the wishlist snapshot repository.
func (r *Registry) Wishlists() repositories.WishlistRepository { return r.wishlists }

// Orders returns the order history repository.
func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

// Catalog returns the product catalog.
func (r *Registry) Catalog() repositories.CatalogRepository { return r.catalog }

var _ repositories.Registry = (*Registry)(nil)
