package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/repositories"
)

// CatalogService is the read-only product lookup used by browsing and cart flows.
type CatalogService struct {
	repo repositories.CatalogRepository
}

// NewCatalogService wraps the catalog repository.
func NewCatalogService(repo repositories.CatalogRepository) (*CatalogService, error) {
	if repo == nil {
		return nil, errors.New("catalog service: repository is required")
	}
	return &CatalogService{repo: repo}, nil
}

// GetProduct returns the product or ErrProductNotFound.
func (s *CatalogService) GetProduct(ctx context.Context, productID string) (Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Product{}, invalidField("productId", "is required")
	}
	product, err := s.repo.GetByID(ctx, productID)
	if err != nil {
		if isRepoNotFound(err) {
			return Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
		}
		return Product{}, translateStorageError(err)
	}
	return product, nil
}

// ListProducts returns the products matching filter.
func (s *CatalogService) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]Product, error) {
	filter.Query = strings.TrimSpace(filter.Query)
	products, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, translateStorageError(err)
	}
	return products, nil
}
