package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	domain "github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/repositories"
)

var errProductNotFound = errors.New("product not found")

// CatalogRepository serves an immutable product list held in memory.
type CatalogRepository struct {
	products []domain.Product
	byID     map[string]int
}

// NewCatalogRepository indexes the supplied products. Duplicate ids are rejected.
func NewCatalogRepository(products []domain.Product) (*CatalogRepository, error) {
	repo := &CatalogRepository{
		products: make([]domain.Product, 0, len(products)),
		byID:     make(map[string]int, len(products)),
	}
	for _, product := range products {
		id := strings.TrimSpace(product.ID)
		if id == "" {
			return nil, errors.New("catalog repository: product id is required")
		}
		if _, exists := repo.byID[id]; exists {
			return nil, fmt.Errorf("catalog repository: duplicate product id %q", id)
		}
		if len(product.Sizes) == 0 {
			return nil, fmt.Errorf("catalog repository: product %q has no sizes", id)
		}
		product.ID = id
		repo.byID[id] = len(repo.products)
		repo.products = append(repo.products, cloneProduct(product))
	}
	return repo, nil
}

// GetByID implements repositories.CatalogRepository.
func (r *CatalogRepository) GetByID(_ context.Context, productID string) (domain.Product, error) {
	idx, ok := r.byID[strings.TrimSpace(productID)]
	if !ok {
		return domain.Product{}, repositories.NewNotFoundError("catalog.get", fmt.Errorf("%w: %s", errProductNotFound, productID))
	}
	return cloneProduct(r.products[idx]), nil
}

// List implements repositories.CatalogRepository. Unsorted listings keep catalog order.
func (r *CatalogRepository) List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query := strings.ToLower(strings.TrimSpace(filter.Query))
	result := make([]domain.Product, 0, len(r.products))
	for _, product := range r.products {
		if query != "" && !matchesQuery(product, query) {
			continue
		}
		if !matchesFilter(product, filter) {
			continue
		}
		result = append(result, cloneProduct(product))
	}

	sortProducts(result, filter.Sort)
	return result, nil
}

func matchesQuery(product domain.Product, query string) bool {
	searchable := strings.ToLower(strings.Join([]string{
		product.Name,
		product.Description,
		product.Category,
		product.Color,
	}, " "))
	return strings.Contains(searchable, query)
}

func matchesFilter(product domain.Product, filter domain.ProductFilter) bool {
	if filter.LimitedOnly && !product.LimitedEdition {
		return false
	}
	if len(filter.PriceRanges) > 0 {
		inRange := false
		for _, window := range filter.PriceRanges {
			if window.Contains(product.Price) {
				inRange = true
				break
			}
		}
		if !inRange {
			return false
		}
	}
	if len(filter.Colors) > 0 && !containsFold(filter.Colors, product.Color) {
		return false
	}
	if len(filter.Categories) > 0 && !containsFold(filter.Categories, product.Category) {
		return false
	}
	if len(filter.Sizes) > 0 {
		overlap := false
		for _, size := range product.Sizes {
			if slices.Contains(filter.Sizes, size) {
				overlap = true
				break
			}
		}
		if !overlap {
			return false
		}
	}
	return true
}

func sortProducts(products []domain.Product, order domain.ProductSort) {
	switch order {
	case domain.ProductSortPriceHighToLow:
		sort.SliceStable(products, func(i, j int) bool { return products[i].Price > products[j].Price })
	case domain.ProductSortPriceLowToHigh:
		sort.SliceStable(products, func(i, j int) bool { return products[i].Price < products[j].Price })
	case domain.ProductSortPopularity:
		sort.SliceStable(products, func(i, j int) bool { return products[i].Popularity > products[j].Popularity })
	case domain.ProductSortNewest:
		sort.SliceStable(products, func(i, j int) bool { return products[i].CreatedAt.After(products[j].CreatedAt) })
	}
}

func containsFold(values []string, target string) bool {
	for _, value := range values {
		if strings.EqualFold(strings.TrimSpace(value), target) {
			return true
		}
	}
	return false
}

func cloneProduct(product domain.Product) domain.Product {
	product.Sizes = slices.Clone(product.Sizes)
	return product
}

var _ repositories.CatalogRepository = (*CatalogRepository)(nil)
