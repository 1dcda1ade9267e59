package memory

import (
	"bytes"
	_ "embed"

	domain "github.com/hanko-field/storefront/internal/domain"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// DefaultCatalog decodes the bundled product catalog priced in currency.
func DefaultCatalog(currency string) ([]domain.Product, error) {
	return LoadCatalogSeed(bytes.NewReader(defaultCatalog), currency)
}
