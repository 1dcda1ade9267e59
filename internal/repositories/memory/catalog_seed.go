package memory

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"gopkg.in/yaml.v3"

	domain "github.com/hanko-field/storefront/internal/domain"
)

type catalogSeed struct {
	Currency string            `yaml:"currency"`
	Products []catalogSeedItem `yaml:"products"`
}

type catalogSeedItem struct {
	ID             string   `yaml:"id"`
	Name           string   `yaml:"name"`
	Price          float64  `yaml:"price"`
	Image          string   `yaml:"image"`
	Color          string   `yaml:"color"`
	Sizes          []string `yaml:"sizes"`
	Category       string   `yaml:"category"`
	Description    string   `yaml:"description"`
	Popularity     float64  `yaml:"popularity"`
	CreatedAt      string   `yaml:"createdAt"`
	LimitedEdition bool     `yaml:"limitedEdition"`
}

var descriptionPolicy = newDescriptionPolicy()

func newDescriptionPolicy() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.RequireNoFollowOnLinks(true)
	return policy
}

// LoadCatalogSeedFile reads a YAML catalog seed from disk.
func LoadCatalogSeedFile(path string, currency string) ([]domain.Product, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog seed: open %s: %w", path, err)
	}
	defer f.Close()
	return LoadCatalogSeed(f, currency)
}

// LoadCatalogSeed decodes a YAML catalog seed. Prices in the file are major units
// of currency (or of the currency declared in the file). Descriptions are treated
// as markdown and rendered into sanitized DescriptionHTML.
func LoadCatalogSeed(r io.Reader, currency string) ([]domain.Product, error) {
	var seed catalogSeed
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&seed); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("catalog seed: decode: %w", err)
	}

	if declared := strings.TrimSpace(seed.Currency); declared != "" {
		if currency != "" && !strings.EqualFold(declared, currency) {
			return nil, fmt.Errorf("catalog seed: file currency %s does not match %s", declared, currency)
		}
		currency = declared
	}

	products := make([]domain.Product, 0, len(seed.Products))
	for idx, item := range seed.Products {
		product, err := item.toDomain(currency)
		if err != nil {
			return nil, fmt.Errorf("catalog seed: product %d: %w", idx, err)
		}
		products = append(products, product)
	}
	return products, nil
}

func (item catalogSeedItem) toDomain(currency string) (domain.Product, error) {
	id := strings.TrimSpace(item.ID)
	if id == "" {
		return domain.Product{}, fmt.Errorf("id is required")
	}
	price, err := domain.MoneyFromMajor(item.Price, currency)
	if err != nil {
		return domain.Product{}, fmt.Errorf("%s: %w", id, err)
	}
	sizes := make([]string, 0, len(item.Sizes))
	for _, size := range item.Sizes {
		if trimmed := strings.TrimSpace(size); trimmed != "" {
			sizes = append(sizes, trimmed)
		}
	}
	if len(sizes) == 0 {
		return domain.Product{}, fmt.Errorf("%s: at least one size is required", id)
	}

	var createdAt time.Time
	if raw := strings.TrimSpace(item.CreatedAt); raw != "" {
		createdAt, err = parseSeedDate(raw)
		if err != nil {
			return domain.Product{}, fmt.Errorf("%s: createdAt: %w", id, err)
		}
	}

	description := strings.TrimSpace(item.Description)
	html, err := renderDescription(description)
	if err != nil {
		return domain.Product{}, fmt.Errorf("%s: description: %w", id, err)
	}

	return domain.Product{
		ID:              id,
		Name:            strings.TrimSpace(item.Name),
		Price:           price,
		Image:           strings.TrimSpace(item.Image),
		Color:           strings.TrimSpace(item.Color),
		Sizes:           sizes,
		Category:        strings.TrimSpace(item.Category),
		Description:     description,
		DescriptionHTML: html,
		Popularity:      item.Popularity,
		CreatedAt:       createdAt,
		LimitedEdition:  item.LimitedEdition,
	}, nil
}

func renderDescription(markdown string) (string, error) {
	if markdown == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return "", err
	}
	return strings.TrimSpace(descriptionPolicy.Sanitize(buf.String())), nil
}

func parseSeedDate(raw string) (time.Time, error) {
	layouts := []string{time.RFC3339, "2006-01-02"}
	var lastErr error
	for _, layout := range layouts {
		ts, err := time.Parse(layout, raw)
		if err == nil {
			return ts.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
