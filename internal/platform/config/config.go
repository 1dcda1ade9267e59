package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile          = ".env"
	defaultEnvironment      = "local"
	defaultCurrency         = "USD"
	defaultLocale           = "en"
	defaultStorageBackend   = BackendMemory
	defaultSQLitePath       = "storefront.db"
	defaultRedisKeyPrefix   = "storefront"
	defaultInventoryLatency = 500 * time.Millisecond
	defaultPaymentLatency   = 2 * time.Second
	defaultLoginLatency     = time.Second
	defaultInventoryTimeout = 5 * time.Second
	defaultPaymentTimeout   = 10 * time.Second
	defaultLoginTimeout     = 5 * time.Second
	defaultPaymentProvider  = "simulated"
	defaultServiceName      = "storefront"
)

// Storage backends understood by the loader.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	App        AppConfig
	Storage    StorageConfig
	Simulation SimulationConfig
	Timeouts   TimeoutConfig
	Payments   PaymentsConfig
	Catalog    CatalogConfig
	Session    SessionConfig
	Telemetry  TelemetryConfig
}

// AppConfig holds storefront-wide settings.
type AppConfig struct {
	Environment string
	Currency    string
	Locale      string
}

// StorageConfig selects the key-value backend used for carts, wishlists and orders.
type StorageConfig struct {
	Backend    string
	SQLitePath string
	Redis      RedisConfig
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// SimulationConfig tunes the simulated collaborators.
type SimulationConfig struct {
	InventoryLatency time.Duration
	PaymentLatency   time.Duration
	LoginLatency     time.Duration
	// StockLevels maps "productID/size" to available units. When empty every
	// availability check succeeds.
	StockLevels map[string]int
	// DeclineCards lists card last-4 digits the simulated provider refuses.
	DeclineCards []string
}

// TimeoutConfig bounds every collaborator call.
type TimeoutConfig struct {
	Inventory time.Duration
	Payment   time.Duration
	Login     time.Duration
}

// PaymentsConfig controls provider routing. PreferredProvider, when set, is
// requested for every checkout ahead of the method routes.
type PaymentsConfig struct {
	DefaultProvider   string
	PreferredProvider string
	MethodRoutes      map[string]string
}

// CatalogConfig points at the product seed file. Empty uses the bundled catalog.
type CatalogConfig struct {
	SeedFile string
}

// SessionConfig controls which features require a signed-in shopper.
type SessionConfig struct {
	RequireForWishlist bool
}

// TelemetryConfig names the instrumentation scope.
type TelemetryConfig struct {
	ServiceName string
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles the storefront configuration by combining defaults, .env overrides
// and environment variables (dotenv < OS env < explicit env map).
func Load(ctx context.Context, opts ...Option) (Config, error) {
	if err := ctx.Err(); err != nil {
		return Config{}, err
	}
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		App: AppConfig{
			Environment: stringWithDefault(lookup, "STOREFRONT_ENVIRONMENT", defaultEnvironment),
			Currency:    strings.ToUpper(stringWithDefault(lookup, "STOREFRONT_CURRENCY", defaultCurrency)),
			Locale:      stringWithDefault(lookup, "STOREFRONT_LOCALE", defaultLocale),
		},
		Storage: StorageConfig{
			Backend:    strings.ToLower(stringWithDefault(lookup, "STOREFRONT_STORAGE_BACKEND", defaultStorageBackend)),
			SQLitePath: stringWithDefault(lookup, "STOREFRONT_STORAGE_SQLITE_PATH", defaultSQLitePath),
			Redis: RedisConfig{
				Addr:      stringWithDefault(lookup, "STOREFRONT_STORAGE_REDIS_ADDR", ""),
				Password:  stringWithDefault(lookup, "STOREFRONT_STORAGE_REDIS_PASSWORD", ""),
				DB:        intWithDefault(lookup, "STOREFRONT_STORAGE_REDIS_DB", 0),
				KeyPrefix: stringWithDefault(lookup, "STOREFRONT_STORAGE_REDIS_KEY_PREFIX", defaultRedisKeyPrefix),
				TTL:       durationWithDefault(lookup, "STOREFRONT_STORAGE_REDIS_TTL", 0),
			},
		},
		Simulation: SimulationConfig{
			InventoryLatency: durationWithDefault(lookup, "STOREFRONT_SIMULATION_INVENTORY_LATENCY", defaultInventoryLatency),
			PaymentLatency:   durationWithDefault(lookup, "STOREFRONT_SIMULATION_PAYMENT_LATENCY", defaultPaymentLatency),
			LoginLatency:     durationWithDefault(lookup, "STOREFRONT_SIMULATION_LOGIN_LATENCY", defaultLoginLatency),
			DeclineCards:     csvWithDefault(lookup, "STOREFRONT_SIMULATION_DECLINE_CARDS"),
		},
		Timeouts: TimeoutConfig{
			Inventory: durationWithDefault(lookup, "STOREFRONT_TIMEOUT_INVENTORY", defaultInventoryTimeout),
			Payment:   durationWithDefault(lookup, "STOREFRONT_TIMEOUT_PAYMENT", defaultPaymentTimeout),
			Login:     durationWithDefault(lookup, "STOREFRONT_TIMEOUT_LOGIN", defaultLoginTimeout),
		},
		Payments: PaymentsConfig{
			DefaultProvider:   strings.ToLower(stringWithDefault(lookup, "STOREFRONT_PAYMENTS_DEFAULT_PROVIDER", defaultPaymentProvider)),
			PreferredProvider: strings.ToLower(stringWithDefault(lookup, "STOREFRONT_PAYMENTS_PREFERRED_PROVIDER", "")),
			MethodRoutes:      mapWithDefault(lookup, "STOREFRONT_PAYMENTS_METHOD_ROUTES"),
		},
		Catalog: CatalogConfig{
			SeedFile: stringWithDefault(lookup, "STOREFRONT_CATALOG_SEED_FILE", ""),
		},
		Session: SessionConfig{
			RequireForWishlist: boolWithDefault(lookup, "STOREFRONT_SESSION_REQUIRE_FOR_WISHLIST", true),
		},
		Telemetry: TelemetryConfig{
			ServiceName: stringWithDefault(lookup, "STOREFRONT_TELEMETRY_SERVICE_NAME", defaultServiceName),
		},
	}

	var invalid []string
	cfg.Simulation.StockLevels, invalid = stockLevels(lookup, "STOREFRONT_SIMULATION_STOCK_LEVELS")

	if err := cfg.validate(invalid); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate(invalid []string) error {
	fields := append([]string(nil), invalid...)

	if len(strings.TrimSpace(c.App.Currency)) != 3 {
		fields = append(fields, "App.Currency")
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendSQLite:
		if strings.TrimSpace(c.Storage.SQLitePath) == "" {
			fields = append(fields, "Storage.SQLitePath")
		}
	case BackendRedis:
		if strings.TrimSpace(c.Storage.Redis.Addr) == "" {
			fields = append(fields, "Storage.Redis.Addr")
		}
		if c.Storage.Redis.DB < 0 {
			fields = append(fields, "Storage.Redis.DB")
		}
	default:
		fields = append(fields, "Storage.Backend")
	}
	if c.Simulation.InventoryLatency < 0 {
		fields = append(fields, "Simulation.InventoryLatency")
	}
	if c.Simulation.PaymentLatency < 0 {
		fields = append(fields, "Simulation.PaymentLatency")
	}
	if c.Simulation.LoginLatency < 0 {
		fields = append(fields, "Simulation.LoginLatency")
	}
	if c.Timeouts.Inventory <= 0 {
		fields = append(fields, "Timeouts.Inventory")
	}
	if c.Timeouts.Payment <= 0 {
		fields = append(fields, "Timeouts.Payment")
	}
	if c.Timeouts.Login <= 0 {
		fields = append(fields, "Timeouts.Login")
	}
	for method := range c.Payments.MethodRoutes {
		if method != "card" && method != "upi" {
			fields = append(fields, fmt.Sprintf("Payments.MethodRoutes[%s]", method))
		}
	}

	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{fields: fields}
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		values[key] = strings.Trim(value, "\"'")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}

func csvWithDefault(lookup func(string) (string, bool), key string) []string {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func mapWithDefault(lookup func(string) (string, bool), key string) map[string]string {
	values := make(map[string]string)
	for _, entry := range csvWithDefault(lookup, key) {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(parts[0]))
		value := strings.TrimSpace(parts[1])
		if name == "" || value == "" {
			continue
		}
		values[name] = value
	}
	return values
}

// stockLevels parses "w1/M=3,w2/S=0" into a stock table. Malformed entries are
// reported as invalid fields.
func stockLevels(lookup func(string) (string, bool), key string) (map[string]int, []string) {
	levels := make(map[string]int)
	var invalid []string
	for _, entry := range csvWithDefault(lookup, key) {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			invalid = append(invalid, fmt.Sprintf("Simulation.StockLevels[%s]", entry))
			continue
		}
		sku := strings.TrimSpace(parts[0])
		qty, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil || qty < 0 || !strings.Contains(sku, "/") {
			invalid = append(invalid, fmt.Sprintf("Simulation.StockLevels[%s]", sku))
			continue
		}
		levels[sku] = qty
	}
	return levels, invalid
}
