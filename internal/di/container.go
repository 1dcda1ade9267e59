package di

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hanko-field/storefront/internal/payments"
	"github.com/hanko-field/storefront/internal/platform/config"
	"github.com/hanko-field/storefront/internal/platform/observability"
	"github.com/hanko-field/storefront/internal/repositories"
	"github.com/hanko-field/storefront/internal/services"
)

// Services bundles the stores and services a storefront front end drives.
type Services struct {
	Catalog  *services.CatalogService
	Session  *services.SessionService
	Cart     *services.CartStore
	Wishlist *services.WishlistStore
	Checkout *services.CheckoutFlow
	Orders   *services.OrderService
	Payments *payments.Manager
}

// Container wires repositories, collaborators and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
	Logger       *zap.Logger
	Metrics      *observability.Metrics
}

// Option customises NewContainer.
type Option func(*containerOptions)

type containerOptions struct {
	logger       *zap.Logger
	clock        func() time.Time
	inventory    services.InventoryGate
	auth         services.Authenticator
	providers    map[string]payments.Provider
	onTransition func(services.CheckoutTransition)
}

// WithLogger sets the base logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *containerOptions) { o.logger = logger }
}

// WithClock overrides time.Now for every store and service.
func WithClock(clock func() time.Time) Option {
	return func(o *containerOptions) { o.clock = clock }
}

// WithInventoryGate replaces the simulated inventory gate.
func WithInventoryGate(gate services.InventoryGate) Option {
	return func(o *containerOptions) { o.inventory = gate }
}

// WithAuthenticator replaces the simulated authenticator.
func WithAuthenticator(auth services.Authenticator) Option {
	return func(o *containerOptions) { o.auth = auth }
}

// WithPaymentProvider registers an additional payment provider under name.
func WithPaymentProvider(name string, provider payments.Provider) Option {
	return func(o *containerOptions) {
		if o.providers == nil {
			o.providers = make(map[string]payments.Provider)
		}
		o.providers[name] = provider
	}
}

// WithCheckoutObserver receives every checkout state transition.
func WithCheckoutObserver(fn func(services.CheckoutTransition)) Option {
	return func(o *containerOptions) { o.onTransition = fn }
}

// NewContainer constructs the runtime dependencies over reg.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, opts ...Option) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}
	options := containerOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = zap.NewNop()
	}
	if options.clock == nil {
		options.clock = time.Now
	}

	metrics := observability.NewMetrics(cfg.Telemetry.ServiceName, observability.WithMetricsLogger(options.logger))
	svc, err := buildServices(ctx, reg, cfg, options, metrics)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
		Logger:       options.logger,
		Metrics:      metrics,
	}, nil
}

// Close stops the stores and releases the storage backend.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if c.Services.Cart != nil {
		c.Services.Cart.Close()
	}
	if c.Services.Wishlist != nil {
		c.Services.Wishlist.Close()
	}
	if c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(ctx context.Context, reg repositories.Registry, cfg config.Config, options containerOptions, metrics *observability.Metrics) (Services, error) {
	var svc Services

	catalogSvc, err := services.NewCatalogService(reg.Catalog())
	if err != nil {
		return Services{}, fmt.Errorf("build catalog service: %w", err)
	}
	svc.Catalog = catalogSvc

	auth := options.auth
	if auth == nil {
		auth = services.NewSimulatedAuthenticator(cfg.Simulation.LoginLatency)
	}
	sessionSvc, err := services.NewSessionService(services.SessionServiceDeps{
		Authenticator: auth,
		Timeout:       cfg.Timeouts.Login,
		Logger:        eventLogger(options.logger, "session"),
		Metrics:       metrics,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build session service: %w", err)
	}
	svc.Session = sessionSvc

	cartStore, err := services.NewCartStore(ctx, services.CartStoreDeps{
		Repository:       reg.Carts(),
		Inventory:        inventoryGate(cfg, options),
		Clock:            options.clock,
		Logger:           eventLogger(options.logger, "cart"),
		Metrics:          metrics,
		InventoryTimeout: cfg.Timeouts.Inventory,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart store: %w", err)
	}
	svc.Cart = cartStore

	var wishlistSession services.SessionReader
	if cfg.Session.RequireForWishlist {
		wishlistSession = sessionSvc
	}
	wishlistStore, err := services.NewWishlistStore(ctx, services.WishlistStoreDeps{
		Repository: reg.Wishlists(),
		Session:    wishlistSession,
		Clock:      options.clock,
		Logger:     eventLogger(options.logger, "wishlist"),
		Metrics:    metrics,
	})
	if err != nil {
		cartStore.Close()
		return Services{}, fmt.Errorf("build wishlist store: %w", err)
	}
	svc.Wishlist = wishlistStore

	manager, err := paymentManager(cfg, options)
	if err != nil {
		cartStore.Close()
		wishlistStore.Close()
		return Services{}, fmt.Errorf("build payment manager: %w", err)
	}
	svc.Payments = manager

	checkout, err := services.NewCheckoutFlow(services.CheckoutFlowDeps{
		Cart:              cartStore,
		Session:           sessionSvc,
		Payments:          manager,
		Orders:            reg.Orders(),
		Currency:          cfg.App.Currency,
		PreferredProvider: cfg.Payments.PreferredProvider,
		PaymentTimeout:    cfg.Timeouts.Payment,
		Clock:             options.clock,
		Logger:            eventLogger(options.logger, "checkout"),
		Metrics:           metrics,
		OnTransition:      options.onTransition,
	})
	if err != nil {
		cartStore.Close()
		wishlistStore.Close()
		return Services{}, fmt.Errorf("build checkout flow: %w", err)
	}
	svc.Checkout = checkout

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:  reg.Orders(),
		Session: sessionSvc,
		Logger:  eventLogger(options.logger, "orders"),
	})
	if err != nil {
		cartStore.Close()
		wishlistStore.Close()
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	return svc, nil
}

func eventLogger(logger *zap.Logger, name string) observability.EventLogger {
	return observability.NewEventLogger(logger.Named(name))
}

func inventoryGate(cfg config.Config, options containerOptions) services.InventoryGate {
	if options.inventory != nil {
		return options.inventory
	}
	if len(cfg.Simulation.StockLevels) > 0 {
		return services.NewStockLevelGate(cfg.Simulation.StockLevels,
			services.WithStockLatency(cfg.Simulation.InventoryLatency))
	}
	return services.NewSimulatedInventoryGate(cfg.Simulation.InventoryLatency)
}

func paymentManager(cfg config.Config, options containerOptions) (*payments.Manager, error) {
	providers := map[string]payments.Provider{
		payments.SimulatedProviderName: payments.NewSimulatedProvider(payments.SimulatedProviderConfig{
			Latency: cfg.Simulation.PaymentLatency,
			Clock:   options.clock,
			Decline: payments.DeclineCardsEndingIn(cfg.Simulation.DeclineCards...),
		}),
	}
	for name, provider := range options.providers {
		providers[strings.ToLower(name)] = provider
	}
	if preferred := cfg.Payments.PreferredProvider; preferred != "" {
		if _, ok := providers[preferred]; !ok {
			return nil, fmt.Errorf("preferred payment provider %q is not registered", preferred)
		}
	}

	routes := make(map[payments.Method]string, len(cfg.Payments.MethodRoutes))
	for method, provider := range cfg.Payments.MethodRoutes {
		routes[payments.Method(strings.ToLower(method))] = provider
	}

	managerOpts := []payments.ManagerOption{payments.WithMethodRoutes(routes)}
	if cfg.Payments.DefaultProvider != "" {
		managerOpts = append(managerOpts, payments.WithDefaultProvider(cfg.Payments.DefaultProvider))
	}
	return payments.NewManager(providers, managerOpts...)
}
