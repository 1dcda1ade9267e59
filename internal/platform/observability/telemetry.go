package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/hanko-field/storefront"

// Tracer returns the storefront tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// StartSpan opens a span named after the storefront operation.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// Metrics groups the storefront instruments. A nil *Metrics records nothing.
type Metrics struct {
	cartMutations       metric.Int64Counter
	checkoutOutcomes    metric.Int64Counter
	collaboratorLatency metric.Float64Histogram
}

// MetricsOption customises NewMetrics.
type MetricsOption func(*metricsOptions)

type metricsOptions struct {
	meter  metric.Meter
	logger *zap.Logger
}

// WithMeter overrides the meter (defaults to the global provider).
func WithMeter(meter metric.Meter) MetricsOption {
	return func(o *metricsOptions) { o.meter = meter }
}

// WithMetricsLogger sets the logger used to report registration failures.
func WithMetricsLogger(logger *zap.Logger) MetricsOption {
	return func(o *metricsOptions) { o.logger = logger }
}

// NewMetrics registers the storefront instruments. Registration failures are
// logged and the affected instrument is skipped.
func NewMetrics(serviceName string, opts ...MetricsOption) *Metrics {
	options := metricsOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = zap.NewNop()
	}
	if serviceName == "" {
		serviceName = "storefront"
	}
	meter := options.meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(instrumentationName)
	}

	m := &Metrics{}
	var err error
	m.cartMutations, err = meter.Int64Counter(
		serviceName+".cart.mutations",
		metric.WithDescription("Count of cart mutations by operation and outcome"),
	)
	if err != nil {
		options.logger.Warn("observability: unable to register cart mutation metric", zap.Error(err))
	}
	m.checkoutOutcomes, err = meter.Int64Counter(
		serviceName+".checkout.outcomes",
		metric.WithDescription("Count of checkout submissions by outcome"),
	)
	if err != nil {
		options.logger.Warn("observability: unable to register checkout metric", zap.Error(err))
	}
	m.collaboratorLatency, err = meter.Float64Histogram(
		serviceName+".collaborator.latency",
		metric.WithUnit("ms"),
		metric.WithDescription("Latency in milliseconds of inventory, payment and login calls"),
	)
	if err != nil {
		options.logger.Warn("observability: unable to register collaborator latency metric", zap.Error(err))
	}
	return m
}

// RecordCartMutation counts a cart or wishlist mutation.
func (m *Metrics) RecordCartMutation(ctx context.Context, operation, outcome string) {
	if m == nil || m.cartMutations == nil {
		return
	}
	m.cartMutations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}

// RecordCheckout counts a checkout submission outcome.
func (m *Metrics) RecordCheckout(ctx context.Context, outcome string) {
	if m == nil || m.checkoutOutcomes == nil {
		return
	}
	m.checkoutOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordCollaboratorLatency records how long a simulated or real collaborator took.
func (m *Metrics) RecordCollaboratorLatency(ctx context.Context, collaborator string, elapsed time.Duration) {
	if m == nil || m.collaboratorLatency == nil {
		return
	}
	m.collaboratorLatency.Record(ctx, float64(elapsed)/float64(time.Millisecond), metric.WithAttributes(
		attribute.String("collaborator", collaborator),
	))
}
