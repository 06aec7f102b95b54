package observability

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	marketerrors "github.com/merlox/ethereum-store/core/errors"
)

const meterName = "github.com/merlox/ethereum-store/market"

type marketMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	paused     *prometheus.CounterVec

	meter opsMeter
}

// opsMeter mirrors the operation counters onto the OpenTelemetry meter
// provider so they reach the OTLP exporter alongside traces.
type opsMeter struct {
	operations metric.Int64Counter
	latency    metric.Float64Histogram
}

func newOpsMeter(provider metric.MeterProvider) opsMeter {
	if provider == nil {
		provider = noop.NewMeterProvider()
	}
	meter := provider.Meter(meterName)
	operations, err := meter.Int64Counter("market.ops",
		metric.WithDescription("Marketplace operations by operation and outcome."))
	if err != nil {
		operations, _ = noop.NewMeterProvider().Meter(meterName).Int64Counter("market.ops")
	}
	latency, err := meter.Float64Histogram("market.ops.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Marketplace operation latency including commit."))
	if err != nil {
		latency, _ = noop.NewMeterProvider().Meter(meterName).Float64Histogram("market.ops.duration")
	}
	return opsMeter{operations: operations, latency: latency}
}

func (m opsMeter) record(op, outcome string, duration time.Duration) {
	if m.operations == nil {
		return
	}
	ctx := context.Background()
	m.operations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcome),
	))
	m.latency.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("op", op)))
}

var (
	marketMetricsOnce sync.Once
	marketRegistry    *marketMetrics
)

// Market returns the lazily-initialised registry recording marketplace
// operations.
func Market() *marketMetrics {
	marketMetricsOnce.Do(func() {
		marketRegistry = &marketMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "market",
				Subsystem: "ops",
				Name:      "total",
				Help:      "Marketplace operations segmented by operation and outcome.",
			}, []string{"op", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "market",
				Subsystem: "ops",
				Name:      "duration_seconds",
				Help:      "Latency distribution for marketplace operations including commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"op"}),
			paused: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "market",
				Subsystem: "ops",
				Name:      "paused_total",
				Help:      "Operations rejected because their module was paused.",
			}, []string{"op"}),
		}
		prometheus.MustRegister(
			marketRegistry.operations,
			marketRegistry.latency,
			marketRegistry.paused,
		)
		marketRegistry.meter = newOpsMeter(otel.GetMeterProvider())
	})
	return marketRegistry
}

// Observe records the outcome of one marketplace operation.
func (m *marketMetrics) Observe(op string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	op = strings.TrimSpace(op)
	if op == "" {
		op = "unknown"
	}
	outcome := marketerrors.Code(err)
	m.operations.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(duration.Seconds())
	if outcome == "module_paused" {
		m.paused.WithLabelValues(op).Inc()
	}
	m.meter.record(op, outcome, duration)
}
