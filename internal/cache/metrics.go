package cache

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const cacheInstrumentationName = "github.com/fyrsmithlabs/retractd/internal/cache"

// Operation results recorded on the operations counter.
const (
	resultHit   = "hit"
	resultMiss  = "miss"
	resultOK    = "ok"
	resultError = "error"
)

// Metrics holds cache metrics.
type Metrics struct {
	operations metric.Int64Counter
}

// NewMetrics creates cache metrics from provider. A nil provider uses the
// global meter provider.
func NewMetrics(provider metric.MeterProvider, logger *zap.Logger) *Metrics {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(cacheInstrumentationName)

	m := &Metrics{}
	var err error
	m.operations, err = meter.Int64Counter(
		"retractd.cache.operations_total",
		metric.WithDescription("Cache operations by namespace, operation (get, put, invalidate) and result (hit, miss, ok, error)"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		logger.Warn("failed to create cache operations counter", zap.Error(err))
	}
	return m
}

func (m *Metrics) record(ctx context.Context, namespace, op, result string) {
	if m == nil || m.operations == nil {
		return
	}
	m.operations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("namespace", namespace),
		attribute.String("op", op),
		attribute.String("result", result),
	))
}
