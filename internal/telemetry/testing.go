package telemetry

import (
	"context"
	"testing"

	"github.com/fyrsmithlabs/retractd/internal/config"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// Recorder is a Telemetry that keeps spans and metrics in memory.
type Recorder struct {
	*Telemetry

	Exporter *tracetest.InMemoryExporter
	Reader   *sdkmetric.ManualReader
}

// NewRecorder builds an enabled in-memory Telemetry that leaves the otel
// globals untouched. It is shut down when the test ends.
func NewRecorder(tb testing.TB) *Recorder {
	tb.Helper()

	cfg := config.Default().Telemetry
	cfg.Enabled = true

	exp := tracetest.NewInMemoryExporter()
	reader := sdkmetric.NewManualReader()
	tel, err := New(context.Background(), cfg,
		WithSpanExporter(exp), WithMetricReader(reader), WithoutGlobals())
	if err != nil {
		tb.Fatalf("telemetry.New: %v", err)
	}
	tb.Cleanup(func() { _ = tel.Shutdown(context.Background()) })

	return &Recorder{Telemetry: tel, Exporter: exp, Reader: reader}
}

// SpanNames returns the names of ended spans in end order.
func (r *Recorder) SpanNames() []string {
	spans := r.Exporter.GetSpans()
	names := make([]string, 0, len(spans))
	for _, s := range spans {
		names = append(names, s.Name)
	}
	return names
}

// Span returns the first ended span called name.
func (r *Recorder) Span(name string) (tracetest.SpanStub, bool) {
	for _, s := range r.Exporter.GetSpans() {
		if s.Name == name {
			return s, true
		}
	}
	return tracetest.SpanStub{}, false
}

// CounterTotal sums every data point of the int64 counter called name.
func (r *Recorder) CounterTotal(tb testing.TB, name string) int64 {
	tb.Helper()

	var rm metricdata.ResourceMetrics
	if err := r.Reader.Collect(context.Background(), &rm); err != nil {
		tb.Fatalf("collect metrics: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				tb.Fatalf("metric %s is %T, not an int64 sum", name, m.Data)
			}
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}
