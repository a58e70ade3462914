package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/fyrsmithlabs/retractd/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Telemetry owns the SDK tracer and meter providers for one process.
type Telemetry struct {
	cfg    config.TelemetryConfig
	logger *zap.Logger

	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider

	degraded atomic.Bool
	shutdown atomic.Bool
}

// Option configures New.
type Option func(*options)

type options struct {
	logger       *zap.Logger
	spanExporter sdktrace.SpanExporter
	metricReader sdkmetric.Reader
	setGlobals   bool
}

// WithLogger sets the logger used to report degraded exporters.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithSpanExporter replaces the OTLP trace exporter. Spans are exported
// synchronously so tests can read them right after End.
func WithSpanExporter(exp sdktrace.SpanExporter) Option {
	return func(o *options) { o.spanExporter = exp }
}

// WithMetricReader replaces the periodic OTLP metric reader.
func WithMetricReader(r sdkmetric.Reader) Option {
	return func(o *options) { o.metricReader = r }
}

// WithoutGlobals keeps the providers out of the otel globals.
func WithoutGlobals() Option {
	return func(o *options) { o.setGlobals = false }
}

// New builds the providers described by cfg. A disabled config yields an
// instance whose providers are the otel globals.
func New(ctx context.Context, cfg config.TelemetryConfig, opts ...Option) (*Telemetry, error) {
	o := options{logger: zap.NewNop(), setGlobals: true}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	t := &Telemetry{cfg: cfg, logger: o.logger}
	if !cfg.Enabled {
		return t, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}

	res := newResource(cfg)

	tp, err := newTracerProvider(ctx, cfg, res, o.spanExporter)
	if err != nil {
		t.setDegraded("tracer provider", err)
	} else {
		t.tracerProvider = tp
	}

	if cfg.MetricsEnabled || o.metricReader != nil {
		mp, err := newMeterProvider(ctx, cfg, res, o.metricReader)
		if err != nil {
			t.setDegraded("meter provider", err)
		} else {
			t.meterProvider = mp
		}
	}

	if o.setGlobals {
		if t.tracerProvider != nil {
			otel.SetTracerProvider(t.tracerProvider)
		}
		if t.meterProvider != nil {
			otel.SetMeterProvider(t.meterProvider)
		}
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}

	t.logger.Debug("telemetry enabled",
		zap.String("endpoint", cfg.Endpoint),
		zap.String("protocol", cfg.Protocol),
		zap.Bool("metrics", t.meterProvider != nil))
	return t, nil
}

// TracerProvider returns the SDK tracer provider, or the global provider
// when tracing is off.
func (t *Telemetry) TracerProvider() trace.TracerProvider {
	if t == nil || t.tracerProvider == nil {
		return otel.GetTracerProvider()
	}
	return t.tracerProvider
}

// MeterProvider returns the SDK meter provider, or the global provider
// when metrics are off.
func (t *Telemetry) MeterProvider() metric.MeterProvider {
	if t == nil || t.meterProvider == nil {
		return otel.GetMeterProvider()
	}
	return t.meterProvider
}

// Enabled reports whether at least one signal is being exported.
func (t *Telemetry) Enabled() bool {
	if t == nil || t.shutdown.Load() {
		return false
	}
	return t.tracerProvider != nil || t.meterProvider != nil
}

// Degraded reports whether an exporter failed to start.
func (t *Telemetry) Degraded() bool {
	return t != nil && t.degraded.Load()
}

// ForceFlush exports everything pending.
func (t *Telemetry) ForceFlush(ctx context.Context) error {
	if t == nil {
		return nil
	}
	var errs []error
	if t.tracerProvider != nil {
		if err := t.tracerProvider.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace flush: %w", err))
		}
	}
	if t.meterProvider != nil {
		if err := t.meterProvider.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter flush: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Shutdown flushes and stops the providers. Without a deadline on ctx the
// configured shutdown timeout applies. Calling it twice is a no-op.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil || !t.shutdown.CompareAndSwap(false, true) {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok && t.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.ShutdownTimeout.Duration())
		defer cancel()
	}

	var errs []error
	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace provider shutdown: %w", err))
		}
	}
	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (t *Telemetry) setDegraded(what string, err error) {
	t.degraded.Store(true)
	t.logger.Warn("telemetry degraded", zap.String("component", what), zap.Error(err))
}
