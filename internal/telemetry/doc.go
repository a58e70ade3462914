// Package telemetry sets up OpenTelemetry tracing and metrics for retractd.
//
// Spans from the analysis service and similarity engine, and metrics from
// the content cache and embedding providers, are exported over OTLP (gRPC
// or HTTP/protobuf) to a collector:
//
//	tel, err := telemetry.New(ctx, cfg.Telemetry, telemetry.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(ctx)
//
//	svc, err := analysis.NewService(analysis.Options{
//	    TracerProvider: tel.TracerProvider(),
//	    ...
//	})
//
// When telemetry is disabled the providers fall back to the otel globals,
// which are no-ops unless something else installed them. Exporter setup
// failures never fail the caller; the instance reports itself degraded and
// keeps running without that signal.
//
// Tests use Recorder, which keeps spans and metrics in memory.
package telemetry
