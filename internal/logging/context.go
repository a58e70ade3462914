package logging

import (
	"context"
	"regexp"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type paperKey struct{}
type runKey struct{}

const maxIDLen = 256

// DOIs contain slashes, dots, parentheses and colons.
var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_.:/()\-]+$`)

func validID(id string) bool {
	return id != "" && len(id) <= maxIDLen && utf8.ValidString(id) && idPattern.MatchString(id)
}

// WithPaperID records the paper under analysis. Malformed IDs are dropped
// so a bad identifier never breaks logging.
func WithPaperID(ctx context.Context, paperID string) context.Context {
	if !validID(paperID) {
		return ctx
	}
	return context.WithValue(ctx, paperKey{}, paperID)
}

// PaperID returns the paper recorded by WithPaperID.
func PaperID(ctx context.Context) string {
	id, _ := ctx.Value(paperKey{}).(string)
	return id
}

// WithRunID records the ID of one CLI invocation.
func WithRunID(ctx context.Context, runID string) context.Context {
	if !validID(runID) {
		return ctx
	}
	return context.WithValue(ctx, runKey{}, runID)
}

// RunID returns the ID recorded by WithRunID.
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runKey{}).(string)
	return id
}

// ContextFields returns the correlation fields carried by ctx: the active
// span, the run and the paper.
func ContextFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.Stringer("trace_id", sc.TraceID()),
			zap.Stringer("span_id", sc.SpanID()))
	}
	if id := RunID(ctx); id != "" {
		fields = append(fields, zap.String("run.id", id))
	}
	if id := PaperID(ctx); id != "" {
		fields = append(fields, zap.String("paper.id", id))
	}
	return fields
}

// For returns base annotated with the correlation fields in ctx.
func For(ctx context.Context, base *zap.Logger) *zap.Logger {
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}
