package observability

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

const (
	attrTraceID  = "trace_id"
	attrSpanID   = "span_id"
	attrRunID    = "run_id"
	attrDocument = "document"
	attrService  = "service"
	attrEnv      = "env"
	attrMode     = "mode"
)

type runKey struct{}

type runInfo struct {
	id       string
	document string
}

// WithRun tags ctx with a compilation run ID and document name. Log records
// emitted with that context carry both values.
func WithRun(ctx context.Context, runID, document string) context.Context {
	return context.WithValue(ctx, runKey{}, runInfo{id: runID, document: document})
}

// RunID returns the run ID stored by WithRun, or "".
func RunID(ctx context.Context) string {
	info, _ := ctx.Value(runKey{}).(runInfo)

	return info.id
}

// TracingHandler is an [slog.Handler] that adds the active span and run to
// every record. Service metadata is attached once at construction so it stays
// at the top level when groups are used.
type TracingHandler struct {
	inner slog.Handler
}

// NewTracingHandler wraps inner with trace, run and service attributes.
func NewTracingHandler(inner slog.Handler, service, env string, appMode AppMode) *TracingHandler {
	attrs := []slog.Attr{
		slog.String(attrService, service),
		slog.String(attrMode, string(appMode)),
	}

	if env != "" {
		attrs = append(attrs, slog.String(attrEnv, env))
	}

	return &TracingHandler{inner: inner.WithAttrs(attrs)}
}

// Enabled delegates to the inner handler.
func (th *TracingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return th.inner.Enabled(ctx, level)
}

// Handle enriches the record from ctx and delegates.
func (th *TracingHandler) Handle(ctx context.Context, record slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		record.AddAttrs(
			slog.String(attrTraceID, sc.TraceID().String()),
			slog.String(attrSpanID, sc.SpanID().String()),
		)
	}

	if info, ok := ctx.Value(runKey{}).(runInfo); ok {
		record.AddAttrs(slog.String(attrRunID, info.id))

		if info.document != "" {
			record.AddAttrs(slog.String(attrDocument, info.document))
		}
	}

	err := th.inner.Handle(ctx, record)
	if err != nil {
		return fmt.Errorf("tracing handler: %w", err)
	}

	return nil
}

// WithAttrs returns a handler with attrs added to the inner handler.
func (th *TracingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TracingHandler{inner: th.inner.WithAttrs(attrs)}
}

// WithGroup returns a handler with a group prefix on the inner handler.
func (th *TracingHandler) WithGroup(name string) slog.Handler {
	return &TracingHandler{inner: th.inner.WithGroup(name)}
}
