// Package tracing provides OpenTelemetry span helpers. The process wires no
// exporter of its own — spans go to whatever TracerProvider the embedding
// deployment registered globally (an OTLP collector sidecar, usually), and
// fall back to the SDK's no-op provider otherwise, so instrumented code
// never has to check whether tracing is enabled.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "agentflow"

// StartSpan starts a span under the global tracer, attaching any initial
// attributes.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records err (if any) on span and ends it. A convenience for the
// common defer-at-entry shape where the error isn't known until return.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// SpanFromContext returns the current span, or a no-op span when ctx
// carries none.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}
