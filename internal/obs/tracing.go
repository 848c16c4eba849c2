package obs

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// NewTracerProvider builds an in-process OpenTelemetry tracer provider
// with no exporter wired (spans are produced and sampled but not
// shipped anywhere). Replace the default SpanProcessor with a real
// exporter at the call site when one is available; the engine itself
// only needs the tracer to attribute per-device assessment latency.
func NewTracerProvider(serviceName string) *sdktrace.TracerProvider {
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))
	return sdktrace.NewTracerProvider(sdktrace.WithResource(res))
}

// Tracer returns the named tracer from the global otel provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// StartSpan starts a span if tracer is non-nil, otherwise returns the
// context unchanged and the span already in it (a no-op span when
// there is none).
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...trace.SpanStartOption) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, attrs...)
}
