// Package obsotel wires the observer sink's lifecycle events into
// OpenTelemetry spans, grounded on the teacher's pkg/telemetry tracer
// helper and haasonsaas-nexus's fuller TracerProvider bootstrap (this
// gateway exports over OTLP-HTTP rather than gRPC, per go.mod).
package obsotel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerName is the instrumentation scope name for every span this
// package creates.
const TracerName = "lunaroute-gateway"

// TraceConfig configures the OTLP-HTTP exporter. A zero-value Endpoint
// disables tracing entirely (NewTracerProvider returns a no-op tracer).
type TraceConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Insecure       bool
}

// NewTracerProvider builds the span pipeline for one process lifetime.
// If cfg.Endpoint is empty, it returns a no-op tracer and a shutdown
// that does nothing, so the gateway runs unchanged with tracing off.
func NewTracerProvider(ctx context.Context, cfg TraceConfig) (trace.Tracer, func(context.Context) error, error) {
	if cfg.Endpoint == "" {
		return noop.NewTracerProvider().Tracer(TracerName), func(context.Context) error { return nil }, nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		resourceAttributes(cfg)...,
	))
	if err != nil {
		res = resource.Default()
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return provider.Tracer(TracerName), provider.Shutdown, nil
}

func resourceAttributes(cfg TraceConfig) []attribute.KeyValue {
	name := cfg.ServiceName
	if name == "" {
		name = "lunaroute-gateway"
	}
	attrs := []attribute.KeyValue{semconv.ServiceName(name)}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}
	return attrs
}
