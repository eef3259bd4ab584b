package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/Ramsey-B/clover/pkg/tracing/exporters"
)

var tracer trace.Tracer

// Config controls how the tracer provider is constructed.
type Config struct {
	Enabled     bool
	ServiceName string
	Version     string
	Environment string
	SampleRatio float64
	Exporter    exporters.OTLPConfig
}

// Init builds the tracer provider, registers it globally, and wires the
// package tracer. The returned shutdown func flushes any buffered spans.
func Init(ctx context.Context, config Config) (func(context.Context) error, error) {
	if !config.Enabled {
		SetTracer(nil)
		return func(context.Context) error { return nil }, nil
	}

	var exporter sdktrace.SpanExporter
	if config.Exporter.Protocol == "console" {
		exporter = &exporters.ConsoleExporter{}
	} else {
		otlp, err := exporters.NewOTLPExporter(ctx, config.Exporter)
		if err != nil {
			return nil, err
		}
		exporter = otlp
	}

	res, err := sdkresource.Merge(
		sdkresource.Default(),
		sdkresource.NewSchemaless(
			attribute.String("service.name", config.ServiceName),
			attribute.String("service.version", config.Version),
			attribute.String("deployment.environment", config.Environment),
		),
	)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(config.SampleRatio))),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	SetTracer(provider.Tracer(config.ServiceName))

	return provider.Shutdown, nil
}

// SetTracer sets the tracer to be used for tracing.
func SetTracer(t trace.Tracer) {
	tracer = t
}

// GetActiveSpan returns the active span from the context.
func GetActiveSpan(ctx context.Context) trace.Span {
	if tracer == nil {
		return nil
	}
	span := trace.SpanFromContext(ctx)
	// Check if the span is a no-op span (which is what we get when there's no real span)
	if !span.SpanContext().IsValid() {
		return nil
	}
	return span
}

// StartSpan starts a new span with the given name and returns the context and span.
func StartSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, spanName)
}

// GetTraceParent returns the trace parent from the context.
func GetTraceParent(ctx context.Context) string {
	span := GetActiveSpan(ctx)
	if span == nil {
		return ""
	}

	tp := propagation.TraceContext{}
	carrier := propagation.MapCarrier{}
	tp.Inject(ctx, carrier)

	return carrier.Get("traceparent")
}

// GetTraceID returns the trace ID from the context.
func GetTraceID(ctx context.Context) string {
	span := GetActiveSpan(ctx)
	if span == nil {
		return ""
	}
	return span.SpanContext().TraceID().String()
}
