package monitor

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// TracerConfig tracing configuration
type TracerConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	JaegerEndpoint string
	SamplingRate   float64
	Enabled        bool
}

// Tracer wraps an OpenTelemetry tracer. A nil or disabled Tracer hands out
// the span already in the context, so callers never need to check.
type Tracer struct {
	config   *TracerConfig
	provider *trace.TracerProvider
	tracer   oteltrace.Tracer
}

// NewTracer creates a tracer exporting to Jaeger when enabled
func NewTracer(config *TracerConfig) (*Tracer, error) {
	if !config.Enabled {
		return &Tracer{
			config: config,
			tracer: otel.Tracer(config.ServiceName),
		}, nil
	}

	exporter, err := jaeger.New(
		jaeger.WithCollectorEndpoint(
			jaeger.WithEndpoint(config.JaegerEndpoint),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create jaeger exporter: %w", err)
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(config.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(trace.TraceIDRatioBased(config.SamplingRate)),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Tracer{
		config:   config,
		provider: provider,
		tracer:   provider.Tracer(config.ServiceName),
	}, nil
}

func (t *Tracer) enabled() bool {
	return t != nil && t.config != nil && t.config.Enabled
}

// StartSpan starts a span named operationName
func (t *Tracer) StartSpan(ctx context.Context, operationName string, opts ...oteltrace.SpanStartOption) (context.Context, oteltrace.Span) {
	if !t.enabled() {
		return ctx, oteltrace.SpanFromContext(ctx)
	}
	return t.tracer.Start(ctx, operationName, opts...)
}

// StartHTTPSpan starts a server span continuing any trace in headers
func (t *Tracer) StartHTTPSpan(ctx context.Context, carrier propagation.TextMapCarrier, method, route, clientIP string) (context.Context, oteltrace.Span) {
	if !t.enabled() {
		return ctx, oteltrace.SpanFromContext(ctx)
	}

	ctx = otel.GetTextMapPropagator().Extract(ctx, carrier)
	return t.tracer.Start(ctx, fmt.Sprintf("%s %s", method, route),
		oteltrace.WithSpanKind(oteltrace.SpanKindServer),
		oteltrace.WithAttributes(
			semconv.HTTPMethodKey.String(method),
			semconv.HTTPRouteKey.String(route),
			semconv.HTTPClientIPKey.String(clientIP),
		),
	)
}

// StartCheckoutSpan starts the span around one checkout transaction
func (t *Tracer) StartCheckoutSpan(ctx context.Context, userID string, lines int) (context.Context, oteltrace.Span) {
	if !t.enabled() {
		return ctx, oteltrace.SpanFromContext(ctx)
	}
	return t.tracer.Start(ctx, "checkout.execute",
		oteltrace.WithAttributes(
			attribute.String("checkout.user_id", userID),
			attribute.Int("checkout.lines", lines),
		),
	)
}

// StartQueueSpan starts a span for a queue operation
func (t *Tracer) StartQueueSpan(ctx context.Context, operation, topic string) (context.Context, oteltrace.Span) {
	if !t.enabled() {
		return ctx, oteltrace.SpanFromContext(ctx)
	}
	kind := oteltrace.SpanKindProducer
	if operation == "receive" {
		kind = oteltrace.SpanKindConsumer
	}
	return t.tracer.Start(ctx, fmt.Sprintf("queue.%s.%s", operation, topic),
		oteltrace.WithSpanKind(kind),
		oteltrace.WithAttributes(
			attribute.String("messaging.system", "memory"),
			attribute.String("messaging.operation", operation),
			attribute.String("messaging.destination", topic),
		),
	)
}

// AddSpanAttributes adds attributes to span
func (t *Tracer) AddSpanAttributes(span oteltrace.Span, attrs ...attribute.KeyValue) {
	if !t.enabled() {
		return
	}
	span.SetAttributes(attrs...)
}

// RecordError marks span as failed
func (t *Tracer) RecordError(span oteltrace.Span, err error) {
	if !t.enabled() || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// Shutdown flushes and stops the exporter
func (t *Tracer) Shutdown(ctx context.Context) error {
	if !t.enabled() || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// TraceID returns the trace id in ctx, or "" without a sampled span
func TraceID(ctx context.Context) string {
	span := oteltrace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}

// DefaultTracerConfig default tracer configuration
func DefaultTracerConfig() *TracerConfig {
	return &TracerConfig{
		ServiceName:    "storefront",
		ServiceVersion: "1.0.0",
		Environment:    "development",
		JaegerEndpoint: "http://localhost:14268/api/traces",
		SamplingRate:   1.0,
		Enabled:        false,
	}
}
