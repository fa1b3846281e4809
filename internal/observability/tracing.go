// Package observability wires OpenTelemetry tracing across the turn
// engine, provider dispatch, and both HTTP surfaces (platform admin API,
// gateway tenant API). A Tracer with no configured endpoint is a no-op:
// every span still exists, just never exported, so call sites never need
// a nil check.
package observability

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the process-wide span factory for one binary (platform or
// gateway).
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// Config configures a Tracer.
type Config struct {
	// ServiceName identifies this process in exported traces.
	ServiceName string
	// Endpoint is the OTLP/gRPC collector address, e.g. "localhost:4317".
	// Tracing is a no-op when empty.
	Endpoint string
	// SamplingRate is the fraction of traces recorded, 0.0-1.0. Defaults
	// to 1.0.
	SamplingRate float64
	// Insecure disables TLS on the OTLP connection (local collectors only).
	Insecure bool
}

// New builds a Tracer and returns a shutdown hook that must run before
// process exit so buffered spans flush. If cfg.Endpoint is empty, or the
// exporter can't be built, tracing falls back to a no-op tracer rather
// than failing startup over an observability dependency.
func New(cfg Config) (*Tracer, func(context.Context) error) {
	noop := func(context.Context) error { return nil }
	if cfg.ServiceName == "" {
		cfg.ServiceName = "agentmesh"
	}
	if cfg.Endpoint == "" {
		return &Tracer{tracer: otel.Tracer(cfg.ServiceName)}, noop
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptrace.New(context.Background(), otlptracegrpc.NewClient(opts...))
	if err != nil {
		return &Tracer{tracer: otel.Tracer(cfg.ServiceName)}, noop
	}

	res, err := resource.New(context.Background(), resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
	))
	if err != nil {
		res = resource.Default()
	}

	rate := cfg.SamplingRate
	var sampler sdktrace.Sampler
	switch {
	case rate <= 0:
		sampler = sdktrace.AlwaysSample()
	case rate >= 1:
		sampler = sdktrace.AlwaysSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(rate)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	return &Tracer{provider: provider, tracer: provider.Tracer(cfg.ServiceName)}, provider.Shutdown
}

// Start opens a new span as a child of any span already in ctx.
func (t *Tracer) Start(ctx context.Context, name string, kind trace.SpanKind, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, trace.WithSpanKind(kind), trace.WithAttributes(attrs...))
}

// RecordError marks span as failed, a no-op if err is nil.
func (t *Tracer) RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// TraceAgentTurn spans one Engine.Process call.
func (t *Tracer) TraceAgentTurn(ctx context.Context, agentName, sessionID string) (context.Context, trace.Span) {
	return t.Start(ctx, "agent.turn", trace.SpanKindInternal,
		attribute.String("agent.name", agentName),
		attribute.String("session.id", sessionID),
	)
}

// TraceProviderRequest spans one outbound LLM call.
func (t *Tracer) TraceProviderRequest(ctx context.Context, provider, model string) (context.Context, trace.Span) {
	return t.Start(ctx, fmt.Sprintf("llm.%s", provider), trace.SpanKindClient,
		attribute.String("llm.provider", provider),
		attribute.String("llm.model", model),
	)
}

// TraceToolExecution spans one tool invocation inside the turn loop.
func (t *Tracer) TraceToolExecution(ctx context.Context, toolName string) (context.Context, trace.Span) {
	return t.Start(ctx, fmt.Sprintf("tool.%s", toolName), trace.SpanKindInternal,
		attribute.String("tool.name", toolName),
	)
}

// HTTPMiddleware wraps a handler with a server span per request, named
// after the request method and URL path.
func (t *Tracer) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := t.Start(ctx, fmt.Sprintf("http.%s %s", r.Method, r.URL.Path), trace.SpanKindServer,
			attribute.String("http.method", r.Method),
			attribute.String("http.path", r.URL.Path),
		)
		defer span.End()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
