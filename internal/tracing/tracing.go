// Package tracing wires OpenTelemetry tracing for the node: a process-wide
// TracerProvider and the span names the engine's dispatch pipeline uses
// (§6's Metrics/Tracing wiring; a span per HandleMessage call with
// enrich/authenticate/dispatch/reply as child spans).
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/hstp/node"

// Config configures the node's TracerProvider.
type Config struct {
	ServiceName string
	// Exporter receives completed spans. A nil Exporter disables export;
	// the provider still records spans (useful for unit tests that only
	// check span structure via an in-memory recorder).
	Exporter sdktrace.SpanExporter
	// AlwaysSample forces 100% sampling; otherwise a parent-based sampler
	// deferring to the default trace ratio is used.
	AlwaysSample bool
}

// Init builds and installs the process-wide TracerProvider, returning its
// Shutdown function.
func Init(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	name := cfg.ServiceName
	if name == "" {
		name = "hstp-node"
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(name)))
	if err != nil {
		return nil, err
	}

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.Exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(cfg.Exporter))
	}
	if cfg.AlwaysSample {
		opts = append(opts, sdktrace.WithSampler(sdktrace.AlwaysSample()))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// Tracer returns the node's named tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartMessageSpan starts the root span for one HandleMessage call.
func StartMessageSpan(ctx context.Context, operation, messageID string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "hstp.handle_message",
		trace.WithAttributes(
			attribute.String("hstp.operation", operation),
			attribute.String("hstp.message_id", messageID),
		),
	)
}

// StartStepSpan starts a child span for one pipeline step (enrich,
// authenticate, dispatch, reply).
func StartStepSpan(ctx context.Context, step string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "hstp."+step)
}
