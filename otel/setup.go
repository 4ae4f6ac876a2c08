// Package otel wires the OpenTelemetry SDK for the PetalPlan service:
// an OTLP/HTTP trace exporter plus tracer and meter providers.
package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Config configures telemetry setup.
type Config struct {
	// ServiceName is reported as the service.name resource attribute.
	ServiceName string

	// Endpoint is the OTLP/HTTP collector endpoint, e.g. "localhost:4318".
	// Empty disables trace export; spans are still created so handlers can
	// attach attributes, they just go nowhere.
	Endpoint string

	// Insecure disables TLS on the exporter connection.
	Insecure bool
}

// Telemetry holds the initialized providers and their shutdown hook.
type Telemetry struct {
	Tracer trace.Tracer
	Meter  metric.Meter

	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
}

// Setup initializes tracing and metrics and installs the providers
// globally. Call Shutdown before process exit to flush pending spans.
func Setup(ctx context.Context, cfg Config) (*Telemetry, error) {
	name := cfg.ServiceName
	if name == "" {
		name = "petalplan"
	}
	res := resource.NewSchemaless(attribute.String("service.name", name))

	var traceOpts []sdktrace.TracerProviderOption
	traceOpts = append(traceOpts, sdktrace.WithResource(res))

	if cfg.Endpoint != "" {
		expOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			expOpts = append(expOpts, otlptracehttp.WithInsecure())
		}
		exporter, err := otlptracehttp.New(ctx, expOpts...)
		if err != nil {
			return nil, fmt.Errorf("otel: creating trace exporter: %w", err)
		}
		traceOpts = append(traceOpts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(traceOpts...)
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res))

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	return &Telemetry{
		Tracer:         tp.Tracer(name),
		Meter:          mp.Meter(name),
		tracerProvider: tp,
		meterProvider:  mp,
	}, nil
}

// Shutdown flushes and stops both providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var firstErr error
	if err := t.tracerProvider.Shutdown(ctx); err != nil {
		firstErr = err
	}
	if err := t.meterProvider.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
