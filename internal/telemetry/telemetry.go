// Package telemetry wires OpenTelemetry tracing and metrics exported over OTLP/gRPC.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const defaultExportInterval = 15 * time.Second

// Config selects what Init installs.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string
	Enabled        bool

	// SampleRatio applies to root spans; outside (0, 1] it means 1.
	SampleRatio float64

	// ExportInterval defaults to 15s.
	ExportInterval time.Duration
}

// Provider owns the SDK providers installed by Init. A disabled Provider owns
// nothing and the global no-op providers stay in place.
type Provider struct {
	tracer *sdktrace.TracerProvider
	meter  *sdkmetric.MeterProvider
}

// Enabled reports whether Init installed exporting providers.
func (p *Provider) Enabled() bool {
	return p.tracer != nil || p.meter != nil
}

// Shutdown flushes and stops both providers, returning every failure.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.tracer != nil {
		if err := p.tracer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider: %w", err))
		}
	}
	if p.meter != nil {
		if err := p.meter.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Init installs global tracer and meter providers plus the W3C propagators.
// Shut the returned Provider down on exit.
func Init(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{}, nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironment(cfg.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("building resource: %w", err)
	}

	spans, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating span exporter: %w", err)
	}
	metrics, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		_ = spans.Shutdown(ctx)
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	p := &Provider{
		tracer: sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(spans),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sampler(cfg.SampleRatio)),
		),
		meter: sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metrics,
				sdkmetric.WithInterval(exportInterval(cfg.ExportInterval)),
			)),
			sdkmetric.WithResource(res),
		),
	}

	otel.SetTracerProvider(p.tracer)
	otel.SetMeterProvider(p.meter)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return p, nil
}

// sampler keeps the caller's decision for continued traces.
func sampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

func exportInterval(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultExportInterval
	}
	return d
}
