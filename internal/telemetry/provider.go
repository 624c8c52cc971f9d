package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/heyysiri/EcoTrail/internal/telemetry"

// Call outcomes recorded by ProviderMetrics.
const (
	OutcomeSuccess  = "success"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
	OutcomeTimeout  = "timeout"
)

// ProviderMetrics holds metrics for external provider calls.
type ProviderMetrics struct {
	callDuration metric.Float64Histogram
	callTotal    metric.Int64Counter
	cacheHits    metric.Int64Counter
	cacheMisses  metric.Int64Counter
}

// NewProviderMetrics registers instruments on the global meter provider; they
// record nothing until Init installs an exporting one.
func NewProviderMetrics() (*ProviderMetrics, error) {
	return NewProviderMetricsWithMeter(otel.Meter(meterName))
}

// NewProviderMetricsWithMeter registers instruments on meter.
func NewProviderMetricsWithMeter(meter metric.Meter) (*ProviderMetrics, error) {
	callDuration, err := meter.Float64Histogram(
		"ecotrail.provider.call.duration",
		metric.WithDescription("Duration of provider calls in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8),
	)
	if err != nil {
		return nil, err
	}

	callTotal, err := meter.Int64Counter(
		"ecotrail.provider.calls",
		metric.WithDescription("Total number of provider calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	cacheHits, err := meter.Int64Counter(
		"ecotrail.provider.cache.hits",
		metric.WithDescription("Number of provider cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, err
	}

	cacheMisses, err := meter.Int64Counter(
		"ecotrail.provider.cache.misses",
		metric.WithDescription("Number of provider cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, err
	}

	return &ProviderMetrics{
		callDuration: callDuration,
		callTotal:    callTotal,
		cacheHits:    cacheHits,
		cacheMisses:  cacheMisses,
	}, nil
}

// RecordCall records one provider call. Safe to call on a nil receiver.
func (m *ProviderMetrics) RecordCall(provider, operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("provider.name", provider),
		attribute.String("provider.operation", operation),
		attribute.String("outcome", outcome),
	)

	// Recorded even when the request context is already cancelled.
	ctx := context.Background()
	m.callDuration.Record(ctx, duration.Seconds(), attrs)
	m.callTotal.Add(ctx, 1, attrs)
}

// RecordCacheHit records a cache hit. Safe to call on a nil receiver.
func (m *ProviderMetrics) RecordCacheHit(provider, operation string) {
	if m == nil {
		return
	}
	m.cacheHits.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("provider.name", provider),
		attribute.String("provider.operation", operation),
	))
}

// RecordCacheMiss records a cache miss. Safe to call on a nil receiver.
func (m *ProviderMetrics) RecordCacheMiss(provider, operation string) {
	if m == nil {
		return
	}
	m.cacheMisses.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("provider.name", provider),
		attribute.String("provider.operation", operation),
	))
}
