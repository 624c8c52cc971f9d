package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/heyysiri/EcoTrail/internal/telemetry"
)

func TestInit_Disabled(t *testing.T) {
	provider, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName:  "ecotrail-api",
		OTLPEndpoint: "localhost:4317",
	})
	require.NoError(t, err)

	assert.False(t, provider.Enabled())
	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestProvider_ZeroValueShutdown(t *testing.T) {
	var provider telemetry.Provider
	assert.NoError(t, provider.Shutdown(context.Background()))
}

func newProviderMetrics(t *testing.T) (*telemetry.ProviderMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := telemetry.NewProviderMetricsWithMeter(mp.Meter("test"))
	require.NoError(t, err)
	return m, reader
}

// counterValues sums an int64 counter keyed "name/operation[/outcome]".
func counterValues(t *testing.T, reader *sdkmetric.ManualReader, name string) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if md.Name != name {
				continue
			}
			sum, ok := md.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				key := attrString(dp.Attributes, "provider.name") + "/" + attrString(dp.Attributes, "provider.operation")
				if outcome := attrString(dp.Attributes, "outcome"); outcome != "" {
					key += "/" + outcome
				}
				out[key] += dp.Value
			}
		}
	}
	return out
}

func attrString(set attribute.Set, key string) string {
	v, _ := set.Value(attribute.Key(key))
	return v.AsString()
}

func TestProviderMetrics_RecordCall(t *testing.T) {
	m, reader := newProviderMetrics(t)

	m.RecordCall("googlemaps", "driving", telemetry.OutcomeSuccess, 120*time.Millisecond)
	m.RecordCall("googlemaps", "driving", telemetry.OutcomeSuccess, 80*time.Millisecond)
	m.RecordCall("googlemaps", "transit", telemetry.OutcomeTimeout, 5*time.Second)
	m.RecordCall("staticmaps", "render", telemetry.OutcomeError, time.Second)

	assert.Equal(t, map[string]int64{
		"googlemaps/driving/success": 2,
		"googlemaps/transit/timeout": 1,
		"staticmaps/render/error":    1,
	}, counterValues(t, reader, "ecotrail.provider.calls"))
}

func TestProviderMetrics_Cache(t *testing.T) {
	m, reader := newProviderMetrics(t)

	m.RecordCacheMiss("googlemaps", "walking")
	m.RecordCacheHit("googlemaps", "walking")
	m.RecordCacheHit("googlemaps", "walking")

	assert.Equal(t, map[string]int64{"googlemaps/walking": 2}, counterValues(t, reader, "ecotrail.provider.cache.hits"))
	assert.Equal(t, map[string]int64{"googlemaps/walking": 1}, counterValues(t, reader, "ecotrail.provider.cache.misses"))
}

func TestProviderMetrics_GlobalMeter(t *testing.T) {
	m, err := telemetry.NewProviderMetrics()
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		m.RecordCall("googlemaps", "driving", telemetry.OutcomeSuccess, 120*time.Millisecond)
		m.RecordCacheHit("googlemaps", "driving")
	})
}

func TestProviderMetrics_NilReceiver(t *testing.T) {
	var m *telemetry.ProviderMetrics

	assert.NotPanics(t, func() {
		m.RecordCall("googlemaps", "driving", telemetry.OutcomeError, time.Second)
		m.RecordCacheHit("googlemaps", "driving")
		m.RecordCacheMiss("googlemaps", "driving")
	})
}
