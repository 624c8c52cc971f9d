package middleware

import (
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/heyysiri/EcoTrail/internal/api/middleware"

// unmatchedRoute labels requests chi could not route, so probes of random
// paths do not create new series.
const unmatchedRoute = "unmatched"

// Metrics records per-route API request metrics.
type Metrics struct {
	duration metric.Float64Histogram
	requests metric.Int64Counter
	active   metric.Int64UpDownCounter
}

// NewMetrics creates instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return NewMetricsWithMeter(otel.Meter(meterName))
}

// NewMetricsWithMeter creates instruments on meter.
func NewMetricsWithMeter(meter metric.Meter) (*Metrics, error) {
	duration, err := meter.Float64Histogram(
		"ecotrail.api.request.duration",
		metric.WithDescription("Duration of API requests"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10),
	)
	if err != nil {
		return nil, err
	}

	requests, err := meter.Int64Counter(
		"ecotrail.api.requests",
		metric.WithDescription("API requests by route and status"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	active, err := meter.Int64UpDownCounter(
		"ecotrail.api.requests.active",
		metric.WithDescription("API requests being served"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{duration: duration, requests: requests, active: active}, nil
}

// Middleware records duration and outcome per chi route pattern.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := r.Context()

			method := metric.WithAttributes(attribute.String("http.request.method", r.Method))
			m.active.Add(ctx, 1, method)
			defer m.active.Add(ctx, -1, method)

			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			route := routePattern(r)
			if route == "" {
				route = unmatchedRoute
			}
			attrs := metric.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("http.route", route),
				attribute.Int("http.response.status_code", wrapped.statusCode),
				attribute.String("http.response.status_class", statusClass(wrapped.statusCode)),
			)
			m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
			m.requests.Add(ctx, 1, attrs)
		})
	}
}

func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}
