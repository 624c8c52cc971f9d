package routing

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/heyysiri/EcoTrail/internal/telemetry"
)

const tracerName = "github.com/heyysiri/EcoTrail/internal/routing"

// DefaultCallTimeout bounds a single provider call.
const DefaultCallTimeout = 10 * time.Second

// AggregatorConfig holds configuration for the aggregator.
type AggregatorConfig struct {
	// Provider is the routing data provider.
	Provider Provider

	// Logger for aggregation diagnostics.
	Logger zerolog.Logger

	// CallTimeout is the deadline for each per-mode provider call (default: 10s).
	// A mode whose call exceeds it is reported as failed.
	CallTimeout time.Duration

	// Metrics records provider call outcomes (optional).
	Metrics *telemetry.ProviderMetrics
}

// Aggregator queries a Provider once per requested mode, concurrently.
type Aggregator struct {
	provider    Provider
	logger      zerolog.Logger
	callTimeout time.Duration
	metrics     *telemetry.ProviderMetrics
	tracer      trace.Tracer
}

// NewAggregator creates a new aggregator.
func NewAggregator(cfg AggregatorConfig) *Aggregator {
	callTimeout := cfg.CallTimeout
	if callTimeout <= 0 {
		callTimeout = DefaultCallTimeout
	}

	return &Aggregator{
		provider:    cfg.Provider,
		logger:      cfg.Logger,
		callTimeout: callTimeout,
		metrics:     cfg.Metrics,
		tracer:      otel.Tracer(tracerName),
	}
}

// Outcome is the result of fetching one mode: exactly one of Metric and Err is set.
type Outcome struct {
	Mode   Mode
	Metric *RouteMetric
	Err    error
}

// OK reports whether the mode produced a metric.
func (o Outcome) OK() bool {
	return o.Err == nil
}

func succeeded(mode Mode, metric RouteMetric) Outcome {
	metric.Mode = mode
	return Outcome{Mode: mode, Metric: &metric}
}

func failed(mode Mode, err error) Outcome {
	return Outcome{Mode: mode, Err: err}
}

// Aggregation is the per-mode result of one Aggregate call.
// Every requested mode appears exactly once, either with a metric or as failed.
type Aggregation struct {
	Outcomes []Outcome
}

// Metrics returns the metrics of every mode that succeeded.
func (a Aggregation) Metrics() map[Mode]RouteMetric {
	metrics := make(map[Mode]RouteMetric, len(a.Outcomes))
	for _, o := range a.Outcomes {
		if o.OK() {
			metrics[o.Mode] = *o.Metric
		}
	}
	return metrics
}

// Failed returns the modes that produced no metric, in request order.
func (a Aggregation) Failed() []Mode {
	var modes []Mode
	for _, o := range a.Outcomes {
		if !o.OK() {
			modes = append(modes, o.Mode)
		}
	}
	return modes
}

// Failures returns the cause of each failed mode.
func (a Aggregation) Failures() map[Mode]error {
	failures := make(map[Mode]error)
	for _, o := range a.Outcomes {
		if !o.OK() {
			failures[o.Mode] = o.Err
		}
	}
	return failures
}

// Aggregate fetches a route for every mode in modes.
// Failures of individual modes never abort the others. If every mode fails the
// aggregation simply holds no metrics. Duplicate modes are fetched once.
func (a *Aggregator) Aggregate(ctx context.Context, origin, destination Location, modes []Mode) Aggregation {
	modes = uniqueModes(modes)

	ctx, span := a.tracer.Start(ctx, "routing.Aggregate",
		trace.WithAttributes(
			attribute.Int("routing.mode_count", len(modes)),
			attribute.String("routing.provider", a.provider.Name()),
		),
	)
	defer span.End()

	outcomes := make([]Outcome, len(modes))

	if origin == "" || destination == "" {
		for i, mode := range modes {
			outcomes[i] = failed(mode, &Error{
				Provider: a.provider.Name(),
				Code:     "INVALID_LOCATION",
				Message:  "origin and destination are required",
				Err:      ErrInvalidLocation,
			})
		}
		return Aggregation{Outcomes: outcomes}
	}

	// Each goroutine owns exactly one slot, so no locking is needed.
	var g errgroup.Group
	g.SetLimit(len(modes))
	for i, mode := range modes {
		g.Go(func() error {
			outcomes[i] = a.fetch(ctx, origin, destination, mode)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // fetch never returns an error; failures live in outcomes

	agg := Aggregation{Outcomes: outcomes}
	span.SetAttributes(attribute.Int("routing.failed_count", len(agg.Failed())))

	return agg
}

// fetch performs one bounded provider call and classifies its result.
func (a *Aggregator) fetch(ctx context.Context, origin, destination Location, mode Mode) Outcome {
	callCtx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()

	start := time.Now()
	metric, err := a.provider.FetchRoute(callCtx, origin, destination, mode)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		if metric.DistanceKm < 0 || metric.DurationMin < 0 {
			err = &Error{
				Provider: a.provider.Name(),
				Code:     "INVALID_METRIC",
				Message:  "provider returned a negative distance or duration",
				Err:      ErrProviderUnavailable,
			}
			a.metrics.RecordCall(a.provider.Name(), string(mode), telemetry.OutcomeError, elapsed)
			a.logFailure(mode, err, elapsed)
			return failed(mode, err)
		}
		a.metrics.RecordCall(a.provider.Name(), string(mode), telemetry.OutcomeSuccess, elapsed)
		return succeeded(mode, metric)

	case IsNotFound(err):
		a.metrics.RecordCall(a.provider.Name(), string(mode), telemetry.OutcomeNotFound, elapsed)
		a.logger.Debug().
			Str("mode", string(mode)).
			Str("provider", a.provider.Name()).
			Msg("no route for mode")
		return failed(mode, err)

	case errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		err = &Error{
			Provider: a.provider.Name(),
			Code:     "TIMEOUT",
			Message:  "routing call timed out after " + a.callTimeout.String(),
			Err:      context.DeadlineExceeded,
		}
		a.metrics.RecordCall(a.provider.Name(), string(mode), telemetry.OutcomeTimeout, elapsed)
		a.logFailure(mode, err, elapsed)
		return failed(mode, err)

	default:
		a.metrics.RecordCall(a.provider.Name(), string(mode), telemetry.OutcomeError, elapsed)
		a.logFailure(mode, err, elapsed)
		return failed(mode, err)
	}
}

func (a *Aggregator) logFailure(mode Mode, err error, elapsed time.Duration) {
	a.logger.Warn().Err(err).
		Str("mode", string(mode)).
		Str("provider", a.provider.Name()).
		Dur("elapsed", elapsed).
		Msg("route fetch failed, continuing with remaining modes")
}

func uniqueModes(modes []Mode) []Mode {
	seen := make(map[Mode]bool, len(modes))
	unique := make([]Mode, 0, len(modes))
	for _, m := range modes {
		if seen[m] {
			continue
		}
		seen[m] = true
		unique = append(unique, m)
	}
	return unique
}
