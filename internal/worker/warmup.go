package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/heyysiri/EcoTrail/internal/geocoding"
	"github.com/heyysiri/EcoTrail/internal/routing"
)

// WarmupJob fetches every configured pair through the aggregator so that the
// caching provider behind it holds fresh entries.
type WarmupJob struct {
	config     WarmupConfig
	aggregator *routing.Aggregator
	geocoder   geocoding.Geocoder
	logger     zerolog.Logger

	metrics *WarmupMetrics
}

// WarmupMetrics tracks warmup job statistics.
type WarmupMetrics struct {
	mu sync.RWMutex

	TotalRuns      int64
	PairsWarmed    int64
	PairsFailed    int64
	ModesFetched   int64
	ModesFailed    int64
	LastRunAt      time.Time
	LastRunElapsed time.Duration
}

// WarmupJobConfig holds configuration for creating a WarmupJob.
type WarmupJobConfig struct {
	Config     WarmupConfig
	Aggregator *routing.Aggregator

	// Geocoder canonicalizes addresses so cache keys match API requests (optional).
	Geocoder geocoding.Geocoder

	Logger zerolog.Logger
}

// NewWarmupJob creates a new warmup job.
func NewWarmupJob(cfg WarmupJobConfig) *WarmupJob {
	return &WarmupJob{
		config:     cfg.Config.withDefaults(),
		aggregator: cfg.Aggregator,
		geocoder:   cfg.Geocoder,
		logger:     cfg.Logger,
		metrics:    &WarmupMetrics{},
	}
}

// WarmupResult contains the result of one run.
type WarmupResult struct {
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
	TotalPairs   int
	Successful   int
	Failed       int
	ModesFetched int
	ModesFailed  int
	Errors       []WarmupError
}

// WarmupError describes a pair that could not be warmed.
type WarmupError struct {
	Pair  string
	Mode  routing.Mode
	Error string
}

// Run warms every configured pair.
func (j *WarmupJob) Run(ctx context.Context) *WarmupResult {
	return j.run(ctx, j.config.OrderedPairs(), j.config.Concurrency)
}

// RunPairs warms the given pairs instead of the configured ones.
func (j *WarmupJob) RunPairs(ctx context.Context, pairs []WarmupPair) *WarmupResult {
	return j.run(ctx, WarmupConfig{Pairs: pairs}.OrderedPairs(), j.config.Concurrency)
}

func (j *WarmupJob) run(ctx context.Context, pairs []WarmupPair, concurrency int) *WarmupResult {
	startTime := time.Now()
	result := &WarmupResult{
		StartTime:  startTime,
		TotalPairs: len(pairs),
	}

	j.logger.Info().
		Int("total_pairs", result.TotalPairs).
		Int("concurrency", concurrency).
		Msg("starting route warmup job")

	pairsChan := make(chan WarmupPair, len(pairs))
	resultsChan := make(chan pairResult, len(pairs))

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.warmupWorker(ctx, pairsChan, resultsChan)
		}()
	}

	for _, p := range pairs {
		pairsChan <- p
	}
	close(pairsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for pr := range resultsChan {
		if pr.success {
			result.Successful++
		} else {
			result.Failed++
		}
		result.ModesFetched += pr.fetched
		result.ModesFailed += pr.failed
		result.Errors = append(result.Errors, pr.errors...)
	}

	// pairs never picked up because ctx ended count as failed
	if missing := result.TotalPairs - result.Successful - result.Failed; missing > 0 {
		result.Failed += missing
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("modes_fetched", result.ModesFetched).
		Int("modes_failed", result.ModesFailed).
		Msg("route warmup job completed")

	return result
}

type pairResult struct {
	success bool
	fetched int
	failed  int
	errors  []WarmupError
}

func (j *WarmupJob) warmupWorker(ctx context.Context, pairs <-chan WarmupPair, results chan<- pairResult) {
	for pair := range pairs {
		select {
		case <-ctx.Done():
			return
		default:
			results <- j.warmPair(ctx, pair)
		}
	}
}

// warmPair succeeds when at least one mode produced a route. A mode with no
// route is an answer, not a failure.
func (j *WarmupJob) warmPair(ctx context.Context, pair WarmupPair) pairResult {
	pairCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	origin, destination, err := j.resolve(pairCtx, pair)
	if err != nil {
		return pairResult{errors: []WarmupError{{Pair: pair.Name, Error: err.Error()}}}
	}

	agg := j.aggregator.Aggregate(pairCtx, origin, destination, j.config.Modes)

	result := pairResult{fetched: len(agg.Metrics())}
	for mode, ferr := range agg.Failures() {
		if routing.IsNotFound(ferr) {
			continue
		}
		result.failed++
		result.errors = append(result.errors, WarmupError{Pair: pair.Name, Mode: mode, Error: ferr.Error()})
	}
	result.success = result.fetched > 0

	j.logger.Debug().
		Str("pair", pair.Name).
		Int("fetched", result.fetched).
		Int("failed", result.failed).
		Msg("pair warmed")

	return result
}

func (j *WarmupJob) resolve(ctx context.Context, pair WarmupPair) (routing.Location, routing.Location, error) {
	if pair.Origin == "" || pair.Destination == "" {
		return "", "", errors.New("pair needs origin and destination")
	}
	if j.geocoder == nil {
		return routing.Location(pair.Origin), routing.Location(pair.Destination), nil
	}

	origin, err := j.geocoder.Resolve(ctx, pair.Origin)
	if err != nil {
		return "", "", err
	}
	destination, err := j.geocoder.Resolve(ctx, pair.Destination)
	if err != nil {
		return "", "", err
	}
	return origin, destination, nil
}

func (j *WarmupJob) updateMetrics(result *WarmupResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.PairsWarmed += int64(result.Successful)
	j.metrics.PairsFailed += int64(result.Failed)
	j.metrics.ModesFetched += int64(result.ModesFetched)
	j.metrics.ModesFailed += int64(result.ModesFailed)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunElapsed = result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *WarmupJob) GetMetrics() WarmupMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return WarmupMetrics{
		TotalRuns:      j.metrics.TotalRuns,
		PairsWarmed:    j.metrics.PairsWarmed,
		PairsFailed:    j.metrics.PairsFailed,
		ModesFetched:   j.metrics.ModesFetched,
		ModesFailed:    j.metrics.ModesFailed,
		LastRunAt:      j.metrics.LastRunAt,
		LastRunElapsed: j.metrics.LastRunElapsed,
	}
}

// MetricsSnapshot returns the current metrics as a map for the health endpoint.
func (j *WarmupJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":       m.TotalRuns,
		"pairs_warmed":     m.PairsWarmed,
		"pairs_failed":     m.PairsFailed,
		"modes_fetched":    m.ModesFetched,
		"modes_failed":     m.ModesFailed,
		"last_run_at":      m.LastRunAt,
		"last_run_elapsed": m.LastRunElapsed.String(),
	}
}
