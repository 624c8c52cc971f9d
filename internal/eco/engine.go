package eco

import (
	"github.com/heyysiri/EcoTrail/internal/routing"
)

// Engine scores route metrics under one Policy.
type Engine struct {
	policy   Policy
	emission EmissionModel
	scoring  ScoringModel
}

// NewEngine creates an engine for policy.
func NewEngine(policy Policy) *Engine {
	return &Engine{
		policy:   policy,
		emission: NewEmissionModel(policy),
		scoring:  NewScoringModel(policy),
	}
}

// Policy returns the engine's tables.
func (e *Engine) Policy() Policy {
	return e.policy
}

// ScoreRoute derives footprint and points for one metric.
func (e *Engine) ScoreRoute(metric routing.RouteMetric) (ScoredRoute, error) {
	points, err := e.scoring.Score(metric)
	if err != nil {
		return ScoredRoute{}, err
	}
	return ScoredRoute{
		RouteMetric: metric,
		CarbonGrams: e.emission.Estimate(metric),
		Points:      points,
	}, nil
}

// Score derives a ScoredRoute for every metric, returned in enumeration order.
func (e *Engine) Score(metrics map[routing.Mode]routing.RouteMetric) ([]ScoredRoute, error) {
	modes := make([]routing.Mode, 0, len(metrics))
	for mode := range metrics {
		modes = append(modes, mode)
	}
	routing.SortModes(modes)

	scored := make([]ScoredRoute, 0, len(modes))
	for _, mode := range modes {
		metric := metrics[mode]
		metric.Mode = mode
		r, err := e.ScoreRoute(metric)
		if err != nil {
			return nil, err
		}
		scored = append(scored, r)
	}
	return scored, nil
}
