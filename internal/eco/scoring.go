package eco

import (
	"fmt"
	"math"

	"github.com/heyysiri/EcoTrail/internal/routing"
)

// ScoringModel converts distance into reward points.
type ScoringModel struct {
	policy Policy
}

// NewScoringModel creates a scoring model over policy's points multipliers.
func NewScoringModel(policy Policy) ScoringModel {
	return ScoringModel{policy: policy}
}

// Score returns floor(distance * multiplier). Unlike EmissionModel, a mode missing from
// the table is an error wrapping ErrUnknownMode.
func (m ScoringModel) Score(metric routing.RouteMetric) (int, error) {
	multiplier, ok := m.policy.PointsMultiplier(metric.Mode)
	if !ok {
		return 0, fmt.Errorf("scoring %q: %w", metric.Mode, ErrUnknownMode)
	}

	points := math.Floor(metric.DistanceKm * multiplier)
	if points < 0 || math.IsNaN(points) {
		return 0, nil
	}
	return int(points), nil
}
