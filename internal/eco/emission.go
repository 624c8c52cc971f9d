package eco

import "github.com/heyysiri/EcoTrail/internal/routing"

// EmissionModel estimates the carbon footprint of a route.
type EmissionModel struct {
	policy Policy
}

// NewEmissionModel creates an emission model over policy's emission factors.
func NewEmissionModel(policy Policy) EmissionModel {
	return EmissionModel{policy: policy}
}

// Estimate returns grams of CO2 for the route: distance times the mode's factor.
// A mode missing from the table counts as zero-emission.
func (m EmissionModel) Estimate(metric routing.RouteMetric) float64 {
	factor, _ := m.policy.EmissionFactor(metric.Mode)
	return metric.DistanceKm * factor
}
