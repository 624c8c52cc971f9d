// Package eco derives carbon footprint and reward points from route metrics and
// picks the lowest-emission mode.
package eco

import (
	"errors"
	"fmt"

	"github.com/heyysiri/EcoTrail/internal/routing"
)

// ErrUnknownMode is returned when a mode has no entry in the points table.
var ErrUnknownMode = errors.New("mode has no points multiplier")

// Policy holds the per-mode emission factors (grams CO2 per km) and points multipliers
// (points per km). A Policy is immutable once built.
type Policy struct {
	emissionFactors   map[routing.Mode]float64
	pointsMultipliers map[routing.Mode]float64
}

// DefaultPolicy returns the standard tables.
func DefaultPolicy() Policy {
	p, _ := NewPolicy(
		map[routing.Mode]float64{
			routing.ModeDriving:   180,
			routing.ModeTransit:   80,
			routing.ModeWalking:   0,
			routing.ModeBicycling: 0,
		},
		map[routing.Mode]float64{
			routing.ModeWalking:   12,
			routing.ModeBicycling: 10,
			routing.ModeTransit:   8,
			routing.ModeDriving:   0,
		},
	)
	return p
}

// NewPolicy copies the given tables into a Policy. Negative values are rejected.
func NewPolicy(emissionFactors, pointsMultipliers map[routing.Mode]float64) (Policy, error) {
	p := Policy{
		emissionFactors:   make(map[routing.Mode]float64, len(emissionFactors)),
		pointsMultipliers: make(map[routing.Mode]float64, len(pointsMultipliers)),
	}
	for mode, f := range emissionFactors {
		if f < 0 {
			return Policy{}, fmt.Errorf("emission factor for %s is negative: %v", mode, f)
		}
		p.emissionFactors[mode] = f
	}
	for mode, m := range pointsMultipliers {
		if m < 0 {
			return Policy{}, fmt.Errorf("points multiplier for %s is negative: %v", mode, m)
		}
		p.pointsMultipliers[mode] = m
	}
	return p, nil
}

// EmissionFactor returns the grams of CO2 per km for mode and whether the table has it.
func (p Policy) EmissionFactor(mode routing.Mode) (float64, bool) {
	f, ok := p.emissionFactors[mode]
	return f, ok
}

// PointsMultiplier returns the points per km for mode and whether the table has it.
func (p Policy) PointsMultiplier(mode routing.Mode) (float64, bool) {
	m, ok := p.pointsMultipliers[mode]
	return m, ok
}
