package eco

import (
	"sort"

	"github.com/heyysiri/EcoTrail/internal/routing"
)

// ScoredRoute is a RouteMetric with its carbon footprint and reward points.
type ScoredRoute struct {
	routing.RouteMetric
	CarbonGrams float64
	Points      int
}

// CarbonKg returns the footprint in kilograms.
func (r ScoredRoute) CarbonKg() float64 {
	return r.CarbonGrams / 1000
}

// Recommendation is the selected mode. Route is nil when no mode qualified.
type Recommendation struct {
	Mode  routing.Mode
	Route *ScoredRoute
}

// Found reports whether a mode was recommended.
func (r Recommendation) Found() bool {
	return r.Route != nil
}

// Select returns the lowest-emission route whose duration fits maxDurationMin
// (nil means no limit). Equal footprints go to the mode earliest in routing.AllModes.
// routes is not modified.
func Select(routes []ScoredRoute, maxDurationMin *float64) Recommendation {
	eligible := make([]ScoredRoute, 0, len(routes))
	for _, r := range routes {
		if maxDurationMin != nil && r.DurationMin > *maxDurationMin {
			continue
		}
		eligible = append(eligible, r)
	}
	if len(eligible) == 0 {
		return Recommendation{}
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		oi, oj := eligible[i].Mode.Order(), eligible[j].Mode.Order()
		if oi != oj {
			return oi < oj
		}
		return eligible[i].Mode < eligible[j].Mode
	})

	best := eligible[0]
	for _, r := range eligible[1:] {
		if r.CarbonGrams < best.CarbonGrams {
			best = r
		}
	}

	return Recommendation{Mode: best.Mode, Route: &best}
}
