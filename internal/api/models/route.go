package models

import (
	"math"

	"github.com/heyysiri/EcoTrail/internal/eco"
	"github.com/heyysiri/EcoTrail/internal/ecoroute"
	"github.com/heyysiri/EcoTrail/internal/routing"
)

// EcoRouteRequest is the body of POST /v1/routes:eco.
type EcoRouteRequest struct {
	Origin      string   `json:"origin"`
	Destination string   `json:"destination"`
	Modes       []string `json:"modes,omitempty"`

	// MaxDurationMinutes excludes slower modes; omitted or 0 means no limit.
	MaxDurationMinutes *float64 `json:"maxDurationMinutes,omitempty"`
}

// ModeResult is one mode's figures.
type ModeResult struct {
	Mode        string  `json:"mode"`
	DistanceKm  float64 `json:"distanceKm"`
	DurationMin float64 `json:"durationMinutes"`
	CarbonGrams float64 `json:"carbonGrams"`
	CarbonKg    float64 `json:"carbonKg"`
	Points      int     `json:"points"`
}

// EcoRouteResponse is the response of POST /v1/routes:eco.
type EcoRouteResponse struct {
	Origin         string       `json:"origin"`
	Destination    string       `json:"destination"`
	PerModeResults []ModeResult `json:"perModeResults"`
	FailedModes    []string     `json:"failedModes"`

	// Recommendation is null when no mode fits the time ceiling.
	Recommendation *ModeResult `json:"recommendation"`

	PointsAwarded int      `json:"pointsAwarded"`
	PointsTotal   int64    `json:"pointsTotal"`
	Warnings      []string `json:"warnings,omitempty"`
}

// NewEcoRouteResponse converts a service result to its wire form.
func NewEcoRouteResponse(result *ecoroute.Result) EcoRouteResponse {
	resp := EcoRouteResponse{
		Origin:         string(result.Origin),
		Destination:    string(result.Destination),
		PerModeResults: make([]ModeResult, 0, len(result.PerModeResults)),
		FailedModes:    make([]string, 0, len(result.Failed)),
		PointsAwarded:  result.PointsAwarded,
		PointsTotal:    result.PointsTotal,
		Warnings:       result.Warnings,
	}

	for _, r := range result.PerModeResults {
		resp.PerModeResults = append(resp.PerModeResults, newModeResult(r))
	}
	for _, m := range result.Failed {
		resp.FailedModes = append(resp.FailedModes, string(m))
	}
	if result.Recommendation.Found() {
		rec := newModeResult(*result.Recommendation.Route)
		resp.Recommendation = &rec
	}

	return resp
}

func newModeResult(r eco.ScoredRoute) ModeResult {
	return ModeResult{
		Mode:        string(r.Mode),
		DistanceKm:  round(r.DistanceKm, 2),
		DurationMin: round(r.DurationMin, 1),
		CarbonGrams: round(r.CarbonGrams, 1),
		CarbonKg:    round(r.CarbonKg(), 3),
		Points:      r.Points,
	}
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

// Points is the response of GET /v1/me/points.
type Points struct {
	UserID string `json:"userId"`
	Total  int64  `json:"total"`
}

// ModeInfo describes one travel mode and its policy figures.
type ModeInfo struct {
	Mode               string  `json:"mode"`
	EmissionGramsPerKm float64 `json:"emissionGramsPerKm"`
	PointsPerKm        float64 `json:"pointsPerKm"`
	TieBreakOrder      int     `json:"tieBreakOrder"`
}

// ModesMetadata is the response of GET /v1/metadata/modes.
type ModesMetadata struct {
	Modes []ModeInfo `json:"modes"`
}

// NewModesMetadata lists every mode under policy.
func NewModesMetadata(policy eco.Policy) ModesMetadata {
	meta := ModesMetadata{Modes: make([]ModeInfo, 0, len(routing.AllModes))}
	for _, mode := range routing.AllModes {
		emission, _ := policy.EmissionFactor(mode)
		points, _ := policy.PointsMultiplier(mode)
		meta.Modes = append(meta.Modes, ModeInfo{
			Mode:               string(mode),
			EmissionGramsPerKm: emission,
			PointsPerKm:        points,
			TieBreakOrder:      mode.Order(),
		})
	}
	return meta
}
