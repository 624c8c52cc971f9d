// Package worker warms the shared route cache in the background for EcoTrail.
package worker

import (
	"sort"
	"time"

	"github.com/heyysiri/EcoTrail/internal/routing"
)

// WarmupPair is an origin/destination pair requested often enough to keep cached.
type WarmupPair struct {
	// Name is a human-readable label for logs.
	Name string `json:"name"`

	Origin      string `json:"origin"`
	Destination string `json:"destination"`

	// Priority determines warmup order (lower = earlier).
	Priority int `json:"priority,omitempty"`
}

// WarmupConfig holds configuration for the route warmup job.
type WarmupConfig struct {
	// Pairs are the routes to warm. If empty, uses DefaultWarmupPairs.
	Pairs []WarmupPair

	// Modes to fetch per pair. If empty, every mode.
	Modes []routing.Mode

	// Concurrency is the number of pairs warmed at once.
	// Default: 3
	Concurrency int

	// Timeout bounds each pair.
	// Default: 30 seconds
	Timeout time.Duration
}

// DefaultWarmupConfig returns the default warmup configuration.
func DefaultWarmupConfig() WarmupConfig {
	return WarmupConfig{
		Pairs:       DefaultWarmupPairs(),
		Modes:       append([]routing.Mode(nil), routing.AllModes...),
		Concurrency: 3,
		Timeout:     30 * time.Second,
	}
}

// DefaultWarmupPairs returns commuter corridors in Bengaluru.
func DefaultWarmupPairs() []WarmupPair {
	return []WarmupPair{
		{Name: "mg-road-whitefield", Origin: "MG Road, Bengaluru", Destination: "Whitefield, Bengaluru", Priority: 1},
		{Name: "koramangala-electronic-city", Origin: "Koramangala, Bengaluru", Destination: "Electronic City, Bengaluru", Priority: 1},
		{Name: "indiranagar-mg-road", Origin: "Indiranagar, Bengaluru", Destination: "MG Road, Bengaluru", Priority: 1},
		{Name: "majestic-airport", Origin: "Kempegowda Bus Station, Bengaluru", Destination: "Kempegowda International Airport", Priority: 2},
		{Name: "jayanagar-hsr", Origin: "Jayanagar, Bengaluru", Destination: "HSR Layout, Bengaluru", Priority: 2},
		{Name: "hebbal-manyata", Origin: "Hebbal, Bengaluru", Destination: "Manyata Tech Park, Bengaluru", Priority: 3},
	}
}

// withDefaults fills unset fields.
func (c WarmupConfig) withDefaults() WarmupConfig {
	if len(c.Pairs) == 0 {
		c.Pairs = DefaultWarmupPairs()
	}
	if len(c.Modes) == 0 {
		c.Modes = append([]routing.Mode(nil), routing.AllModes...)
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 3
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return c
}

// OrderedPairs returns the pairs by priority. Equal priorities keep their configured order.
func (c WarmupConfig) OrderedPairs() []WarmupPair {
	pairs := append([]WarmupPair(nil), c.Pairs...)
	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].Priority < pairs[j].Priority
	})
	return pairs
}

// TotalPairs returns the number of pairs to warm.
func (c WarmupConfig) TotalPairs() int {
	return len(c.Pairs)
}
