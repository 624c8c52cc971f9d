// Package routing fetches comparable route metrics per travel mode.
package routing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors for routing operations.
var (
	// ErrProviderUnavailable indicates the routing provider is down or the circuit breaker is open.
	ErrProviderUnavailable = errors.New("routing provider unavailable")
	// ErrNoRouteFound indicates the provider has no route for the requested mode.
	ErrNoRouteFound = errors.New("no route found between the given locations")
	// ErrRateLimitExceeded indicates the API quota has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrInvalidLocation indicates an origin or destination the provider could not interpret.
	ErrInvalidLocation = errors.New("invalid location")
)

// Provider defines the interface for routing providers.
type Provider interface {
	// FetchRoute returns the provider's primary route for one mode.
	// Returns an error wrapping ErrNoRouteFound when the mode has no route.
	FetchRoute(ctx context.Context, origin, destination Location, mode Mode) (RouteMetric, error)
	// Name returns the provider identifier for logging and metrics.
	Name() string
}

// Mode is a travel method.
type Mode string

const (
	ModeDriving   Mode = "driving"
	ModeTransit   Mode = "transit"
	ModeWalking   Mode = "walking"
	ModeBicycling Mode = "bicycling"
)

// AllModes lists every supported mode in enumeration order.
// This order is also the tie-break order when two modes emit the same amount of CO2.
var AllModes = []Mode{ModeDriving, ModeTransit, ModeWalking, ModeBicycling}

// Valid reports whether m is a supported mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeDriving, ModeTransit, ModeWalking, ModeBicycling:
		return true
	}
	return false
}

// Order returns the position of m in AllModes, or len(AllModes) for unknown modes.
func (m Mode) Order() int {
	for i, known := range AllModes {
		if m == known {
			return i
		}
	}
	return len(AllModes)
}

// SortModes orders modes by enumeration order. Unknown modes go last, by name.
func SortModes(modes []Mode) {
	sort.SliceStable(modes, func(i, j int) bool {
		oi, oj := modes[i].Order(), modes[j].Order()
		if oi != oj {
			return oi < oj
		}
		return modes[i] < modes[j]
	})
}

// InvalidModesError lists submitted modes that are not supported.
type InvalidModesError struct {
	Invalid []string
}

func (e *InvalidModesError) Error() string {
	return fmt.Sprintf("invalid modes: %s", strings.Join(e.Invalid, ", "))
}

// ParseModes normalizes user-submitted modes.
// Entries are trimmed and lowercased and blank entries are dropped. If any entry is not a
// supported mode the whole list is rejected with an *InvalidModesError naming every offender.
// An empty list expands to AllModes. Duplicates are collapsed.
func ParseModes(raw []string) ([]Mode, error) {
	var (
		modes   []Mode
		invalid []string
		seen    = make(map[Mode]bool)
	)

	for _, entry := range raw {
		normalized := strings.ToLower(strings.TrimSpace(entry))
		if normalized == "" {
			continue
		}
		mode := Mode(normalized)
		if !mode.Valid() {
			invalid = append(invalid, entry)
			continue
		}
		if seen[mode] {
			continue
		}
		seen[mode] = true
		modes = append(modes, mode)
	}

	if len(invalid) > 0 {
		return nil, &InvalidModesError{Invalid: invalid}
	}

	if len(modes) == 0 {
		return append([]Mode(nil), AllModes...), nil
	}

	return modes, nil
}

// Location is a resolved address as produced by a geocoder.
type Location string

// RouteMetric holds the comparable figures for one mode's primary route.
type RouteMetric struct {
	Mode        Mode    `json:"mode"`
	DistanceKm  float64 `json:"distance_km"`
	DurationMin float64 `json:"duration_min"`
	Polyline    string  `json:"polyline,omitempty"` // Encoded overview path (precision 5), empty if the provider has none
}

// Error provides detailed error information from the routing provider.
type Error struct {
	Provider string // Provider that generated the error
	Code     string // Error code from the provider
	Message  string // Human-readable error message
	Err      error  // Underlying error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is transient and the request can be retried.
func (e *Error) IsRetryable() bool {
	return errors.Is(e.Err, ErrProviderUnavailable) || errors.Is(e.Err, ErrRateLimitExceeded)
}

// IsNotFound reports whether err signals that the provider had no route.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNoRouteFound)
}
