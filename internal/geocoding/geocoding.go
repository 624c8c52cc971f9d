// Package geocoding resolves free-text addresses to canonical locations.
package geocoding

import (
	"context"
	"errors"

	"github.com/heyysiri/EcoTrail/internal/routing"
)

// Geocoding errors.
var (
	// ErrUnresolvable indicates the address matched nothing.
	ErrUnresolvable = errors.New("address could not be resolved")
	// ErrProviderUnavailable indicates the geocoding provider is down or refused the request.
	ErrProviderUnavailable = errors.New("geocoding provider unavailable")
)

// Geocoder resolves addresses.
type Geocoder interface {
	// Resolve returns the provider's formatted address for the best match.
	// Returns an error wrapping ErrUnresolvable when nothing matches.
	Resolve(ctx context.Context, address string) (routing.Location, error)
	// Name returns the provider identifier for logging and metrics.
	Name() string
}
