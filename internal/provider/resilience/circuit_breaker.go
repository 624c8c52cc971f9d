// Package resilience guards outbound provider calls with per-provider circuit
// breakers, per-attempt timeouts and bounded retries, and tracks provider
// health for the readiness endpoints.
package resilience

import (
	"time"

	"github.com/sony/gobreaker/v2"
)

// CircuitBreakerConfig mirrors gobreaker.Settings.
type CircuitBreakerConfig struct {
	Name string

	// MaxRequests is the number of probes let through while half-open.
	MaxRequests uint32

	// Interval clears closed-state counts periodically; 0 never clears them.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration

	ReadyToTrip   func(counts gobreaker.Counts) bool
	OnStateChange func(name string, from gobreaker.State, to gobreaker.State)
}

// DefaultCircuitBreakerConfig opens after DefaultReadyToTrip and probes after a minute.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:        name,
		MaxRequests: 1,
		Timeout:     time.Minute,
		ReadyToTrip: DefaultReadyToTrip,
	}
}

// DefaultReadyToTrip trips once at least 5 requests were seen and half or more failed.
func DefaultReadyToTrip(counts gobreaker.Counts) bool {
	if counts.Requests < 5 {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
}

// NewCircuitBreaker builds a breaker from cfg.
func NewCircuitBreaker[T any](cfg CircuitBreakerConfig) *gobreaker.CircuitBreaker[T] {
	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:          cfg.Name,
		MaxRequests:   cfg.MaxRequests,
		Interval:      cfg.Interval,
		Timeout:       cfg.Timeout,
		ReadyToTrip:   cfg.ReadyToTrip,
		OnStateChange: cfg.OnStateChange,
	})
}
