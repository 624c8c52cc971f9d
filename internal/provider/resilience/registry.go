package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Status summarizes a provider's circuit state.
type Status string

// Provider statuses, from best to worst.
const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

func (s Status) rank() int {
	switch s {
	case StatusDegraded:
		return 1
	case StatusDown:
		return 2
	default:
		return 0
	}
}

// ProviderHealth is a point-in-time view of one upstream provider.
type ProviderHealth struct {
	Name         string
	CircuitState gobreaker.State
	Counts       gobreaker.Counts

	// LastSuccessAt and LastFailureAt are nil until the first call of that kind.
	LastSuccessAt *time.Time
	LastFailureAt *time.Time
	LastError     string
}

// Status maps the circuit state: closed is healthy, half-open degraded, open down.
func (h ProviderHealth) Status() Status {
	switch h.CircuitState {
	case gobreaker.StateHalfOpen:
		return StatusDegraded
	case gobreaker.StateOpen:
		return StatusDown
	default:
		return StatusHealthy
	}
}

// Registry tracks the resilient clients of one process so their health can be reported.
// The directions, geocoding and static map clients share one Registry.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]*entry
}

type entry struct {
	client        *Client
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]*entry)}
}

// Register adds client under name, replacing any earlier client of that name.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = &entry{client: client}
}

// RecordSuccess notes a successful call. Unknown names are ignored.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.providers[name]; ok {
		now := time.Now()
		e.lastSuccessAt = &now
	}
}

// RecordFailure notes a failed call and keeps its message. Unknown names are ignored.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.providers[name]; ok {
		now := time.Now()
		e.lastFailureAt = &now
		if err != nil {
			e.lastError = err.Error()
		}
	}
}

// Health returns the health of one provider.
func (r *Registry) Health(name string) (ProviderHealth, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.providers[name]
	if !ok {
		return ProviderHealth{}, false
	}
	return e.health(name), true
}

// Snapshot returns the health of every provider, sorted by name.
func (r *Registry) Snapshot() []ProviderHealth {
	r.mu.RLock()
	all := make([]ProviderHealth, 0, len(r.providers))
	for name, e := range r.providers {
		all = append(all, e.health(name))
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}

// Overall returns the worst status across providers; healthy when none are registered.
func (r *Registry) Overall() Status {
	worst := StatusHealthy
	for _, h := range r.Snapshot() {
		if s := h.Status(); s.rank() > worst.rank() {
			worst = s
		}
	}
	return worst
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

func (e *entry) health(name string) ProviderHealth {
	return ProviderHealth{
		Name:          name,
		CircuitState:  e.client.CircuitBreakerState(),
		Counts:        e.client.CircuitBreakerCounts(),
		LastSuccessAt: e.lastSuccessAt,
		LastFailureAt: e.lastFailureAt,
		LastError:     e.lastError,
	}
}
