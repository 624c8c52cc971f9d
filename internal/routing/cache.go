package routing

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/heyysiri/EcoTrail/internal/telemetry"
)

// CacheEntry is a cached provider answer for one (mode, origin, destination).
// NotFound entries record that the provider had no route.
type CacheEntry struct {
	Metric    RouteMetric `json:"metric"`
	NotFound  bool        `json:"not_found,omitempty"`
	FetchedAt time.Time   `json:"fetched_at"`
}

// Cache stores provider answers. Implementations drop entries after retention.
type Cache interface {
	Get(ctx context.Context, key string) (*CacheEntry, bool, error)
	Set(ctx context.Context, key string, entry CacheEntry, retention time.Duration) error
}

// CachingConfig holds configuration for the caching provider.
type CachingConfig struct {
	// Provider is the routing data provider being cached.
	Provider Provider

	// Cache is the backing store (default: in-memory).
	Cache Cache

	// Logger for cache operations.
	Logger zerolog.Logger

	// TTL is how long a cached answer is served without asking the provider (default: 5 minutes).
	TTL time.Duration

	// StaleIfErrorTTL allows serving stale data on provider errors (default: 15 minutes).
	StaleIfErrorTTL time.Duration

	// FetchTimeout bounds a provider call shared by concurrent misses (default: 15 seconds).
	// The shared call outlives any single caller, so it cannot use a caller's deadline.
	FetchTimeout time.Duration

	// Metrics records cache hits and misses (optional).
	Metrics *telemetry.ProviderMetrics
}

// CachingProvider is a Provider that caches another Provider's answers.
type CachingProvider struct {
	provider        Provider
	cache           Cache
	logger          zerolog.Logger
	ttl             time.Duration
	staleIfErrorTTL time.Duration
	fetchTimeout    time.Duration
	metrics         *telemetry.ProviderMetrics
	group           singleflight.Group
	now             func() time.Time
}

var _ Provider = (*CachingProvider)(nil)

// NewCachingProvider creates a new caching provider.
func NewCachingProvider(cfg CachingConfig) *CachingProvider {
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 5 * time.Minute
	}

	staleIfErrorTTL := cfg.StaleIfErrorTTL
	if staleIfErrorTTL == 0 {
		staleIfErrorTTL = 15 * time.Minute
	}
	if staleIfErrorTTL < ttl {
		staleIfErrorTTL = ttl
	}

	fetchTimeout := cfg.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = 15 * time.Second
	}

	cache := cfg.Cache
	if cache == nil {
		cache = NewMemoryCache(MemoryCacheConfig{})
	}

	return &CachingProvider{
		provider:        cfg.Provider,
		cache:           cache,
		logger:          cfg.Logger,
		ttl:             ttl,
		staleIfErrorTTL: staleIfErrorTTL,
		fetchTimeout:    fetchTimeout,
		metrics:         cfg.Metrics,
		now:             time.Now,
	}
}

// Name returns the name of the underlying provider.
func (c *CachingProvider) Name() string {
	return c.provider.Name()
}

// FetchRoute returns a cached answer if it is still fresh, otherwise asks the provider.
// When the provider fails, an answer younger than StaleIfErrorTTL is served instead.
func (c *CachingProvider) FetchRoute(ctx context.Context, origin, destination Location, mode Mode) (RouteMetric, error) {
	key := CacheKey(origin, destination, mode)

	entry, ok := c.lookup(ctx, key)
	if ok && c.now().Before(entry.FetchedAt.Add(c.ttl)) {
		c.metrics.RecordCacheHit(c.provider.Name(), string(mode))
		c.logger.Debug().
			Str("cache_key", key).
			Msg("cache hit for route")
		return entry.result(c.provider.Name(), mode)
	}
	c.metrics.RecordCacheMiss(c.provider.Name(), string(mode))

	// Concurrent misses on one key share a single provider call. It runs
	// detached from the caller that started it; each caller stops waiting
	// when its own context ends.
	ch := c.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()
		return c.fetch(fetchCtx, key, origin, destination, mode)
	})

	var err error
	select {
	case <-ctx.Done():
		return RouteMetric{}, ctx.Err()
	case res := <-ch:
		if res.Err == nil {
			return res.Val.(RouteMetric), nil
		}
		err = res.Err
	}

	if IsNotFound(err) {
		return RouteMetric{}, err
	}

	if ok && c.now().Before(entry.FetchedAt.Add(c.staleIfErrorTTL)) {
		c.logger.Warn().
			Time("fetched_at", entry.FetchedAt).
			Str("cache_key", key).
			Msg("serving stale route data due to provider error")
		return entry.result(c.provider.Name(), mode)
	}

	return RouteMetric{}, err
}

func (c *CachingProvider) fetch(ctx context.Context, key string, origin, destination Location, mode Mode) (RouteMetric, error) {
	metric, err := c.provider.FetchRoute(ctx, origin, destination, mode)
	switch {
	case err == nil:
		c.store(ctx, key, CacheEntry{Metric: metric, FetchedAt: c.now()})
		return metric, nil
	case IsNotFound(err):
		c.store(ctx, key, CacheEntry{Metric: RouteMetric{Mode: mode}, NotFound: true, FetchedAt: c.now()})
		return RouteMetric{}, err
	default:
		return RouteMetric{}, err
	}
}

func (c *CachingProvider) lookup(ctx context.Context, key string) (*CacheEntry, bool) {
	entry, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn().Err(err).
			Str("cache_key", key).
			Msg("route cache read failed")
		return nil, false
	}
	return entry, ok
}

func (c *CachingProvider) store(ctx context.Context, key string, entry CacheEntry) {
	if err := c.cache.Set(ctx, key, entry, c.staleIfErrorTTL); err != nil {
		c.logger.Warn().Err(err).
			Str("cache_key", key).
			Msg("route cache write failed")
		return
	}
	c.logger.Debug().
		Str("cache_key", key).
		Bool("not_found", entry.NotFound).
		Msg("cached route")
}

func (e *CacheEntry) result(provider string, mode Mode) (RouteMetric, error) {
	if e.NotFound {
		return RouteMetric{}, &Error{
			Provider: provider,
			Code:     "ZERO_RESULTS",
			Message:  "no " + string(mode) + " route (cached)",
			Err:      ErrNoRouteFound,
		}
	}
	return e.Metric, nil
}

// CacheKey builds the cache key for one request. Locations are compared case-insensitively.
// Format: {mode}|{origin}|{destination}.
func CacheKey(origin, destination Location, mode Mode) string {
	return string(mode) + "|" + normalizeLocation(origin) + "|" + normalizeLocation(destination)
}

func normalizeLocation(l Location) string {
	return strings.ToLower(strings.Join(strings.Fields(string(l)), " "))
}

// MemoryCacheConfig holds configuration for the in-memory cache.
type MemoryCacheConfig struct {
	// CleanupInterval is how often to clean up expired entries (default: 5 minutes).
	CleanupInterval time.Duration
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	cleanupInterval time.Duration

	mu          sync.RWMutex
	entries     map[string]*memoryEntry
	lastCleanup time.Time
}

type memoryEntry struct {
	entry     CacheEntry
	expiresAt time.Time
}

var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache(cfg MemoryCacheConfig) *MemoryCache {
	cleanupInterval := cfg.CleanupInterval
	if cleanupInterval == 0 {
		cleanupInterval = 5 * time.Minute
	}
	return &MemoryCache{
		cleanupInterval: cleanupInterval,
		entries:         make(map[string]*memoryEntry),
	}
}

// Get returns the entry for key if it has not passed its retention.
func (m *MemoryCache) Get(_ context.Context, key string) (*CacheEntry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false, nil
	}
	entry := e.entry
	return &entry, true, nil
}

// Set stores entry under key for retention.
func (m *MemoryCache) Set(_ context.Context, key string, entry CacheEntry, retention time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = &memoryEntry{
		entry:     entry,
		expiresAt: time.Now().Add(retention),
	}
	m.cleanupIfNeeded()
	return nil
}

// cleanupIfNeeded removes expired entries if cleanup interval has passed.
// Caller must hold the write lock.
func (m *MemoryCache) cleanupIfNeeded() {
	now := time.Now()
	if now.Sub(m.lastCleanup) < m.cleanupInterval {
		return
	}
	m.lastCleanup = now

	for key, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, key)
		}
	}
}

// Invalidate clears all cached data.
func (m *MemoryCache) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*memoryEntry)
}

// Len returns the number of unexpired entries.
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	n := 0
	for _, e := range m.entries {
		if now.Before(e.expiresAt) {
			n++
		}
	}
	return n
}
