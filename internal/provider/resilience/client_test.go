package resilience_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heyysiri/EcoTrail/internal/provider/resilience"
)

// scripted serves the statuses in order, repeating the last one.
type scripted struct {
	mu       sync.Mutex
	statuses []int
	bodies   []string
	calls    atomic.Int32
}

func (s *scripted) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := int(s.calls.Add(1)) - 1
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.bodies = append(s.bodies, string(body))
	s.mu.Unlock()

	status := s.statuses[min(n, len(s.statuses)-1)]
	w.WriteHeader(status)
	_, _ = w.Write([]byte(http.StatusText(status)))
}

func fastConfig(name string) resilience.ClientConfig {
	cfg := resilience.DefaultClientConfig(name)
	cfg.InitialInterval = time.Millisecond
	cfg.MaxInterval = 5 * time.Millisecond
	return cfg
}

func get(t *testing.T, client *resilience.Client, url string) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, http.NoBody)
	require.NoError(t, err)
	resp, err := client.Do(req)
	if resp != nil {
		t.Cleanup(func() { resp.Body.Close() })
	}
	return resp, err
}

func TestClient_Statuses(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []int
		wantCode  int
		wantCalls int32
	}{
		{"ok", []int{200}, 200, 1},
		{"5xx then ok", []int{503, 502, 200}, 200, 3},
		{"5xx exhausted", []int{500}, 500, 4},
		{"throttled then ok", []int{429, 200}, 200, 2},
		{"throttled exhausted", []int{429}, 429, 4},
		{"not found not retried", []int{404, 200}, 404, 1},
		{"bad request not retried", []int{400, 200}, 400, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := &scripted{statuses: tt.statuses}
			server := httptest.NewServer(srv)
			defer server.Close()

			cfg := fastConfig("googlemaps-directions")
			cfg.CircuitBreaker = &resilience.CircuitBreakerConfig{
				MaxRequests: 1,
				Timeout:     time.Minute,
				ReadyToTrip: func(gobreaker.Counts) bool { return false },
			}
			resp, err := get(t, resilience.NewClient(cfg), server.URL)

			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, resp.StatusCode)
			assert.Equal(t, tt.wantCalls, srv.calls.Load())

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, http.StatusText(tt.wantCode), string(body))
		})
	}
}

func TestClient_CircuitOpens(t *testing.T) {
	srv := &scripted{statuses: []int{500}}
	server := httptest.NewServer(srv)
	defer server.Close()

	var logs bytes.Buffer
	cfg := fastConfig("googlemaps-geocoding")
	cfg.MaxRetries = 1
	cfg.Logger = zerolog.New(&logs)
	cfg.CircuitBreaker = &resilience.CircuitBreakerConfig{
		MaxRequests: 1,
		Timeout:     time.Minute,
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 2 },
	}
	client := resilience.NewClient(cfg)

	resp, err := get(t, client, server.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, gobreaker.StateOpen, client.CircuitBreakerState())

	_, err = get(t, client, server.URL)
	require.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(2), srv.calls.Load(), "open breaker must not reach the provider")

	assert.Contains(t, logs.String(), `"provider":"googlemaps-geocoding"`)
	assert.Contains(t, logs.String(), `"to":"open"`)
}

func TestClient_AttemptTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := fastConfig("staticmaps")
	cfg.Timeout = 20 * time.Millisecond
	cfg.MaxRetries = 1

	start := time.Now()
	_, err := get(t, resilience.NewClient(cfg), server.URL)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestClient_CancelledContext(t *testing.T) {
	srv := &scripted{statuses: []int{200}}
	server := httptest.NewServer(srv)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, http.NoBody)
	require.NoError(t, err)

	_, err = resilience.NewClient(fastConfig("googlemaps-directions")).Do(req)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, srv.calls.Load())
}

func TestClient_ReplaysBody(t *testing.T) {
	srv := &scripted{statuses: []int{502, 200}}
	server := httptest.NewServer(srv)
	defer server.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, server.URL, strings.NewReader(`{"mode":"transit"}`))
	require.NoError(t, err)

	resp, err := resilience.NewClient(fastConfig("googlemaps-directions")).Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{`{"mode":"transit"}`, `{"mode":"transit"}`}, srv.bodies)
}

func TestClient_UnreplayableBodyStops(t *testing.T) {
	srv := &scripted{statuses: []int{200}}
	server := httptest.NewServer(srv)
	defer server.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, server.URL, strings.NewReader("x"))
	require.NoError(t, err)
	broken := errors.New("body gone")
	req.GetBody = func() (io.ReadCloser, error) { return nil, broken }

	_, err = resilience.NewClient(fastConfig("googlemaps-directions")).Do(req)
	require.ErrorIs(t, err, broken)
	assert.Zero(t, srv.calls.Load())
}

func TestClient_RecordsOutcomesInRegistry(t *testing.T) {
	server := httptest.NewServer(&scripted{statuses: []int{200}})

	registry := resilience.NewRegistry()
	cfg := fastConfig("googlemaps")
	cfg.Registry = registry
	client := resilience.NewClient(cfg)

	_, err := get(t, client, server.URL)
	require.NoError(t, err)

	health, ok := registry.Health("googlemaps")
	require.True(t, ok)
	assert.NotNil(t, health.LastSuccessAt)
	assert.Nil(t, health.LastFailureAt)

	server.Close()
	_, err = get(t, client, server.URL)
	require.Error(t, err)

	health, ok = registry.Health("googlemaps")
	require.True(t, ok)
	assert.NotNil(t, health.LastFailureAt)
	assert.NotEmpty(t, health.LastError)
}

func TestDefaultReadyToTrip(t *testing.T) {
	tests := []struct {
		name   string
		counts gobreaker.Counts
		want   bool
	}{
		{"too few requests", gobreaker.Counts{Requests: 4, TotalFailures: 4}, false},
		{"low failure rate", gobreaker.Counts{Requests: 10, TotalFailures: 4}, false},
		{"half failing", gobreaker.Counts{Requests: 10, TotalFailures: 5}, true},
		{"five of five", gobreaker.Counts{Requests: 5, TotalFailures: 5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resilience.DefaultReadyToTrip(tt.counts))
		})
	}
}

func TestDefaultClientConfig(t *testing.T) {
	cfg := resilience.DefaultClientConfig("staticmaps")

	assert.Equal(t, "staticmaps", cfg.Name)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, uint64(3), cfg.MaxRetries)
	require.NotNil(t, cfg.CircuitBreaker)
	assert.Equal(t, "staticmaps", cfg.CircuitBreaker.Name)
	assert.Equal(t, time.Minute, cfg.CircuitBreaker.Timeout)
	assert.Equal(t, uint32(1), cfg.CircuitBreaker.MaxRequests)
}

func TestServerError(t *testing.T) {
	err := &resilience.ServerError{StatusCode: http.StatusBadGateway}
	assert.Equal(t, "server error: Bad Gateway", err.Error())
}
