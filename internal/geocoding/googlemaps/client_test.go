package googlemaps_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heyysiri/EcoTrail/internal/geocoding"
	"github.com/heyysiri/EcoTrail/internal/geocoding/googlemaps"
	"github.com/heyysiri/EcoTrail/internal/routing"
)

func newClient(t *testing.T, handler http.HandlerFunc) *googlemaps.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return googlemaps.NewClient(googlemaps.ClientConfig{
		APIKey:     "mock123",
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
		Logger:     zerolog.Nop(),
	})
}

func TestResolve_Success(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maps/api/geocode/json", r.URL.Path)
		assert.Equal(t, "dam square", r.URL.Query().Get("address"))
		assert.Equal(t, "mock123", r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(`{"status":"OK","results":[
			{"formatted_address":"Dam, 1012 JS Amsterdam, Netherlands","place_id":"p1"},
			{"formatted_address":"Dam Square, Somewhere Else","place_id":"p2"}
		]}`))
	})

	loc, err := client.Resolve(context.Background(), "  dam square ")

	require.NoError(t, err)
	assert.Equal(t, routing.Location("Dam, 1012 JS Amsterdam, Netherlands"), loc)
}

func TestResolve_ZeroResults(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
	})

	_, err := client.Resolve(context.Background(), "asdfghjkl")

	assert.ErrorIs(t, err, geocoding.ErrUnresolvable)
}

func TestResolve_EmptyAddress(t *testing.T) {
	client := newClient(t, func(http.ResponseWriter, *http.Request) {
		t.Error("provider should not be called")
	})

	_, err := client.Resolve(context.Background(), "   ")

	assert.ErrorIs(t, err, geocoding.ErrUnresolvable)
}

func TestResolve_RequestDenied(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"REQUEST_DENIED","error_message":"bad key","results":[]}`))
	})

	_, err := client.Resolve(context.Background(), "Utrecht")

	assert.ErrorIs(t, err, geocoding.ErrProviderUnavailable)
	assert.NotErrorIs(t, err, geocoding.ErrUnresolvable)
}

func TestResolve_HTTPError(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.Resolve(context.Background(), "Utrecht")

	assert.ErrorIs(t, err, geocoding.ErrProviderUnavailable)
}

func TestResolve_OKWithoutResults(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"OK","results":[]}`))
	})

	_, err := client.Resolve(context.Background(), "Utrecht")

	assert.ErrorIs(t, err, geocoding.ErrUnresolvable)
}

type unreachable struct{}

func (unreachable) Do(*http.Request) (*http.Response, error) {
	return nil, errors.New("dial tcp 10.0.0.1:443: i/o timeout")
}

func TestResolve_TransportErrorKeepsCause(t *testing.T) {
	client := googlemaps.NewClient(googlemaps.ClientConfig{
		APIKey:     "mock123",
		BaseURL:    "https://maps.invalid",
		HTTPClient: unreachable{},
		Logger:     zerolog.Nop(),
	})

	_, err := client.Resolve(context.Background(), "dam square")

	assert.ErrorIs(t, err, geocoding.ErrProviderUnavailable)
	assert.Contains(t, err.Error(), "i/o timeout")
}
