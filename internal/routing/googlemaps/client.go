// Package googlemaps provides a routing provider backed by the Google Directions API.
package googlemaps

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/heyysiri/EcoTrail/internal/provider/resilience"
	"github.com/heyysiri/EcoTrail/internal/routing"
)

const (
	// ProviderName identifies this routing provider.
	ProviderName = "googlemaps"

	// DefaultBaseURL is the Google Maps API base URL.
	DefaultBaseURL = "https://maps.googleapis.com"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second

	directionsPath = "/maps/api/directions/json"
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Directions client.
type ClientConfig struct {
	// APIKey is the Google Maps API key (required).
	APIKey string

	// BaseURL is the API base URL (optional, defaults to the public Google endpoint).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 10s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a Google Directions API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

var _ routing.Provider = (*Client)(nil)

// NewClient creates a new Directions client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName + "-directions")
		clientCfg.Timeout = timeout
		clientCfg.Registry = cfg.Registry
		clientCfg.Logger = cfg.Logger
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// FetchRoute returns distance, duration and overview path of the first route Google suggests.
func (c *Client) FetchRoute(ctx context.Context, origin, destination routing.Location, mode routing.Mode) (routing.RouteMetric, error) {
	if origin == "" || destination == "" {
		return routing.RouteMetric{}, &routing.Error{
			Provider: ProviderName,
			Code:     "INVALID_LOCATION",
			Message:  "origin and destination are required",
			Err:      routing.ErrInvalidLocation,
		}
	}

	query := url.Values{}
	query.Set("origin", string(origin))
	query.Set("destination", string(destination))
	query.Set("mode", string(mode))
	query.Set("key", c.apiKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+directionsPath+"?"+query.Encode(), http.NoBody)
	if err != nil {
		return routing.RouteMetric{}, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("mode", string(mode)).
		Str("origin", string(origin)).
		Str("destination", string(destination)).
		Msg("requesting directions from Google")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return routing.RouteMetric{}, ctx.Err()
		}
		return routing.RouteMetric{}, &routing.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach routing provider",
			Err:      fmt.Errorf("%w: %w", routing.ErrProviderUnavailable, err),
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return routing.RouteMetric{}, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return routing.RouteMetric{}, handleHTTPError(resp.StatusCode)
	}

	var dirResp directionsResponse
	if err := json.Unmarshal(respBody, &dirResp); err != nil {
		return routing.RouteMetric{}, fmt.Errorf("decoding response: %w", err)
	}

	if dirResp.Status != statusOK {
		return routing.RouteMetric{}, statusError(dirResp.Status, dirResp.ErrorMessage, mode)
	}

	metric, err := toRouteMetric(&dirResp, mode)
	if err != nil {
		return routing.RouteMetric{}, err
	}

	c.logger.Debug().
		Str("mode", string(mode)).
		Float64("distance_km", metric.DistanceKm).
		Float64("duration_min", metric.DurationMin).
		Msg("received directions from Google")

	return metric, nil
}

// toRouteMetric reduces the first leg of the primary route to distance in km
// and duration in minutes. No waypoints are sent, so that leg is the whole trip.
func toRouteMetric(resp *directionsResponse, mode routing.Mode) (routing.RouteMetric, error) {
	if len(resp.Routes) == 0 || len(resp.Routes[0].Legs) == 0 {
		return routing.RouteMetric{}, &routing.Error{
			Provider: ProviderName,
			Code:     statusZeroResults,
			Message:  "no " + string(mode) + " route in response",
			Err:      routing.ErrNoRouteFound,
		}
	}

	primary := resp.Routes[0]
	leg := primary.Legs[0]

	return routing.RouteMetric{
		Mode:        mode,
		DistanceKm:  leg.Distance.Value / 1000,
		DurationMin: leg.Duration.Value / 60,
		Polyline:    primary.OverviewPolyline.Points,
	}, nil
}

// statusError maps a non-OK Directions status to a domain error.
func statusError(status, message string, mode routing.Mode) error {
	if message == "" {
		message = "directions request returned " + status
	}

	switch status {
	case statusZeroResults, statusNotFound, statusMaxRouteLength:
		return &routing.Error{
			Provider: ProviderName,
			Code:     status,
			Message:  "no " + string(mode) + " route found",
			Err:      routing.ErrNoRouteFound,
		}
	case statusInvalidRequest, statusMaxWaypointsReached:
		return &routing.Error{
			Provider: ProviderName,
			Code:     status,
			Message:  message,
			Err:      routing.ErrInvalidLocation,
		}
	case statusOverQueryLimit, statusOverDailyLimit:
		return &routing.Error{
			Provider: ProviderName,
			Code:     "RATE_LIMIT",
			Message:  "API rate limit exceeded, please try again later",
			Err:      routing.ErrRateLimitExceeded,
		}
	case statusRequestDenied:
		return &routing.Error{
			Provider: ProviderName,
			Code:     status,
			Message:  "API access denied - check API key configuration",
			Err:      routing.ErrProviderUnavailable,
		}
	default:
		return &routing.Error{
			Provider: ProviderName,
			Code:     status,
			Message:  message,
			Err:      routing.ErrProviderUnavailable,
		}
	}
}

// handleHTTPError maps non-200 HTTP responses to domain errors.
func handleHTTPError(statusCode int) error {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return &routing.Error{
			Provider: ProviderName,
			Code:     "RATE_LIMIT",
			Message:  "API rate limit exceeded, please try again later",
			Err:      routing.ErrRateLimitExceeded,
		}
	case statusCode >= 500:
		return &routing.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("SERVER_%d", statusCode),
			Message:  "routing provider is temporarily unavailable",
			Err:      routing.ErrProviderUnavailable,
		}
	default:
		return &routing.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", statusCode),
			Message:  fmt.Sprintf("routing provider returned status %d", statusCode),
			Err:      routing.ErrProviderUnavailable,
		}
	}
}
