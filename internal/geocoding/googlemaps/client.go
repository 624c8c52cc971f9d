// Package googlemaps provides a geocoder backed by the Google Geocoding API.
package googlemaps

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/heyysiri/EcoTrail/internal/geocoding"
	"github.com/heyysiri/EcoTrail/internal/provider/resilience"
	"github.com/heyysiri/EcoTrail/internal/routing"
)

const (
	// ProviderName identifies this geocoding provider.
	ProviderName = "googlemaps-geocode"

	// DefaultBaseURL is the Google Maps API base URL.
	DefaultBaseURL = "https://maps.googleapis.com"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second

	geocodePath = "/maps/api/geocode/json"
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Geocoding client.
type ClientConfig struct {
	// APIKey is the Google Maps API key (required).
	APIKey string

	// BaseURL is the API base URL (optional).
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

// Client is a Google Geocoding API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

var _ geocoding.Geocoder = (*Client)(nil)

// NewClient creates a new Geocoding client.
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
		clientCfg := resilience.DefaultClientConfig(ProviderName)
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

// Resolve returns the formatted address of the first geocoding result.
func (c *Client) Resolve(ctx context.Context, address string) (routing.Location, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", fmt.Errorf("empty address: %w", geocoding.ErrUnresolvable)
	}

	query := url.Values{}
	query.Set("address", address)
	query.Set("key", c.apiKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+geocodePath+"?"+query.Encode(), http.NoBody)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("geocoding %q: %w: %w", address, geocoding.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("geocoding returned status %d: %w", resp.StatusCode, geocoding.ErrProviderUnavailable)
	}

	var geoResp geocodeResponse
	if err := json.Unmarshal(body, &geoResp); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	switch geoResp.Status {
	case statusOK:
	case statusZeroResults, statusInvalidRequest:
		return "", fmt.Errorf("geocoding %q: %w", address, geocoding.ErrUnresolvable)
	case statusOverQueryLimit, statusOverDailyLimit, statusRequestDenied:
		c.logger.Warn().
			Str("status", geoResp.Status).
			Str("error_message", geoResp.ErrorMessage).
			Msg("geocoding request refused")
		return "", fmt.Errorf("geocoding status %s: %w", geoResp.Status, geocoding.ErrProviderUnavailable)
	default:
		return "", fmt.Errorf("geocoding status %s: %w", geoResp.Status, geocoding.ErrProviderUnavailable)
	}

	if len(geoResp.Results) == 0 || geoResp.Results[0].FormattedAddress == "" {
		return "", fmt.Errorf("geocoding %q: %w", address, geocoding.ErrUnresolvable)
	}

	resolved := routing.Location(geoResp.Results[0].FormattedAddress)

	c.logger.Debug().
		Str("address", address).
		Str("resolved", string(resolved)).
		Bool("partial_match", geoResp.Results[0].PartialMatch).
		Msg("geocoded address")

	return resolved, nil
}
