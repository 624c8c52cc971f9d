// Package staticmap renders a route overview image with the Google Static Maps API.
package staticmap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/heyysiri/EcoTrail/internal/provider/resilience"
	"github.com/heyysiri/EcoTrail/internal/routing"
	"github.com/heyysiri/EcoTrail/internal/telemetry"
	"github.com/heyysiri/EcoTrail/pkg/polyline"
)

const (
	// ProviderName identifies the static map provider.
	ProviderName = "googlemaps-staticmap"

	// DefaultBaseURL is the Google Maps API base URL.
	DefaultBaseURL = "https://maps.googleapis.com"

	// DefaultSize is the rendered image size.
	DefaultSize = "600x400"

	// MaxURLLength is the longest request URL Google accepts.
	MaxURLLength = 8192

	staticMapPath = "/maps/api/staticmap"
	pathStyle     = "color:blue|weight:5"
	maxImageBytes = 4 << 20
)

var (
	// ErrMissingLocation is returned when origin or destination is empty.
	ErrMissingLocation = errors.New("origin and destination are required")

	// ErrUnavailable is returned when the map could not be fetched.
	ErrUnavailable = errors.New("static map provider unavailable")
)

// Image is a rendered map.
type Image struct {
	ContentType string
	Data        []byte
}

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds configuration for the renderer.
type Config struct {
	APIKey     string
	BaseURL    string
	Size       string
	HTTPClient HTTPDoer
	Registry   *resilience.Registry
	Logger     zerolog.Logger

	// Metrics records call outcomes (optional).
	Metrics *telemetry.ProviderMetrics
}

// Renderer fetches static map images.
type Renderer struct {
	apiKey     string
	baseURL    string
	size       string
	httpClient HTTPDoer
	logger     zerolog.Logger
	metrics    *telemetry.ProviderMetrics
}

// NewRenderer creates a Renderer.
func NewRenderer(cfg Config) *Renderer {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Size == "" {
		cfg.Size = DefaultSize
	}
	if cfg.HTTPClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = 15 * time.Second
		clientCfg.Registry = cfg.Registry
		clientCfg.Logger = cfg.Logger
		cfg.HTTPClient = resilience.NewClient(clientCfg)
	}

	return &Renderer{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		size:       cfg.Size,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
	}
}

// Render draws origin and destination markers joined by the encoded path.
// Without a path, a straight line joins the markers.
func (r *Renderer) Render(ctx context.Context, origin, destination routing.Location, encodedPath string) (*Image, error) {
	if origin == "" || destination == "" {
		return nil, ErrMissingLocation
	}

	start := time.Now()
	img, err := r.fetch(ctx, r.URL(origin, destination, encodedPath))

	outcome := telemetry.OutcomeSuccess
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		outcome = telemetry.OutcomeTimeout
	case err != nil:
		outcome = telemetry.OutcomeError
	}
	r.metrics.RecordCall(ProviderName, "render", outcome, time.Since(start))

	return img, err
}

func (r *Renderer) fetch(ctx context.Context, mapURL string) (*Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mapURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.logger.Warn().Err(err).Msg("static map request failed")
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.logger.Warn().
			Int("status", resp.StatusCode).
			Msg("static map provider returned error")
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("%w: unexpected content type %q", ErrUnavailable, contentType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}

	return &Image{ContentType: contentType, Data: data}, nil
}

// URL builds the request URL. Long paths are simplified until the URL fits MaxURLLength;
// a path that cannot be made to fit is replaced by a straight line.
func (r *Renderer) URL(origin, destination routing.Location, encodedPath string) string {
	straight := r.build(origin, destination, pathStyle+"|"+string(origin)+"|"+string(destination))
	if encodedPath == "" {
		return straight
	}

	full := r.build(origin, destination, pathStyle+"|enc:"+encodedPath)
	if len(full) <= MaxURLLength {
		return full
	}

	budget := MaxURLLength - (len(full) - len(encodedPath))
	for budget > 0 {
		fitted, ok := polyline.Fit(encodedPath, budget)
		if !ok {
			break
		}
		u := r.build(origin, destination, pathStyle+"|enc:"+fitted)
		if len(u) <= MaxURLLength {
			r.logger.Debug().
				Int("original_len", len(encodedPath)).
				Int("simplified_len", len(fitted)).
				Msg("simplified map path")
			return u
		}
		// escaping grew the path; shrink the budget and retry
		budget -= len(u) - MaxURLLength
	}

	return straight
}

func (r *Renderer) build(origin, destination routing.Location, path string) string {
	q := url.Values{}
	q.Set("size", r.size)
	q.Add("markers", "color:green|label:A|"+string(origin))
	q.Add("markers", "color:red|label:B|"+string(destination))
	q.Set("path", path)
	q.Set("key", r.apiKey)
	return r.baseURL + staticMapPath + "?" + q.Encode()
}
