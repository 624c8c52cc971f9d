// Package ecoroute computes the eco-friendly route between two addresses and awards
// the traveller points for it.
package ecoroute

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/heyysiri/EcoTrail/internal/eco"
	"github.com/heyysiri/EcoTrail/internal/geocoding"
	"github.com/heyysiri/EcoTrail/internal/points"
	"github.com/heyysiri/EcoTrail/internal/routing"
	"github.com/heyysiri/EcoTrail/internal/staticmap"
)

const tracerName = "github.com/heyysiri/EcoTrail/internal/ecoroute"

// Warning codes attached to a Result.
const (
	WarningNoRoutesFound   = "NO_ROUTES_FOUND"
	WarningNoEligibleRoute = "NO_ELIGIBLE_ROUTE"
)

var (
	// ErrDependencyUnavailable wraps geocoder and renderer outages.
	ErrDependencyUnavailable = errors.New("dependency unavailable")

	// ErrPointsUnavailable wraps points store failures.
	ErrPointsUnavailable = errors.New("points store unavailable")

	// ErrNoRoute is returned by RenderMap when the requested mode has no route.
	ErrNoRoute = errors.New("no route for mode")
)

// FieldError describes one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ValidationError is returned when a request is malformed. No routing is attempted.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Field+": "+f.Message)
	}
	return "invalid request: " + strings.Join(msgs, "; ")
}

// UnresolvableAddressError is returned when the geocoder finds nothing for an address.
type UnresolvableAddressError struct {
	Field   string
	Address string
}

func (e *UnresolvableAddressError) Error() string {
	return fmt.Sprintf("%s %q could not be resolved", e.Field, e.Address)
}

func (e *UnresolvableAddressError) Unwrap() error {
	return geocoding.ErrUnresolvable
}

// Request is one eco-route computation.
type Request struct {
	UserID      string
	Origin      string
	Destination string

	// Modes to compare; empty means every mode.
	Modes []string

	// MaxDurationMinutes excludes slower modes. Nil or 0 means no limit.
	MaxDurationMinutes *float64
}

// Result is the outcome of ComputeEcoRoute.
type Result struct {
	Origin         routing.Location
	Destination    routing.Location
	PerModeResults []eco.ScoredRoute
	Failed         []routing.Mode
	Recommendation eco.Recommendation
	PointsAwarded  int
	PointsTotal    int64
	Warnings       []string
}

// MapRequest asks for a static map of one mode's route.
type MapRequest struct {
	Origin      string
	Destination string
	Mode        string
}

// MapRenderer draws a route image.
type MapRenderer interface {
	Render(ctx context.Context, origin, destination routing.Location, encodedPath string) (*staticmap.Image, error)
}

// Config holds the service dependencies.
type Config struct {
	// Geocoder resolves addresses (optional). Without one, addresses are used as given.
	Geocoder geocoding.Geocoder

	// Provider fetches single routes for map rendering.
	Provider routing.Provider

	Aggregator *routing.Aggregator
	Engine     *eco.Engine
	Points     points.Store

	// Renderer draws maps (optional). RenderMap fails without one.
	Renderer MapRenderer

	Logger zerolog.Logger
}

// Service computes eco routes.
type Service struct {
	geocoder   geocoding.Geocoder
	provider   routing.Provider
	aggregator *routing.Aggregator
	engine     *eco.Engine
	points     points.Store
	renderer   MapRenderer
	logger     zerolog.Logger
	tracer     trace.Tracer
}

// NewService creates a Service.
func NewService(cfg Config) *Service {
	engine := cfg.Engine
	if engine == nil {
		engine = eco.NewEngine(eco.DefaultPolicy())
	}
	return &Service{
		geocoder:   cfg.Geocoder,
		provider:   cfg.Provider,
		aggregator: cfg.Aggregator,
		engine:     engine,
		points:     cfg.Points,
		renderer:   cfg.Renderer,
		logger:     cfg.Logger,
		tracer:     otel.Tracer(tracerName),
	}
}

// Engine returns the scoring engine.
func (s *Service) Engine() *eco.Engine {
	return s.engine
}

// ComputeEcoRoute compares the requested modes, recommends the lowest-emission one that
// fits the time ceiling and credits its points to the user.
// Modes that fail at the provider are listed in Result.Failed and never abort the call.
func (s *Service) ComputeEcoRoute(ctx context.Context, req Request) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "ecoroute.ComputeEcoRoute")
	defer span.End()

	modes, ceiling, err := validate(req)
	if err != nil {
		return nil, err
	}

	origin, destination, err := s.resolvePair(ctx, req.Origin, req.Destination)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("modes", len(modes)))

	start := time.Now()
	agg := s.aggregator.Aggregate(ctx, origin, destination, modes)

	scored, err := s.engine.Score(agg.Metrics())
	if err != nil {
		// every mode reaching here passed ParseModes, so this is a policy table gap
		return nil, fmt.Errorf("scoring routes: %w", err)
	}

	rec := eco.Select(scored, ceiling)

	result := &Result{
		Origin:         origin,
		Destination:    destination,
		PerModeResults: scored,
		Failed:         agg.Failed(),
		Recommendation: rec,
	}

	switch {
	case len(scored) == 0:
		result.Warnings = append(result.Warnings, WarningNoRoutesFound)
	case !rec.Found():
		result.Warnings = append(result.Warnings, WarningNoEligibleRoute)
	}

	if rec.Found() {
		result.PointsAwarded = rec.Route.Points
	}

	result.PointsTotal, err = s.award(ctx, req.UserID, result.PointsAwarded)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", req.UserID).
		Int("modes", len(modes)).
		Int("failed", len(result.Failed)).
		Str("recommended", string(rec.Mode)).
		Int("points_awarded", result.PointsAwarded).
		Dur("duration", time.Since(start)).
		Msg("eco route computed")

	return result, nil
}

// Points returns the user's cumulative total.
func (s *Service) Points(ctx context.Context, userID string) (int64, error) {
	total, err := s.points.GetPoints(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPointsUnavailable, err)
	}
	return total, nil
}

// RenderMap draws the route of one mode between two addresses.
func (s *Service) RenderMap(ctx context.Context, req MapRequest) (*staticmap.Image, error) {
	if s.renderer == nil {
		return nil, fmt.Errorf("%w: map rendering is not configured", ErrDependencyUnavailable)
	}

	mode := routing.ModeDriving
	if strings.TrimSpace(req.Mode) != "" {
		modes, err := routing.ParseModes([]string{req.Mode})
		if err != nil {
			return nil, &ValidationError{Fields: []FieldError{modesFieldError(err)}}
		}
		mode = modes[0]
	}

	if fields := requireAddresses(req.Origin, req.Destination); len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	origin, destination, err := s.resolvePair(ctx, req.Origin, req.Destination)
	if err != nil {
		return nil, err
	}

	metric, err := s.provider.FetchRoute(ctx, origin, destination, mode)
	if err != nil {
		if routing.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoRoute, mode)
		}
		// a map is decorative; fall back to a straight line between the markers
		s.logger.Warn().Err(err).Str("mode", string(mode)).Msg("route unavailable for map, drawing straight line")
	}

	img, err := s.renderer.Render(ctx, origin, destination, metric.Polyline)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrDependencyUnavailable, err)
	}
	return img, nil
}

func (s *Service) award(ctx context.Context, userID string, delta int) (int64, error) {
	if userID == "" {
		return 0, nil
	}

	var (
		total int64
		err   error
	)
	if delta > 0 {
		total, err = s.points.IncrementPoints(ctx, userID, int64(delta))
	} else {
		total, err = s.points.GetPoints(ctx, userID)
	}
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("points store failed")
		return 0, fmt.Errorf("%w: %v", ErrPointsUnavailable, err)
	}
	return total, nil
}

// resolvePair geocodes origin and destination concurrently.
func (s *Service) resolvePair(ctx context.Context, origin, destination string) (routing.Location, routing.Location, error) {
	if s.geocoder == nil {
		return routing.Location(strings.TrimSpace(origin)), routing.Location(strings.TrimSpace(destination)), nil
	}

	var from, to routing.Location
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		from, err = s.resolve(gctx, "origin", origin)
		return err
	})
	g.Go(func() error {
		var err error
		to, err = s.resolve(gctx, "destination", destination)
		return err
	})
	if err := g.Wait(); err != nil {
		return "", "", err
	}
	return from, to, nil
}

func (s *Service) resolve(ctx context.Context, field, address string) (routing.Location, error) {
	loc, err := s.geocoder.Resolve(ctx, address)
	switch {
	case err == nil:
		return loc, nil
	case errors.Is(err, geocoding.ErrUnresolvable):
		return "", &UnresolvableAddressError{Field: field, Address: address}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "", err
	default:
		return "", fmt.Errorf("%w: geocoding %s: %v", ErrDependencyUnavailable, field, err)
	}
}

// validate checks the request and returns its modes and effective ceiling.
func validate(req Request) ([]routing.Mode, *float64, error) {
	fields := requireAddresses(req.Origin, req.Destination)

	modes, err := routing.ParseModes(req.Modes)
	if err != nil {
		fields = append(fields, modesFieldError(err))
	}

	var ceiling *float64
	if c := req.MaxDurationMinutes; c != nil {
		switch {
		case *c < 0 || math.IsNaN(*c) || math.IsInf(*c, 0):
			fields = append(fields, FieldError{
				Field:   "maxDurationMinutes",
				Message: "must be a non-negative number of minutes",
				Code:    "INVALID",
			})
		case *c > 0:
			v := *c
			ceiling = &v
		}
	}

	if len(fields) > 0 {
		return nil, nil, &ValidationError{Fields: fields}
	}
	return modes, ceiling, nil
}

func requireAddresses(origin, destination string) []FieldError {
	var fields []FieldError
	if strings.TrimSpace(origin) == "" {
		fields = append(fields, FieldError{Field: "origin", Message: "is required", Code: "REQUIRED"})
	}
	if strings.TrimSpace(destination) == "" {
		fields = append(fields, FieldError{Field: "destination", Message: "is required", Code: "REQUIRED"})
	}
	return fields
}

func modesFieldError(err error) FieldError {
	var invalid *routing.InvalidModesError
	if errors.As(err, &invalid) {
		return FieldError{
			Field:   "modes",
			Message: "unsupported modes: " + strings.Join(invalid.Invalid, ", "),
			Code:    "INVALID_MODE",
		}
	}
	return FieldError{Field: "modes", Message: err.Error(), Code: "INVALID"}
}
