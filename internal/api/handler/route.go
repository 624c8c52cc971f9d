package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/heyysiri/EcoTrail/internal/api/models"
	"github.com/heyysiri/EcoTrail/internal/api/response"
	"github.com/heyysiri/EcoTrail/internal/ecoroute"
	"github.com/heyysiri/EcoTrail/internal/staticmap"
)

// maxRequestBody limits JSON request bodies.
const maxRequestBody = 64 << 10

// EcoRouteService is the subset of ecoroute.Service the handlers need.
type EcoRouteService interface {
	ComputeEcoRoute(ctx context.Context, req ecoroute.Request) (*ecoroute.Result, error)
	Points(ctx context.Context, userID string) (int64, error)
	RenderMap(ctx context.Context, req ecoroute.MapRequest) (*staticmap.Image, error)
}

var _ EcoRouteService = (*ecoroute.Service)(nil)

// RouteHandler handles eco-route computation.
type RouteHandler struct {
	service EcoRouteService
	logger  zerolog.Logger
}

// NewRouteHandler creates a new RouteHandler.
func NewRouteHandler(service EcoRouteService, logger zerolog.Logger) *RouteHandler {
	return &RouteHandler{
		service: service,
		logger:  logger,
	}
}

// ComputeEcoRoute handles POST /v1/routes:eco - compare modes and award points.
func (h *RouteHandler) ComputeEcoRoute(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, r, "authentication required")
		return
	}

	var req models.EcoRouteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	result, err := h.service.ComputeEcoRoute(r.Context(), ecoroute.Request{
		UserID:             userID,
		Origin:             req.Origin,
		Destination:        req.Destination,
		Modes:              req.Modes,
		MaxDurationMinutes: req.MaxDurationMinutes,
	})
	if err != nil {
		h.writeServiceError(w, r, err, "eco route computation failed")
		return
	}

	response.JSON(w, r, http.StatusOK, models.NewEcoRouteResponse(result))
}

// writeServiceError maps ecoroute errors onto problem responses.
func (h *RouteHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	var (
		verr *ecoroute.ValidationError
		uerr *ecoroute.UnresolvableAddressError
	)
	switch {
	case errors.As(err, &verr):
		response.BadRequest(w, r, "validation error", serviceFieldErrors(verr.Fields))
	case errors.As(err, &uerr):
		response.UnprocessableEntity(w, r, uerr.Error(), []models.FieldError{{
			Field:   uerr.Field,
			Message: "address could not be resolved",
			Code:    "UNRESOLVABLE",
		}})
	case errors.Is(err, ecoroute.ErrNoRoute):
		response.NotFound(w, r, err.Error())
	case errors.Is(err, ecoroute.ErrPointsUnavailable), errors.Is(err, ecoroute.ErrDependencyUnavailable):
		h.logger.Warn().Err(err).Msg(msg)
		response.ServiceUnavailable(w, r, "a dependency is temporarily unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		h.logger.Warn().Err(err).Msg(msg)
		response.ServiceUnavailable(w, r, "request timed out")
	default:
		h.logger.Error().Err(err).Msg(msg)
		response.InternalError(w, r, msg)
	}
}

func serviceFieldErrors(errs []ecoroute.FieldError) []models.FieldError {
	out := make([]models.FieldError, len(errs))
	for i, e := range errs {
		out[i] = models.FieldError{
			Field:   e.Field,
			Message: e.Message,
			Code:    e.Code,
		}
	}
	return out
}
