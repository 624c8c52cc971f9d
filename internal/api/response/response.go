// Package response writes EcoTrail API responses: JSON bodies, RFC 7807 problems and images.
// Every response echoes the request ID in X-Request-Id.
package response

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/heyysiri/EcoTrail/internal/api/middleware"
	"github.com/heyysiri/EcoTrail/internal/api/models"
)

// JSON writes data as a JSON body. A nil data writes headers only.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeJSON(w, r, status, data)
}

// Created writes a 201 with an optional Location header.
func Created(w http.ResponseWriter, r *http.Request, location string, data any) {
	if location != "" {
		w.Header().Set("Location", location)
	}
	writeJSON(w, r, http.StatusCreated, data)
}

// NoContent writes a bodiless 204.
func NoContent(w http.ResponseWriter, r *http.Request) {
	echoRequestID(w, r)
	w.WriteHeader(http.StatusNoContent)
}

// Binary writes raw bytes, such as a rendered map image.
func Binary(w http.ResponseWriter, r *http.Request, status int, contentType string, data []byte) {
	echoRequestID(w, r)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		zerolog.Ctx(r.Context()).Debug().Err(err).Msg("client went away while writing body")
	}
}

// Error writes problem as application/problem+json, scoped to the request path.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// BadRequest writes a 400 listing the offending fields.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errors []models.FieldError) {
	Error(w, r, models.NewBadRequest(traceID(r), detail, errors))
}

// Unauthorized writes a 401.
func Unauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewUnauthorized(traceID(r), detail))
}

// NotFound writes a 404.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewNotFound(traceID(r), detail))
}

// Conflict writes a 409.
func Conflict(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewConflict(traceID(r), detail))
}

// UnprocessableEntity writes a 422, used when an address cannot be resolved.
func UnprocessableEntity(w http.ResponseWriter, r *http.Request, detail string, errors []models.FieldError) {
	Error(w, r, models.NewUnprocessable(traceID(r), detail, errors))
}

// InternalError writes a 500. detail must not carry internal error text.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewInternalError(traceID(r), detail))
}

// ServiceUnavailable writes a 503 for upstream or store outages.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewServiceUnavailable(traceID(r), detail))
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	echoRequestID(w, r)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Int("status", status).Msg("failed to encode response body")
	}
}

func echoRequestID(w http.ResponseWriter, r *http.Request) {
	if id := middleware.GetRequestID(r.Context()); id != "" {
		w.Header().Set(middleware.RequestIDHeader, id)
	}
}

func traceID(r *http.Request) string {
	return middleware.GetRequestID(r.Context())
}
