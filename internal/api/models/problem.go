package models

import (
	"encoding/json"
	"net/http"
)

// Problem is an RFC 7807 error body, served as application/problem+json.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	// TraceID equals the request ID echoed in X-Request-Id.
	TraceID string `json:"traceId"`

	// Errors lists per-field failures for 400 and 422 responses.
	Errors []FieldError `json:"errors,omitempty"`
}

// FieldError names one rejected request field. Code is a stable machine-readable tag.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Problem type URIs.
const (
	ProblemTypeValidation      = "https://api.ecotrail.app/problems/validation-error"
	ProblemTypeUnauthorized    = "https://api.ecotrail.app/problems/unauthorized"
	ProblemTypeTLSRequired     = "https://api.ecotrail.app/problems/tls-required"
	ProblemTypeNotFound        = "https://api.ecotrail.app/problems/not-found"
	ProblemTypeConflict        = "https://api.ecotrail.app/problems/conflict"
	ProblemTypeUnsupportedType = "https://api.ecotrail.app/problems/unsupported-media-type"
	ProblemTypeUnresolvable    = "https://api.ecotrail.app/problems/unresolvable-address"
	ProblemTypeTooManyRequests = "https://api.ecotrail.app/problems/too-many-requests"
	ProblemTypeInternal        = "https://api.ecotrail.app/problems/internal-error"
	ProblemTypeUnavailable     = "https://api.ecotrail.app/problems/service-unavailable"
)

var problemTitles = map[string]string{
	ProblemTypeValidation:      "Validation error",
	ProblemTypeUnauthorized:    "Unauthorized",
	ProblemTypeTLSRequired:     "TLS required",
	ProblemTypeNotFound:        "Not found",
	ProblemTypeConflict:        "Conflict",
	ProblemTypeUnsupportedType: "Unsupported media type",
	ProblemTypeUnresolvable:    "Unprocessable entity",
	ProblemTypeTooManyRequests: "Too many requests",
	ProblemTypeInternal:        "Internal server error",
	ProblemTypeUnavailable:     "Service unavailable",
}

// NewProblem creates a Problem without detail.
func NewProblem(problemType, title string, status int, traceID string) *Problem {
	return &Problem{
		Type:    problemType,
		Title:   title,
		Status:  status,
		TraceID: traceID,
	}
}

func newProblem(problemType string, status int, traceID, detail string) *Problem {
	p := NewProblem(problemType, problemTitles[problemType], status, traceID)
	p.Detail = detail
	return p
}

// Write sends the Problem with its status; the trace ID doubles as X-Request-Id.
func (p *Problem) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	if p.TraceID != "" {
		w.Header().Set("X-Request-Id", p.TraceID)
	}
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// NewBadRequest creates a 400 with per-field errors.
func NewBadRequest(traceID, detail string, errors []FieldError) *Problem {
	p := newProblem(ProblemTypeValidation, http.StatusBadRequest, traceID, detail)
	p.Errors = errors
	return p
}

// NewUnauthorized creates a 401.
func NewUnauthorized(traceID, detail string) *Problem {
	return newProblem(ProblemTypeUnauthorized, http.StatusUnauthorized, traceID, detail)
}

// NewTLSRequired creates a 403 for plain HTTP requests.
func NewTLSRequired(traceID string) *Problem {
	return newProblem(ProblemTypeTLSRequired, http.StatusForbidden, traceID, "This endpoint requires HTTPS")
}

// NewNotFound creates a 404.
func NewNotFound(traceID, detail string) *Problem {
	return newProblem(ProblemTypeNotFound, http.StatusNotFound, traceID, detail)
}

// NewConflict creates a 409.
func NewConflict(traceID, detail string) *Problem {
	return newProblem(ProblemTypeConflict, http.StatusConflict, traceID, detail)
}

// NewUnsupportedMediaType creates a 415.
func NewUnsupportedMediaType(traceID, detail string) *Problem {
	return newProblem(ProblemTypeUnsupportedType, http.StatusUnsupportedMediaType, traceID, detail)
}

// NewUnprocessable creates a 422 for well-formed requests naming places that cannot be resolved.
func NewUnprocessable(traceID, detail string, errors []FieldError) *Problem {
	p := newProblem(ProblemTypeUnresolvable, http.StatusUnprocessableEntity, traceID, detail)
	p.Errors = errors
	return p
}

// NewTooManyRequests creates a 429.
func NewTooManyRequests(traceID, detail string) *Problem {
	return newProblem(ProblemTypeTooManyRequests, http.StatusTooManyRequests, traceID, detail)
}

// NewInternalError creates a 500.
func NewInternalError(traceID, detail string) *Problem {
	return newProblem(ProblemTypeInternal, http.StatusInternalServerError, traceID, detail)
}

// NewServiceUnavailable creates a 503.
func NewServiceUnavailable(traceID, detail string) *Problem {
	return newProblem(ProblemTypeUnavailable, http.StatusServiceUnavailable, traceID, detail)
}
