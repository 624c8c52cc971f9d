package response_test

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/heyysiri/EcoTrail/internal/api/middleware"
	"github.com/heyysiri/EcoTrail/internal/api/models"
	"github.com/heyysiri/EcoTrail/internal/api/response"
)

// serve runs write behind the RequestID middleware and returns the recorded response.
func serve(method, path string, write func(w http.ResponseWriter, r *http.Request)) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	middleware.RequestID(http.HandlerFunc(write)).ServeHTTP(rec, httptest.NewRequest(method, path, http.NoBody))
	return rec
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) models.Problem {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Fatalf("Content-Type = %q, want application/problem+json", ct)
	}
	var p models.Problem
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	return p
}

func TestJSON_WritesBody(t *testing.T) {
	rec := serve(http.MethodGet, "/v1/me/points", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, models.Points{UserID: "usr_1", Total: 240})
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("X-Request-Id not echoed")
	}

	var got models.Points
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Total != 240 || got.UserID != "usr_1" {
		t.Errorf("body = %+v", got)
	}
}

func TestJSON_NilDataWritesNoBody(t *testing.T) {
	rec := serve(http.MethodGet, "/v1/ops/health", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, nil)
	})

	if rec.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", rec.Body.String())
	}
}

func TestJSON_WithoutRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	response.JSON(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody), http.StatusOK, map[string]int{"n": 1})

	if _, ok := rec.Header()["X-Request-Id"]; ok {
		t.Error("X-Request-Id set without a request ID in context")
	}
}

func TestJSON_EncodeFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/routes:eco", http.NoBody)
	req = req.WithContext(log.WithContext(req.Context()))

	response.JSON(rec, req, http.StatusOK, map[string]float64{"carbonKg": math.NaN()})

	if !bytes.Contains(buf.Bytes(), []byte("failed to encode response body")) {
		t.Errorf("log = %q, want encode failure", buf.String())
	}
}

func TestCreated_SetsLocation(t *testing.T) {
	rec := serve(http.MethodPost, "/v1/auth/signup", func(w http.ResponseWriter, r *http.Request) {
		response.Created(w, r, "/v1/me/points", map[string]string{"accessToken": "t"})
	})

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/v1/me/points" {
		t.Errorf("Location = %q", loc)
	}
}

func TestNoContent(t *testing.T) {
	rec := serve(http.MethodPost, "/v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		response.NoContent(w, r)
	})

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("X-Request-Id not echoed")
	}
	if rec.Body.Len() != 0 {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestBinary_WritesImage(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n'}
	rec := serve(http.MethodGet, "/v1/maps/static", func(w http.ResponseWriter, r *http.Request) {
		response.Binary(w, r, http.StatusOK, "image/png", png)
	})

	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cl := rec.Header().Get("Content-Length"); cl != "6" {
		t.Errorf("Content-Length = %q", cl)
	}
	if !bytes.Equal(rec.Body.Bytes(), png) {
		t.Errorf("body = %v", rec.Body.Bytes())
	}
}

func TestProblems(t *testing.T) {
	fields := []models.FieldError{{Field: "origin", Message: "no match", Code: "UNRESOLVABLE"}}

	tests := []struct {
		name       string
		write      func(w http.ResponseWriter, r *http.Request)
		status     int
		typ        string
		wantFields int
	}{
		{
			name:       "bad request",
			write:      func(w http.ResponseWriter, r *http.Request) { response.BadRequest(w, r, "invalid body", fields) },
			status:     http.StatusBadRequest,
			typ:        models.ProblemTypeValidation,
			wantFields: 1,
		},
		{
			name:   "unauthorized",
			write:  func(w http.ResponseWriter, r *http.Request) { response.Unauthorized(w, r, "missing token") },
			status: http.StatusUnauthorized,
			typ:    models.ProblemTypeUnauthorized,
		},
		{
			name:   "not found",
			write:  func(w http.ResponseWriter, r *http.Request) { response.NotFound(w, r, "no route") },
			status: http.StatusNotFound,
			typ:    models.ProblemTypeNotFound,
		},
		{
			name:   "conflict",
			write:  func(w http.ResponseWriter, r *http.Request) { response.Conflict(w, r, "email taken") },
			status: http.StatusConflict,
			typ:    models.ProblemTypeConflict,
		},
		{
			name: "unprocessable",
			write: func(w http.ResponseWriter, r *http.Request) {
				response.UnprocessableEntity(w, r, "address could not be resolved", fields)
			},
			status:     http.StatusUnprocessableEntity,
			typ:        models.ProblemTypeUnresolvable,
			wantFields: 1,
		},
		{
			name:   "internal",
			write:  func(w http.ResponseWriter, r *http.Request) { response.InternalError(w, r, "unexpected error") },
			status: http.StatusInternalServerError,
			typ:    models.ProblemTypeInternal,
		},
		{
			name:   "unavailable",
			write:  func(w http.ResponseWriter, r *http.Request) { response.ServiceUnavailable(w, r, "points store down") },
			status: http.StatusServiceUnavailable,
			typ:    models.ProblemTypeUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(http.MethodPost, "/v1/routes:eco", tt.write)

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			p := decodeProblem(t, rec)
			if p.Type != tt.typ {
				t.Errorf("type = %q, want %q", p.Type, tt.typ)
			}
			if p.Status != tt.status {
				t.Errorf("problem status = %d", p.Status)
			}
			if p.Instance != "/v1/routes:eco" {
				t.Errorf("instance = %q", p.Instance)
			}
			if p.TraceID == "" || p.TraceID != rec.Header().Get("X-Request-Id") {
				t.Errorf("traceId %q does not match X-Request-Id %q", p.TraceID, rec.Header().Get("X-Request-Id"))
			}
			if len(p.Errors) != tt.wantFields {
				t.Errorf("errors = %+v, want %d", p.Errors, tt.wantFields)
			}
		})
	}
}

func TestError_KeepsClientRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/maps/static", http.NoBody)
	req.Header.Set("X-Request-Id", "client-request-123")
	rec := httptest.NewRecorder()

	middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "no route between the addresses")
	})).ServeHTTP(rec, req)

	p := decodeProblem(t, rec)
	if p.TraceID != "client-request-123" {
		t.Errorf("traceId = %q", p.TraceID)
	}
	if p.Detail != "no route between the addresses" {
		t.Errorf("detail = %q", p.Detail)
	}
}
