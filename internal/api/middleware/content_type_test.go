package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/heyysiri/EcoTrail/internal/api/middleware"
)

func TestContentTypeJSON(t *testing.T) {
	plain := middleware.ContentTypeJSON(okHandler())
	rec := httptest.NewRecorder()
	plain.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/me/points", http.NoBody))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	image := middleware.ContentTypeJSON(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
	}))
	rec = httptest.NewRecorder()
	image.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/maps/static", http.NoBody))
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
}

func TestRequireJSON(t *testing.T) {
	tests := []struct {
		method      string
		contentType string
		want        int
	}{
		{http.MethodPost, "application/json", http.StatusOK},
		{http.MethodPost, "application/json; charset=utf-8", http.StatusOK},
		{http.MethodPost, "Application/JSON", http.StatusOK},
		{http.MethodPost, "", http.StatusOK},
		{http.MethodPost, "application/x-www-form-urlencoded", http.StatusUnsupportedMediaType},
		{http.MethodPost, "application/jsonp", http.StatusUnsupportedMediaType},
		{http.MethodPatch, "text/plain", http.StatusUnsupportedMediaType},
		{http.MethodGet, "text/plain", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.contentType, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/v1/routes:eco", strings.NewReader(`{}`))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			middleware.RequireJSON(okHandler()).ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnsupportedMediaType {
				assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
				assert.Contains(t, rec.Body.String(), "Content-Type must be application/json")
			}
		})
	}
}
