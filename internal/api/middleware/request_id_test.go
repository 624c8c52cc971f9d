package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heyysiri/EcoTrail/internal/api/middleware"
)

// echoRequestID answers with the ID the handler saw in its context.
var echoRequestID = middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(middleware.GetRequestID(r.Context())))
}))

func TestRequestID_Generated(t *testing.T) {
	rec := httptest.NewRecorder()
	echoRequestID.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/metadata/modes", http.NoBody))

	id := rec.Header().Get(middleware.RequestIDHeader)
	assert.True(t, strings.HasPrefix(id, "req_"), id)
	assert.Len(t, id, len("req_")+22)
	assert.Equal(t, id, rec.Body.String(), "context and header carry the same ID")
}

func TestRequestID_ClientSupplied(t *testing.T) {
	tests := []struct {
		name   string
		header string
		kept   bool
	}{
		{"plain", "existing_request_id", true},
		{"uuid", "0b7e6c1a-7d1e-4c1b-9f56-1b9a8f0e2d11", true},
		{"dotted", "gw.eu-west.1234", true},
		{"max length", strings.Repeat("a", 64), true},
		{"too long", strings.Repeat("a", 65), false},
		{"spaces", "id with spaces", false},
		{"newline", "abc\ninjected=1", false},
		{"json", `{"x":1}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
			req.Header.Set(middleware.RequestIDHeader, tt.header)
			rec := httptest.NewRecorder()
			echoRequestID.ServeHTTP(rec, req)

			got := rec.Header().Get(middleware.RequestIDHeader)
			if tt.kept {
				assert.Equal(t, tt.header, got)
			} else {
				assert.NotEqual(t, tt.header, got)
				assert.True(t, strings.HasPrefix(got, "req_"))
			}
		})
	}
}

func TestGetRequestID_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	assert.Empty(t, middleware.GetRequestID(req.Context()))
}

func TestNewRequestID_Unique(t *testing.T) {
	seen := make(map[string]struct{}, 200)
	for i := 0; i < 200; i++ {
		id := middleware.NewRequestID()
		_, dup := seen[id]
		require.False(t, dup, "duplicate request ID %s", id)
		seen[id] = struct{}{}
	}
}
