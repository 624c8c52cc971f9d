package middleware_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heyysiri/EcoTrail/internal/api/middleware"
)

// accessLines decodes every JSON line written to buf.
func accessLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var lines []map[string]any
	dec := json.NewDecoder(buf)
	for dec.More() {
		var line map[string]any
		require.NoError(t, dec.Decode(&line))
		lines = append(lines, line)
	}
	return lines
}

func TestLogger_AccessLine(t *testing.T) {
	var buf bytes.Buffer
	handler := middleware.RequestID(middleware.Logger(zerolog.New(&buf))(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"total":120}`))
		}),
	))

	req := httptest.NewRequest(http.MethodGet, "/v1/me/points", http.NoBody)
	req.Header.Set("User-Agent", "ecotrail-ios/2.1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	lines := accessLines(t, &buf)
	require.Len(t, lines, 1)
	line := lines[0]

	assert.Equal(t, "request completed", line["message"])
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "GET", line["method"])
	assert.Equal(t, "/v1/me/points", line["path"])
	assert.EqualValues(t, 200, line["status"])
	assert.EqualValues(t, 13, line["bytes"])
	assert.Equal(t, "ecotrail-ios/2.1", line["user_agent"])
	assert.Contains(t, line["request_id"], "req_")
	assert.NotContains(t, line, "user_id")
}

func TestLogger_LevelFollowsStatus(t *testing.T) {
	tests := []struct {
		path   string
		status int
		level  string
	}{
		{"/v1/routes:eco", http.StatusOK, "info"},
		{"/v1/routes:eco", http.StatusUnprocessableEntity, "warn"},
		{"/v1/routes:eco", http.StatusServiceUnavailable, "error"},
		{"/v1/ops/health", http.StatusOK, "debug"},
		{"/v1/ops/ready", http.StatusServiceUnavailable, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.path+" "+http.StatusText(tt.status), func(t *testing.T) {
			var buf bytes.Buffer
			handler := middleware.Logger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))

			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, http.NoBody))

			lines := accessLines(t, &buf)
			require.Len(t, lines, 1)
			assert.Equal(t, tt.level, lines[0]["level"])
		})
	}
}

func TestLogger_RecordsRouteAndUser(t *testing.T) {
	var buf bytes.Buffer
	r := chi.NewRouter()
	r.Use(middleware.Logger(zerolog.New(&buf)))
	r.With(middleware.Auth(tokenTable{"tok-a": "usr_a"})).Get("/v1/me/points", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/me/points", http.NoBody)
	req.Header.Set("Authorization", "Bearer tok-a")
	r.ServeHTTP(httptest.NewRecorder(), req)

	lines := accessLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "usr_a", lines[0]["user_id"])
	assert.Equal(t, "/v1/me/points", lines[0]["route"])
}

func TestLogger_RequestScopedLogger(t *testing.T) {
	var buf bytes.Buffer
	handler := middleware.RequestID(middleware.Logger(zerolog.New(&buf))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			zerolog.Ctx(r.Context()).Info().Msg("geocoding origin")
			w.WriteHeader(http.StatusOK)
		}),
	))

	req := httptest.NewRequest(http.MethodPost, "/v1/routes:eco", http.NoBody)
	req.Header.Set("X-Request-Id", "req_fromclient")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	lines := accessLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "geocoding origin", lines[0]["message"])
	assert.Equal(t, "req_fromclient", lines[0]["request_id"])
	assert.Equal(t, "req_fromclient", lines[1]["request_id"])
}

func TestLogger_IncludesTraceIDs(t *testing.T) {
	setupTestTracer(t)

	var buf bytes.Buffer
	handler := middleware.Tracing("ecotrail-test")(middleware.Logger(zerolog.New(&buf))(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/metadata/modes", http.NoBody))

	lines := accessLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Len(t, lines[0]["trace_id"], 32)
	assert.Len(t, lines[0]["span_id"], 16)
}
