package middleware_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heyysiri/EcoTrail/internal/api/middleware"
	"github.com/heyysiri/EcoTrail/internal/auth"
)

// expiringTokens reports every token as expired.
type expiringTokens struct{}

func (expiringTokens) ValidateAccessToken(string) (string, error) {
	return "", auth.ErrAccessTokenExpired
}

type brokenValidator struct{}

func (brokenValidator) ValidateAccessToken(string) (string, error) {
	return "", fmt.Errorf("key store offline")
}

func serveWithAuth(v middleware.TokenValidator, header string) (*httptest.ResponseRecorder, string) {
	var seen string
	h := middleware.RequestID(middleware.Auth(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = middleware.GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest(http.MethodGet, "/v1/me/points", http.NoBody)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, seen
}

func TestAuth_AcceptsBearerToken(t *testing.T) {
	tokens := tokenTable{"tok-greta": "usr_greta"}

	for _, header := range []string{"Bearer tok-greta", "bearer tok-greta", "BEARER tok-greta", "Bearer   tok-greta  "} {
		t.Run(header, func(t *testing.T) {
			rec, userID := serveWithAuth(tokens, header)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "usr_greta", userID)
			assert.Empty(t, rec.Header().Get("WWW-Authenticate"))
		})
	}
}

func TestAuth_Rejects(t *testing.T) {
	tokens := tokenTable{"tok-greta": "usr_greta"}

	tests := []struct {
		name      string
		validator middleware.TokenValidator
		header    string
		detail    string
		challenge string
	}{
		{"no header", tokens, "", "missing authorization header", `Bearer realm="ecotrail"`},
		{"basic scheme", tokens, "Basic dXNlcjpwYXNz", "invalid authorization header format", `Bearer realm="ecotrail"`},
		{"no scheme", tokens, "tok-greta", "invalid authorization header format", `Bearer realm="ecotrail"`},
		{"scheme only", tokens, "Bearer", "invalid authorization header format", `Bearer realm="ecotrail"`},
		{"blank token", tokens, "Bearer    ", "missing bearer token", `Bearer realm="ecotrail"`},
		{"unknown token", tokens, "Bearer tok-nobody", "invalid access token", `Bearer realm="ecotrail", error="invalid_token"`},
		{"expired token", expiringTokens{}, "Bearer tok-greta", "access token has expired", `Bearer realm="ecotrail", error="invalid_token"`},
		{"validator failure", brokenValidator{}, "Bearer tok-greta", "authentication failed", `Bearer realm="ecotrail", error="invalid_token"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, userID := serveWithAuth(tt.validator, tt.header)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Empty(t, userID)
			assert.Equal(t, tt.challenge, rec.Header().Get("WWW-Authenticate"))
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.detail, body["detail"])
			assert.Equal(t, "/v1/me/points", body["instance"])
			assert.Equal(t, rec.Header().Get("X-Request-Id"), body["traceId"])
		})
	}
}

func TestAuth_WithJWTService(t *testing.T) {
	jwtService := auth.NewJWTService(auth.JWTConfig{
		SigningKey: "test-secret-key-for-testing-only",
		Issuer:     "ecotrail",
		Audience:   "ecotrail-app",
	})
	token, _, err := jwtService.GenerateAccessToken(&auth.User{ID: "usr_greta", Username: "greta"})
	require.NoError(t, err)

	rec, userID := serveWithAuth(jwtValidator{jwtService}, "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "usr_greta", userID)

	rec, _ = serveWithAuth(jwtValidator{jwtService}, "Bearer "+token+"x")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// jwtValidator adapts a JWTService the way auth.Service does.
type jwtValidator struct{ svc *auth.JWTService }

func (v jwtValidator) ValidateAccessToken(token string) (string, error) {
	claims, err := v.svc.ValidateAccessToken(token)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

func TestGetUserID_NoAuth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/me/points", http.NoBody)
	assert.Empty(t, middleware.GetUserID(req.Context()))
}
