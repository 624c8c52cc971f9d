package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/heyysiri/EcoTrail/internal/api/models"
	"github.com/heyysiri/EcoTrail/internal/auth"
)

type userIDKey struct{}

// TokenValidator resolves an access token to a user ID.
type TokenValidator interface {
	ValidateAccessToken(tokenString string) (string, error)
}

var (
	errNoAuthHeader   = errors.New("missing authorization header")
	errNotBearer      = errors.New("invalid authorization header format")
	errEmptyBearer    = errors.New("missing bearer token")
	bearerChallenge   = `Bearer realm="ecotrail"`
	invalidChallenge  = `Bearer realm="ecotrail", error="invalid_token"`
	bearerSchemeLabel = "bearer "
)

// Auth requires a valid bearer access token and puts its user ID on the context.
// Points are only ever awarded to the user resolved here.
func Auth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil {
				writeUnauthorized(w, r, bearerChallenge, err.Error())
				return
			}

			userID, err := validator.ValidateAccessToken(token)
			if err != nil {
				writeUnauthorized(w, r, invalidChallenge, tokenFailure(err))
				return
			}

			noteUser(r.Context(), userID)
			ctx := context.WithValue(r.Context(), userIDKey{}, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from "Authorization: Bearer <token>"; the scheme is case-insensitive.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errNoAuthHeader
	}
	if len(header) < len(bearerSchemeLabel) || !strings.EqualFold(header[:len(bearerSchemeLabel)], bearerSchemeLabel) {
		return "", errNotBearer
	}
	token := strings.TrimSpace(header[len(bearerSchemeLabel):])
	if token == "" {
		return "", errEmptyBearer
	}
	return token, nil
}

func tokenFailure(err error) string {
	switch {
	case errors.Is(err, auth.ErrAccessTokenExpired):
		return "access token has expired"
	case errors.Is(err, auth.ErrInvalidAccessToken):
		return "invalid access token"
	default:
		return "authentication failed"
	}
}

// writeUnauthorized writes the 401 directly; the response package imports this one.
func writeUnauthorized(w http.ResponseWriter, r *http.Request, challenge, detail string) {
	w.Header().Set("WWW-Authenticate", challenge)
	problem := models.NewUnauthorized(GetRequestID(r.Context()), detail)
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// GetUserID returns the authenticated user ID, or "" outside Auth.
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey{}).(string); ok {
		return id
	}
	return ""
}
