package middleware

import (
	"net/http"
	"strings"

	"github.com/heyysiri/EcoTrail/internal/api/models"
)

// securityHeaders are set on every response. The API serves JSON and map
// images only, so the content policy forbids everything.
var securityHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Strict-Transport-Security", "max-age=31536000; includeSubDomains"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Referrer-Policy", "strict-origin-when-cross-origin"},
	{"Permissions-Policy", "geolocation=(), camera=(), microphone=()"},
}

// SecurityHeaders adds the fixed response hardening headers.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		for _, kv := range securityHeaders {
			h.Set(kv[0], kv[1])
		}
		next.ServeHTTP(w, r)
	})
}

// RequireTLS rejects requests the load balancer received over plain HTTP.
// Requests without X-Forwarded-Proto reached the container directly and pass.
func RequireTLS(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if proto := forwardedProto(r); proto != "" && proto != "https" {
				problem := models.NewTLSRequired(GetRequestID(r.Context()))
				problem.Instance = r.URL.Path
				problem.Write(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// forwardedProto returns the client-facing scheme: the first entry when
// proxies chained the header.
func forwardedProto(r *http.Request) string {
	proto, _, _ := strings.Cut(r.Header.Get("X-Forwarded-Proto"), ",")
	return strings.ToLower(strings.TrimSpace(proto))
}
