package middleware

import (
	"mime"
	"net/http"

	"github.com/heyysiri/EcoTrail/internal/api/models"
)

// ContentTypeJSON defaults the response Content-Type to application/json.
// Handlers that send images or problems set their own.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json")
		}
		next.ServeHTTP(w, r)
	})
}

// RequireJSON answers 415 when a POST, PUT or PATCH declares a body type other
// than application/json. A missing Content-Type is accepted.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			if ct := r.Header.Get("Content-Type"); ct != "" && !isJSON(ct) {
				problem := models.NewUnsupportedMediaType(GetRequestID(r.Context()), "Content-Type must be application/json")
				problem.Instance = r.URL.Path
				problem.Write(w)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "application/json"
}
