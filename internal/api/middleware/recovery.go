package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/heyysiri/EcoTrail/internal/api/models"
)

// Recovery turns a handler panic into a 500 problem. It logs through the
// request logger when Logger runs first, else through log.
// http.ErrAbortHandler is re-raised so the server aborts the response.
func Recovery(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				l := zerolog.Ctx(r.Context())
				if l.GetLevel() == zerolog.Disabled {
					fallback := log.With().Str("request_id", GetRequestID(r.Context())).Logger()
					l = &fallback
				}
				l.Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")

				problem := models.NewInternalError(GetRequestID(r.Context()), "an unexpected error occurred")
				problem.Instance = r.URL.Path
				problem.Write(w)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
