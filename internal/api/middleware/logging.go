package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// accessKey holds the per-request accessEntry filled in by inner middleware.
type accessKey struct{}

type accessEntry struct {
	userID string
}

// noteUser records the authenticated user on the access log entry, if any.
func noteUser(ctx context.Context, userID string) {
	if e, ok := ctx.Value(accessKey{}).(*accessEntry); ok {
		e.userID = userID
	}
}

// Logger writes one access log line per request and attaches a request-scoped
// logger to the context, retrievable with zerolog.Ctx.
//
// 5xx responses log at error, 4xx at warn, and probe endpoints at debug.
func Logger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := newResponseWriter(w)

			reqLog := log.With().Str("request_id", GetRequestID(r.Context()))
			spanCtx := trace.SpanContextFromContext(r.Context())
			if spanCtx.IsValid() {
				reqLog = reqLog.
					Str("trace_id", spanCtx.TraceID().String()).
					Str("span_id", spanCtx.SpanID().String())
			}
			l := reqLog.Logger()

			entry := &accessEntry{}
			ctx := context.WithValue(l.WithContext(r.Context()), accessKey{}, entry)
			r = r.WithContext(ctx)

			next.ServeHTTP(wrapped, r)

			event := l.WithLevel(accessLevel(r.URL.Path, wrapped.statusCode)).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", wrapped.statusCode).
				Int64("bytes", wrapped.written).
				Dur("duration", time.Since(start)).
				Str("remote_addr", r.RemoteAddr).
				Str("user_agent", r.UserAgent())
			if pattern := routePattern(r); pattern != "" {
				event = event.Str("route", pattern)
			}
			if entry.userID != "" {
				event = event.Str("user_id", entry.userID)
			}
			event.Msg("request completed")
		})
	}
}

func accessLevel(path string, status int) zerolog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zerolog.ErrorLevel
	case status >= http.StatusBadRequest:
		return zerolog.WarnLevel
	case strings.HasPrefix(path, "/v1/ops/health"), strings.HasPrefix(path, "/v1/ops/ready"):
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}
