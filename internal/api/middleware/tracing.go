package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type rawQueryKey struct{}

// Tracing starts a server span per request, continuing any incoming W3C trace context.
// Spans are named "METHOD /route/{pattern}" once chi has matched the route.
// The query string is hidden from the instrumentation because it carries user addresses.
func Tracing(serviceName string) func(http.Handler) http.Handler {
	instrument := otelhttp.NewMiddleware(serviceName,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method
		}),
	)

	return func(next http.Handler) http.Handler {
		traced := instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			span := trace.SpanFromContext(r.Context())
			if requestID := GetRequestID(r.Context()); requestID != "" {
				span.SetAttributes(attribute.String("request.id", requestID))
			}

			query, _ := r.Context().Value(rawQueryKey{}).(string)
			r = withRawQuery(r, query)
			next.ServeHTTP(w, r)

			if pattern := routePattern(r); pattern != "" {
				span.SetName(r.Method + " " + pattern)
				span.SetAttributes(attribute.String("http.route", pattern))
			}
		}))

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), rawQueryKey{}, r.URL.RawQuery)
			traced.ServeHTTP(w, withRawQuery(r.WithContext(ctx), ""))
		})
	}
}

// withRawQuery returns a shallow copy of r whose URL carries query.
func withRawQuery(r *http.Request, query string) *http.Request {
	if r.URL.RawQuery == query {
		return r
	}
	u := *r.URL
	u.RawQuery = query
	out := r.WithContext(r.Context())
	out.URL = &u
	out.RequestURI = u.RequestURI()
	return out
}

func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return ""
	}
	return rctx.RoutePattern()
}
