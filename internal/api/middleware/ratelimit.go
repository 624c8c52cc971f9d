package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/heyysiri/EcoTrail/internal/api/models"
)

// Tier is a named request budget: Requests per Window for each key.
// A tier with Requests <= 0 does not limit.
type Tier struct {
	Name     string
	Requests int
	Window   time.Duration
}

// RateLimits groups the tiers applied by the router.
type RateLimits struct {
	// Auth guards the credential endpoints, keyed by client IP.
	Auth Tier
	// Routing guards eco routes and static maps, which call Google Maps.
	Routing Tier
	// Standard covers cheap reads.
	Standard Tier
}

// DefaultRateLimits returns 10, 30 and 100 requests per minute for auth, routing and standard.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		Auth:     Tier{Name: "auth", Requests: 10, Window: time.Minute},
		Routing:  Tier{Name: "routing", Requests: 30, Window: time.Minute},
		Standard: Tier{Name: "standard", Requests: 100, Window: time.Minute},
	}
}

// ByIP keys requests on the client address resolved by chi's RealIP.
func ByIP(r *http.Request) (string, error) {
	return httprate.KeyByRealIP(r)
}

// ByUser keys requests on the authenticated user, falling back to the client address.
func ByUser(r *http.Request) (string, error) {
	if userID := GetUserID(r.Context()); userID != "" {
		return "user:" + userID, nil
	}
	return httprate.KeyByRealIP(r)
}

// RateLimit limits requests sharing a key to the tier's budget.
// Rejected requests get a 429 Problem with Retry-After.
func RateLimit(tier Tier, key httprate.KeyFunc) func(http.Handler) http.Handler {
	if tier.Requests <= 0 || tier.Window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		tier.Requests,
		tier.Window,
		httprate.WithKeyFuncs(key),
		httprate.WithLimitHandler(limitExceeded(tier)),
	)
}

func limitExceeded(tier Tier) http.HandlerFunc {
	detail := fmt.Sprintf("Rate limit of %d requests per %s exceeded for %s endpoints. Please try again later.",
		tier.Requests, tier.Window, tier.Name)

	return func(w http.ResponseWriter, r *http.Request) {
		// httprate sets X-RateLimit-Reset before invoking the limit handler.
		retry := retryAfter(w.Header().Get("X-RateLimit-Reset"), tier.Window, time.Now())
		w.Header().Set("Retry-After", strconv.Itoa(retry))

		problem := models.NewTooManyRequests(GetRequestID(r.Context()), detail)
		problem.Instance = r.URL.Path
		problem.Write(w)
	}
}

// retryAfter returns whole seconds until reset (a unix timestamp), or the
// full window when reset is missing or already past.
func retryAfter(reset string, window time.Duration, now time.Time) int {
	if unix, err := strconv.ParseInt(reset, 10, 64); err == nil {
		if secs := unix - now.Unix(); secs > 0 {
			return int(secs)
		}
	}
	return int(math.Ceil(window.Seconds()))
}
