// Package api provides the HTTP API for EcoTrail.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/heyysiri/EcoTrail/internal/api/handler"
	"github.com/heyysiri/EcoTrail/internal/api/middleware"
	"github.com/heyysiri/EcoTrail/internal/auth"
	"github.com/heyysiri/EcoTrail/internal/eco"
	"github.com/heyysiri/EcoTrail/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	AuthService *auth.Service

	// EcoRouteService computes routes, points and maps.
	EcoRouteService handler.EcoRouteService

	// Policy is reported by the modes metadata endpoint. Defaults to eco.DefaultPolicy.
	Policy *eco.Policy

	// Registry supplies upstream provider health for /v1/ops/status.
	Registry *resilience.Registry

	// ReadinessChecks are run by /v1/ops/ready, keyed by subsystem.
	ReadinessChecks map[string]handler.ReadinessCheck

	// RequireTLS rejects plain HTTP requests (honours X-Forwarded-Proto).
	RequireTLS bool

	// RateLimits defaults to middleware.DefaultRateLimits when nil.
	RateLimits *middleware.RateLimits
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Set default service name if not provided
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "ecotrail-api"
	}

	policy := eco.DefaultPolicy()
	if cfg.Policy != nil {
		policy = *cfg.Policy
	}
	limits := middleware.DefaultRateLimits()
	if cfg.RateLimits != nil {
		limits = *cfg.RateLimits
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))         // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))       // Panic recovery
	r.Use(chimiddleware.RealIP)                  // Real IP extraction
	r.Use(middleware.SecurityHeaders)            // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS(cfg.RequireTLS)) // TLS enforcement
	r.Use(middleware.ContentTypeJSON)            // JSON content type unless a handler overrides

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(handler.OpsHandlerConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Registry:  cfg.Registry,
		Checks:    cfg.ReadinessChecks,
		Logger:    cfg.Logger,
	})
	authHandler := handler.NewAuthHandler(cfg.AuthService, cfg.Logger)
	routeHandler := handler.NewRouteHandler(cfg.EcoRouteService, cfg.Logger)
	metadataHandler := handler.NewMetadataHandler(policy)

	// Create auth middleware
	authMiddleware := middleware.Auth(cfg.AuthService)

	authRateLimit := middleware.RateLimit(limits.Auth, middleware.ByIP)
	routingRateLimit := middleware.RateLimit(limits.Routing, middleware.ByUser)
	standardRateLimit := middleware.RateLimit(limits.Standard, middleware.ByIP)
	userRateLimit := middleware.RateLimit(limits.Standard, middleware.ByUser)

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Auth endpoints (public) - strict rate limiting
		r.Route("/auth", func(r chi.Router) {
			r.Use(authRateLimit)
			r.Use(middleware.RequireJSON)
			r.Post("/signup", authHandler.Signup)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.RefreshToken)
			r.Post("/logout", authHandler.Logout)
			// password change and logout-all require authentication
			r.With(authMiddleware).Post("/password", authHandler.UpdatePassword)
			r.With(authMiddleware).Post("/logout-all", authHandler.LogoutAll)
		})

		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			// Status endpoint requires authentication
			r.With(authMiddleware).Get("/status", opsHandler.SystemStatus)
		})

		// Metadata endpoints (public) - standard rate limiting
		r.Route("/metadata", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/modes", metadataHandler.Modes)
		})

		// Me endpoints (authenticated) - user-based rate limiting
		r.Route("/me", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(userRateLimit)
			r.Get("/points", routeHandler.Points)
		})

		// Eco routes and maps call upstream providers - strict per-user limit
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(routingRateLimit)
			r.With(middleware.RequireJSON).Post("/routes:eco", routeHandler.ComputeEcoRoute)
			r.Get("/maps/static", routeHandler.StaticMap)
		})
	})

	return r
}
