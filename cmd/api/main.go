// Package main provides the entrypoint for the EcoTrail API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/heyysiri/EcoTrail/internal/api"
	"github.com/heyysiri/EcoTrail/internal/api/handler"
	"github.com/heyysiri/EcoTrail/internal/api/middleware"
	"github.com/heyysiri/EcoTrail/internal/auth"
	"github.com/heyysiri/EcoTrail/internal/config"
	"github.com/heyysiri/EcoTrail/internal/database"
	"github.com/heyysiri/EcoTrail/internal/eco"
	"github.com/heyysiri/EcoTrail/internal/ecoroute"
	geogoogle "github.com/heyysiri/EcoTrail/internal/geocoding/googlemaps"
	"github.com/heyysiri/EcoTrail/internal/points"
	"github.com/heyysiri/EcoTrail/internal/provider/resilience"
	"github.com/heyysiri/EcoTrail/internal/routing"
	routegoogle "github.com/heyysiri/EcoTrail/internal/routing/googlemaps"
	"github.com/heyysiri/EcoTrail/internal/staticmap"
	"github.com/heyysiri/EcoTrail/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "ecotrail-api"

	cfg, err := config.Load(".")
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := newLogger(cfg, serviceName)

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Env).
		Msg("starting EcoTrail API")

	// Initialize OpenTelemetry
	ctx := context.Background()
	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.OTelEndpoint,
		Enabled:        cfg.OTelEnabled,
		SampleRatio:    cfg.OTelSampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if tp.Enabled() {
		log.Info().
			Str("otlp_endpoint", cfg.OTelEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}
	providerMetrics, err := telemetry.NewProviderMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize provider metrics")
	}

	readiness := make(map[string]handler.ReadinessCheck)

	// Connect to database
	var pool *pgxpool.Pool
	if cfg.UsesPostgres() {
		dbConfig := cfg.Database()
		pool, err = database.Connect(ctx, dbConfig)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()

		if err := database.Migrate(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("failed to apply database schema")
		}
		readiness["postgres"] = pool.Ping
		log.Info().
			Str("host", dbConfig.Host).
			Int("port", dbConfig.Port).
			Str("database", dbConfig.Database).
			Msg("database connected")
	}

	// Connect to Redis
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		rdb = redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()

		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		readiness["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		log.Info().Str("addr", opts.Addr).Msg("redis connected")
	}

	// Upstream providers share one registry so /v1/ops/status sees all of them.
	registry := resilience.NewRegistry()
	if cfg.GoogleMapsAPIKey == "" {
		log.Warn().Msg("GOOGLE_MAPS_API_KEY not set - routing, geocoding and maps will fail")
	}

	directions := routegoogle.NewClient(routegoogle.ClientConfig{
		APIKey:   cfg.GoogleMapsAPIKey,
		BaseURL:  cfg.GoogleMapsBaseURL,
		Timeout:  cfg.RouteCallTimeout,
		Registry: registry,
		Logger:   log,
	})
	routeProvider := routing.NewCachingProvider(routing.CachingConfig{
		Provider:        directions,
		Cache:           newRouteCache(rdb),
		Logger:          log,
		TTL:             cfg.RouteCacheTTL,
		StaleIfErrorTTL: cfg.RouteStaleTTL,
		Metrics:         providerMetrics,
	})
	aggregator := routing.NewAggregator(routing.AggregatorConfig{
		Provider:    routeProvider,
		Logger:      log,
		CallTimeout: cfg.RouteCallTimeout,
		Metrics:     providerMetrics,
	})

	geocoder := geogoogle.NewClient(geogoogle.ClientConfig{
		APIKey:   cfg.GoogleMapsAPIKey,
		BaseURL:  cfg.GoogleMapsBaseURL,
		Registry: registry,
		Logger:   log,
	})
	renderer := staticmap.NewRenderer(staticmap.Config{
		APIKey:   cfg.GoogleMapsAPIKey,
		BaseURL:  cfg.GoogleMapsBaseURL,
		Registry: registry,
		Logger:   log,
		Metrics:  providerMetrics,
	})

	pointsStore := newPointsStore(cfg, pool, rdb)
	log.Info().Str("backend", cfg.PointsBackend).Msg("points store initialized")

	policy := eco.DefaultPolicy()
	ecoService := ecoroute.NewService(ecoroute.Config{
		Geocoder:   geocoder,
		Provider:   routeProvider,
		Aggregator: aggregator,
		Engine:     eco.NewEngine(policy),
		Points:     pointsStore,
		Renderer:   renderer,
		Logger:     log,
	})

	// Initialize auth repositories and service
	var (
		userRepo    auth.UserRepository
		refreshRepo auth.RefreshTokenRepository
	)
	if pool != nil {
		userRepo = auth.NewPostgresUserRepository(pool)
		refreshRepo = auth.NewPostgresRefreshTokenRepository(pool)
	} else {
		userRepo = auth.NewInMemoryUserRepository()
		refreshRepo = auth.NewInMemoryRefreshTokenRepository()
	}

	jwtSigningKey := cfg.JWTSigningKey
	if jwtSigningKey == "" {
		jwtSigningKey = "local-dev-signing-key-change-in-production"
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}

	authService := auth.NewService(auth.ServiceConfig{
		JWTService: auth.NewJWTService(auth.JWTConfig{
			SigningKey: jwtSigningKey,
			Issuer:     cfg.JWTIssuer,
			Audience:   cfg.JWTAudience,
			AccessTTL:  cfg.JWTAccessTTL,
			RefreshTTL: cfg.JWTRefreshTTL,
		}),
		UserRepo:    userRepo,
		RefreshRepo: refreshRepo,
		Logger:      log,
	})
	log.Info().Msg("auth service initialized")

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:         Version,
		BuildTime:       BuildTime,
		Logger:          log,
		ServiceName:     serviceName,
		Metrics:         metrics,
		AuthService:     authService,
		EcoRouteService: ecoService,
		Policy:          &policy,
		Registry:        registry,
		ReadinessChecks: readiness,
		RequireTLS:      cfg.RequireTLS,
		RateLimits:      rateLimits(cfg),
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	log.Info().Msg("server stopped")
}

func newLogger(cfg *config.Config, serviceName string) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var log zerolog.Logger
	if cfg.IsProduction() {
		log = zerolog.New(os.Stdout)
	} else {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	return log.Level(level).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()
}

// newRouteCache shares route answers between replicas when Redis is configured.
func newRouteCache(rdb *redis.Client) routing.Cache {
	if rdb != nil {
		return routing.NewRedisCache(rdb)
	}
	return routing.NewMemoryCache(routing.MemoryCacheConfig{})
}

func newPointsStore(cfg *config.Config, pool *pgxpool.Pool, rdb *redis.Client) points.Store {
	switch cfg.PointsBackend {
	case config.PointsBackendRedis:
		return points.NewRedisStore(rdb)
	case config.PointsBackendPostgres:
		return points.NewPostgresStore(pool)
	default:
		return points.NewInMemoryStore()
	}
}

func rateLimits(cfg *config.Config) *middleware.RateLimits {
	limits := middleware.DefaultRateLimits()
	limits.Auth.Requests = cfg.RateLimitAuth
	limits.Routing.Requests = cfg.RateLimitRouting
	limits.Standard.Requests = cfg.RateLimitStandard
	return &limits
}
