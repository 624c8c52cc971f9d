// Package main provides the entrypoint for the EcoTrail route warmup worker.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/heyysiri/EcoTrail/internal/api/models"
	"github.com/heyysiri/EcoTrail/internal/api/response"
	"github.com/heyysiri/EcoTrail/internal/config"
	"github.com/heyysiri/EcoTrail/internal/provider/resilience"
	"github.com/heyysiri/EcoTrail/internal/routing"
	routegoogle "github.com/heyysiri/EcoTrail/internal/routing/googlemaps"
	"github.com/heyysiri/EcoTrail/internal/telemetry"
	"github.com/heyysiri/EcoTrail/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// warmupInterval is how often the worker warms the cache when no Pub/Sub
// subscription is configured.
const warmupInterval = 10 * time.Minute

func main() {
	const serviceName = "ecotrail-worker"

	cfg, err := config.Load(".")
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting EcoTrail worker")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	providerMetrics, err := telemetry.NewProviderMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize provider metrics")
	}

	// Warming only pays off when the cache is shared with the API.
	if cfg.RedisURL == "" {
		log.Fatal().Msg("REDIS_URL is required for the warmup worker")
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid REDIS_URL")
	}
	rdb := redis.NewClient(opts)
	defer func() { _ = rdb.Close() }()

	registry := resilience.NewRegistry()
	directions := routegoogle.NewClient(routegoogle.ClientConfig{
		APIKey:   cfg.GoogleMapsAPIKey,
		BaseURL:  cfg.GoogleMapsBaseURL,
		Timeout:  cfg.RouteCallTimeout,
		Registry: registry,
		Logger:   log,
	})
	aggregator := routing.NewAggregator(routing.AggregatorConfig{
		Provider: routing.NewCachingProvider(routing.CachingConfig{
			Provider:        directions,
			Cache:           routing.NewRedisCache(rdb),
			Logger:          log,
			TTL:             cfg.RouteCacheTTL,
			StaleIfErrorTTL: cfg.RouteStaleTTL,
			Metrics:         providerMetrics,
		}),
		Logger:      log,
		CallTimeout: cfg.RouteCallTimeout,
		Metrics:     providerMetrics,
	})

	warmupConfig := worker.DefaultWarmupConfig()
	if cfg.WarmupConcurrency > 0 {
		warmupConfig.Concurrency = cfg.WarmupConcurrency
	}
	warmupJob := worker.NewWarmupJob(worker.WarmupJobConfig{
		Config:     warmupConfig,
		Aggregator: aggregator,
		Logger:     log,
	})

	// Health and metrics endpoints for the container platform
	router := chi.NewRouter()
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := models.HealthStatusOK
		if err := rdb.Ping(r.Context()).Err(); err != nil {
			status = models.HealthStatusDegraded
		}
		response.JSON(w, r, http.StatusOK, models.Health{
			Status: status,
			Time:   models.Timestamp(time.Now()),
			Details: map[string]interface{}{
				"version":   Version,
				"buildTime": BuildTime,
			},
		})
	})
	router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, warmupJob.MetricsSnapshot())
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	// Start health check server
	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Start worker loop
	if cfg.PubSubProjectID != "" {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.PubSubProjectID,
			SubscriptionName: cfg.PubSubSubscription,
			WarmupJob:        warmupJob,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer func() { _ = handler.Close() }()

		go func() {
			if err := handler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	} else {
		log.Info().Dur("interval", warmupInterval).Msg("no pubsub project configured, warming on a timer")
		go func() {
			ticker := time.NewTicker(warmupInterval)
			defer ticker.Stop()

			warmupJob.Run(ctx)
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					warmupJob.Run(ctx)
				}
			}
		}()
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
