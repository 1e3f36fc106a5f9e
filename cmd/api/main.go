// Package main provides the entrypoint for the Midway API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/meetmidway/midway/internal/api"
	"github.com/meetmidway/midway/internal/api/handler"
	"github.com/meetmidway/midway/internal/api/middleware"
	"github.com/meetmidway/midway/internal/cache"
	"github.com/meetmidway/midway/internal/cluster"
	"github.com/meetmidway/midway/internal/config"
	"github.com/meetmidway/midway/internal/describe"
	"github.com/meetmidway/midway/internal/midpoint"
	"github.com/meetmidway/midway/internal/places"
	placesgoogle "github.com/meetmidway/midway/internal/places/google"
	"github.com/meetmidway/midway/internal/provider/resilience"
	"github.com/meetmidway/midway/internal/routing"
	routinggoogle "github.com/meetmidway/midway/internal/routing/google"
	"github.com/meetmidway/midway/internal/scoring"
	"github.com/meetmidway/midway/internal/search"
	"github.com/meetmidway/midway/internal/telemetry"
	"github.com/meetmidway/midway/internal/vibe"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// describerTimeout is longer than the map collaborators' because text generation is slow.
const describerTimeout = 30 * time.Second

func main() {
	const serviceName = "midway-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting Midway API")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.Google.APIKey == "" {
		log.Warn().Msg("GOOGLE_MAPS_API_KEY not set - searches will fail")
	}

	// Initialize OpenTelemetry
	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTel.OTLPEndpoint,
		Enabled:        cfg.OTel.Enabled,
		SampleRatio:    cfg.OTel.SampleRatio,
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

	if cfg.OTel.Enabled {
		log.Info().
			Str("otlp_endpoint", cfg.OTel.OTLPEndpoint).
			Float64("sample_ratio", cfg.OTel.SampleRatio).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}
	providerMetrics := tp.Metrics

	// Response cache
	store, checks, closeStore, err := openCache(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Cache.Backend).Msg("failed to open cache")
	}
	defer closeStore()
	log.Info().Str("backend", store.Name()).Msg("response cache ready")

	// Vibe keywords
	keywords := vibe.Default()
	if cfg.Search.KeywordsPath != "" {
		keywords, err = vibe.Load(cfg.Search.KeywordsPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Search.KeywordsPath).Msg("failed to load vibe keywords")
		}
	}
	log.Info().Str("keywords_version", keywords.Version).Msg("vibe keywords loaded")

	// External collaborators
	registry := resilience.NewRegistry()
	maxRetries := cfg.Provider.MaxRetries

	routes := routing.NewService(routing.ServiceConfig{
		Provider: routinggoogle.NewClient(routinggoogle.ClientConfig{
			APIKey:        cfg.Google.APIKey,
			BaseURL:       cfg.Google.BaseURL,
			Timeout:       cfg.Provider.Timeout,
			MaxRetries:    &maxRetries,
			RetryInterval: cfg.Provider.RetryInterval,
			Registry:      registry,
			Logger:        log,
		}),
		Cache:    store,
		Logger:   log,
		CacheTTL: cfg.Cache.RouteTTL,
		Metrics:  providerMetrics,
	})

	venues := places.NewService(places.ServiceConfig{
		Provider: placesgoogle.NewClient(placesgoogle.ClientConfig{
			APIKey:        cfg.Google.APIKey,
			BaseURL:       cfg.Google.BaseURL,
			Timeout:       cfg.Provider.Timeout,
			MaxRetries:    &maxRetries,
			RetryInterval: cfg.Provider.RetryInterval,
			Registry:      registry,
			Logger:        log,
		}),
		Cache:      store,
		Logger:     log,
		SearchTTL:  cfg.Cache.SearchTTL,
		DetailsTTL: cfg.Cache.DetailsTTL,
		Metrics:    providerMetrics,
	})

	var describer describe.Describer
	if cfg.OpenAI.APIKey != "" {
		clientCfg := resilience.DefaultClientConfig("openai")
		clientCfg.Timeout = describerTimeout
		clientCfg.MaxRetries = maxRetries
		clientCfg.Registry = registry

		describer = describe.NewCachedDescriber(
			describe.NewOpenAIDescriber(describe.OpenAIConfig{
				APIKey:     cfg.OpenAI.APIKey,
				Model:      cfg.OpenAI.Model,
				BaseURL:    cfg.OpenAI.BaseURL,
				HTTPClient: resilience.NewClient(clientCfg),
				Logger:     log,
			}),
			store,
			cfg.Cache.DescriptionTTL,
			log,
		)
		log.Info().Msg("venue descriptions enabled")
	} else {
		log.Info().Msg("OPENAI_API_KEY not set - venue descriptions disabled")
	}

	searchService := search.NewService(search.ServiceConfig{
		Midpoints: midpoint.NewResolver(midpoint.ResolverConfig{
			Routes: routes,
			Logger: log,
		}),
		Places: venues,
		Clusterer: cluster.NewClusterer(cluster.Config{
			RadiusMeters: cfg.Search.ClusterRadiusMeters,
			MinNeighbors: cfg.Search.ClusterMinNeighbors,
		}, keywords),
		Scorer: scoring.NewScorer(scoring.Config{
			VibrancyRadiusMeters: cfg.Search.VibrancyRadiusMeters,
		}, keywords),
		Describer:   describer,
		Logger:      log,
		ResultLimit: cfg.Search.ResultLimit,
		Tracer:      tp.Tracer,
	})
	log.Info().Int("collaborators", registry.ProviderCount()).Msg("search service initialized")

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:         Version,
		BuildTime:       BuildTime,
		Logger:          log,
		ServiceName:     serviceName,
		Metrics:         metrics,
		RequireTLS:      cfg.RequireTLS,
		Searcher:        searchService,
		Registry:        registry,
		ReadinessChecks: checks,
		SearchRateLimit: middleware.PerMinute(cfg.Search.RateLimitPerMinute),
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second, // search fans out to several collaborators
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Str("env", cfg.Environment).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}

// openCache builds the configured response cache backend. It returns the
// readiness checks for network-backed stores and a close function.
func openCache(ctx context.Context, cfg *config.Config, log zerolog.Logger) (cache.Store, []handler.HealthCheck, func(), error) {
	noop := func() {}

	switch cfg.Cache.Backend {
	case config.CacheNone:
		return cache.Noop{}, nil, noop, nil

	case config.CacheMemory:
		return cache.NewMemoryStore(time.Minute), nil, noop, nil

	case config.CacheRedis:
		store, err := cache.NewRedisStore(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		closeFn := func() {
			if err := store.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close redis")
			}
		}
		return store, []handler.HealthCheck{{Name: "redis", Check: store.Ping}}, closeFn, nil

	case config.CachePostgres:
		pool, err := cache.ConnectPostgres(ctx, cache.PostgresConfig{
			DSN:             cfg.Database.ConnectionString(),
			MaxConns:        int32(cfg.Database.MaxOpenConns), //nolint:gosec // bounded by config validation
			MinConns:        int32(cfg.Database.MaxIdleConns), //nolint:gosec // bounded by config validation
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		store := cache.NewPostgresStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		if purged, err := store.Purge(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to purge expired cache entries")
		} else {
			log.Info().Int64("purged", purged).Msg("expired cache entries purged")
		}
		log.Info().
			Str("host", cfg.Database.Host).
			Int("port", cfg.Database.Port).
			Str("database", cfg.Database.Name).
			Msg("database connected")
		return store, []handler.HealthCheck{{Name: "postgres", Check: store.Ping}}, pool.Close, nil

	default:
		return nil, nil, nil, fmt.Errorf("%w: unknown cache backend %q", config.ErrInvalidConfig, cfg.Cache.Backend)
	}
}
