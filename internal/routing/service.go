package routing

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/meetmidway/midway/internal/cache"
	"github.com/meetmidway/midway/internal/telemetry"
)

// cacheVersion is bumped whenever the cached Route shape changes.
const cacheVersion = "v1"

// ServiceConfig holds configuration for the routing service.
type ServiceConfig struct {
	// Provider is the routing data provider.
	Provider Provider

	// Cache stores raw routes keyed on the exact normalized address pair.
	// If nil, caching is disabled.
	Cache cache.Store

	// Logger for service operations.
	Logger zerolog.Logger

	// CacheTTL is how long to cache routes (default: 1 hour).
	CacheTTL time.Duration

	// Metrics records provider latency and cache hits (optional).
	Metrics *telemetry.ProviderMetrics
}

// Service provides routes with an optional response cache.
type Service struct {
	provider Provider
	cache    cache.Store
	logger   zerolog.Logger
	cacheTTL time.Duration
	metrics  *telemetry.ProviderMetrics
}

// NewService creates a new routing service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = time.Hour
	}

	store := cfg.Cache
	if store == nil {
		store = cache.Noop{}
	}

	return &Service{
		provider: cfg.Provider,
		cache:    store,
		logger:   cfg.Logger,
		cacheTTL: cacheTTL,
		metrics:  cfg.Metrics,
	}
}

// GetRoute returns a validated route between two addresses.
// Cached routes are returned when available; cache failures fall through to the provider.
func (s *Service) GetRoute(ctx context.Context, origin, destination string) (*Route, error) {
	origin = NormalizeAddress(origin)
	destination = NormalizeAddress(destination)

	if origin == "" || destination == "" {
		return nil, &Error{
			Provider: s.provider.Name(),
			Code:     "INVALID_ADDRESS",
			Message:  "origin and destination addresses are required",
			Err:      ErrInvalidInput,
		}
	}

	key := s.cacheKey(origin, destination)

	var cached Route
	ok, err := cache.GetJSON(ctx, s.cache, key, &cached)
	if err != nil {
		s.logger.Warn().Err(err).Str("cache_key", key).Msg("route cache read failed")
	}
	if ok {
		s.logger.Debug().Str("cache_key", key).Msg("cache hit for route")
		s.metrics.RecordCacheHit(s.provider.Name(), "get_route")
		return &cached, nil
	}
	s.metrics.RecordCacheMiss(s.provider.Name(), "get_route")

	s.logger.Debug().
		Str("origin", origin).
		Str("destination", destination).
		Str("provider", s.provider.Name()).
		Msg("fetching route from provider")

	start := time.Now()
	route, err := s.provider.GetRoute(ctx, origin, destination)
	s.metrics.RecordRequest(s.provider.Name(), "get_route", time.Since(start), err)
	if err != nil {
		s.logger.Error().Err(err).
			Str("origin", origin).
			Str("destination", destination).
			Msg("failed to fetch route")
		return nil, err
	}

	if err := route.Validate(); err != nil {
		return nil, &Error{
			Provider: s.provider.Name(),
			Code:     "INVALID_ROUTE",
			Message:  "routing provider returned an inconsistent route",
			Err:      err,
		}
	}

	if err := cache.SetJSON(ctx, s.cache, key, route, s.cacheTTL); err != nil {
		s.logger.Warn().Err(err).Str("cache_key", key).Msg("route cache write failed")
	} else {
		s.logger.Debug().
			Str("cache_key", key).
			Int("segment_count", len(route.Segments)).
			Msg("cached route")
	}

	return route, nil
}

// cacheKey is the exact (origin, destination) tuple; no spatial quantization.
// Addresses are case-insensitive. Format: routes:{version}:{provider}:{origin}:{destination}.
func (s *Service) cacheKey(origin, destination string) string {
	return cache.Key("routes", cacheVersion, s.provider.Name(), strings.ToLower(origin), strings.ToLower(destination))
}

// Name returns the name of the underlying provider.
func (s *Service) Name() string {
	return s.provider.Name()
}
