package places

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/meetmidway/midway/internal/cache"
	"github.com/meetmidway/midway/internal/telemetry"
)

const cacheVersion = "v1"

// ServiceConfig holds configuration for the places service.
type ServiceConfig struct {
	// Provider is the places data provider.
	Provider Provider

	// Cache stores raw provider responses. If nil, caching is disabled.
	Cache cache.Store

	// Logger for service operations.
	Logger zerolog.Logger

	// SearchTTL is how long to cache nearby searches (default: 30 minutes).
	SearchTTL time.Duration

	// DetailsTTL is how long to cache venue details (default: 24 hours).
	DetailsTTL time.Duration

	// Metrics records provider latency and cache hits (optional).
	Metrics *telemetry.ProviderMetrics
}

// Service provides venue lookups with an optional response cache.
type Service struct {
	provider   Provider
	cache      cache.Store
	logger     zerolog.Logger
	searchTTL  time.Duration
	detailsTTL time.Duration
	metrics    *telemetry.ProviderMetrics
}

// NewService creates a new places service.
func NewService(cfg ServiceConfig) *Service {
	searchTTL := cfg.SearchTTL
	if searchTTL == 0 {
		searchTTL = 30 * time.Minute
	}

	detailsTTL := cfg.DetailsTTL
	if detailsTTL == 0 {
		detailsTTL = 24 * time.Hour
	}

	store := cfg.Cache
	if store == nil {
		store = cache.Noop{}
	}

	return &Service{
		provider:   cfg.Provider,
		cache:      store,
		logger:     cfg.Logger,
		searchTTL:  searchTTL,
		detailsTTL: detailsTTL,
		metrics:    cfg.Metrics,
	}
}

// SearchNearby returns deduplicated venues for the request.
func (s *Service) SearchNearby(ctx context.Context, req NearbyRequest) ([]Venue, error) {
	if err := req.Validate(); err != nil {
		return nil, &Error{
			Provider: s.provider.Name(),
			Code:     "INVALID_REQUEST",
			Message:  "invalid nearby search parameters",
			Err:      err,
		}
	}

	key := s.nearbyKey(req)

	var cached []Venue
	ok, err := cache.GetJSON(ctx, s.cache, key, &cached)
	if err != nil {
		s.logger.Warn().Err(err).Str("cache_key", key).Msg("places cache read failed")
	}
	if ok {
		s.logger.Debug().Str("cache_key", key).Int("venue_count", len(cached)).Msg("cache hit for nearby search")
		s.metrics.RecordCacheHit(s.provider.Name(), "search_nearby")
		return cached, nil
	}
	s.metrics.RecordCacheMiss(s.provider.Name(), "search_nearby")

	s.logger.Debug().
		Str("center", req.Center.String()).
		Float64("radius_meters", req.RadiusMeters).
		Str("type", string(req.Type)).
		Str("provider", s.provider.Name()).
		Msg("searching nearby venues")

	start := time.Now()
	venues, err := s.provider.SearchNearby(ctx, req)
	s.metrics.RecordRequest(s.provider.Name(), "search_nearby", time.Since(start), err)
	if err != nil {
		s.logger.Error().Err(err).
			Str("center", req.Center.String()).
			Str("type", string(req.Type)).
			Msg("nearby search failed")
		return nil, err
	}
	venues = Dedupe(venues)

	if err := cache.SetJSON(ctx, s.cache, key, venues, s.searchTTL); err != nil {
		s.logger.Warn().Err(err).Str("cache_key", key).Msg("places cache write failed")
	}

	return venues, nil
}

// GetDetails returns enrichment data for a venue.
func (s *Service) GetDetails(ctx context.Context, placeID string) (*Details, error) {
	if strings.TrimSpace(placeID) == "" {
		return nil, &Error{
			Provider: s.provider.Name(),
			Code:     "INVALID_REQUEST",
			Message:  "place id is required",
			Err:      ErrInvalidRequest,
		}
	}

	key := cache.Key("places", "details", cacheVersion, s.provider.Name(), placeID)

	var cached Details
	ok, err := cache.GetJSON(ctx, s.cache, key, &cached)
	if err != nil {
		s.logger.Warn().Err(err).Str("cache_key", key).Msg("places cache read failed")
	}
	if ok {
		s.metrics.RecordCacheHit(s.provider.Name(), "details")
		return &cached, nil
	}
	s.metrics.RecordCacheMiss(s.provider.Name(), "details")

	start := time.Now()
	details, err := s.provider.GetDetails(ctx, placeID)
	s.metrics.RecordRequest(s.provider.Name(), "details", time.Since(start), err)
	if err != nil {
		return nil, err
	}

	if err := cache.SetJSON(ctx, s.cache, key, details, s.detailsTTL); err != nil {
		s.logger.Warn().Err(err).Str("cache_key", key).Msg("places cache write failed")
	}

	return details, nil
}

// Name returns the name of the underlying provider.
func (s *Service) Name() string {
	return s.provider.Name()
}

// nearbyKey is the exact normalized request tuple.
// Format: places:nearby:{version}:{provider}:{type}:{lat},{lng}:{radius}:{keyword}.
func (s *Service) nearbyKey(req NearbyRequest) string {
	return cache.Key(
		"places", "nearby", cacheVersion, s.provider.Name(),
		string(req.Type),
		fmt.Sprintf("%.5f,%.5f", req.Center.Lat, req.Center.Lng),
		strconv.FormatFloat(req.RadiusMeters, 'f', 0, 64),
		strings.ToLower(req.Keyword),
	)
}
