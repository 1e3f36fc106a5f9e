// Package search orchestrates a venue search: midpoint resolution, candidate
// lookup, clustering, scoring and optional enrichment.
package search

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/meetmidway/midway/internal/cluster"
	"github.com/meetmidway/midway/internal/describe"
	"github.com/meetmidway/midway/internal/geo"
	"github.com/meetmidway/midway/internal/midpoint"
	"github.com/meetmidway/midway/internal/places"
	"github.com/meetmidway/midway/internal/routing"
	"github.com/meetmidway/midway/internal/scoring"
	"github.com/meetmidway/midway/internal/telemetry"
)

const (
	// DefaultResultLimit is the number of ranked venues returned when unset.
	DefaultResultLimit = 6

	// DefaultDetailConcurrency bounds concurrent venue-detail lookups.
	DefaultDetailConcurrency = 4

	// MinSearchRadiusMeters is the smallest radius searched around the midpoint.
	MinSearchRadiusMeters = 500

	tracerName = "github.com/meetmidway/midway/internal/search"
)

// MidpointResolver resolves the driving midpoint between two addresses.
type MidpointResolver interface {
	ComputeDrivingMidpoint(ctx context.Context, origin, destination string) (*midpoint.Midpoint, *routing.Route, error)
}

// VenueSource provides candidate venues and their optional details.
type VenueSource interface {
	SearchNearby(ctx context.Context, req places.NearbyRequest) ([]places.Venue, error)
	GetDetails(ctx context.Context, placeID string) (*places.Details, error)
}

// ServiceConfig holds configuration for the search service.
type ServiceConfig struct {
	// Midpoints resolves the driving midpoint (required).
	Midpoints MidpointResolver

	// Places provides candidate venues and details (required).
	Places VenueSource

	// Clusterer groups candidates into areas. Defaults to cluster.DefaultConfig.
	Clusterer *cluster.Clusterer

	// Scorer scores venues and areas. Defaults to scoring.DefaultConfig.
	Scorer *scoring.Scorer

	// Describer generates venue descriptions (optional).
	Describer describe.Describer

	// Logger for search operations.
	Logger zerolog.Logger

	// ResultLimit is the maximum number of ranked venues returned (default: 6).
	ResultLimit int

	// DetailConcurrency bounds concurrent detail lookups (default: 4).
	DetailConcurrency int

	// Tracer opens a span per pipeline stage. Defaults to the global tracer.
	Tracer trace.Tracer
}

// Service runs venue searches. It holds no per-search state and is safe for
// concurrent use.
type Service struct {
	midpoints         MidpointResolver
	places            VenueSource
	clusterer         *cluster.Clusterer
	scorer            *scoring.Scorer
	describer         describe.Describer
	logger            zerolog.Logger
	resultLimit       int
	detailConcurrency int
	tracer            trace.Tracer
}

// NewService creates a new search service.
func NewService(cfg ServiceConfig) *Service {
	clusterer := cfg.Clusterer
	if clusterer == nil {
		clusterer = cluster.NewClusterer(cluster.DefaultConfig(), nil)
	}

	scorer := cfg.Scorer
	if scorer == nil {
		scorer = scoring.NewScorer(scoring.DefaultConfig(), nil)
	}

	resultLimit := cfg.ResultLimit
	if resultLimit <= 0 {
		resultLimit = DefaultResultLimit
	}

	detailConcurrency := cfg.DetailConcurrency
	if detailConcurrency <= 0 {
		detailConcurrency = DefaultDetailConcurrency
	}

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = telemetry.Tracer(tracerName)
	}

	return &Service{
		midpoints:         cfg.Midpoints,
		places:            cfg.Places,
		clusterer:         clusterer,
		scorer:            scorer,
		describer:         cfg.Describer,
		logger:            cfg.Logger,
		resultLimit:       resultLimit,
		detailConcurrency: detailConcurrency,
		tracer:            tracer,
	}
}

// ComputeMidpoint returns the driving midpoint between two addresses.
func (s *Service) ComputeMidpoint(ctx context.Context, origin, destination string) (*midpoint.Midpoint, error) {
	ctx, span := s.tracer.Start(ctx, "search.midpoint")
	defer span.End()

	mid, _, err := s.midpoints.ComputeDrivingMidpoint(ctx, origin, destination)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	return mid, nil
}

// FindAndRankVenues returns ranked venues between two addresses. Zero
// matches yield an empty slice, not an error.
func (s *Service) FindAndRankVenues(ctx context.Context, origin, destination string, activity places.ActivityType, prefs scoring.Preferences) ([]RankedVenue, error) {
	result, err := s.Search(ctx, Request{
		Origin:       origin,
		Destination:  destination,
		ActivityType: activity,
		Preferences:  prefs,
	})
	if err != nil {
		return nil, err
	}
	return result.Venues, nil
}

// Search runs the full pipeline for one request.
//
// Collaborator failures while resolving the route or fetching candidates are
// returned. Failures while enriching or describing the final venues are logged
// and the affected fields are left empty.
func (s *Service) Search(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	searchID := uuid.New().String()
	strategy := scoring.SelectStrategy(req.Preferences.LocationPriority)

	ctx, span := s.tracer.Start(ctx, "search.venues", trace.WithAttributes(
		attribute.String("search.id", searchID),
		attribute.String("search.activity", string(req.ActivityType)),
		attribute.String("search.strategy", string(strategy.Name)),
	))
	defer span.End()

	logger := s.loggerFor(ctx).With().
		Str("search_id", searchID).
		Str("activity", string(req.ActivityType)).
		Str("strategy", string(strategy.Name)).
		Logger()

	start := time.Now()

	mid, route, err := s.resolveMidpoint(ctx, req)
	if err != nil {
		recordError(span, err)
		logger.Warn().Err(err).Msg("midpoint resolution failed")
		return nil, err
	}

	radius := SearchRadius(mid, strategy)
	originA, originB := route.Start(), route.End()

	candidates, loosened, err := s.fetchCandidates(ctx, req, mid.Coord, radius, strategy)
	if err != nil {
		recordError(span, err)
		logger.Warn().Err(err).Msg("candidate lookup failed")
		return nil, err
	}

	result := &Result{
		SearchID:           searchID,
		Midpoint:           *mid,
		Strategy:           strategy,
		SearchRadiusMeters: radius,
		Loosened:           loosened,
		CandidateCount:     len(candidates),
		Venues:             []RankedVenue{},
		Areas:              []Area{},
	}

	if len(candidates) == 0 {
		logger.Info().
			Float64("radius_meters", radius).
			Dur("duration", time.Since(start)).
			Msg("search found no venues")
		return result, nil
	}

	clusters := s.cluster(ctx, candidates)
	result.Areas = s.scoreAreas(clusters, originA, originB, req.Preferences, strategy)

	scored := s.scorer.ScoreAll(candidates, originA, originB, req.Preferences, strategy)
	scoring.Rank(scored)
	if len(scored) > s.resultLimit {
		scored = scored[:s.resultLimit]
	}

	areaOf := make(map[string]string)
	for i := range clusters {
		for j := range clusters[i].Members {
			areaOf[clusters[i].Members[j].ID] = clusters[i].ID
		}
	}

	venues := make([]RankedVenue, len(scored))
	for i := range scored {
		v := scored[i].Venue
		venues[i] = RankedVenue{
			Rank:                          i + 1,
			Venue:                         v,
			Score:                         scored[i].Score,
			DistanceFromOriginMeters:      geo.Distance(v.Location, originA),
			DistanceFromDestinationMeters: geo.Distance(v.Location, originB),
			AreaID:                        areaOf[v.ID],
		}
	}

	s.enrich(ctx, venues, logger)

	if req.IncludeDescriptions {
		s.describe(ctx, venues, req.ActivityType, logger)
	}

	result.Venues = venues

	span.SetAttributes(
		attribute.Int("search.candidates", len(candidates)),
		attribute.Int("search.results", len(venues)),
		attribute.Bool("search.loosened", loosened),
	)

	logger.Info().
		Int("candidate_count", len(candidates)).
		Int("cluster_count", len(clusters)).
		Int("result_count", len(venues)).
		Bool("loosened", loosened).
		Float64("radius_meters", radius).
		Dur("duration", time.Since(start)).
		Msg("search completed")

	return result, nil
}

// loggerFor returns the request-scoped logger attached by the HTTP layer, so
// search lines share its request and trace ids, or the service logger.
func (s *Service) loggerFor(ctx context.Context) zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return *l
	}
	return s.logger
}

// SearchRadius is the midpoint's trip-proportional radius clamped to
// [MinSearchRadiusMeters, strategy radius].
func SearchRadius(mid *midpoint.Midpoint, strategy scoring.Strategy) float64 {
	upper := strategy.SearchRadiusMeters()
	r := mid.SearchRadiusMeters()
	if math.IsNaN(r) || r < MinSearchRadiusMeters {
		r = MinSearchRadiusMeters
	}
	return math.Min(r, upper)
}

func (s *Service) resolveMidpoint(ctx context.Context, req Request) (*midpoint.Midpoint, *routing.Route, error) {
	ctx, span := s.tracer.Start(ctx, "search.midpoint")
	defer span.End()

	mid, route, err := s.midpoints.ComputeDrivingMidpoint(ctx, req.Origin, req.Destination)
	if err != nil {
		recordError(span, err)
		return nil, nil, err
	}
	span.SetAttributes(attribute.Float64("route.total_miles", mid.TotalDistanceMiles))
	return mid, route, nil
}

// fetchCandidates queries the places collaborator and applies the strategy's
// quality thresholds. When nothing passes, it retries once with loosened
// thresholds over the full strategy radius.
func (s *Service) fetchCandidates(ctx context.Context, req Request, center geo.Coordinate, radius float64, strategy scoring.Strategy) ([]places.Venue, bool, error) {
	ctx, span := s.tracer.Start(ctx, "search.candidates")
	defer span.End()

	candidates, err := s.lookup(ctx, req, center, radius, strategy.Thresholds)
	if err != nil {
		recordError(span, err)
		return nil, false, err
	}
	if len(candidates) > 0 {
		return candidates, false, nil
	}

	loosened := strategy.Thresholds.Loosened()
	logger := s.loggerFor(ctx)
	logger.Debug().
		Str("strategy", string(strategy.Name)).
		Float64("min_rating", loosened.MinRating).
		Int("min_reviews", loosened.MinReviews).
		Msg("no candidates passed thresholds, retrying loosened")

	candidates, err = s.lookup(ctx, req, center, strategy.SearchRadiusMeters(), loosened)
	if err != nil {
		recordError(span, err)
		return nil, true, err
	}
	return candidates, true, nil
}

func (s *Service) lookup(ctx context.Context, req Request, center geo.Coordinate, radius float64, thresholds places.Thresholds) ([]places.Venue, error) {
	venues, err := s.places.SearchNearby(ctx, places.NearbyRequest{
		Center:       center,
		RadiusMeters: radius,
		Type:         req.ActivityType,
		Keyword:      req.Keyword,
	})
	if err != nil {
		return nil, err
	}
	return places.FilterByQuality(places.Dedupe(venues), thresholds), nil
}

func (s *Service) cluster(ctx context.Context, candidates []places.Venue) []cluster.Cluster {
	_, span := s.tracer.Start(ctx, "search.cluster")
	defer span.End()

	clusters := s.clusterer.FindClusters(candidates, 0)
	span.SetAttributes(attribute.Int("cluster.count", len(clusters)))
	return clusters
}

// scoreAreas scores every cluster, best first.
func (s *Service) scoreAreas(clusters []cluster.Cluster, originA, originB geo.Coordinate, prefs scoring.Preferences, strategy scoring.Strategy) []Area {
	areas := make([]Area, len(clusters))
	for i := range clusters {
		areas[i] = newArea(&clusters[i], s.scorer.ScoreCluster(&clusters[i], originA, originB, prefs, strategy))
	}
	rankAreas(areas)
	return areas
}

// rankAreas orders areas by final score, best first. Equal scores are broken
// by cluster index, which follows clustering seed order.
func rankAreas(areas []Area) {
	order := make([]int, len(areas))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		i, j := order[a], order[b]
		if areas[i].Score.Final != areas[j].Score.Final {
			return areas[i].Score.Final > areas[j].Score.Final
		}
		return i < j
	})

	ranked := make([]Area, len(areas))
	for k, i := range order {
		ranked[k] = areas[i]
	}
	copy(areas, ranked)
}

// enrich fetches details for each ranked venue concurrently. A failed lookup
// leaves that venue as it was.
func (s *Service) enrich(ctx context.Context, venues []RankedVenue, logger zerolog.Logger) {
	ctx, span := s.tracer.Start(ctx, "search.enrich")
	defer span.End()

	var g errgroup.Group
	g.SetLimit(s.detailConcurrency)

	for i := range venues {
		i := i // per-iteration copy (pre-Go 1.22 loop semantics)
		g.Go(func() error {
			details, err := s.places.GetDetails(ctx, venues[i].Venue.ID)
			if err != nil {
				logger.Warn().Err(err).Str("place_id", venues[i].Venue.ID).Msg("venue details unavailable")
				return nil
			}
			venues[i].Venue = venues[i].Venue.WithDetails(details)
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // goroutines never return errors
}

// describe attaches generated descriptions. Any failure leaves descriptions empty.
func (s *Service) describe(ctx context.Context, venues []RankedVenue, activity places.ActivityType, logger zerolog.Logger) {
	if s.describer == nil {
		return
	}

	ctx, span := s.tracer.Start(ctx, "search.describe")
	defer span.End()

	list := make([]places.Venue, len(venues))
	for i := range venues {
		list[i] = venues[i].Venue
	}

	descriptions, err := s.describer.DescribeVenues(ctx, list, activity)
	if err != nil {
		recordError(span, err)
		logger.Warn().Err(err).Msg("venue descriptions unavailable")
		return
	}
	if len(descriptions) != len(venues) {
		logger.Warn().
			Int("expected", len(venues)).
			Int("got", len(descriptions)).
			Msg("describer returned wrong number of descriptions")
		return
	}

	for i := range venues {
		venues[i].Description = descriptions[i]
	}
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	if !errors.Is(err, ErrInvalidRequest) {
		span.SetStatus(codes.Error, err.Error())
	}
}
