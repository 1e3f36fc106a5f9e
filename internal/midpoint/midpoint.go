// Package midpoint computes the point at half the driving distance between two addresses.
package midpoint

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/meetmidway/midway/internal/geo"
	"github.com/meetmidway/midway/internal/routing"
)

// DefaultRadiusFactor is the share of the total trip distance used as the venue search radius.
const DefaultRadiusFactor = 0.15

var (
	// ErrRouteNotFound is returned when the routing collaborator has no route between the addresses.
	ErrRouteNotFound = fmt.Errorf("cannot locate a route between these addresses: %w", routing.ErrNoRouteFound)

	// ErrNoMidpoint signals that walking a route never reached half its distance.
	// A validated route cannot produce it; seeing it means a defect.
	ErrNoMidpoint = errors.New("no midpoint found on route")
)

// Midpoint is the coordinate at half the route distance and the derived search radius.
type Midpoint struct {
	Coord              geo.Coordinate `json:"coord"`
	SearchRadiusMiles  float64        `json:"searchRadiusMiles"`
	TotalDistanceMiles float64        `json:"totalDistanceMiles"`

	// SegmentIndex is the route segment containing the midpoint.
	SegmentIndex int `json:"segmentIndex"`
	// OffsetMeters is the distance walked along the route to reach Coord.
	OffsetMeters float64 `json:"offsetMeters"`
}

// SearchRadiusMeters returns the search radius in meters.
func (m *Midpoint) SearchRadiusMeters() float64 {
	return geo.MilesToMeters(m.SearchRadiusMiles)
}

// FromRoute locates the midpoint of route by walking its segments.
//
// The midpoint lies in the first segment whose cumulative distance reaches half the
// total. When half lands exactly on a boundary between two segments, the later
// segment is used with fraction 0, i.e. its start coordinate.
// radiusFactor <= 0 selects DefaultRadiusFactor.
func FromRoute(route *routing.Route, radiusFactor float64) (*Midpoint, error) {
	if route == nil || len(route.Segments) == 0 {
		return nil, fmt.Errorf("%w: route has no segments", ErrNoMidpoint)
	}
	if radiusFactor <= 0 {
		radiusFactor = DefaultRadiusFactor
	}

	// Walk against the segment sum so rounding in the reported total can't skip past the end
	var total float64
	for _, s := range route.Segments {
		total += s.DistanceMeters
	}
	half := total / 2
	last := len(route.Segments) - 1

	var before float64
	for i, s := range route.Segments {
		after := before + s.DistanceMeters
		if after > half || (after >= half && i == last) {
			var fraction float64
			if s.DistanceMeters > 0 {
				fraction = geo.Clamp01((half - before) / s.DistanceMeters)
			}

			totalMiles := geo.MetersToMiles(total)
			return &Midpoint{
				Coord:              geo.Interpolate(s.Start, s.End, fraction),
				SearchRadiusMiles:  radiusFactor * totalMiles,
				TotalDistanceMiles: totalMiles,
				SegmentIndex:       i,
				OffsetMeters:       before + fraction*s.DistanceMeters,
			}, nil
		}
		before = after
	}

	return nil, ErrNoMidpoint
}

// RouteSource provides routes between addresses.
type RouteSource interface {
	GetRoute(ctx context.Context, origin, destination string) (*routing.Route, error)
}

// ResolverConfig holds configuration for the midpoint resolver.
type ResolverConfig struct {
	// Routes is the routing collaborator.
	Routes RouteSource

	// RadiusFactor scales the trip distance into a search radius (default: 0.15).
	RadiusFactor float64

	// Logger for resolver operations.
	Logger zerolog.Logger
}

// Resolver computes driving midpoints using a routing collaborator.
type Resolver struct {
	routes       RouteSource
	radiusFactor float64
	logger       zerolog.Logger
}

// NewResolver creates a new midpoint resolver.
func NewResolver(cfg ResolverConfig) *Resolver {
	radiusFactor := cfg.RadiusFactor
	if radiusFactor <= 0 {
		radiusFactor = DefaultRadiusFactor
	}

	return &Resolver{
		routes:       cfg.Routes,
		radiusFactor: radiusFactor,
		logger:       cfg.Logger,
	}
}

// ComputeDrivingMidpoint routes between the two addresses and returns the
// point at half the driving distance. It returns the route as well so callers
// can use its resolved endpoints.
func (r *Resolver) ComputeDrivingMidpoint(ctx context.Context, origin, destination string) (*Midpoint, *routing.Route, error) {
	route, err := r.routes.GetRoute(ctx, origin, destination)
	if err != nil {
		if errors.Is(err, routing.ErrNoRouteFound) {
			return nil, nil, fmt.Errorf("%w: %v", ErrRouteNotFound, err)
		}
		return nil, nil, fmt.Errorf("get route: %w", err)
	}

	mid, err := FromRoute(route, r.radiusFactor)
	if err != nil {
		r.logger.Error().Err(err).
			Str("origin", origin).
			Str("destination", destination).
			Int("segment_count", len(route.Segments)).
			Msg("midpoint invariant violated")
		return nil, nil, err
	}

	r.logger.Debug().
		Str("midpoint", mid.Coord.String()).
		Float64("total_miles", mid.TotalDistanceMiles).
		Float64("search_radius_miles", mid.SearchRadiusMiles).
		Msg("computed driving midpoint")

	return mid, route, nil
}
