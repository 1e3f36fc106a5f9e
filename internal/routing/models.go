// Package routing provides driving routes between two free-text addresses.
package routing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/meetmidway/midway/internal/geo"
	"github.com/meetmidway/midway/internal/provider/resilience"
)

// Sentinel errors for routing operations.
var (
	// ErrProviderUnavailable indicates the routing provider is down or the circuit breaker is open.
	ErrProviderUnavailable = fmt.Errorf("routing provider unavailable: %w", resilience.ErrCollaboratorUnavailable)
	// ErrNoRouteFound indicates no valid route exists between the given addresses.
	ErrNoRouteFound = errors.New("no route found between the given addresses")
	// ErrRateLimitExceeded indicates the API quota has been exceeded.
	ErrRateLimitExceeded = fmt.Errorf("rate limit exceeded: %w", resilience.ErrCollaboratorUnavailable)
	// ErrInvalidInput indicates an empty or malformed address.
	ErrInvalidInput = errors.New("invalid routing input")
	// ErrInvalidRoute indicates the provider returned a route that violates the segment invariants.
	ErrInvalidRoute = errors.New("invalid route")
)

// Provider defines the interface for routing providers.
type Provider interface {
	// GetRoute returns the first (best) driving route between two addresses.
	// Addresses are resolved by the provider itself.
	GetRoute(ctx context.Context, origin, destination string) (*Route, error)
	// Name returns the provider identifier for logging and metrics.
	Name() string
}

// Segment is an ordered step of a driving route.
type Segment struct {
	Start          geo.Coordinate `json:"start"`
	End            geo.Coordinate `json:"end"`
	DistanceMeters float64        `json:"distanceMeters"`
}

// Route is a single driving route made of ordered segments.
type Route struct {
	Segments            []Segment        `json:"segments"`
	TotalDistanceMeters float64          `json:"totalDistanceMeters"`
	DurationSeconds     float64          `json:"durationSeconds"`
	Summary             string           `json:"summary,omitempty"`
	StartAddress        string           `json:"startAddress,omitempty"`
	EndAddress          string           `json:"endAddress,omitempty"`
	Path                []geo.Coordinate `json:"path,omitempty"` // decoded overview polyline
}

// distanceTolerance is the allowed mismatch between the segment sum and the total, in meters.
const distanceTolerance = 1.0

// Validate checks the route invariants: at least one segment, no negative
// distances, and segment distances summing to the total.
func (r *Route) Validate() error {
	if r == nil || len(r.Segments) == 0 {
		return fmt.Errorf("%w: route has no segments", ErrInvalidRoute)
	}

	var sum float64
	for i, s := range r.Segments {
		if s.DistanceMeters < 0 || math.IsNaN(s.DistanceMeters) {
			return fmt.Errorf("%w: segment %d has distance %f", ErrInvalidRoute, i, s.DistanceMeters)
		}
		sum += s.DistanceMeters
	}

	if math.Abs(sum-r.TotalDistanceMeters) > distanceTolerance {
		return fmt.Errorf("%w: segment sum %.1fm does not match total %.1fm", ErrInvalidRoute, sum, r.TotalDistanceMeters)
	}
	return nil
}

// Start returns the first segment's start coordinate.
func (r *Route) Start() geo.Coordinate {
	if len(r.Segments) == 0 {
		return geo.Coordinate{}
	}
	return r.Segments[0].Start
}

// End returns the last segment's end coordinate.
func (r *Route) End() geo.Coordinate {
	if len(r.Segments) == 0 {
		return geo.Coordinate{}
	}
	return r.Segments[len(r.Segments)-1].End
}

// NormalizeAddress collapses whitespace and trims an address for use in requests and cache keys.
func NormalizeAddress(address string) string {
	return strings.Join(strings.Fields(address), " ")
}

// Error provides detailed error information from the routing provider.
type Error struct {
	Provider string // Provider that generated the error
	Code     string // Error code from the provider
	Message  string // Human-readable error message
	Err      error  // Underlying error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is transient and the request can be retried.
func (e *Error) IsRetryable() bool {
	return errors.Is(e.Err, ErrProviderUnavailable) || errors.Is(e.Err, ErrRateLimitExceeded)
}
