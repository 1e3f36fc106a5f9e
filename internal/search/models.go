package search

import (
	"errors"
	"fmt"
	"strings"

	"github.com/meetmidway/midway/internal/cluster"
	"github.com/meetmidway/midway/internal/geo"
	"github.com/meetmidway/midway/internal/midpoint"
	"github.com/meetmidway/midway/internal/places"
	"github.com/meetmidway/midway/internal/scoring"
	"github.com/meetmidway/midway/internal/vibe"
)

// ErrInvalidRequest is returned when a search request fails validation.
var ErrInvalidRequest = errors.New("invalid search request")

// Request is a single venue search between two addresses.
type Request struct {
	Origin       string
	Destination  string
	ActivityType places.ActivityType
	// Keyword is an optional free-text filter passed to the places collaborator.
	Keyword     string
	Preferences scoring.Preferences
	// IncludeDescriptions asks the text-generation collaborator for venue prose.
	IncludeDescriptions bool
}

// Validate checks the request.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Origin) == "" {
		return fmt.Errorf("%w: origin is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.Destination) == "" {
		return fmt.Errorf("%w: destination is required", ErrInvalidRequest)
	}
	if _, err := places.ParseActivityType(string(r.ActivityType)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := r.Preferences.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// RankedVenue is a venue with its scores and travel context.
type RankedVenue struct {
	Rank  int                `json:"rank"`
	Venue places.Venue       `json:"venue"`
	Score scoring.VenueScore `json:"score"`

	// Great-circle distances from the route's resolved endpoints.
	DistanceFromOriginMeters      float64 `json:"distanceFromOriginMeters"`
	DistanceFromDestinationMeters float64 `json:"distanceFromDestinationMeters"`

	// AreaID is the cluster the venue belongs to, if any.
	AreaID      string `json:"areaId,omitempty"`
	Description string `json:"description,omitempty"`
}

// Area is a scored venue cluster.
type Area struct {
	ID            string               `json:"id"`
	Center        geo.Coordinate       `json:"center"`
	VenueIDs      []string             `json:"venueIds"`
	RadiusMeters  float64              `json:"radiusMeters"`
	Density       float64              `json:"density"`
	AverageRating float64              `json:"averageRating"`
	Variety       float64              `json:"variety"`
	Vibe          vibe.Profile         `json:"vibe"`
	Fallback      bool                 `json:"fallback,omitempty"`
	Score         scoring.ClusterScore `json:"score"`
}

func newArea(cl *cluster.Cluster, score scoring.ClusterScore) Area {
	return Area{
		ID:            cl.ID,
		Center:        cl.Center,
		VenueIDs:      cl.MemberIDs(),
		RadiusMeters:  cl.RadiusMeters,
		Density:       cl.Density,
		AverageRating: cl.AverageRating,
		Variety:       cl.Variety,
		Vibe:          cl.Vibe,
		Fallback:      cl.Fallback,
		Score:         score,
	}
}

// Result is the outcome of a search. An executed search with no matches has
// an empty Venues slice, never an error.
type Result struct {
	SearchID           string            `json:"searchId"`
	Midpoint           midpoint.Midpoint `json:"midpoint"`
	Strategy           scoring.Strategy  `json:"strategy"`
	SearchRadiusMeters float64           `json:"searchRadiusMeters"`
	// Loosened is set when the strategy thresholds were relaxed to find candidates.
	Loosened       bool          `json:"loosened"`
	CandidateCount int           `json:"candidateCount"`
	Venues         []RankedVenue `json:"venues"`
	Areas          []Area        `json:"areas"`
}
