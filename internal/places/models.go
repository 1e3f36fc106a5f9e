// Package places provides venue lookup and venue-detail enrichment.
package places

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/meetmidway/midway/internal/geo"
	"github.com/meetmidway/midway/internal/provider/resilience"
)

// Sentinel errors for places operations.
var (
	// ErrProviderUnavailable indicates the places provider is down or the circuit breaker is open.
	ErrProviderUnavailable = fmt.Errorf("places provider unavailable: %w", resilience.ErrCollaboratorUnavailable)
	// ErrRateLimitExceeded indicates the API quota has been exceeded.
	ErrRateLimitExceeded = fmt.Errorf("rate limit exceeded: %w", resilience.ErrCollaboratorUnavailable)
	// ErrInvalidRequest indicates the search parameters were rejected.
	ErrInvalidRequest = errors.New("invalid places request")
	// ErrPlaceNotFound indicates a venue id is unknown to the provider.
	ErrPlaceNotFound = errors.New("place not found")
)

// Provider defines the interface for places providers.
type Provider interface {
	// SearchNearby returns venues of the requested type within a radius of center.
	SearchNearby(ctx context.Context, req NearbyRequest) ([]Venue, error)
	// GetDetails returns enrichment data for a single venue.
	GetDetails(ctx context.Context, placeID string) (*Details, error)
	// Name returns the provider identifier for logging and metrics.
	Name() string
}

// ActivityType is the kind of meetup venue being searched for.
type ActivityType string

const (
	ActivityBar        ActivityType = "bar"
	ActivityRestaurant ActivityType = "restaurant"
	ActivityCafe       ActivityType = "cafe"
	ActivityPark       ActivityType = "park"
)

// AllActivityTypes lists the supported activity types in display order.
var AllActivityTypes = []ActivityType{ActivityBar, ActivityRestaurant, ActivityCafe, ActivityPark}

// ParseActivityType parses a case-insensitive activity type name.
func ParseActivityType(s string) (ActivityType, error) {
	t := ActivityType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllActivityTypes {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: unknown activity type %q", ErrInvalidRequest, s)
}

// NearbyRequest describes a nearby venue search.
type NearbyRequest struct {
	Center       geo.Coordinate
	RadiusMeters float64
	Type         ActivityType
	Keyword      string // optional free-text filter
}

// Validate checks the request parameters.
func (r NearbyRequest) Validate() error {
	if err := r.Center.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if r.RadiusMeters <= 0 || r.RadiusMeters > MaxRadiusMeters {
		return fmt.Errorf("%w: radius %.0fm out of range (0, %d]", ErrInvalidRequest, r.RadiusMeters, MaxRadiusMeters)
	}
	if _, err := ParseActivityType(string(r.Type)); err != nil {
		return err
	}
	return nil
}

// MaxRadiusMeters is the largest radius accepted by nearby searches.
const MaxRadiusMeters = 50000

// Venue is a candidate meeting place. Fields come from the places provider and are
// never mutated after ingestion; enrichment returns a new value.
type Venue struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Location    geo.Coordinate `json:"location"`
	Rating      float64        `json:"rating"`
	ReviewCount int            `json:"reviewCount"`
	// PriceLevel is 0 (free) to 4 (very expensive); nil when the provider has no data.
	PriceLevel *int     `json:"priceLevel,omitempty"`
	Types      []string `json:"types,omitempty"`
	Vicinity   string   `json:"vicinity,omitempty"`

	// Enrichment fields; absent until details are fetched.
	Photos  []Photo  `json:"photos,omitempty"`
	Hours   []string `json:"hours,omitempty"`
	OpenNow *bool    `json:"openNow,omitempty"`
	Website string   `json:"website,omitempty"`
}

// Photo references a provider-hosted venue photo.
type Photo struct {
	Reference    string   `json:"reference"`
	Width        int      `json:"width"`
	Height       int      `json:"height"`
	Attributions []string `json:"attributions,omitempty"`
}

// Details is the optional enrichment returned by the venue-detail collaborator.
// Every field may be missing.
type Details struct {
	Photos     []Photo  `json:"photos,omitempty"`
	PriceLevel *int     `json:"priceLevel,omitempty"`
	Hours      []string `json:"hours,omitempty"`
	OpenNow    *bool    `json:"openNow,omitempty"`
	Website    string   `json:"website,omitempty"`
}

// HasPriceLevel reports whether the venue carries a price level.
func (v *Venue) HasPriceLevel() bool {
	return v.PriceLevel != nil
}

// Corpus returns the text used for keyword-based vibe profiling: name,
// category tags (underscores as spaces) and vicinity.
func (v *Venue) Corpus() []string {
	texts := make([]string, 0, len(v.Types)+2)
	texts = append(texts, v.Name)
	for _, t := range v.Types {
		texts = append(texts, strings.ReplaceAll(t, "_", " "))
	}
	if v.Vicinity != "" {
		texts = append(texts, v.Vicinity)
	}
	return texts
}

// WithDetails returns a copy of v with the present detail fields applied.
// Missing detail fields leave the venue's own values untouched.
func (v Venue) WithDetails(d *Details) Venue {
	if d == nil {
		return v
	}
	if len(d.Photos) > 0 {
		v.Photos = append([]Photo(nil), d.Photos...)
	}
	if d.PriceLevel != nil {
		level := *d.PriceLevel
		v.PriceLevel = &level
	}
	if len(d.Hours) > 0 {
		v.Hours = append([]string(nil), d.Hours...)
	}
	if d.OpenNow != nil {
		open := *d.OpenNow
		v.OpenNow = &open
	}
	if d.Website != "" {
		v.Website = d.Website
	}
	return v
}

// Error provides detailed error information from the places provider.
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
