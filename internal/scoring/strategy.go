package scoring

import (
	"fmt"
	"math"

	"github.com/meetmidway/midway/internal/places"
)

// StrategyName identifies a search strategy.
type StrategyName string

const (
	// EqualDistance keeps the search tight around the midpoint with a high quality bar.
	EqualDistance StrategyName = "EQUAL_DISTANCE"
	// Balanced trades fairness against area quality.
	Balanced StrategyName = "BALANCED"
	// EntertainmentDistrict searches wide and favors lively areas.
	EntertainmentDistrict StrategyName = "ENTERTAINMENT_DISTRICT"
)

// Location priority boundaries for strategy selection.
const (
	balancedFrom              = 0.3
	entertainmentDistrictFrom = 0.7
)

// Strategy bundles the search radius, candidate thresholds and weight table
// selected from the location priority slider.
type Strategy struct {
	Name           StrategyName      `json:"name"`
	SearchRadiusKm float64           `json:"searchRadiusKm"`
	Thresholds     places.Thresholds `json:"thresholds"`
	Weights        WeightTable       `json:"weights"`
}

// SearchRadiusMeters returns the strategy's maximum search radius in meters.
func (s Strategy) SearchRadiusMeters() float64 {
	return s.SearchRadiusKm * 1000
}

// WeightTable holds the un-normalized component weights for a strategy.
// Neighborhood is replaced by ArtsyNeighborhood when the user prefers artsy areas.
type WeightTable struct {
	Distance          float64 `json:"distance"`
	Neighborhood      float64 `json:"neighborhood"`
	ArtsyNeighborhood float64 `json:"artsyNeighborhood"`
	Vibe              float64 `json:"vibe"`
	Quality           float64 `json:"quality"`
}

// Weights are normalized component weights summing to 1.
type Weights struct {
	Distance     float64 `json:"distance"`
	Neighborhood float64 `json:"neighborhood"`
	Vibe         float64 `json:"vibe"`
	Quality      float64 `json:"quality"`
}

// Resolve picks the neighborhood weight for the preference and normalizes the table.
// An all-zero table resolves to equal weights.
func (w WeightTable) Resolve(prefersArtsy bool) Weights {
	neighborhood := w.Neighborhood
	if prefersArtsy {
		neighborhood = w.ArtsyNeighborhood
	}

	raw := Weights{
		Distance:     math.Max(w.Distance, 0),
		Neighborhood: math.Max(neighborhood, 0),
		Vibe:         math.Max(w.Vibe, 0),
		Quality:      math.Max(w.Quality, 0),
	}

	sum := raw.Distance + raw.Neighborhood + raw.Vibe + raw.Quality
	if sum == 0 {
		return Weights{Distance: 0.25, Neighborhood: 0.25, Vibe: 0.25, Quality: 0.25}
	}

	return Weights{
		Distance:     raw.Distance / sum,
		Neighborhood: raw.Neighborhood / sum,
		Vibe:         raw.Vibe / sum,
		Quality:      raw.Quality / sum,
	}
}

var strategies = map[StrategyName]Strategy{
	EqualDistance: {
		Name:           EqualDistance,
		SearchRadiusKm: 1.5,
		Thresholds:     places.Thresholds{MinRating: 4.3, MinReviews: 100},
		Weights:        WeightTable{Distance: 0.5, Neighborhood: 0.3, ArtsyNeighborhood: 0.5, Vibe: 0.1, Quality: 0.1},
	},
	Balanced: {
		Name:           Balanced,
		SearchRadiusKm: 3,
		Thresholds:     places.Thresholds{MinRating: 4.0, MinReviews: 50},
		Weights:        WeightTable{Distance: 0.3, Neighborhood: 0.3, ArtsyNeighborhood: 0.5, Vibe: 0.2, Quality: 0.2},
	},
	EntertainmentDistrict: {
		Name:           EntertainmentDistrict,
		SearchRadiusKm: 5,
		Thresholds:     places.Thresholds{MinRating: 3.8, MinReviews: 25},
		Weights:        WeightTable{Distance: 0.15, Neighborhood: 0.4, ArtsyNeighborhood: 0.5, Vibe: 0.25, Quality: 0.2},
	},
}

// SelectStrategy maps the location priority slider to a strategy:
// below 0.3 EQUAL_DISTANCE, below 0.7 BALANCED, otherwise ENTERTAINMENT_DISTRICT.
func SelectStrategy(locationPriority float64) Strategy {
	switch {
	case locationPriority < balancedFrom:
		return strategies[EqualDistance]
	case locationPriority < entertainmentDistrictFrom:
		return strategies[Balanced]
	default:
		return strategies[EntertainmentDistrict]
	}
}

// StrategyByName returns a named strategy.
func StrategyByName(name StrategyName) (Strategy, error) {
	s, ok := strategies[name]
	if !ok {
		return Strategy{}, fmt.Errorf("unknown strategy %q", name)
	}
	return s, nil
}

// Strategies lists all strategies from tightest to widest.
func Strategies() []Strategy {
	return []Strategy{strategies[EqualDistance], strategies[Balanced], strategies[EntertainmentDistrict]}
}
