package scoring

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidPreferences is returned when a slider is outside [0, 1].
var ErrInvalidPreferences = errors.New("invalid vibe preferences")

// Preferences are the user's three vibe sliders, each in [0, 1].
type Preferences struct {
	// VenueStyle: 0 casual/creative, 1 refined/elegant.
	VenueStyle float64 `json:"venueStyle"`
	// NeighborhoodVibe: 0 artsy, 1 polished.
	NeighborhoodVibe float64 `json:"neighborhoodVibe"`
	// LocationPriority: 0 equal distance, 1 entertainment district.
	LocationPriority float64 `json:"locationPriority"`
}

// DefaultPreferences puts every slider in the middle.
func DefaultPreferences() Preferences {
	return Preferences{VenueStyle: 0.5, NeighborhoodVibe: 0.5, LocationPriority: 0.5}
}

// Validate checks every slider is a number in [0, 1].
func (p Preferences) Validate() error {
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"venueStyle", p.VenueStyle},
		{"neighborhoodVibe", p.NeighborhoodVibe},
		{"locationPriority", p.LocationPriority},
	} {
		if math.IsNaN(f.value) || f.value < 0 || f.value > 1 {
			return fmt.Errorf("%w: %s must be between 0 and 1, got %v", ErrInvalidPreferences, f.name, f.value)
		}
	}
	return nil
}
