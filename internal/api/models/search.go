package models

// MidpointRequest is the body of POST /v1/midpoint.
type MidpointRequest struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
}

// MidpointResponse is the driving midpoint between two addresses.
type MidpointResponse struct {
	Midpoint           Point   `json:"midpoint"`
	SearchRadiusMiles  float64 `json:"searchRadiusMiles"`
	TotalDistanceMiles float64 `json:"totalDistanceMiles"`
}

// PreferencesInput carries the vibe sliders. Omitted sliders default to 0.5.
type PreferencesInput struct {
	VenueStyle       *float64 `json:"venueStyle,omitempty"`
	NeighborhoodVibe *float64 `json:"neighborhoodVibe,omitempty"`
	LocationPriority *float64 `json:"locationPriority,omitempty"`
}

// VenueSearchRequest is the body of POST /v1/venues:search.
type VenueSearchRequest struct {
	Origin              string            `json:"origin"`
	Destination         string            `json:"destination"`
	ActivityType        string            `json:"activityType"`
	Keyword             string            `json:"keyword,omitempty"`
	Preferences         *PreferencesInput `json:"preferences,omitempty"`
	IncludeDescriptions bool              `json:"includeDescriptions,omitempty"`
}

// VenueSearchResponse is the ranked result of a venue search.
type VenueSearchResponse struct {
	SearchID           string           `json:"searchId"`
	Midpoint           MidpointResponse `json:"midpoint"`
	Strategy           string           `json:"strategy"`
	SearchRadiusMeters float64          `json:"searchRadiusMeters"`
	Loosened           bool             `json:"loosened"`
	CandidateCount     int              `json:"candidateCount"`
	Venues             []VenueResult    `json:"venues"`
	Areas              []AreaResult     `json:"areas"`
}

// VenueResult is a single ranked venue.
type VenueResult struct {
	Rank        int      `json:"rank"`
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Location    Point    `json:"location"`
	Rating      float64  `json:"rating"`
	ReviewCount int      `json:"reviewCount"`
	PriceLevel  *int     `json:"priceLevel,omitempty"`
	Types       []string `json:"types,omitempty"`
	Vicinity    string   `json:"vicinity,omitempty"`
	Website     string   `json:"website,omitempty"`
	OpenNow     *bool    `json:"openNow,omitempty"`
	Hours       []string `json:"hours,omitempty"`
	PhotoRefs   []string `json:"photoRefs,omitempty"`

	DistanceFromOriginMiles      float64 `json:"distanceFromOriginMiles"`
	DistanceFromDestinationMiles float64 `json:"distanceFromDestinationMiles"`

	AreaID      string `json:"areaId,omitempty"`
	Description string `json:"description,omitempty"`
	Score       Score  `json:"score"`
}

// AreaResult is a scored cluster of venues.
type AreaResult struct {
	ID            string      `json:"id"`
	Center        Point       `json:"center"`
	VenueIDs      []string    `json:"venueIds"`
	RadiusMeters  float64     `json:"radiusMeters"`
	Density       float64     `json:"density"`
	AverageRating float64     `json:"averageRating"`
	Variety       float64     `json:"variety"`
	Vibe          VibeProfile `json:"vibe"`
	Fallback      bool        `json:"fallback,omitempty"`
	Score         Score       `json:"score"`
}

// Score is the component breakdown of a venue or area score.
type Score struct {
	Final            float64 `json:"final"`
	DistanceBalance  float64 `json:"distanceBalance"`
	DistrictVibrancy float64 `json:"districtVibrancy"`
	VibeMatch        float64 `json:"vibeMatch"`
	BaseQuality      float64 `json:"baseQuality"`
	ArtsyBoosted     bool    `json:"artsyBoosted,omitempty"`
}

// VibeProfile is a keyword-derived neighborhood classification.
type VibeProfile struct {
	Artsy         float64 `json:"artsy"`
	Trendy        float64 `json:"trendy"`
	Upscale       float64 `json:"upscale"`
	Entertainment float64 `json:"entertainment"`
	Dominant      string  `json:"dominant,omitempty"`
}
