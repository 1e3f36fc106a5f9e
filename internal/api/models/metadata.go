package models

// StrategyInfo describes a search strategy for clients building preference UIs.
type StrategyInfo struct {
	Name           string  `json:"name"`
	SearchRadiusKm float64 `json:"searchRadiusKm"`
	MinRating      float64 `json:"minRating"`
	MinReviews     int     `json:"minReviews"`
}

// Enums represents the enum values used by the API.
type Enums struct {
	ActivityTypes  []string       `json:"activityTypes"`
	Strategies     []StrategyInfo `json:"strategies"`
	VibeDimensions []string       `json:"vibeDimensions"`
}
