package google

// directionsResponse is the subset of the Directions API response used for routing.
type directionsResponse struct {
	Status       string            `json:"status"`
	ErrorMessage string            `json:"error_message,omitempty"`
	Routes       []directionsRoute `json:"routes"`
}

type directionsRoute struct {
	Summary          string          `json:"summary"`
	Legs             []directionsLeg `json:"legs"`
	OverviewPolyline encodedPolyline `json:"overview_polyline"`
}

type directionsLeg struct {
	Distance     textValue        `json:"distance"`
	Duration     textValue        `json:"duration"`
	StartAddress string           `json:"start_address"`
	EndAddress   string           `json:"end_address"`
	Steps        []directionsStep `json:"steps"`
}

type directionsStep struct {
	Distance      textValue `json:"distance"`
	Duration      textValue `json:"duration"`
	StartLocation latLng    `json:"start_location"`
	EndLocation   latLng    `json:"end_location"`
}

// textValue is the API's {"text": "5.0 mi", "value": 8047} pair; value is meters or seconds.
type textValue struct {
	Text  string  `json:"text"`
	Value float64 `json:"value"`
}

type latLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type encodedPolyline struct {
	Points string `json:"points"`
}

// Directions API status codes.
const (
	statusOK             = "OK"
	statusNotFound       = "NOT_FOUND"
	statusZeroResults    = "ZERO_RESULTS"
	statusMaxRouteLength = "MAX_ROUTE_LENGTH_EXCEEDED"
	statusInvalidRequest = "INVALID_REQUEST"
	statusOverQueryLimit = "OVER_QUERY_LIMIT"
	statusOverDailyLimit = "OVER_DAILY_LIMIT"
	statusRequestDenied  = "REQUEST_DENIED"
	statusUnknownError   = "UNKNOWN_ERROR"
)
