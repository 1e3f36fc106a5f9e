package google

// nearbyResponse is the Places Nearby Search response.
type nearbyResponse struct {
	Status        string        `json:"status"`
	ErrorMessage  string        `json:"error_message,omitempty"`
	Results       []placeResult `json:"results"`
	NextPageToken string        `json:"next_page_token,omitempty"`
}

// detailsResponse is the Place Details response.
type detailsResponse struct {
	Status       string      `json:"status"`
	ErrorMessage string      `json:"error_message,omitempty"`
	Result       placeResult `json:"result"`
}

type placeResult struct {
	PlaceID          string        `json:"place_id"`
	Name             string        `json:"name"`
	Geometry         geometry      `json:"geometry"`
	Rating           float64       `json:"rating"`
	UserRatingsTotal int           `json:"user_ratings_total"`
	PriceLevel       *int          `json:"price_level,omitempty"`
	Types            []string      `json:"types"`
	Vicinity         string        `json:"vicinity"`
	BusinessStatus   string        `json:"business_status,omitempty"`
	OpeningHours     *openingHours `json:"opening_hours,omitempty"`
	Photos           []photo       `json:"photos,omitempty"`
	Website          string        `json:"website,omitempty"`
}

type geometry struct {
	Location latLng `json:"location"`
}

type latLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type openingHours struct {
	OpenNow     *bool    `json:"open_now,omitempty"`
	WeekdayText []string `json:"weekday_text,omitempty"`
}

type photo struct {
	PhotoReference   string   `json:"photo_reference"`
	Width            int      `json:"width"`
	Height           int      `json:"height"`
	HTMLAttributions []string `json:"html_attributions,omitempty"`
}

// Places API status codes.
const (
	statusOK             = "OK"
	statusZeroResults    = "ZERO_RESULTS"
	statusNotFound       = "NOT_FOUND"
	statusInvalidRequest = "INVALID_REQUEST"
	statusOverQueryLimit = "OVER_QUERY_LIMIT"
	statusRequestDenied  = "REQUEST_DENIED"
	statusUnknownError   = "UNKNOWN_ERROR"
)

// businessClosedPermanently marks venues that should never be suggested.
const businessClosedPermanently = "CLOSED_PERMANENTLY"
