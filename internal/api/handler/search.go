package handler

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/meetmidway/midway/internal/api/middleware"
	"github.com/meetmidway/midway/internal/api/models"
	"github.com/meetmidway/midway/internal/api/response"
	"github.com/meetmidway/midway/internal/geo"
	"github.com/meetmidway/midway/internal/midpoint"
	"github.com/meetmidway/midway/internal/places"
	"github.com/meetmidway/midway/internal/provider/resilience"
	"github.com/meetmidway/midway/internal/routing"
	"github.com/meetmidway/midway/internal/scoring"
	"github.com/meetmidway/midway/internal/search"
	"github.com/meetmidway/midway/internal/vibe"
)

// maxBodyBytes caps request bodies on search endpoints.
const maxBodyBytes = 64 << 10

const (
	routeNotFoundDetail  = "We couldn't find a driving route between these addresses."
	invalidAddressDetail = "We couldn't understand one of these addresses."
)

// Searcher runs midpoint and venue searches.
type Searcher interface {
	ComputeMidpoint(ctx context.Context, origin, destination string) (*midpoint.Midpoint, error)
	Search(ctx context.Context, req search.Request) (*search.Result, error)
}

// SearchHandler handles midpoint and venue search endpoints.
type SearchHandler struct {
	searcher Searcher
	logger   zerolog.Logger
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(searcher Searcher, logger zerolog.Logger) *SearchHandler {
	return &SearchHandler{searcher: searcher, logger: logger}
}

// ComputeMidpoint handles POST /v1/midpoint - driving midpoint between two addresses.
func (h *SearchHandler) ComputeMidpoint(w http.ResponseWriter, r *http.Request) {
	var input models.MidpointRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if fieldErrors := validateAddresses(nil, input.Origin, input.Destination); len(fieldErrors) > 0 {
		response.BadRequest(w, r, "validation failed", fieldErrors)
		return
	}

	mid, err := h.searcher.ComputeMidpoint(r.Context(), input.Origin, input.Destination)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, toMidpointResponse(mid))
}

// SearchVenues handles POST /v1/venues:search - ranked venues around the midpoint.
func (h *SearchHandler) SearchVenues(w http.ResponseWriter, r *http.Request) {
	var input models.VenueSearchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if fieldErrors := validateVenueSearch(&input); len(fieldErrors) > 0 {
		response.BadRequest(w, r, "validation failed", fieldErrors)
		return
	}

	activity, _ := places.ParseActivityType(input.ActivityType)
	result, err := h.searcher.Search(r.Context(), search.Request{
		Origin:              input.Origin,
		Destination:         input.Destination,
		ActivityType:        activity,
		Keyword:             strings.TrimSpace(input.Keyword),
		Preferences:         toPreferences(input.Preferences),
		IncludeDescriptions: input.IncludeDescriptions,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, toVenueSearchResponse(result))
}

// writeError maps search errors to problem responses. Only messages produced by
// our own validation reach the client; collaborator text is logged instead.
func (h *SearchHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	log := h.requestLogger(r)

	switch {
	case errors.Is(err, search.ErrInvalidRequest):
		response.BadRequest(w, r, err.Error(), nil)
	case errors.Is(err, routing.ErrInvalidInput):
		log.Warn().Err(err).Msg("routing rejected addresses")
		response.BadRequest(w, r, invalidAddressDetail, nil)
	case errors.Is(err, routing.ErrNoRouteFound):
		response.RouteNotFound(w, r, routeNotFoundDetail)
	case errors.Is(err, resilience.ErrCollaboratorUnavailable):
		log.Warn().Err(err).Msg("collaborator unavailable")
		w.Header().Set("Retry-After", "30")
		response.ServiceUnavailable(w, r, "a map data provider is temporarily unavailable, please retry shortly")
	case errors.Is(err, context.Canceled):
		// client went away; nothing useful can be written
		log.Debug().Msg("request canceled")
	default:
		log.Error().Err(err).Msg("search failed")
		response.InternalError(w, r, "internal server error")
	}
}

// requestLogger prefers the request-scoped logger set by middleware.Logger,
// which already carries request and trace ids.
func (h *SearchHandler) requestLogger(r *http.Request) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	l := h.logger.With().Str("request_id", middleware.GetRequestID(r.Context())).Logger()
	return &l
}

func validateAddresses(errs []models.FieldError, origin, destination string) []models.FieldError {
	if strings.TrimSpace(origin) == "" {
		errs = append(errs, models.FieldError{Field: "origin", Message: "is required", Code: "REQUIRED"})
	}
	if strings.TrimSpace(destination) == "" {
		errs = append(errs, models.FieldError{Field: "destination", Message: "is required", Code: "REQUIRED"})
	}
	return errs
}

// validateVenueSearch validates search input and returns any field errors.
func validateVenueSearch(input *models.VenueSearchRequest) []models.FieldError {
	fieldErrors := validateAddresses(nil, input.Origin, input.Destination)

	if _, err := places.ParseActivityType(input.ActivityType); err != nil {
		fieldErrors = append(fieldErrors, models.FieldError{
			Field:   "activityType",
			Message: "must be one of bar, restaurant, cafe, park",
			Code:    "INVALID_ENUM",
		})
	}

	if p := input.Preferences; p != nil {
		fieldErrors = validateSlider(fieldErrors, p.VenueStyle, "preferences.venueStyle")
		fieldErrors = validateSlider(fieldErrors, p.NeighborhoodVibe, "preferences.neighborhoodVibe")
		fieldErrors = validateSlider(fieldErrors, p.LocationPriority, "preferences.locationPriority")
	}

	return fieldErrors
}

// validateSlider validates an optional slider is in range [0, 1].
func validateSlider(errs []models.FieldError, value *float64, field string) []models.FieldError {
	if value == nil {
		return errs
	}
	if math.IsNaN(*value) || *value < 0 || *value > 1 {
		errs = append(errs, models.FieldError{
			Field:   field,
			Message: "must be between 0 and 1",
			Code:    "OUT_OF_RANGE",
		})
	}
	return errs
}

func toPreferences(in *models.PreferencesInput) scoring.Preferences {
	prefs := scoring.DefaultPreferences()
	if in == nil {
		return prefs
	}
	if in.VenueStyle != nil {
		prefs.VenueStyle = *in.VenueStyle
	}
	if in.NeighborhoodVibe != nil {
		prefs.NeighborhoodVibe = *in.NeighborhoodVibe
	}
	if in.LocationPriority != nil {
		prefs.LocationPriority = *in.LocationPriority
	}
	return prefs
}

func toPoint(c geo.Coordinate) models.Point {
	return models.Point{Lat: c.Lat, Lng: c.Lng}
}

func toMidpointResponse(m *midpoint.Midpoint) models.MidpointResponse {
	return models.MidpointResponse{
		Midpoint:           toPoint(m.Coord),
		SearchRadiusMiles:  m.SearchRadiusMiles,
		TotalDistanceMiles: m.TotalDistanceMiles,
	}
}

func toVenueSearchResponse(res *search.Result) models.VenueSearchResponse {
	venues := make([]models.VenueResult, 0, len(res.Venues))
	for i := range res.Venues {
		venues = append(venues, toVenueResult(&res.Venues[i]))
	}

	areas := make([]models.AreaResult, 0, len(res.Areas))
	for i := range res.Areas {
		areas = append(areas, toAreaResult(&res.Areas[i]))
	}

	return models.VenueSearchResponse{
		SearchID:           res.SearchID,
		Midpoint:           toMidpointResponse(&res.Midpoint),
		Strategy:           string(res.Strategy.Name),
		SearchRadiusMeters: res.SearchRadiusMeters,
		Loosened:           res.Loosened,
		CandidateCount:     res.CandidateCount,
		Venues:             venues,
		Areas:              areas,
	}
}

func toVenueResult(rv *search.RankedVenue) models.VenueResult {
	v := rv.Venue
	out := models.VenueResult{
		Rank:        rv.Rank,
		ID:          v.ID,
		Name:        v.Name,
		Location:    toPoint(v.Location),
		Rating:      v.Rating,
		ReviewCount: v.ReviewCount,
		PriceLevel:  v.PriceLevel,
		Types:       v.Types,
		Vicinity:    v.Vicinity,
		Website:     v.Website,
		OpenNow:     v.OpenNow,
		Hours:       v.Hours,

		DistanceFromOriginMiles:      geo.MetersToMiles(rv.DistanceFromOriginMeters),
		DistanceFromDestinationMiles: geo.MetersToMiles(rv.DistanceFromDestinationMeters),

		AreaID:      rv.AreaID,
		Description: rv.Description,
		Score: models.Score{
			Final:            rv.Score.Final,
			DistanceBalance:  rv.Score.DistanceBalance,
			DistrictVibrancy: rv.Score.DistrictVibrancy,
			VibeMatch:        rv.Score.VibeMatch,
			BaseQuality:      rv.Score.BaseQuality,
			ArtsyBoosted:     rv.Score.ArtsyBoosted,
		},
	}
	for _, p := range v.Photos {
		out.PhotoRefs = append(out.PhotoRefs, p.Reference)
	}
	return out
}

func toAreaResult(a *search.Area) models.AreaResult {
	return models.AreaResult{
		ID:            a.ID,
		Center:        toPoint(a.Center),
		VenueIDs:      a.VenueIDs,
		RadiusMeters:  a.RadiusMeters,
		Density:       a.Density,
		AverageRating: a.AverageRating,
		Variety:       a.Variety,
		Vibe:          toVibeProfile(a.Vibe),
		Fallback:      a.Fallback,
		Score: models.Score{
			Final:            a.Score.Final,
			DistanceBalance:  a.Score.DistanceBalance,
			DistrictVibrancy: a.Score.DistrictVibrancy,
			VibeMatch:        a.Score.VibeMatch,
			BaseQuality:      a.Score.BaseQuality,
			ArtsyBoosted:     a.Score.ArtsyBoosted,
		},
	}
}

func toVibeProfile(p vibe.Profile) models.VibeProfile {
	return models.VibeProfile{
		Artsy:         p.Artsy,
		Trendy:        p.Trendy,
		Upscale:       p.Upscale,
		Entertainment: p.Entertainment,
		Dominant:      p.Dominant(),
	}
}
