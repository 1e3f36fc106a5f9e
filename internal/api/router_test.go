package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetmidway/midway/internal/api"
	"github.com/meetmidway/midway/internal/api/handler"
	"github.com/meetmidway/midway/internal/api/middleware"
	"github.com/meetmidway/midway/internal/api/models"
	"github.com/meetmidway/midway/internal/geo"
	"github.com/meetmidway/midway/internal/midpoint"
	"github.com/meetmidway/midway/internal/places"
	"github.com/meetmidway/midway/internal/provider/resilience"
	"github.com/meetmidway/midway/internal/routing"
	"github.com/meetmidway/midway/internal/scoring"
	"github.com/meetmidway/midway/internal/search"
	"github.com/meetmidway/midway/internal/vibe"
)

// mockSearcher is a test double for the search service.
type mockSearcher struct {
	err         error
	calls       atomic.Int32
	lastRequest search.Request
}

func (m *mockSearcher) ComputeMidpoint(_ context.Context, _, _ string) (*midpoint.Midpoint, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	mid := testMidpoint()
	return &mid, nil
}

func (m *mockSearcher) Search(_ context.Context, req search.Request) (*search.Result, error) {
	m.calls.Add(1)
	m.lastRequest = req
	if m.err != nil {
		return nil, m.err
	}

	price := 2
	return &search.Result{
		SearchID:           "search-123",
		Midpoint:           testMidpoint(),
		Strategy:           scoring.SelectStrategy(req.Preferences.LocationPriority),
		SearchRadiusMeters: 3000,
		CandidateCount:     4,
		Venues: []search.RankedVenue{
			{
				Rank: 1,
				Venue: places.Venue{
					ID:          "v1",
					Name:        "The Gallery Bar",
					Location:    geo.Coordinate{Lat: 37.80, Lng: -122.30},
					Rating:      4.6,
					ReviewCount: 320,
					PriceLevel:  &price,
					Types:       []string{"bar"},
					Photos:      []places.Photo{{Reference: "photo-ref-1"}},
				},
				Score:                         scoring.VenueScore{Final: 0.82, DistanceBalance: 1},
				DistanceFromOriginMeters:      geo.MilesToMeters(7),
				DistanceFromDestinationMeters: geo.MilesToMeters(7),
				AreaID:                        "area-1",
			},
		},
		Areas: []search.Area{
			{
				ID:       "area-1",
				Center:   geo.Coordinate{Lat: 37.80, Lng: -122.30},
				VenueIDs: []string{"v1"},
				Vibe:     vibe.Profile{Artsy: 0.7},
				Score:    scoring.ClusterScore{Final: 0.7},
			},
		},
	}, nil
}

func testMidpoint() midpoint.Midpoint {
	return midpoint.Midpoint{
		Coord:              geo.Coordinate{Lat: 37.80, Lng: -122.30},
		SearchRadiusMiles:  2.1,
		TotalDistanceMiles: 14,
	}
}

func newTestRouter(searcher handler.Searcher, opts ...func(*api.RouterConfig)) http.Handler {
	cfg := api.RouterConfig{
		Version:   "test",
		BuildTime: "2024-01-01T00:00:00Z",
		Logger:    zerolog.New(io.Discard),
		Searcher:  searcher,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return api.NewRouter(cfg)
}

func postJSON(t *testing.T, router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func floatPtr(f float64) *float64 {
	return &f
}

func TestRouter_HealthCheck(t *testing.T) {
	router := newTestRouter(&mockSearcher{})

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	var health models.Health
	err := json.Unmarshal(w.Body.Bytes(), &health)
	require.NoError(t, err)

	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.Equal(t, "test", health.Details["version"])
}

func TestRouter_ReadinessCheck(t *testing.T) {
	router := newTestRouter(&mockSearcher{}, func(cfg *api.RouterConfig) {
		cfg.ReadinessChecks = []handler.HealthCheck{
			{Name: "cache", Check: func(context.Context) error { return nil }},
		}
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/ready", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var health models.Health
	err := json.Unmarshal(w.Body.Bytes(), &health)
	require.NoError(t, err)

	assert.Equal(t, models.HealthStatusOK, health.Status)
}

func TestRouter_ReadinessCheck_FailingDependency(t *testing.T) {
	router := newTestRouter(&mockSearcher{}, func(cfg *api.RouterConfig) {
		cfg.ReadinessChecks = []handler.HealthCheck{
			{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }},
		}
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/ready", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var health models.Health
	err := json.Unmarshal(w.Body.Bytes(), &health)
	require.NoError(t, err)

	assert.Equal(t, models.HealthStatusFail, health.Status)
	assert.Equal(t, "connection refused", health.Details["redis"])
}

func TestRouter_SystemStatus(t *testing.T) {
	registry := resilience.NewRegistry()
	resilience.NewClient(resilience.ClientConfig{Name: "google-places", Registry: registry})

	router := newTestRouter(&mockSearcher{}, func(cfg *api.RouterConfig) {
		cfg.Registry = registry
		cfg.ReadinessChecks = []handler.HealthCheck{
			{Name: "cache", Check: func(context.Context) error { return nil }},
		}
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var status models.SystemStatus
	err := json.Unmarshal(w.Body.Bytes(), &status)
	require.NoError(t, err)

	assert.Equal(t, models.HealthStatusOK, status.Status)
	require.Len(t, status.Subsystems, 1)
	assert.Equal(t, "cache", status.Subsystems[0].Name)
	require.Len(t, status.Providers, 1)
	assert.Equal(t, "google-places", status.Providers[0].Provider)
	assert.Equal(t, "closed", status.Providers[0].CircuitState)
	assert.Equal(t, models.HealthStatusOK, status.Providers[0].Status)
}

func TestRouter_GetEnums(t *testing.T) {
	router := newTestRouter(&mockSearcher{})

	req := httptest.NewRequest(http.MethodGet, "/v1/metadata/enums", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var enums models.Enums
	err := json.Unmarshal(w.Body.Bytes(), &enums)
	require.NoError(t, err)

	assert.Equal(t, []string{"bar", "restaurant", "cafe", "park"}, enums.ActivityTypes)
	require.Len(t, enums.Strategies, 3)
	assert.Equal(t, "EQUAL_DISTANCE", enums.Strategies[0].Name)
	assert.Equal(t, "ENTERTAINMENT_DISTRICT", enums.Strategies[2].Name)
	assert.Contains(t, enums.VibeDimensions, "artsy")
}

func TestRouter_ComputeMidpoint(t *testing.T) {
	router := newTestRouter(&mockSearcher{})

	w := postJSON(t, router, "/v1/midpoint", models.MidpointRequest{
		Origin:      "Oakland, CA",
		Destination: "San Francisco, CA",
	})

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.MidpointResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)

	assert.InDelta(t, 37.80, resp.Midpoint.Lat, 1e-9)
	assert.InDelta(t, -122.30, resp.Midpoint.Lng, 1e-9)
	assert.InDelta(t, 2.1, resp.SearchRadiusMiles, 1e-9)
	assert.InDelta(t, 14, resp.TotalDistanceMiles, 1e-9)
}

func TestRouter_ComputeMidpoint_ValidationError(t *testing.T) {
	searcher := &mockSearcher{}
	router := newTestRouter(searcher)

	w := postJSON(t, router, "/v1/midpoint", models.MidpointRequest{Origin: "Oakland, CA"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

	var problem models.Problem
	err := json.Unmarshal(w.Body.Bytes(), &problem)
	require.NoError(t, err)

	assert.Equal(t, models.ProblemTypeValidation, problem.Type)
	require.Len(t, problem.Errors, 1)
	assert.Equal(t, "destination", problem.Errors[0].Field)
	assert.Zero(t, searcher.calls.Load())
}

func TestRouter_SearchVenues(t *testing.T) {
	searcher := &mockSearcher{}
	router := newTestRouter(searcher)

	w := postJSON(t, router, "/v1/venues:search", models.VenueSearchRequest{
		Origin:       "Oakland, CA",
		Destination:  "San Francisco, CA",
		ActivityType: "Bar",
		Keyword:      "  rooftop ",
		Preferences:  &models.PreferencesInput{LocationPriority: floatPtr(0.9)},
	})

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.VenueSearchResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)

	assert.Equal(t, "search-123", resp.SearchID)
	assert.Equal(t, "ENTERTAINMENT_DISTRICT", resp.Strategy)
	require.Len(t, resp.Venues, 1)
	v := resp.Venues[0]
	assert.Equal(t, 1, v.Rank)
	assert.Equal(t, "v1", v.ID)
	assert.Equal(t, "area-1", v.AreaID)
	assert.InDelta(t, 7, v.DistanceFromOriginMiles, 1e-9)
	assert.Equal(t, []string{"photo-ref-1"}, v.PhotoRefs)
	require.NotNil(t, v.PriceLevel)
	assert.Equal(t, 2, *v.PriceLevel)
	require.Len(t, resp.Areas, 1)
	assert.Equal(t, "artsy", resp.Areas[0].Vibe.Dominant)

	// omitted sliders default to the middle
	assert.Equal(t, places.ActivityBar, searcher.lastRequest.ActivityType)
	assert.Equal(t, "rooftop", searcher.lastRequest.Keyword)
	assert.Equal(t, 0.5, searcher.lastRequest.Preferences.VenueStyle)
	assert.Equal(t, 0.5, searcher.lastRequest.Preferences.NeighborhoodVibe)
	assert.Equal(t, 0.9, searcher.lastRequest.Preferences.LocationPriority)
}

func TestRouter_SearchVenues_ValidationErrors(t *testing.T) {
	searcher := &mockSearcher{}
	router := newTestRouter(searcher)

	w := postJSON(t, router, "/v1/venues:search", models.VenueSearchRequest{
		Origin:       "Oakland, CA",
		Destination:  " ",
		ActivityType: "museum",
		Preferences:  &models.PreferencesInput{VenueStyle: floatPtr(1.5)},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var problem models.Problem
	err := json.Unmarshal(w.Body.Bytes(), &problem)
	require.NoError(t, err)

	fields := make([]string, 0, len(problem.Errors))
	for _, fe := range problem.Errors {
		fields = append(fields, fe.Field)
	}
	assert.ElementsMatch(t, []string{"destination", "activityType", "preferences.venueStyle"}, fields)
	assert.Zero(t, searcher.calls.Load())
}

func TestRouter_SearchVenues_InvalidJSON(t *testing.T) {
	router := newTestRouter(&mockSearcher{})

	req := httptest.NewRequest(http.MethodPost, "/v1/venues:search", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid JSON body")
}

func TestRouter_SearchVenues_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{
			name:       "route not found",
			err:        midpoint.ErrRouteNotFound,
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   models.ProblemTypeRouteNotFound,
		},
		{
			name:       "collaborator unavailable",
			err:        fmt.Errorf("searching venues: %w", places.ErrProviderUnavailable),
			wantStatus: http.StatusServiceUnavailable,
			wantType:   models.ProblemTypeUnavailable,
		},
		{
			name:       "invalid request",
			err:        fmt.Errorf("%w: origin is required", search.ErrInvalidRequest),
			wantStatus: http.StatusBadRequest,
			wantType:   models.ProblemTypeValidation,
		},
		{
			name:       "unexpected",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantType:   models.ProblemTypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&mockSearcher{err: tt.err})

			w := postJSON(t, router, "/v1/venues:search", models.VenueSearchRequest{
				Origin:       "Oakland, CA",
				Destination:  "San Francisco, CA",
				ActivityType: "cafe",
			})

			assert.Equal(t, tt.wantStatus, w.Code)

			var problem models.Problem
			err := json.Unmarshal(w.Body.Bytes(), &problem)
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, problem.Type)
			assert.Equal(t, "/v1/venues:search", problem.Instance)
			assert.NotEmpty(t, problem.TraceID)
		})
	}
}

func TestRouter_SearchVenues_RouteNotFoundMessage(t *testing.T) {
	router := newTestRouter(&mockSearcher{err: midpoint.ErrRouteNotFound})

	w := postJSON(t, router, "/v1/midpoint", models.MidpointRequest{
		Origin:      "Honolulu, HI",
		Destination: "Tokyo, Japan",
	})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "couldn't find a driving route")
}

func TestRouter_SearchVenues_InvalidAddressHidesProviderText(t *testing.T) {
	var logs bytes.Buffer
	providerErr := fmt.Errorf("get route: %w", &routing.Error{
		Provider: "google-directions",
		Code:     "INVALID_REQUEST",
		Message:  "Invalid request. Missing the 'key' parameter; api_key=AIzaXXXX",
		Err:      routing.ErrInvalidInput,
	})
	router := newTestRouter(&mockSearcher{err: providerErr}, func(cfg *api.RouterConfig) {
		cfg.Logger = zerolog.New(&logs)
	})

	for _, path := range []string{"/v1/midpoint", "/v1/venues:search"} {
		t.Run(path, func(t *testing.T) {
			logs.Reset()
			w := postJSON(t, router, path, models.VenueSearchRequest{
				Origin:       "Oakland, CA",
				Destination:  "San Francisco, CA",
				ActivityType: "bar",
			})

			assert.Equal(t, http.StatusBadRequest, w.Code)

			var problem models.Problem
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
			assert.Equal(t, models.ProblemTypeValidation, problem.Type)
			assert.Equal(t, "We couldn't understand one of these addresses.", problem.Detail)
			assert.NotContains(t, w.Body.String(), "AIza")
			assert.NotContains(t, w.Body.String(), "get route")
			assert.NotContains(t, w.Body.String(), "invalid routing input")

			// The cause is kept for operators, tagged with the request id.
			assert.Contains(t, logs.String(), "routing rejected addresses")
			assert.Contains(t, logs.String(), "Missing the 'key' parameter")
			assert.Contains(t, logs.String(), w.Header().Get("X-Request-Id"))
		})
	}
}

func TestRouter_SearchVenues_UnsupportedMediaType(t *testing.T) {
	router := newTestRouter(&mockSearcher{})

	req := httptest.NewRequest(http.MethodPost, "/v1/venues:search", strings.NewReader("origin=a"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestRouter_SearchVenues_RateLimited(t *testing.T) {
	router := newTestRouter(&mockSearcher{}, func(cfg *api.RouterConfig) {
		cfg.SearchRateLimit = middleware.RateLimitConfig{RequestLimit: 1, WindowLength: time.Minute}
	})

	body := models.MidpointRequest{Origin: "Oakland, CA", Destination: "San Francisco, CA"}
	first := postJSON(t, router, "/v1/midpoint", body)
	second := postJSON(t, router, "/v1/midpoint", body)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestRouter_RequestID_Generated(t *testing.T) {
	router := newTestRouter(&mockSearcher{})

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	requestID := w.Header().Get("X-Request-Id")
	assert.NotEmpty(t, requestID)
	assert.Contains(t, requestID, "req_")
}

func TestRouter_RequestID_Preserved(t *testing.T) {
	router := newTestRouter(&mockSearcher{})

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	req.Header.Set("X-Request-Id", "custom_request_id")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, "custom_request_id", w.Header().Get("X-Request-Id"))
}

func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter(&mockSearcher{})

	req := httptest.NewRequest(http.MethodGet, "/v1/nonexistent", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
}
