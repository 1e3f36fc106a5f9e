// Package google provides a places provider backed by the Google Places API.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/meetmidway/midway/internal/geo"
	"github.com/meetmidway/midway/internal/places"
	"github.com/meetmidway/midway/internal/provider/resilience"
)

const (
	// ProviderName identifies this places provider.
	ProviderName = "google-places"

	// DefaultBaseURL is the Google Maps API base URL.
	DefaultBaseURL = "https://maps.googleapis.com"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second

	// detailFields limits Place Details to the enrichment fields we use.
	detailFields = "photos,price_level,opening_hours,website"
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Places client.
type ClientConfig struct {
	// APIKey is the Google Maps API key (required).
	APIKey string

	// BaseURL is the API base URL (optional, defaults to the Google Maps API).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 10s).
	Timeout time.Duration

	// MaxRetries overrides the resilient client's retry count (optional).
	MaxRetries *uint64

	// RetryInterval overrides the fixed backoff interval (optional).
	RetryInterval time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a Google Places API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new Places client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		if cfg.MaxRetries != nil {
			clientCfg.MaxRetries = *cfg.MaxRetries
		}
		if cfg.RetryInterval > 0 {
			clientCfg.RetryInterval = cfg.RetryInterval
		}
		clientCfg.Registry = cfg.Registry
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// SearchNearby runs a Nearby Search and returns the first page of results.
// ZERO_RESULTS is an empty list, not an error.
func (c *Client) SearchNearby(ctx context.Context, req places.NearbyRequest) ([]places.Venue, error) {
	params := url.Values{}
	params.Set("location", fmt.Sprintf("%.6f,%.6f", req.Center.Lat, req.Center.Lng))
	params.Set("radius", strconv.FormatFloat(req.RadiusMeters, 'f', 0, 64))
	params.Set("type", string(req.Type))
	if req.Keyword != "" {
		params.Set("keyword", req.Keyword)
	}
	params.Set("key", c.apiKey)

	var resp nearbyResponse
	if err := c.get(ctx, "/maps/api/place/nearbysearch/json", params, &resp); err != nil {
		return nil, err
	}

	switch resp.Status {
	case statusOK:
	case statusZeroResults:
		return []places.Venue{}, nil
	default:
		return nil, c.handleStatus(resp.Status, resp.ErrorMessage)
	}

	venues := make([]places.Venue, 0, len(resp.Results))
	for i := range resp.Results {
		r := &resp.Results[i]
		if r.PlaceID == "" || r.BusinessStatus == businessClosedPermanently {
			continue
		}
		venues = append(venues, toVenue(r))
	}

	c.logger.Debug().
		Int("result_count", len(resp.Results)).
		Int("venue_count", len(venues)).
		Str("type", string(req.Type)).
		Msg("received nearby venues from Google")

	return venues, nil
}

// GetDetails fetches photos, price level and opening hours for a place.
func (c *Client) GetDetails(ctx context.Context, placeID string) (*places.Details, error) {
	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("fields", detailFields)
	params.Set("key", c.apiKey)

	var resp detailsResponse
	if err := c.get(ctx, "/maps/api/place/details/json", params, &resp); err != nil {
		return nil, err
	}

	if resp.Status != statusOK {
		return nil, c.handleStatus(resp.Status, resp.ErrorMessage)
	}

	r := &resp.Result
	details := &places.Details{
		Photos:     toPhotos(r.Photos),
		PriceLevel: validPriceLevel(r.PriceLevel),
		Website:    r.Website,
	}
	if r.OpeningHours != nil {
		details.Hours = r.OpeningHours.WeekdayText
		details.OpenNow = r.OpeningHours.OpenNow
	}

	return details, nil
}

// get performs a GET request and decodes a 200 response into out.
func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &places.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach places provider",
			Err:      fmt.Errorf("%w: %v", places.ErrProviderUnavailable, err),
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return c.handleHTTPError(resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// handleHTTPError maps non-200 HTTP responses to domain errors.
func (c *Client) handleHTTPError(statusCode int) error {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return &places.Error{
			Provider: ProviderName,
			Code:     "RATE_LIMIT",
			Message:  "API rate limit exceeded, please try again later",
			Err:      places.ErrRateLimitExceeded,
		}
	case statusCode == http.StatusBadRequest:
		return &places.Error{
			Provider: ProviderName,
			Code:     "BAD_REQUEST",
			Message:  "places provider rejected the request",
			Err:      places.ErrInvalidRequest,
		}
	default:
		return &places.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", statusCode),
			Message:  "places provider is temporarily unavailable",
			Err:      places.ErrProviderUnavailable,
		}
	}
}

// handleStatus maps Places API body status codes to domain errors.
func (c *Client) handleStatus(status, message string) error {
	if message == "" {
		message = "places provider returned status " + status
	}

	var target error
	switch status {
	case statusNotFound, statusZeroResults:
		target = places.ErrPlaceNotFound
	case statusInvalidRequest:
		target = places.ErrInvalidRequest
	case statusOverQueryLimit:
		target = places.ErrRateLimitExceeded
	default:
		// REQUEST_DENIED, UNKNOWN_ERROR and anything new
		target = places.ErrProviderUnavailable
	}

	return &places.Error{
		Provider: ProviderName,
		Code:     status,
		Message:  message,
		Err:      target,
	}
}

func toVenue(r *placeResult) places.Venue {
	v := places.Venue{
		ID:          r.PlaceID,
		Name:        r.Name,
		Location:    geo.Coordinate{Lat: r.Geometry.Location.Lat, Lng: r.Geometry.Location.Lng},
		Rating:      r.Rating,
		ReviewCount: r.UserRatingsTotal,
		PriceLevel:  validPriceLevel(r.PriceLevel),
		Types:       r.Types,
		Vicinity:    r.Vicinity,
		Photos:      toPhotos(r.Photos),
	}
	if r.OpeningHours != nil {
		v.OpenNow = r.OpeningHours.OpenNow
	}
	return v
}

func toPhotos(in []photo) []places.Photo {
	if len(in) == 0 {
		return nil
	}
	out := make([]places.Photo, 0, len(in))
	for _, p := range in {
		if p.PhotoReference == "" {
			continue
		}
		out = append(out, places.Photo{
			Reference:    p.PhotoReference,
			Width:        p.Width,
			Height:       p.Height,
			Attributions: p.HTMLAttributions,
		})
	}
	return out
}

// validPriceLevel drops values outside the documented 0-4 range.
func validPriceLevel(level *int) *int {
	if level == nil || *level < 0 || *level > 4 {
		return nil
	}
	l := *level
	return &l
}
