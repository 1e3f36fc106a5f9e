// Package google provides a routing provider backed by the Google Directions API.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/twpayne/go-polyline"

	"github.com/meetmidway/midway/internal/geo"
	"github.com/meetmidway/midway/internal/provider/resilience"
	"github.com/meetmidway/midway/internal/routing"
)

const (
	// ProviderName identifies this routing provider.
	ProviderName = "google-directions"

	// DefaultBaseURL is the Google Maps API base URL.
	DefaultBaseURL = "https://maps.googleapis.com"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Directions client.
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

// Client is a Google Directions API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new Directions client.
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

// GetRoute retrieves the first driving route between two addresses.
func (c *Client) GetRoute(ctx context.Context, origin, destination string) (*routing.Route, error) {
	if origin == "" || destination == "" {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "INVALID_ADDRESS",
			Message:  "origin and destination addresses are required",
			Err:      routing.ErrInvalidInput,
		}
	}

	params := url.Values{}
	params.Set("origin", origin)
	params.Set("destination", destination)
	params.Set("mode", "driving")
	params.Set("key", c.apiKey)

	reqURL := fmt.Sprintf("%s/maps/api/directions/json?%s", c.baseURL, params.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("origin", origin).
		Str("destination", destination).
		Msg("requesting directions from Google")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach routing provider",
			Err:      fmt.Errorf("%w: %v", routing.ErrProviderUnavailable, err),
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.handleHTTPError(resp.StatusCode)
	}

	var dirResp directionsResponse
	if err := json.Unmarshal(respBody, &dirResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if dirResp.Status != statusOK {
		return nil, c.handleStatus(dirResp.Status, dirResp.ErrorMessage)
	}

	if len(dirResp.Routes) == 0 {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     statusZeroResults,
			Message:  "no route found between the given addresses",
			Err:      routing.ErrNoRouteFound,
		}
	}

	route, err := c.toRoute(&dirResp.Routes[0])
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Int("segment_count", len(route.Segments)).
		Float64("distance_meters", route.TotalDistanceMeters).
		Msg("received directions from Google")

	return route, nil
}

// handleHTTPError maps non-200 HTTP responses to domain errors.
func (c *Client) handleHTTPError(statusCode int) error {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return &routing.Error{
			Provider: ProviderName,
			Code:     "RATE_LIMIT",
			Message:  "API rate limit exceeded, please try again later",
			Err:      routing.ErrRateLimitExceeded,
		}
	case statusCode == http.StatusBadRequest:
		return &routing.Error{
			Provider: ProviderName,
			Code:     "BAD_REQUEST",
			Message:  "routing provider rejected the request",
			Err:      routing.ErrInvalidInput,
		}
	case statusCode >= 500:
		return &routing.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("SERVER_%d", statusCode),
			Message:  "routing provider is temporarily unavailable",
			Err:      routing.ErrProviderUnavailable,
		}
	default:
		return &routing.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", statusCode),
			Message:  fmt.Sprintf("routing provider returned status %d", statusCode),
			Err:      routing.ErrProviderUnavailable,
		}
	}
}

// handleStatus maps Directions API body status codes to domain errors.
func (c *Client) handleStatus(status, message string) error {
	if message == "" {
		message = "routing provider returned status " + status
	}

	switch status {
	case statusZeroResults, statusNotFound, statusMaxRouteLength:
		return &routing.Error{
			Provider: ProviderName,
			Code:     status,
			Message:  "no route found between the given addresses",
			Err:      routing.ErrNoRouteFound,
		}
	case statusOverQueryLimit, statusOverDailyLimit:
		return &routing.Error{
			Provider: ProviderName,
			Code:     status,
			Message:  message,
			Err:      routing.ErrRateLimitExceeded,
		}
	case statusInvalidRequest:
		return &routing.Error{
			Provider: ProviderName,
			Code:     status,
			Message:  message,
			Err:      routing.ErrInvalidInput,
		}
	default:
		// REQUEST_DENIED, UNKNOWN_ERROR and anything new
		return &routing.Error{
			Provider: ProviderName,
			Code:     status,
			Message:  message,
			Err:      routing.ErrProviderUnavailable,
		}
	}
}

// toRoute flattens the route's leg steps into ordered segments.
// The total distance is the sum of step distances so the route invariant holds exactly.
func (c *Client) toRoute(dr *directionsRoute) (*routing.Route, error) {
	route := &routing.Route{Summary: dr.Summary}

	for i := range dr.Legs {
		leg := &dr.Legs[i]
		if i == 0 {
			route.StartAddress = leg.StartAddress
		}
		route.EndAddress = leg.EndAddress
		route.DurationSeconds += leg.Duration.Value

		for j := range leg.Steps {
			step := &leg.Steps[j]
			route.Segments = append(route.Segments, routing.Segment{
				Start:          geo.Coordinate{Lat: step.StartLocation.Lat, Lng: step.StartLocation.Lng},
				End:            geo.Coordinate{Lat: step.EndLocation.Lat, Lng: step.EndLocation.Lng},
				DistanceMeters: step.Distance.Value,
			})
			route.TotalDistanceMeters += step.Distance.Value
		}
	}

	if len(route.Segments) == 0 {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "EMPTY_ROUTE",
			Message:  "routing provider returned a route without steps",
			Err:      routing.ErrNoRouteFound,
		}
	}

	if dr.OverviewPolyline.Points != "" {
		path, err := decodePath(dr.OverviewPolyline.Points)
		if err != nil {
			// The path is only used for display; segments carry the geometry we need
			c.logger.Warn().Err(err).Msg("failed to decode overview polyline")
		} else {
			route.Path = path
		}
	}

	return route, nil
}

// decodePath decodes a precision-5 encoded polyline into coordinates.
func decodePath(encoded string) ([]geo.Coordinate, error) {
	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("decode polyline: %w", err)
	}

	path := make([]geo.Coordinate, 0, len(coords))
	for _, c := range coords {
		if len(c) < 2 {
			continue
		}
		path = append(path, geo.Coordinate{Lat: c[0], Lng: c[1]})
	}
	return path, nil
}
