package resilience

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

// Predefined errors for resilient operations.
var (
	// ErrCollaboratorUnavailable is returned once an external collaborator could not be
	// reached after all retries, or while its circuit breaker is open.
	ErrCollaboratorUnavailable = errors.New("external collaborator unavailable")

	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = fmt.Errorf("circuit breaker is open: %w", ErrCollaboratorUnavailable)

	// ErrMaxRetriesExceeded is returned when all retry attempts have been exhausted.
	ErrMaxRetriesExceeded = fmt.Errorf("max retries exceeded: %w", ErrCollaboratorUnavailable)
)

// BackoffPolicy selects how the delay between retries evolves.
type BackoffPolicy string

const (
	// BackoffFixed waits RetryInterval between every attempt.
	BackoffFixed BackoffPolicy = "fixed"
	// BackoffExponential starts at RetryInterval and grows up to MaxInterval.
	BackoffExponential BackoffPolicy = "exponential"
)

// ClientConfig holds configuration for the resilient HTTP client.
type ClientConfig struct {
	// Name identifies this client for circuit breaker naming and health tracking.
	Name string

	// Timeout is the request timeout for individual HTTP calls.
	// Default: 10 seconds
	Timeout time.Duration

	// MaxRetries is the maximum number of retry attempts after the first call.
	// Default: 2
	MaxRetries uint64

	// Policy is the backoff policy. Default: BackoffFixed.
	Policy BackoffPolicy

	// RetryInterval is the fixed delay, or the initial delay for exponential backoff.
	// Default: 250ms
	RetryInterval time.Duration

	// MaxInterval caps exponential backoff.
	// Default: 5 seconds
	MaxInterval time.Duration

	// CircuitBreaker is the circuit breaker configuration.
	// If nil, uses DefaultCircuitBreakerConfig.
	CircuitBreaker *CircuitBreakerConfig

	// Registry receives success/failure events for health reporting (optional).
	Registry *Registry
}

// DefaultClientConfig returns the defaults used for map and text-generation collaborators.
func DefaultClientConfig(name string) ClientConfig {
	cbConfig := DefaultCircuitBreakerConfig(name)
	return ClientConfig{
		Name:           name,
		Timeout:        10 * time.Second,
		MaxRetries:     2,
		Policy:         BackoffFixed,
		RetryInterval:  250 * time.Millisecond,
		MaxInterval:    5 * time.Second,
		CircuitBreaker: &cbConfig,
	}
}

// Client is a resilient HTTP client with circuit breaker and retry logic.
type Client struct {
	httpClient     *http.Client
	circuitBreaker *gobreaker.CircuitBreaker[*http.Response]
	config         ClientConfig
}

// NewClient creates a new resilient HTTP client and registers it with the
// configured registry, if any.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Policy == "" {
		cfg.Policy = BackoffFixed
	}
	if cfg.RetryInterval == 0 {
		cfg.RetryInterval = 250 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 5 * time.Second
	}

	cbConfig := DefaultCircuitBreakerConfig(cfg.Name)
	if cfg.CircuitBreaker != nil {
		cbConfig = *cfg.CircuitBreaker
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		circuitBreaker: NewCircuitBreaker[*http.Response](cbConfig), //nolint:bodyclose // type param, not response
		config:         cfg,
	}

	if cfg.Registry != nil {
		cfg.Registry.Register(cfg.Name, c)
	}

	return c
}

// Name returns the collaborator name this client was configured with.
func (c *Client) Name() string {
	return c.config.Name
}

// Do executes an HTTP request with circuit breaker protection and retry logic.
// Network errors and 5xx responses are retried; 4xx responses are returned as-is.
// When retries are exhausted on a 5xx, the last response is returned so callers can map it.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	bo := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.config.MaxRetries), ctx)

	var lastResp *http.Response

	operation := func() error {
		// 5xx responses are returned as errors so they count against the breaker
		resp, err := c.circuitBreaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // caller closes
			attempt := req.Clone(ctx)
			if req.GetBody != nil {
				// a previous attempt consumed the body
				body, err := req.GetBody()
				if err != nil {
					return nil, err
				}
				attempt.Body = body
			}
			r, err := c.httpClient.Do(attempt)
			if err != nil {
				return nil, err
			}
			if r.StatusCode >= 500 {
				return r, &ServerError{StatusCode: r.StatusCode}
			}
			return r, nil
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(ErrCircuitOpen)
			}
			if resp != nil {
				if lastResp != nil {
					lastResp.Body.Close()
				}
				lastResp = resp
			}
			return err
		}

		if lastResp != nil {
			lastResp.Body.Close()
		}
		lastResp = resp
		return nil
	}

	err := backoff.Retry(operation, bo)
	if err != nil {
		c.recordFailure(err)
		if lastResp != nil {
			return lastResp, nil
		}
		if errors.Is(err, ErrCircuitOpen) {
			return nil, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%s: %w: %v", c.config.Name, ErrMaxRetriesExceeded, err)
	}

	c.recordSuccess()
	return lastResp, nil
}

func (c *Client) newBackOff() backoff.BackOff {
	if c.config.Policy == BackoffExponential {
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = c.config.RetryInterval
		bo.MaxInterval = c.config.MaxInterval
		bo.MaxElapsedTime = 0 // retries are bounded by WithMaxRetries
		return bo
	}
	return backoff.NewConstantBackOff(c.config.RetryInterval)
}

func (c *Client) recordSuccess() {
	if c.config.Registry != nil {
		c.config.Registry.RecordSuccess(c.config.Name)
	}
}

func (c *Client) recordFailure(err error) {
	if c.config.Registry != nil {
		c.config.Registry.RecordFailure(c.config.Name, err)
	}
}

// ServerError represents an HTTP 5xx server error.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}

// CircuitBreakerState returns the current state of the circuit breaker.
func (c *Client) CircuitBreakerState() gobreaker.State {
	return c.circuitBreaker.State()
}

// CircuitBreakerCounts returns the current counts of the circuit breaker.
func (c *Client) CircuitBreakerCounts() gobreaker.Counts {
	return c.circuitBreaker.Counts()
}
