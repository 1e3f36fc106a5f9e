// Package cache provides the response cache used at the collaborator boundary.
// Keys are built explicitly from normalized request tuples and every entry carries
// a TTL chosen by the caller. Scored results are never cached.
package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrInvalidTTL is returned when Set is called with a non-positive TTL.
var ErrInvalidTTL = errors.New("cache ttl must be positive")

// Store is a byte-oriented key/value store with per-entry expiry.
type Store interface {
	// Get returns the value for key. The boolean is false on a miss or an expired entry.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Name identifies the backend for logging.
	Name() string
}

// Pinger is implemented by stores backed by a network service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Key joins key parts with ':' after collapsing whitespace in each part.
// Case is preserved; callers lowercase parts that are case-insensitive.
// Example: Key("places", "details", "v1", "ChIJ123") -> "places:details:v1:ChIJ123".
func Key(parts ...string) string {
	normalized := make([]string, len(parts))
	for i, p := range parts {
		normalized[i] = strings.Join(strings.Fields(p), " ")
	}
	return strings.Join(normalized, ":")
}

// Noop is a Store that never holds anything. Used when caching is disabled.
type Noop struct{}

// Get always misses.
func (Noop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

// Set discards the value.
func (Noop) Set(context.Context, string, []byte, time.Duration) error { return nil }

// Name returns "none".
func (Noop) Name() string { return "none" }
