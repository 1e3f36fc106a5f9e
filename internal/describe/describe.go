// Package describe generates short prose descriptions of ranked venues.
package describe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/meetmidway/midway/internal/cache"
	"github.com/meetmidway/midway/internal/places"
	"github.com/meetmidway/midway/internal/provider/resilience"
)

// ErrUnavailable is returned when the text-generation collaborator cannot be used.
var ErrUnavailable = fmt.Errorf("venue describer unavailable: %w", resilience.ErrCollaboratorUnavailable)

// Describer produces one description per venue, in input order.
// An entry may be empty when the collaborator had nothing to say about a venue.
type Describer interface {
	DescribeVenues(ctx context.Context, venues []places.Venue, activity places.ActivityType) ([]string, error)
}

// CachedDescriber caches descriptions keyed on the activity and the ordered venue ids.
type CachedDescriber struct {
	inner  Describer
	store  cache.Store
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedDescriber wraps inner with a response cache. ttl defaults to 24 hours.
func NewCachedDescriber(inner Describer, store cache.Store, ttl time.Duration, logger zerolog.Logger) *CachedDescriber {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedDescriber{inner: inner, store: store, ttl: ttl, logger: logger}
}

// DescribeVenues returns cached descriptions or asks the wrapped describer.
func (c *CachedDescriber) DescribeVenues(ctx context.Context, venues []places.Venue, activity places.ActivityType) ([]string, error) {
	key := c.key(venues, activity)

	var cached []string
	ok, err := cache.GetJSON(ctx, c.store, key, &cached)
	if err != nil {
		c.logger.Warn().Err(err).Str("cache_key", key).Msg("description cache read failed")
	}
	if ok && len(cached) == len(venues) {
		c.logger.Debug().Str("cache_key", key).Msg("cache hit for venue descriptions")
		return cached, nil
	}

	descriptions, err := c.inner.DescribeVenues(ctx, venues, activity)
	if err != nil {
		return nil, err
	}

	if err := cache.SetJSON(ctx, c.store, key, descriptions, c.ttl); err != nil {
		c.logger.Warn().Err(err).Str("cache_key", key).Msg("description cache write failed")
	}
	return descriptions, nil
}

func (c *CachedDescriber) key(venues []places.Venue, activity places.ActivityType) string {
	h := sha256.New()
	for i := range venues {
		h.Write([]byte(venues[i].ID))
		h.Write([]byte{0})
	}
	return cache.Key("descriptions", "v1", string(activity), hex.EncodeToString(h.Sum(nil))[:32])
}
