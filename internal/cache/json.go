package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// GetJSON looks up key and decodes the stored JSON into out.
func GetJSON(ctx context.Context, s Store, key string, out any) (bool, error) {
	data, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes value as JSON and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s for cache: %w", key, err)
	}
	return s.Set(ctx, key, data, ttl)
}
