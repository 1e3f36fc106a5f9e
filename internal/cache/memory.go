package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store with lazy periodic cleanup of expired entries.
type MemoryStore struct {
	cleanupInterval time.Duration
	now             func() time.Time

	mu          sync.RWMutex
	entries     map[string]memoryEntry
	lastCleanup time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryStore creates a memory store. cleanupInterval defaults to 5 minutes.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	if cleanupInterval <= 0 {
		cleanupInterval = 5 * time.Minute
	}
	return &MemoryStore{
		cleanupInterval: cleanupInterval,
		now:             time.Now,
		entries:         make(map[string]memoryEntry),
	}
}

// Get returns a copy of the cached value if present and not expired.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key]
	if !ok || !m.now().Before(e.expiresAt) {
		return nil, false, nil
	}

	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

// Set stores a copy of value until ttl elapses.
func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.entries[key] = memoryEntry{value: stored, expiresAt: now.Add(ttl)}
	m.cleanupIfNeeded(now)
	return nil
}

// Name returns "memory".
func (m *MemoryStore) Name() string { return "memory" }

// Len returns the number of entries, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// cleanupIfNeeded removes expired entries once per cleanup interval. Caller holds the write lock.
func (m *MemoryStore) cleanupIfNeeded(now time.Time) {
	if now.Sub(m.lastCleanup) < m.cleanupInterval {
		return
	}
	m.lastCleanup = now

	for key, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, key)
		}
	}
}
