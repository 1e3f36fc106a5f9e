package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey_Normalizes(t *testing.T) {
	got := Key("routes", "  123 Main St ", "Oakland,   CA", "ChIJ9x")
	assert.Equal(t, "routes:123 Main St:Oakland, CA:ChIJ9x", got)
}

func TestMemoryStore_SetGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Minute)

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))

	got, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	_, ok, err = store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Minute)

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Set(ctx, "k", []byte("v"), 10*time.Second))

	now = now.Add(9 * time.Second)
	_, ok, _ := store.Get(ctx, "k")
	assert.True(t, ok, "entry should still be live")

	now = now.Add(time.Second)
	_, ok, _ = store.Get(ctx, "k")
	assert.False(t, ok, "entry should expire exactly at ttl")
}

func TestMemoryStore_CleanupRemovesExpired(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Second)

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Set(ctx, "old", []byte("1"), time.Second))
	now = now.Add(2 * time.Second)
	require.NoError(t, store.Set(ctx, "new", []byte("2"), time.Minute))

	assert.Equal(t, 1, store.Len())
}

func TestMemoryStore_ValueIsCopied(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	value := []byte("abc")
	require.NoError(t, store.Set(ctx, "k", value, time.Minute))
	value[0] = 'x'

	got, _, _ := store.Get(ctx, "k")
	assert.Equal(t, "abc", string(got))

	got[1] = 'y'
	again, _, _ := store.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
}

func TestMemoryStore_RejectsNonPositiveTTL(t *testing.T) {
	store := NewMemoryStore(0)
	err := store.Set(context.Background(), "k", []byte("v"), 0)
	assert.ErrorIs(t, err, ErrInvalidTTL)
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	type payload struct {
		Name  string  `json:"name"`
		Score float64 `json:"score"`
	}

	require.NoError(t, SetJSON(ctx, store, "p", payload{Name: "Cafe", Score: 4.5}, time.Minute))

	var out payload
	ok, err := GetJSON(ctx, store, "p", &out)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, payload{Name: "Cafe", Score: 4.5}, out)

	ok, err = GetJSON(ctx, store, "absent", &out)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestJSONHelpers_CorruptEntry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	require.NoError(t, store.Set(ctx, "bad", []byte("{not json"), time.Minute))

	var out map[string]any
	ok, err := GetJSON(ctx, store, "bad", &out)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestNoop(t *testing.T) {
	var s Store = Noop{}
	require.NoError(t, s.Set(context.Background(), "k", []byte("v"), time.Minute))
	_, ok, err := s.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "none", s.Name())
}

func TestStoresImplementInterface(t *testing.T) {
	var _ Store = (*MemoryStore)(nil)
	var _ Store = (*RedisStore)(nil)
	var _ Store = (*PostgresStore)(nil)
}
