package describe

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetmidway/midway/internal/cache"
	"github.com/meetmidway/midway/internal/places"
	"github.com/meetmidway/midway/internal/provider/resilience"
)

func testVenues() []places.Venue {
	level := 2
	return []places.Venue{
		{ID: "v1", Name: "The Gallery Bar", Rating: 4.6, ReviewCount: 320, PriceLevel: &level, Types: []string{"bar", "art_gallery"}, Vicinity: "Mission"},
		{ID: "v2", Name: "Corner Pub", Rating: 4.2, ReviewCount: 90, Types: []string{"bar"}},
	}
}

// chatServer returns an httptest server answering chat completions with content.
func chatServer(t *testing.T, status int, content string, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"upstream failure","type":"server_error"}}`))
			return
		}

		body, err := json.Marshal(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1760000000,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
		require.NoError(t, err)
		_, _ = w.Write(body)
	}))
}

func newTestDescriber(url string) *OpenAIDescriber {
	return NewOpenAIDescriber(OpenAIConfig{
		APIKey:  "test-key",
		BaseURL: url + "/v1",
		Logger:  zerolog.Nop(),
	})
}

func TestOpenAIDescriber_MapsDescriptionsByID(t *testing.T) {
	var calls atomic.Int32
	content := `{"descriptions":[{"id":"v2","description":"A relaxed local pub."},{"id":"v1","description":" Cocktails among rotating art shows. "}]}`
	server := chatServer(t, http.StatusOK, content, &calls)
	defer server.Close()

	got, err := newTestDescriber(server.URL).DescribeVenues(context.Background(), testVenues(), places.ActivityBar)
	require.NoError(t, err)
	assert.Equal(t, []string{"Cocktails among rotating art shows.", "A relaxed local pub."}, got)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenAIDescriber_MissingEntriesAreEmpty(t *testing.T) {
	var calls atomic.Int32
	server := chatServer(t, http.StatusOK, `{"descriptions":[{"id":"v1","description":"Art bar."}]}`, &calls)
	defer server.Close()

	got, err := newTestDescriber(server.URL).DescribeVenues(context.Background(), testVenues(), places.ActivityBar)
	require.NoError(t, err)
	assert.Equal(t, []string{"Art bar.", ""}, got)
}

func TestOpenAIDescriber_EmptyInputSkipsCall(t *testing.T) {
	var calls atomic.Int32
	server := chatServer(t, http.StatusOK, `{}`, &calls)
	defer server.Close()

	got, err := newTestDescriber(server.URL).DescribeVenues(context.Background(), nil, places.ActivityCafe)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, int32(0), calls.Load())
}

func TestOpenAIDescriber_ServerErrorIsUnavailable(t *testing.T) {
	var calls atomic.Int32
	server := chatServer(t, http.StatusInternalServerError, "", &calls)
	defer server.Close()

	_, err := newTestDescriber(server.URL).DescribeVenues(context.Background(), testVenues(), places.ActivityBar)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.True(t, errors.Is(err, resilience.ErrCollaboratorUnavailable))
}

func TestOpenAIDescriber_BadRequestIsNotUnavailable(t *testing.T) {
	var calls atomic.Int32
	server := chatServer(t, http.StatusBadRequest, "", &calls)
	defer server.Close()

	_, err := newTestDescriber(server.URL).DescribeVenues(context.Background(), testVenues(), places.ActivityBar)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnavailable))
}

func TestOpenAIDescriber_MalformedContent(t *testing.T) {
	var calls atomic.Int32
	server := chatServer(t, http.StatusOK, "not json", &calls)
	defer server.Close()

	_, err := newTestDescriber(server.URL).DescribeVenues(context.Background(), testVenues(), places.ActivityBar)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse description response")
}

func TestUserPrompt_IncludesVenueFacts(t *testing.T) {
	prompt := userPrompt(testVenues(), places.ActivityBar)
	assert.Contains(t, prompt, "Meetup type: bar")
	assert.Contains(t, prompt, "id: v1 | name: The Gallery Bar | rating: 4.6 (320 reviews) | price: $$")
	assert.Contains(t, prompt, "categories: bar, art_gallery")
	assert.Contains(t, prompt, "area: Mission")
	assert.NotContains(t, prompt, "id: v2 | name: Corner Pub | rating: 4.2 (90 reviews) | price")
}

type countingDescriber struct {
	out   []string
	err   error
	calls atomic.Int32
}

func (c *countingDescriber) DescribeVenues(ctx context.Context, venues []places.Venue, activity places.ActivityType) ([]string, error) {
	c.calls.Add(1)
	return c.out, c.err
}

func TestCachedDescriber_HitsCache(t *testing.T) {
	inner := &countingDescriber{out: []string{"one", "two"}}
	cached := NewCachedDescriber(inner, cache.NewMemoryStore(0), 0, zerolog.Nop())

	first, err := cached.DescribeVenues(context.Background(), testVenues(), places.ActivityBar)
	require.NoError(t, err)
	second, err := cached.DescribeVenues(context.Background(), testVenues(), places.ActivityBar)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), inner.calls.Load())

	// A different activity is a different key.
	_, err = cached.DescribeVenues(context.Background(), testVenues(), places.ActivityCafe)
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestCachedDescriber_ErrorsAreNotCached(t *testing.T) {
	inner := &countingDescriber{err: ErrUnavailable}
	cached := NewCachedDescriber(inner, cache.NewMemoryStore(0), 0, zerolog.Nop())

	for i := 0; i < 2; i++ {
		_, err := cached.DescribeVenues(context.Background(), testVenues(), places.ActivityBar)
		require.ErrorIs(t, err, ErrUnavailable)
	}
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestCachedDescriber_NoopStoreAlwaysCallsThrough(t *testing.T) {
	inner := &countingDescriber{out: []string{"one", "two"}}
	cached := NewCachedDescriber(inner, cache.Noop{}, 0, zerolog.Nop())

	for i := 0; i < 3; i++ {
		_, err := cached.DescribeVenues(context.Background(), testVenues(), places.ActivityBar)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), inner.calls.Load())
}
