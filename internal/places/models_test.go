package places

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseActivityType(t *testing.T) {
	got, err := ParseActivityType(" Bar ")
	require.NoError(t, err)
	assert.Equal(t, ActivityBar, got)

	_, err = ParseActivityType("nightclub")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestVenue_WithDetails_DegradesPerField(t *testing.T) {
	open := true
	v := Venue{ID: "a", Name: "Alpha", PriceLevel: intPtr(1)}

	enriched := v.WithDetails(&Details{
		Photos:  []Photo{{Reference: "p1", Width: 400, Height: 300}},
		OpenNow: &open,
	})

	// Missing price in details keeps the original; present fields are applied
	require.NotNil(t, enriched.PriceLevel)
	assert.Equal(t, 1, *enriched.PriceLevel)
	assert.Len(t, enriched.Photos, 1)
	require.NotNil(t, enriched.OpenNow)
	assert.True(t, *enriched.OpenNow)

	// Source venue is untouched
	assert.Empty(t, v.Photos)
	assert.Nil(t, v.OpenNow)

	assert.Equal(t, v, v.WithDetails(nil))
}

func TestVenue_Corpus(t *testing.T) {
	v := Venue{Name: "The Gallery Bar", Types: []string{"art_gallery", "bar"}, Vicinity: "Mission District"}
	assert.Equal(t, []string{"The Gallery Bar", "art gallery", "bar", "Mission District"}, v.Corpus())
}

func TestThresholds_Loosened(t *testing.T) {
	tests := []struct {
		name string
		in   Thresholds
		want Thresholds
	}{
		{name: "strict", in: Thresholds{MinRating: 4.3, MinReviews: 100}, want: Thresholds{MinRating: 4.0, MinReviews: 90}},
		{name: "hits floors", in: Thresholds{MinRating: 3.7, MinReviews: 20}, want: Thresholds{MinRating: 3.5, MinReviews: 15}},
		{name: "already below floors", in: Thresholds{MinRating: 3.0, MinReviews: 5}, want: Thresholds{MinRating: 3.0, MinReviews: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Loosened()
			assert.InDelta(t, tt.want.MinRating, got.MinRating, 1e-9)
			assert.Equal(t, tt.want.MinReviews, got.MinReviews)
		})
	}
}

func TestFilterByQuality(t *testing.T) {
	venues := []Venue{
		{ID: "a", Rating: 4.5, ReviewCount: 200},
		{ID: "b", Rating: 4.5, ReviewCount: 10},
		{ID: "c", Rating: 3.9, ReviewCount: 500},
		{ID: "d", Rating: 4.0, ReviewCount: 50},
	}

	got := FilterByQuality(venues, Thresholds{MinRating: 4.0, MinReviews: 50})
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "d", got[1].ID)
}
