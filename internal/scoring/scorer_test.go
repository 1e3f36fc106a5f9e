package scoring

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetmidway/midway/internal/cluster"
	"github.com/meetmidway/midway/internal/geo"
	"github.com/meetmidway/midway/internal/places"
	"github.com/meetmidway/midway/internal/vibe"
)

func testKeywords(t *testing.T) *vibe.Keywords {
	t.Helper()
	k, err := vibe.Parse([]byte(`
version: test
artsy: [art, gallery, mural, vintage]
trendy: [brewery]
upscale: [wine, lounge, cocktail, elegant]
entertainment: [karaoke]
`))
	require.NoError(t, err)
	return k
}

func intPtr(i int) *int { return &i }

var (
	originA = geo.Coordinate{Lat: 37.80, Lng: -122.30}
	originB = geo.Coordinate{Lat: 37.80, Lng: -122.20}
)

func TestDistanceBalance_Symmetric(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		p := geo.Coordinate{Lat: 37 + rng.Float64(), Lng: -123 + rng.Float64()}
		a := geo.Coordinate{Lat: 37 + rng.Float64(), Lng: -123 + rng.Float64()}
		b := geo.Coordinate{Lat: 37 + rng.Float64(), Lng: -123 + rng.Float64()}
		assert.Equal(t, DistanceBalance(p, a, b), DistanceBalance(p, b, a))
	}
}

func TestDistanceBalance_Equidistant(t *testing.T) {
	// On the meridian bisecting two points on the same parallel
	p := geo.Coordinate{Lat: 37.9, Lng: -122.25}
	a := geo.Coordinate{Lat: 37.8, Lng: -122.30}
	b := geo.Coordinate{Lat: 37.8, Lng: -122.20}

	if geo.Distance(p, a) == geo.Distance(p, b) {
		assert.Equal(t, 1.0, DistanceBalance(p, a, b))
	} else {
		assert.InDelta(t, 1.0, DistanceBalance(p, a, b), 1e-9)
	}
}

func TestDistanceBalance_CoincidentOrigins(t *testing.T) {
	a := geo.Coordinate{Lat: 10, Lng: 10}
	for _, p := range []geo.Coordinate{{Lat: 0, Lng: 0}, {Lat: 10, Lng: 10}, {Lat: -45, Lng: 170}} {
		assert.Equal(t, 1.0, DistanceBalance(p, a, a))
	}
}

func TestDistanceBalance_AtOrigin(t *testing.T) {
	assert.InDelta(t, 0, DistanceBalance(originA, originA, originB), 1e-9)
	// Beyond an origin on the same parallel the imbalance approaches the full span
	assert.InDelta(t, 0, DistanceBalance(geo.Coordinate{Lat: 37.80, Lng: -122.40}, originA, originB), 1e-6)
}

func TestVibrancy(t *testing.T) {
	s := NewScorer(DefaultConfig(), testKeywords(t))

	assert.Zero(t, s.vibrancy(nil))

	one := []*places.Venue{{Rating: 4}}
	assert.InDelta(t, 0.8*0.2+0.2*0.8, s.vibrancy(one), 1e-12)

	var five []*places.Venue
	for i := 0; i < 7; i++ {
		five = append(five, &places.Venue{Rating: 5})
	}
	assert.InDelta(t, 1, s.vibrancy(five), 1e-12)
}

func TestScore_NeighborsWithinRadiusOnly(t *testing.T) {
	s := NewScorer(DefaultConfig(), testKeywords(t))

	target := places.Venue{ID: "t", Location: geo.Coordinate{Lat: 37.8, Lng: -122.25}, Rating: 4}
	// near is ~111m away, far ~1.1km
	candidates := []places.Venue{
		target,
		{ID: "near", Location: geo.Coordinate{Lat: 37.801, Lng: -122.25}, Rating: 5},
		{ID: "far", Location: geo.Coordinate{Lat: 37.81, Lng: -122.25}, Rating: 5},
	}

	got := s.neighbors(&candidates[0], candidates)
	require.Len(t, got, 1)
	assert.Equal(t, "near", got[0].ID)
}

func TestScore_ArtsyScenario(t *testing.T) {
	s := NewScorer(DefaultConfig(), testKeywords(t))
	prefs := Preferences{VenueStyle: 0, NeighborhoodVibe: 0, LocationPriority: 0.2}

	strategy := SelectStrategy(prefs.LocationPriority)
	require.Equal(t, EqualDistance, strategy.Name)
	require.True(t, s.PrefersArtsy(prefs))

	// Artsy keywords, expensive: style = (polish 0 + 4/4) / 2 = 0.5
	v := places.Venue{
		ID:          "g",
		Name:        "Mural Gallery",
		Location:    geo.Coordinate{Lat: 37.8, Lng: -122.25},
		Rating:      4.5,
		ReviewCount: 200,
		PriceLevel:  intPtr(4),
		Types:       []string{"art_gallery"},
	}

	score := s.Score(&v, []places.Venue{v}, originA, originB, prefs, strategy)

	// style match 0.5, neighborhood match 1 -> 0.75, boosted x1.3
	assert.True(t, score.ArtsyBoosted)
	assert.InDelta(t, 0.75*1.3, score.VibeMatch, 1e-12)
	assert.InDelta(t, 0.9, score.BaseQuality, 1e-12)
	assert.Zero(t, score.DistrictVibrancy)

	w := strategy.Weights.Resolve(true)
	want := score.DistanceBalance*w.Distance + score.DistrictVibrancy*w.Neighborhood + score.VibeMatch*w.Vibe + score.BaseQuality*w.Quality
	assert.InDelta(t, want, score.Final, 1e-12)
}

func TestScore_NoBoostWithoutArtsyPreference(t *testing.T) {
	s := NewScorer(DefaultConfig(), testKeywords(t))
	prefs := Preferences{VenueStyle: 0, NeighborhoodVibe: 0.8, LocationPriority: 0.5}

	v := places.Venue{ID: "g", Name: "Mural Gallery", PriceLevel: intPtr(4), Rating: 4}
	score := s.Score(&v, nil, originA, originB, prefs, SelectStrategy(prefs.LocationPriority))

	// style 0.5 vs 0 -> 0.5; area polish 0 vs 0.8 -> 0.2
	assert.False(t, score.ArtsyBoosted)
	assert.InDelta(t, 0.35, score.VibeMatch, 1e-12)
}

func TestScore_NoBoostForUpscaleVenue(t *testing.T) {
	s := NewScorer(DefaultConfig(), testKeywords(t))
	prefs := Preferences{VenueStyle: 1, NeighborhoodVibe: 0, LocationPriority: 0.5}

	v := places.Venue{ID: "w", Name: "Elegant Wine Lounge", Rating: 4}
	score := s.Score(&v, nil, originA, originB, prefs, SelectStrategy(prefs.LocationPriority))

	// polish 1: style match 1, neighborhood match 0 -> 0.5
	assert.False(t, score.ArtsyBoosted)
	assert.InDelta(t, 0.5, score.VibeMatch, 1e-12)
}

func TestScore_MissingPriceUsesKeywordsOnly(t *testing.T) {
	s := NewScorer(DefaultConfig(), testKeywords(t))
	prefs := Preferences{VenueStyle: 0.5, NeighborhoodVibe: 0.5, LocationPriority: 0.5}

	// Neutral venue: polish 0.5 everywhere
	v := places.Venue{ID: "n", Name: "Corner Spot", Rating: 3}
	score := s.Score(&v, nil, originA, originB, prefs, SelectStrategy(prefs.LocationPriority))
	assert.InDelta(t, 1, score.VibeMatch, 1e-12)
}

func TestScore_FinalInUnitIntervalAndDeterministic(t *testing.T) {
	s := NewScorer(DefaultConfig(), testKeywords(t))
	rng := rand.New(rand.NewSource(99))

	names := []string{"Art Bar", "Wine Lounge", "Karaoke Palace", "Vintage Mural Cafe", "Brewery", "Plain"}
	var candidates []places.Venue
	for i := 0; i < 40; i++ {
		v := places.Venue{
			ID:          string(rune('A' + i)),
			Name:        names[rng.Intn(len(names))],
			Location:    geo.Coordinate{Lat: 37.79 + rng.Float64()*0.02, Lng: -122.26 + rng.Float64()*0.02},
			Rating:      rng.Float64() * 5,
			ReviewCount: rng.Intn(1000),
		}
		if rng.Intn(2) == 0 {
			v.PriceLevel = intPtr(rng.Intn(5))
		}
		candidates = append(candidates, v)
	}

	for trial := 0; trial < 50; trial++ {
		prefs := Preferences{VenueStyle: rng.Float64(), NeighborhoodVibe: rng.Float64(), LocationPriority: rng.Float64()}
		strategy := SelectStrategy(prefs.LocationPriority)

		for i := range candidates {
			score := s.Score(&candidates[i], candidates, originA, originB, prefs, strategy)
			for _, c := range []float64{score.DistanceBalance, score.DistrictVibrancy, score.VibeMatch, score.BaseQuality, score.Final} {
				assert.GreaterOrEqual(t, c, 0.0)
				assert.LessOrEqual(t, c, 1.0)
			}
			assert.Equal(t, score, s.Score(&candidates[i], candidates, originA, originB, prefs, strategy))
		}
	}
}

func TestRank_StableTieBreak(t *testing.T) {
	scored := []ScoredVenue{
		{Venue: places.Venue{ID: "a"}, Score: VenueScore{Final: 0.5}, Index: 0},
		{Venue: places.Venue{ID: "b"}, Score: VenueScore{Final: 0.9}, Index: 1},
		{Venue: places.Venue{ID: "c"}, Score: VenueScore{Final: 0.5}, Index: 2},
		{Venue: places.Venue{ID: "d"}, Score: VenueScore{Final: 0.7}, Index: 3},
	}

	Rank(scored)

	ids := make([]string, len(scored))
	for i, s := range scored {
		ids[i] = s.Venue.ID
	}
	assert.Equal(t, []string{"b", "d", "a", "c"}, ids)
}

func TestScoreAll_KeepsIndex(t *testing.T) {
	s := NewScorer(DefaultConfig(), testKeywords(t))
	candidates := []places.Venue{{ID: "a", Rating: 4}, {ID: "b", Rating: 3}}

	scored := s.ScoreAll(candidates, originA, originB, DefaultPreferences(), SelectStrategy(0.5))
	require.Len(t, scored, 2)
	assert.Equal(t, 0, scored[0].Index)
	assert.Equal(t, "b", scored[1].Venue.ID)
}

func TestScoreCluster(t *testing.T) {
	s := NewScorer(DefaultConfig(), testKeywords(t))

	cl := cluster.Cluster{
		Center:        geo.Coordinate{Lat: 37.8, Lng: -122.25},
		Density:       0.5,
		AverageRating: 4.5,
		Vibe:          vibe.Profile{Artsy: 0.6, Upscale: 0.2},
	}
	prefs := Preferences{VenueStyle: 0.2, NeighborhoodVibe: 0.2, LocationPriority: 0.1}

	score := s.ScoreCluster(&cl, originA, originB, prefs, SelectStrategy(prefs.LocationPriority))

	// polish 0.25 -> matches 0.95 each, boosted x1.3 and clamped
	assert.True(t, score.ArtsyBoosted)
	assert.Equal(t, 1.0, score.VibeMatch)
	assert.InDelta(t, 0.8*0.5+0.2*0.9, score.DistrictVibrancy, 1e-12)
	assert.InDelta(t, 0.9, score.BaseQuality, 1e-12)
	assert.InDelta(t, 1, score.DistanceBalance, 1e-6)
	assert.GreaterOrEqual(t, score.Final, 0.0)
	assert.LessOrEqual(t, score.Final, 1.0)
}

func TestNewScorer_Defaults(t *testing.T) {
	s := NewScorer(Config{}, nil)
	assert.Equal(t, DefaultConfig(), s.Config())
}
