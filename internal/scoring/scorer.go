// Package scoring ranks candidate venues and areas.
//
// Every venue gets four component scores in [0, 1]: distance balance between the
// two origins, district vibrancy (density and quality of nearby candidates),
// vibe match against the user's sliders, and base quality. The final score is
// their weighted sum under the strategy's normalized weights. Scoring is a pure
// function of its inputs.
package scoring

import (
	"math"
	"sort"

	"github.com/meetmidway/midway/internal/cluster"
	"github.com/meetmidway/midway/internal/geo"
	"github.com/meetmidway/midway/internal/places"
	"github.com/meetmidway/midway/internal/vibe"
)

// Config holds the scoring constants.
type Config struct {
	// VibrancyRadiusMeters is the neighborhood examined for district vibrancy (default: 300).
	VibrancyRadiusMeters float64

	// VibrancySaturation is the neighbor count at which density reaches 1 (default: 5).
	VibrancySaturation int

	// VibrancyDensityWeight is the density share of vibrancy; the rest is neighbor quality (default: 0.8).
	VibrancyDensityWeight float64

	// ArtsyBoost multiplies the vibe match of artsy-leaning venues when the
	// user prefers artsy neighborhoods (default: 1.3).
	ArtsyBoost float64

	// ArtsyPreferenceThreshold is the neighborhoodVibe value below which the
	// user prefers artsy neighborhoods (default: 0.4).
	ArtsyPreferenceThreshold float64
}

// DefaultConfig returns the default scoring constants.
func DefaultConfig() Config {
	return Config{
		VibrancyRadiusMeters:     300,
		VibrancySaturation:       5,
		VibrancyDensityWeight:    0.8,
		ArtsyBoost:               1.3,
		ArtsyPreferenceThreshold: 0.4,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.VibrancyRadiusMeters <= 0 {
		c.VibrancyRadiusMeters = d.VibrancyRadiusMeters
	}
	if c.VibrancySaturation <= 0 {
		c.VibrancySaturation = d.VibrancySaturation
	}
	if c.VibrancyDensityWeight <= 0 || c.VibrancyDensityWeight > 1 {
		c.VibrancyDensityWeight = d.VibrancyDensityWeight
	}
	if c.ArtsyBoost <= 0 {
		c.ArtsyBoost = d.ArtsyBoost
	}
	if c.ArtsyPreferenceThreshold <= 0 {
		c.ArtsyPreferenceThreshold = d.ArtsyPreferenceThreshold
	}
	return c
}

// VenueScore is the set of scores attached to a venue. It never changes the venue itself.
type VenueScore struct {
	DistanceBalance  float64 `json:"distanceBalance"`
	DistrictVibrancy float64 `json:"districtVibrancy"`
	VibeMatch        float64 `json:"vibeMatch"`
	BaseQuality      float64 `json:"baseQuality"`
	Final            float64 `json:"final"`
	// ArtsyBoosted reports whether the artsy boost was applied to VibeMatch.
	ArtsyBoosted bool `json:"artsyBoosted"`
}

// Scorer computes venue and cluster scores.
type Scorer struct {
	cfg      Config
	keywords *vibe.Keywords
}

// NewScorer creates a scorer. Zero config fields take defaults; nil keywords
// selects the embedded keyword lists.
func NewScorer(cfg Config, keywords *vibe.Keywords) *Scorer {
	if keywords == nil {
		keywords = vibe.Default()
	}
	return &Scorer{cfg: cfg.withDefaults(), keywords: keywords}
}

// Config returns the effective configuration.
func (s *Scorer) Config() Config {
	return s.cfg
}

// PrefersArtsy reports whether the preferences ask for an artsy neighborhood.
func (s *Scorer) PrefersArtsy(p Preferences) bool {
	return p.NeighborhoodVibe < s.cfg.ArtsyPreferenceThreshold
}

// Score computes the scores of v against the full candidate set.
func (s *Scorer) Score(v *places.Venue, candidates []places.Venue, originA, originB geo.Coordinate, prefs Preferences, strategy Strategy) VenueScore {
	neighbors := s.neighbors(v, candidates)
	prefersArtsy := s.PrefersArtsy(prefs)

	vibeMatch, boosted := s.venueVibeMatch(v, neighbors, prefs, prefersArtsy)

	score := VenueScore{
		DistanceBalance:  DistanceBalance(v.Location, originA, originB),
		DistrictVibrancy: s.vibrancy(neighbors),
		VibeMatch:        vibeMatch,
		BaseQuality:      baseQuality(v.Rating),
		ArtsyBoosted:     boosted,
	}
	score.Final = combine(strategy.Weights.Resolve(prefersArtsy), score.DistanceBalance, score.DistrictVibrancy, score.VibeMatch, score.BaseQuality)
	return score
}

// DistanceBalance is 1 - |d(p,a) - d(p,b)| / d(a,b), clamped to [0, 1].
// It is 1 when the origins coincide.
func DistanceBalance(p, a, b geo.Coordinate) float64 {
	span := geo.Distance(a, b)
	if span == 0 {
		return 1
	}
	return geo.Clamp01(1 - math.Abs(geo.Distance(p, a)-geo.Distance(p, b))/span)
}

// neighbors returns the other candidates within the vibrancy radius of v.
func (s *Scorer) neighbors(v *places.Venue, candidates []places.Venue) []*places.Venue {
	var out []*places.Venue
	for i := range candidates {
		c := &candidates[i]
		if c.ID == v.ID {
			continue
		}
		if geo.Distance(v.Location, c.Location) <= s.cfg.VibrancyRadiusMeters {
			out = append(out, c)
		}
	}
	return out
}

// vibrancy combines neighbor density and mean neighbor rating. No neighbors scores 0.
func (s *Scorer) vibrancy(neighbors []*places.Venue) float64 {
	if len(neighbors) == 0 {
		return 0
	}

	var ratingSum float64
	for _, n := range neighbors {
		ratingSum += n.Rating
	}

	density := min(float64(len(neighbors))/float64(s.cfg.VibrancySaturation), 1)
	quality := baseQuality(ratingSum / float64(len(neighbors)))

	return geo.Clamp01(s.cfg.VibrancyDensityWeight*density + (1-s.cfg.VibrancyDensityWeight)*quality)
}

// venueVibeMatch compares the venue's own style and its surroundings against the sliders.
//
// The style axis averages the venue's keyword polish with its normalized price
// level when known, and is matched against venueStyle. The neighborhood axis is
// the keyword polish of the venue plus its neighbors, matched against
// neighborhoodVibe. Artsy-leaning venues are boosted when the user prefers artsy.
func (s *Scorer) venueVibeMatch(v *places.Venue, neighbors []*places.Venue, prefs Preferences, prefersArtsy bool) (float64, bool) {
	own := s.keywords.Profile(v.Corpus()...)

	style := own.Polish()
	if v.PriceLevel != nil {
		style = (style + float64(*v.PriceLevel)/4) / 2
	}

	corpus := v.Corpus()
	for _, n := range neighbors {
		corpus = append(corpus, n.Corpus()...)
	}
	area := s.keywords.Profile(corpus...)

	match := (preferenceMatch(style, prefs.VenueStyle) + preferenceMatch(area.Polish(), prefs.NeighborhoodVibe)) / 2
	return s.boost(match, own, prefersArtsy)
}

func (s *Scorer) boost(match float64, profile vibe.Profile, prefersArtsy bool) (float64, bool) {
	if prefersArtsy && profile.ArtsyLeaning() {
		return geo.Clamp01(match * s.cfg.ArtsyBoost), true
	}
	return geo.Clamp01(match), false
}

// preferenceMatch is 1 - |score - target|.
func preferenceMatch(score, target float64) float64 {
	return geo.Clamp01(1 - math.Abs(geo.Clamp01(score)-target))
}

func baseQuality(rating float64) float64 {
	return geo.Clamp01(rating / 5)
}

func combine(w Weights, distance, neighborhood, vibeMatch, quality float64) float64 {
	return geo.Clamp01(distance*w.Distance + neighborhood*w.Neighborhood + vibeMatch*w.Vibe + quality*w.Quality)
}

// ClusterScore is the score of an area as a whole.
type ClusterScore struct {
	DistanceBalance  float64 `json:"distanceBalance"`
	DistrictVibrancy float64 `json:"districtVibrancy"`
	VibeMatch        float64 `json:"vibeMatch"`
	BaseQuality      float64 `json:"baseQuality"`
	Final            float64 `json:"final"`
	ArtsyBoosted     bool    `json:"artsyBoosted"`
}

// ScoreCluster scores an area: balance at its center, vibrancy from its density
// and average rating, vibe match from its keyword profile, quality from its average rating.
func (s *Scorer) ScoreCluster(cl *cluster.Cluster, originA, originB geo.Coordinate, prefs Preferences, strategy Strategy) ClusterScore {
	prefersArtsy := s.PrefersArtsy(prefs)
	polish := cl.Vibe.Polish()

	match := (preferenceMatch(polish, prefs.VenueStyle) + preferenceMatch(polish, prefs.NeighborhoodVibe)) / 2
	vibeMatch, boosted := s.boost(match, cl.Vibe, prefersArtsy)

	score := ClusterScore{
		DistanceBalance:  DistanceBalance(cl.Center, originA, originB),
		DistrictVibrancy: geo.Clamp01(s.cfg.VibrancyDensityWeight*cl.Density + (1-s.cfg.VibrancyDensityWeight)*baseQuality(cl.AverageRating)),
		VibeMatch:        vibeMatch,
		BaseQuality:      baseQuality(cl.AverageRating),
		ArtsyBoosted:     boosted,
	}
	score.Final = combine(strategy.Weights.Resolve(prefersArtsy), score.DistanceBalance, score.DistrictVibrancy, score.VibeMatch, score.BaseQuality)
	return score
}

// ScoredVenue pairs a venue with its scores and its position in the candidate list.
type ScoredVenue struct {
	Venue places.Venue `json:"venue"`
	Score VenueScore   `json:"score"`
	// Index is the venue's position in the candidate list, used as the tie-break.
	Index int `json:"-"`
}

// ScoreAll scores every candidate.
func (s *Scorer) ScoreAll(candidates []places.Venue, originA, originB geo.Coordinate, prefs Preferences, strategy Strategy) []ScoredVenue {
	out := make([]ScoredVenue, len(candidates))
	for i := range candidates {
		out[i] = ScoredVenue{
			Venue: candidates[i],
			Score: s.Score(&candidates[i], candidates, originA, originB, prefs, strategy),
			Index: i,
		}
	}
	return out
}

// Rank sorts by final score descending; equal scores keep candidate-list order.
func Rank(scored []ScoredVenue) {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score.Final != scored[j].Score.Final {
			return scored[i].Score.Final > scored[j].Score.Final
		}
		return scored[i].Index < scored[j].Index
	})
}
