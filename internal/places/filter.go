package places

// Thresholds are the minimum quality bar a venue must meet to be scored.
type Thresholds struct {
	MinRating  float64 `json:"minRating"`
	MinReviews int     `json:"minReviews"`
}

// Loosening steps and floors used when a search returns nothing.
const (
	loosenRatingStep  = 0.3
	loosenRatingFloor = 3.5
	loosenReviewStep  = 10
	loosenReviewFloor = 15
)

// Loosened returns thresholds relaxed by one step: rating -0.3 (floor 3.5)
// and reviews -10 (floor 15). Values already below a floor are kept.
func (t Thresholds) Loosened() Thresholds {
	out := t
	if t.MinRating > loosenRatingFloor {
		out.MinRating = max(t.MinRating-loosenRatingStep, loosenRatingFloor)
	}
	if t.MinReviews > loosenReviewFloor {
		out.MinReviews = max(t.MinReviews-loosenReviewStep, loosenReviewFloor)
	}
	return out
}

// Allows reports whether v meets the thresholds.
func (t Thresholds) Allows(v *Venue) bool {
	return v.Rating >= t.MinRating && v.ReviewCount >= t.MinReviews
}

// FilterByQuality returns the venues meeting t, preserving order.
func FilterByQuality(venues []Venue, t Thresholds) []Venue {
	out := make([]Venue, 0, len(venues))
	for i := range venues {
		if t.Allows(&venues[i]) {
			out = append(out, venues[i])
		}
	}
	return out
}

// Dedupe drops repeated venue ids, keeping the first occurrence.
func Dedupe(venues []Venue) []Venue {
	seen := make(map[string]struct{}, len(venues))
	out := make([]Venue, 0, len(venues))
	for _, v := range venues {
		if _, ok := seen[v.ID]; ok {
			continue
		}
		seen[v.ID] = struct{}{}
		out = append(out, v)
	}
	return out
}
