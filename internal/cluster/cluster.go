// Package cluster groups candidate venues into spatial areas.
package cluster

import (
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/meetmidway/midway/internal/geo"
	"github.com/meetmidway/midway/internal/places"
	"github.com/meetmidway/midway/internal/vibe"
)

// Config holds the clustering policy.
type Config struct {
	// RadiusMeters is the neighbor radius around a seed venue (default: 500).
	RadiusMeters float64

	// MinNeighbors is how many neighbors a seed needs to form a cluster (default: 2).
	MinNeighbors int

	// FallbackCount is how many singleton clusters are emitted when none form (default: 5).
	FallbackCount int

	// DensitySaturation is the member count at which density reaches 1 (default: 8).
	DensitySaturation int
}

// DefaultConfig returns the default clustering policy.
func DefaultConfig() Config {
	return Config{
		RadiusMeters:      500,
		MinNeighbors:      2,
		FallbackCount:     5,
		DensitySaturation: 8,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.RadiusMeters <= 0 {
		c.RadiusMeters = d.RadiusMeters
	}
	if c.MinNeighbors <= 0 {
		c.MinNeighbors = d.MinNeighbors
	}
	if c.FallbackCount <= 0 {
		c.FallbackCount = d.FallbackCount
	}
	if c.DensitySaturation <= 0 {
		c.DensitySaturation = d.DensitySaturation
	}
	return c
}

// Cluster is a spatially co-located group of venues. Clusters are built per
// search and never modified afterwards.
type Cluster struct {
	ID      string         `json:"id"`
	Center  geo.Coordinate `json:"center"`
	Members []places.Venue `json:"members"`
	// RadiusMeters is the largest member distance from Center.
	RadiusMeters float64 `json:"radiusMeters"`

	// Density is the member count relative to the saturation size, in [0, 1].
	Density       float64 `json:"density"`
	AverageRating float64 `json:"averageRating"`
	// Variety is the share of distinct primary categories among members, in [0, 1].
	Variety float64      `json:"variety"`
	Vibe    vibe.Profile `json:"vibe"`
	// Fallback marks singleton clusters emitted because no real cluster formed.
	Fallback bool `json:"fallback,omitempty"`
}

// Size returns the number of members.
func (c *Cluster) Size() int {
	return len(c.Members)
}

// MemberIDs returns the sorted member venue ids.
func (c *Cluster) MemberIDs() []string {
	ids := make([]string, len(c.Members))
	for i := range c.Members {
		ids[i] = c.Members[i].ID
	}
	sort.Strings(ids)
	return ids
}

// Clusterer groups venues using a fixed-radius neighbor relation.
type Clusterer struct {
	cfg      Config
	keywords *vibe.Keywords
}

// NewClusterer creates a clusterer. Zero config fields take defaults; nil
// keywords selects the embedded keyword lists.
func NewClusterer(cfg Config, keywords *vibe.Keywords) *Clusterer {
	if keywords == nil {
		keywords = vibe.Default()
	}
	return &Clusterer{cfg: cfg.withDefaults(), keywords: keywords}
}

// Config returns the effective configuration.
func (c *Clusterer) Config() Config {
	return c.cfg
}

// FindClusters groups venues into clusters.
//
// Seeds are visited in descending rating*reviewCount order, ties by input index.
// A seed whose unprocessed neighbors within radiusMeters number at least
// MinNeighbors forms a cluster with them. If no cluster forms, the top
// FallbackCount venues each become a singleton cluster. radiusMeters <= 0 uses
// the configured radius. The result is deterministic for a given input order.
func (c *Clusterer) FindClusters(venues []places.Venue, radiusMeters float64) []Cluster {
	if len(venues) == 0 {
		return nil
	}
	if radiusMeters <= 0 {
		radiusMeters = c.cfg.RadiusMeters
	}

	order := seedOrder(venues)
	processed := make([]bool, len(venues))

	var clusters []Cluster
	for _, seed := range order {
		if processed[seed] {
			continue
		}

		var neighbors []int
		for _, other := range order {
			if other == seed || processed[other] {
				continue
			}
			if geo.Distance(venues[seed].Location, venues[other].Location) <= radiusMeters {
				neighbors = append(neighbors, other)
			}
		}

		if len(neighbors) < c.cfg.MinNeighbors {
			continue
		}

		members := make([]places.Venue, 0, len(neighbors)+1)
		members = append(members, venues[seed])
		processed[seed] = true
		for _, n := range neighbors {
			members = append(members, venues[n])
			processed[n] = true
		}
		clusters = append(clusters, c.build(members, false))
	}

	if len(clusters) == 0 {
		limit := min(c.cfg.FallbackCount, len(order))
		for _, idx := range order[:limit] {
			clusters = append(clusters, c.build([]places.Venue{venues[idx]}, true))
		}
	}

	return dedupe(clusters)
}

// seedOrder returns venue indexes sorted by rating*reviewCount descending, stable on index.
func seedOrder(venues []places.Venue) []int {
	order := make([]int, len(venues))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return support(&venues[order[a]]) > support(&venues[order[b]])
	})
	return order
}

func support(v *places.Venue) float64 {
	return v.Rating * float64(v.ReviewCount)
}

// build derives a cluster's profile from its members.
func (c *Clusterer) build(members []places.Venue, fallback bool) Cluster {
	coords := make([]geo.Coordinate, len(members))
	var ratingSum float64
	var corpus []string
	categories := make(map[string]struct{})

	for i := range members {
		m := &members[i]
		coords[i] = m.Location
		ratingSum += m.Rating
		corpus = append(corpus, m.Corpus()...)
		categories[primaryCategory(m)] = struct{}{}
	}

	center := geo.Mean(coords)
	var radius float64
	for _, coord := range coords {
		radius = max(radius, geo.Distance(center, coord))
	}

	n := len(members)
	cl := Cluster{
		Center:        center,
		Members:       members,
		RadiusMeters:  radius,
		Density:       geo.Clamp01(float64(n) / float64(c.cfg.DensitySaturation)),
		AverageRating: ratingSum / float64(n),
		Variety:       float64(len(categories)) / float64(n),
		Vibe:          c.keywords.Profile(corpus...),
		Fallback:      fallback,
	}
	cl.ID = clusterID(cl.MemberIDs())
	return cl
}

// primaryCategory is the first category tag, or "other".
func primaryCategory(v *places.Venue) string {
	if len(v.Types) == 0 {
		return "other"
	}
	return v.Types[0]
}

// clusterID is derived from the sorted member ids so equal member sets share an id.
func clusterID(ids []string) string {
	h := fnv.New64a()
	for _, id := range ids {
		h.Write([]byte(id))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("area-%016x", h.Sum64())
}

// dedupe drops clusters whose member-id set (and so id) equals an earlier cluster's.
func dedupe(clusters []Cluster) []Cluster {
	seen := make(map[string]struct{}, len(clusters))
	out := clusters[:0]
	for _, cl := range clusters {
		if _, ok := seen[cl.ID]; ok {
			continue
		}
		seen[cl.ID] = struct{}{}
		out = append(out, cl)
	}
	return out
}
