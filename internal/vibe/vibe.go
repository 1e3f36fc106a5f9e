// Package vibe classifies venues and areas with keyword lists.
//
// Profiles are bag-of-words heuristics: each dimension counts keyword matches in a
// text corpus, divides by the keyword list length and caps at 1. The keyword lists
// are versioned YAML so tests and deployments can substitute their own.
package vibe

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

//go:embed keywords.yaml
var defaultKeywordsYAML []byte

// ErrInvalidKeywords is returned when a keyword file is malformed or has an empty list.
var ErrInvalidKeywords = errors.New("invalid vibe keywords")

// Keywords holds one keyword list per vibe dimension.
type Keywords struct {
	Version       string   `yaml:"version" json:"version"`
	Artsy         []string `yaml:"artsy" json:"artsy"`
	Trendy        []string `yaml:"trendy" json:"trendy"`
	Upscale       []string `yaml:"upscale" json:"upscale"`
	Entertainment []string `yaml:"entertainment" json:"entertainment"`
}

// Profile is a vibe classification; every dimension is in [0, 1].
type Profile struct {
	Artsy         float64 `json:"artsy"`
	Trendy        float64 `json:"trendy"`
	Upscale       float64 `json:"upscale"`
	Entertainment float64 `json:"entertainment"`
}

// Default returns the embedded keyword lists.
func Default() *Keywords {
	k, err := Parse(defaultKeywordsYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded vibe keywords: %v", err))
	}
	return k
}

// Load reads keyword lists from a YAML file.
func Load(path string) (*Keywords, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keywords %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and normalizes keyword lists from YAML.
func Parse(data []byte) (*Keywords, error) {
	var k Keywords
	if err := yaml.Unmarshal(data, &k); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeywords, err)
	}

	lists := map[string]*[]string{
		"artsy":         &k.Artsy,
		"trendy":        &k.Trendy,
		"upscale":       &k.Upscale,
		"entertainment": &k.Entertainment,
	}
	for name, list := range lists {
		*list = normalizeList(*list)
		if len(*list) == 0 {
			return nil, fmt.Errorf("%w: %s list is empty", ErrInvalidKeywords, name)
		}
	}

	return &k, nil
}

// Profile scores the combined texts against every keyword list.
func (k *Keywords) Profile(texts ...string) Profile {
	corpus := make([][]string, 0, len(texts))
	for _, t := range texts {
		if words := strings.Fields(normalize(t)); len(words) > 0 {
			corpus = append(corpus, words)
		}
	}

	return Profile{
		Artsy:         score(corpus, k.Artsy),
		Trendy:        score(corpus, k.Trendy),
		Upscale:       score(corpus, k.Upscale),
		Entertainment: score(corpus, k.Entertainment),
	}
}

// Polish places the profile on the artsy (0) to polished (1) axis.
// A profile with neither signal is neutral (0.5).
func (p Profile) Polish() float64 {
	total := p.Artsy + p.Upscale
	if total == 0 {
		return 0.5
	}
	return p.Upscale / total
}

// ArtsyLeaning reports whether the artsy signal outweighs the upscale one.
func (p Profile) ArtsyLeaning() bool {
	return p.Artsy > p.Upscale
}

// Dominant returns the name of the strongest dimension, or "" for an empty profile.
// Ties resolve in the order artsy, trendy, upscale, entertainment.
func (p Profile) Dominant() string {
	best, name := 0.0, ""
	for _, d := range []struct {
		name  string
		value float64
	}{
		{"artsy", p.Artsy},
		{"trendy", p.Trendy},
		{"upscale", p.Upscale},
		{"entertainment", p.Entertainment},
	} {
		if d.value > best {
			best, name = d.value, d.name
		}
	}
	return name
}

// score counts whole-word keyword occurrences across the corpus texts.
// Texts are matched separately so a phrase never spans two texts.
func score(corpus [][]string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}

	matches := 0
	for _, kw := range keywords {
		phrase := strings.Fields(kw)
		for _, words := range corpus {
			matches += countPhrase(words, phrase)
		}
	}

	return min(float64(matches)/float64(len(keywords)), 1)
}

func countPhrase(words, phrase []string) int {
	n := 0
	for i := 0; i+len(phrase) <= len(words); i++ {
		match := true
		for j, p := range phrase {
			if words[i+j] != p {
				match = false
				break
			}
		}
		if match {
			n++
		}
	}
	return n
}

// normalize lowercases text and reduces it to single-space separated words.
func normalize(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, " ")
}

func normalizeList(list []string) []string {
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, kw := range list {
		n := normalize(strings.ReplaceAll(kw, "_", " "))
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
