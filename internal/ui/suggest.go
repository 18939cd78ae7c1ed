package ui

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// maxSuggestionDistance bounds the edit distance of a "did you mean" hint
const maxSuggestionDistance = 3

// Suggest returns the names closest to input, best first.
// A name qualifies when input fuzzy-matches it or is a few edits away.
func Suggest(input string, names []string) []string {
	needle := strings.ToLower(strings.TrimSpace(input))
	if needle == "" {
		return nil
	}

	type scored struct {
		name  string
		score int
	}
	var hits []scored
	for _, name := range names {
		lower := strings.ToLower(name)
		switch {
		case fuzzy.MatchNormalizedFold(needle, name):
			hits = append(hits, scored{name: name, score: fuzzy.RankMatchNormalizedFold(needle, name)})
		default:
			if d := fuzzy.LevenshteinDistance(needle, lower); d <= maxSuggestionDistance {
				hits = append(hits, scored{name: name, score: d})
			}
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score < hits[j].score })

	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.name
	}
	return out
}
