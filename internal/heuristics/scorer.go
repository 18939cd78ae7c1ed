// Package heuristics ranks the applications found inside an artifact to pick
// the one that belongs to the product being installed.
package heuristics

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// penaltyPatterns mark bundles that ship next to the main application
var penaltyPatterns = []string{
	"uninstall", "updater", "update", "helper", "crash",
	"reporter", "installer", "setup", "agent", "daemon",
	"service", "monitor", "readme", "license",
}

// Scorer ranks application candidates
type Scorer struct {
	Logger *zerolog.Logger
}

// NewScorer creates a Scorer
func NewScorer(logger *zerolog.Logger) *Scorer {
	return &Scorer{Logger: logger}
}

// ChooseBest returns the candidate most likely to be productName's main
// application. Ties keep the earlier candidate.
func (s *Scorer) ChooseBest(candidates []string, productName, root string) string {
	if len(candidates) == 0 {
		return ""
	}
	if len(candidates) == 1 {
		return candidates[0]
	}

	scored := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		score := s.Score(c, productName, root)
		scored = append(scored, Scored{Path: c, Score: score})

		if s.Logger != nil {
			s.Logger.Debug().
				Str("candidate", c).
				Int("score", score).
				Msg("scored application candidate")
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored[0].Path
}

// Score assigns a score to one candidate path below root
func (s *Scorer) Score(path, productName, root string) int {
	score := 0
	name := strings.ToLower(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	variants := NameVariants(productName)

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	depth := len(strings.Split(filepath.ToSlash(rel), "/"))

	// shallow candidates first: depth 1 scores +50, depth 2 +40...
	score += (6 - depth) * 10

	for _, v := range variants {
		if name == v {
			score += 120
			break
		}
	}
	for _, v := range variants {
		if len(v) >= 3 && strings.Contains(name, v) {
			score += 60
			break
		}
	}

	for _, pattern := range penaltyPatterns {
		if strings.Contains(name, pattern) {
			score -= 200
		}
	}

	return score
}

// NameVariants returns the lowercase spellings a product name shows up as in
// file names: as is, without separators, dashed and underscored.
func NameVariants(productName string) []string {
	base := strings.ToLower(strings.TrimSpace(productName))
	if base == "" {
		return nil
	}

	fields := strings.FieldsFunc(base, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '.'
	})

	variants := []string{base}
	for _, v := range []string{
		strings.Join(fields, ""),
		strings.Join(fields, "-"),
		strings.Join(fields, "_"),
		strings.Join(fields, " "),
	} {
		if v != "" && !contains(variants, v) {
			variants = append(variants, v)
		}
	}
	return variants
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
