// Package matcher resolves noisy merchant descriptors to sponsors by fuzzy
// string similarity.
package matcher

import (
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"github.com/okian/fanspend/internal/domain/model"
	"github.com/okian/fanspend/internal/domain/sponsor"
)

// Threshold is the minimum similarity for a match to be accepted.
const Threshold = 0.6

// Match returns the most similar sponsor in idx for rawName. Ties go to the
// candidate supplied first. A blank name or an empty index is an immediate
// miss with confidence 0. Match has no side effects and may be called
// concurrently against the same index.
func Match(rawName string, idx *sponsor.Index) model.MatchResult {
	if idx.Len() == 0 {
		return model.MatchResult{}
	}
	key := compact(sponsor.Normalize(rawName))
	if key == "" {
		return model.MatchResult{}
	}

	best, bestScore := -1, -1.0
	for i := 0; i < idx.Len(); i++ {
		s := similarity(key, compact(idx.Candidate(i).Key))
		if s > bestScore {
			best, bestScore = i, s
			if s >= 1 {
				break
			}
		}
	}

	if bestScore < Threshold {
		return model.MatchResult{Confidence: bestScore}
	}
	c := idx.Candidate(best)
	return model.MatchResult{Sponsor: c.Name, League: c.League, Confidence: bestScore}
}

// Similarity scores two merchant names in [0,1] after normalization.
// Identical names score 1.
func Similarity(a, b string) float64 {
	return similarity(compact(sponsor.Normalize(a)), compact(sponsor.Normalize(b)))
}

// similarity is the Sørensen–Dice coefficient over character bigrams of
// already-compacted keys.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if len([]rune(a)) < 2 || len([]rune(b)) < 2 {
		return 0
	}
	s := strutil.Similarity(a, b, metrics.NewSorensenDice())
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	}
	return s
}

// compact drops the single spaces left by sponsor.Normalize so word
// boundaries do not contribute bigrams.
func compact(key string) string {
	return strings.ReplaceAll(key, " ", "")
}
