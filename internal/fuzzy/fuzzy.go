// Package fuzzy scores approximate string matches between OCR output and
// literal template keywords.
package fuzzy

import (
	"unicode/utf8"

	"github.com/hbollon/go-edlib"
)

// Ratio returns the normalized indel similarity of a and b in [0, 100]:
// 200 * LCS(a, b) / (len(a) + len(b)), with lengths counted in runes.
// Two empty strings are identical (100).
func Ratio(a, b string) float64 {
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 100
	}
	if a == b {
		return 100
	}
	lcs := edlib.LCS(a, b)
	return 200 * float64(lcs) / float64(total)
}

// Match is the best candidate found by Best.
type Match struct {
	Index int
	Text  string
	Score float64
}

// Best returns the highest scoring candidate for target. Ties resolve to
// the earliest candidate. ok is false when no candidate reaches threshold.
func Best(target string, candidates []string, threshold float64) (Match, bool) {
	best := Match{Index: -1}
	for i, c := range candidates {
		score := Ratio(target, c)
		if score > best.Score || best.Index < 0 {
			best = Match{Index: i, Text: c, Score: score}
		}
	}
	if best.Index < 0 || best.Score < threshold {
		return best, false
	}
	return best, true
}

// Any reports whether any candidate reaches threshold against target.
func Any(target string, candidates []string, threshold float64) bool {
	for _, c := range candidates {
		if Ratio(target, c) >= threshold {
			return true
		}
	}
	return false
}
