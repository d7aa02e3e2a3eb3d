package sponsor

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Normalize canonicalizes a merchant name for comparison: NFKC, Unicode
// case folding, and every run of non letter/digit runes collapsed to one
// space. "STARBUCKS #1234" becomes "starbucks 1234".
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	// Caser is stateful; one per call keeps Normalize safe for concurrent use.
	folded := cases.Fold().String(norm.NFKC.String(s))

	var b strings.Builder
	b.Grow(len(folded))
	space := false
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
			continue
		}
		space = true
	}
	return b.String()
}
