// Package canon normalizes free-text statement fields into a canonical
// form used for comparison and fingerprinting. Normalization must stay
// deterministic across releases: changing it changes fingerprints and
// breaks deduplication against history.
package canon

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes text (NFKD) and removes combining marks plus any
// remaining non-ASCII runes, folding accented letters to their base form.
var stripMarks = transform.Chain(
	norm.NFKD,
	runes.Remove(runes.In(unicode.Mn)),
	runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })),
)

// Normalize returns the canonical form of s: diacritics folded away,
// lower-cased, trimmed, with whitespace runs collapsed to single spaces.
// Empty or all-whitespace input yields "". Normalize is idempotent.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		// Transform on valid UTF-8 does not fail; fall back to the input
		// so a malformed string still normalizes case and spacing.
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}
