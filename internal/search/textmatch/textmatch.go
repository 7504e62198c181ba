// Package textmatch holds the string primitives shared by the scorer, the
// filter engine and autocomplete: query normalisation and edit distance.
package textmatch

import (
	"strings"
	"unicode"

	"github.com/hbollon/go-edlib"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lower-cases s, strips diacritics, trims it and collapses inner
// whitespace to single spaces. "  San  José " becomes "san jose".
func Normalize(s string) string {
	folded, _, err := transform.String(foldAccents(), s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// Hyphenate normalises s and joins its words with hyphens, the canonical form
// of care-type and amenity tags ("Memory Care" -> "memory-care").
func Hyphenate(s string) string {
	return strings.ReplaceAll(Normalize(s), " ", "-")
}

// Distance is the Levenshtein distance between a and b: the minimum number
// of single-rune insertions, deletions and substitutions.
func Distance(a, b string) int {
	return edlib.LevenshteinDistance(a, b)
}

// Len is the length of s in runes.
func Len(s string) int {
	return len([]rune(s))
}

// foldAccents returns a fresh transformer; transform.Chain values carry
// state and are not safe for concurrent use.
func foldAccents() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}
