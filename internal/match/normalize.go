// Package match implements the utterance-matching heuristics: text
// normalization, fuzzy edit-distance comparison, the letter phonetic
// scorer, and the keyword matcher. Everything here is pure and safe for
// concurrent use.
package match

import "strings"

// Normalize lowercases text, replaces anything outside a-z with a space,
// collapses whitespace runs, and trims. It is total (empty input yields
// "") and idempotent.
func Normalize(text string) string {
	lower := strings.ToLower(text)
	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
