package match

import "github.com/antzucaro/matchr"

// Levenshtein returns the classic edit distance between a and b with unit
// insert/delete/substitute costs.
func Levenshtein(a, b string) int {
	return matchr.Levenshtein(a, b)
}

// IsFuzzySimilar reports whether candidate is a near-miss of keyword:
// a positive edit distance within the length-scaled tolerance. Short
// keywords (4 letters or fewer) only tolerate one edit so that common
// small words do not collide. Identical strings are not fuzzy matches;
// the caller treats exact equality as a stronger signal.
func IsFuzzySimilar(candidate, keyword string) bool {
	if candidate == "" || keyword == "" {
		return false
	}
	tolerance := 2
	if len(keyword) <= 4 {
		tolerance = 1
	}
	d := Levenshtein(candidate, keyword)
	return d > 0 && d <= tolerance
}
