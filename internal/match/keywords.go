package match

import "strings"

// MatchesKeywords reports whether any candidate phrase is acceptable
// evidence for any of the target keywords. Unlike letter scoring this is
// a plain boolean: keyword targets are full words, so substring and
// fuzzy matching are enough and no confidence floor is needed.
func MatchesKeywords(candidates, keywords []string) bool {
	normKeywords := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if nk := Normalize(k); nk != "" {
			normKeywords = append(normKeywords, nk)
		}
	}

	for _, raw := range candidates {
		candidate := Normalize(raw)
		if candidate == "" {
			continue
		}
		words := strings.Split(candidate, " ")
		for _, keyword := range normKeywords {
			if candidate == keyword {
				return true
			}
			if strings.HasPrefix(candidate, keyword) || strings.Contains(candidate, keyword) {
				return true
			}
			for _, w := range words {
				if w == keyword {
					return true
				}
			}
			if IsFuzzySimilar(candidate, keyword) {
				return true
			}
			for _, w := range words {
				if IsFuzzySimilar(w, keyword) {
					return true
				}
			}
		}
	}
	return false
}
