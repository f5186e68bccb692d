package match

import (
	"strings"
	"unicode"
)

// phoneticAliases maps each letter to the spoken forms children actually
// produce for it. The "N" row is the motivating case: kids say "in" or
// "en" and the engine transcribes it that way.
var phoneticAliases = map[rune][]string{
	'A': {"a", "ay", "eh", "ei"},
	'B': {"b", "bee", "be"},
	'C': {"c", "see", "cee", "sea"},
	'D': {"d", "dee"},
	'E': {"e", "ee"},
	'F': {"f", "ef"},
	'G': {"g", "gee"},
	'H': {"h", "aitch"},
	'I': {"i", "eye", "aye"},
	'J': {"j", "jay"},
	'K': {"k", "kay"},
	'L': {"l", "el"},
	'M': {"m", "em"},
	'N': {"n", "en", "in", "inn", "ehn"},
	'O': {"o", "oh"},
	'P': {"p", "pee"},
	'Q': {"q", "cue", "queue"},
	'R': {"r", "ar"},
	'S': {"s", "ess"},
	'T': {"t", "tee"},
	'U': {"u", "you", "yu", "yoo"},
	'V': {"v", "vee"},
	'W': {"w", "double you", "double-u"},
	'X': {"x", "ex"},
	'Y': {"y", "why"},
	'Z': {"z", "zee", "zed"},
}

// PhoneticAliases returns the spoken forms accepted for letter. The slice
// is shared; callers must not mutate it.
func PhoneticAliases(letter rune) []string {
	return phoneticAliases[unicode.ToUpper(letter)]
}

// Letter scoring tiers. A whole-phrase alias match outranks a word-level
// match, which outranks a prefix/suffix partial.
const (
	scoreExactPhrase = 4
	scoreWordMatch   = 3
	scorePartial     = 2
)

// acceptFloor is the minimum biased score ChooseLetter accepts. Anything
// below it is treated as noise, not a guess.
const acceptFloor = 2.0

// ScorePhraseForLetter scores how well a spoken phrase matches a letter,
// 0 to 4. Higher is better.
func ScorePhraseForLetter(phrase string, letter rune) int {
	letter = unicode.ToUpper(letter)
	forms := phoneticAliases[letter]
	if len(forms) == 0 {
		return 0
	}
	norm := Normalize(phrase)
	if norm == "" {
		return 0
	}

	best := 0
	for _, f := range forms {
		if norm == f {
			best = scoreExactPhrase
		}
	}

	words := strings.Split(norm, " ")
	for _, w := range words {
		for _, f := range forms {
			switch {
			case w == f:
				best = max(best, scoreWordMatch)
			case strings.HasPrefix(f, w) || strings.HasPrefix(w, f):
				best = max(best, scorePartial)
			}
		}
	}

	lower := unicode.ToLower(letter)
	if len(norm) == 1 && rune(norm[0]) == lower {
		best = max(best, scoreExactPhrase)
	}
	if len(norm) <= 3 && rune(norm[0]) == lower {
		best = max(best, scorePartial)
	}

	return best
}

// ChooseLetter scores every letter of the alphabet against all candidate
// phrases and picks the best one. The expected letter gets a bias of +1.0
// (+1.5 when its raw score is 2 or lower) so that ambiguous utterances
// resolve in the learner's favor, but a zero score is never promoted.
// The best letter is rejected when its biased score stays under the
// acceptance floor; ok is false in that case.
func ChooseLetter(candidates []string, expected rune) (letter rune, confidence float64, ok bool) {
	if len(candidates) == 0 {
		candidates = []string{""}
	}
	expected = unicode.ToUpper(expected)

	var (
		bestLetter rune
		bestScore  float64
	)
	for l := 'A'; l <= 'Z'; l++ {
		raw := 0
		for _, phrase := range candidates {
			raw = max(raw, ScorePhraseForLetter(phrase, l))
		}
		if raw <= 0 {
			continue
		}

		score := float64(raw)
		if l == expected {
			bonus := 1.0
			if raw <= 2 {
				bonus = 1.5
			}
			score += bonus
		}

		if score > bestScore {
			bestScore = score
			bestLetter = l
		}
	}

	if bestScore < acceptFloor {
		return 0, 0, false
	}
	return bestLetter, bestScore, true
}
