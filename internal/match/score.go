package match

import "github.com/gulfhit/littletalk/internal/content"

// Verdict is the scorer's decision for one attempt. Confidence is only
// meaningful for letter targets; keyword matches are all-or-nothing.
type Verdict struct {
	Matched    bool
	Key        string
	Confidence float64
}

// Score evaluates candidate transcripts against a target, dispatching on
// the target kind. For letters the chosen letter must equal the expected
// one: a confidently recognized different letter is still a miss.
func Score(candidates []string, target content.Target) Verdict {
	switch target.Kind {
	case content.KindLetter:
		letter, confidence, ok := ChooseLetter(candidates, target.Letter)
		if !ok || letter != target.Letter {
			return Verdict{}
		}
		return Verdict{Matched: true, Key: target.Key, Confidence: confidence}
	default:
		if MatchesKeywords(candidates, target.AcceptableForms()) {
			return Verdict{Matched: true, Key: target.Key, Confidence: 1}
		}
		return Verdict{}
	}
}
