package match

import "testing"

func TestPhoneticAliasesTable(t *testing.T) {
	forms := PhoneticAliases('n')
	want := map[string]bool{"n": false, "en": false, "in": false, "inn": false, "ehn": false}
	for _, f := range forms {
		if _, ok := want[f]; ok {
			want[f] = true
		}
	}
	for f, seen := range want {
		if !seen {
			t.Fatalf("alias %q missing from N row: %v", f, forms)
		}
	}

	for l := 'A'; l <= 'Z'; l++ {
		if len(PhoneticAliases(l)) == 0 {
			t.Fatalf("letter %c has no spoken forms", l)
		}
	}
	if PhoneticAliases('7') != nil {
		t.Fatal("non-letter rune must have no aliases")
	}
}

func TestScorePhraseForLetter(t *testing.T) {
	// Regression: kids saying "N" get transcribed as "in".
	if got := ScorePhraseForLetter("in", 'N'); got < 3 {
		t.Fatalf("score(%q, N) = %d, want >= 3", "in", got)
	}
	if got := ScorePhraseForLetter("", 'A'); got != 0 {
		t.Fatalf("score of empty phrase = %d, want 0", got)
	}
	if got := ScorePhraseForLetter("bee", 'B'); got != 4 {
		t.Fatalf("whole-phrase alias should score 4, got %d", got)
	}
	if got := ScorePhraseForLetter("the letter bee", 'B'); got != 3 {
		t.Fatalf("word-level alias should score 3, got %d", got)
	}
	if got := ScorePhraseForLetter("b", 'B'); got != 4 {
		t.Fatalf("single-character phrase should score 4, got %d", got)
	}
	if got := ScorePhraseForLetter("bzz", 'B'); got != 2 {
		t.Fatalf("short phrase starting with the letter should score 2, got %d", got)
	}
}

func TestScorePhraseForLetterCaseAndWhitespace(t *testing.T) {
	base := ScorePhraseForLetter("in", 'N')
	if got := ScorePhraseForLetter("  IN  ", 'n'); got != base {
		t.Fatalf("score should ignore case and padding: %d vs %d", got, base)
	}
}

func TestChooseLetterBiasLiftsExpected(t *testing.T) {
	// "in" scores 3 for N raw; the expected-letter bias must carry it
	// over the acceptance floor and past competing letters.
	letter, confidence, ok := ChooseLetter([]string{"in"}, 'N')
	if !ok {
		t.Fatal("expected a match for \"in\" with expected=N")
	}
	if letter != 'N' {
		t.Fatalf("chose %c, want N", letter)
	}
	if confidence < 4 {
		t.Fatalf("biased confidence = %v, want >= 4", confidence)
	}
}

func TestChooseLetterNoCandidates(t *testing.T) {
	if _, _, ok := ChooseLetter(nil, 'Q'); ok {
		t.Fatal("no candidates must not produce a match")
	}
	if _, _, ok := ChooseLetter([]string{""}, 'Q'); ok {
		t.Fatal("empty candidate must not produce a match")
	}
}

func TestChooseLetterNeverPromotesZero(t *testing.T) {
	// Noise that scores zero for every letter stays rejected even with
	// the expected-letter bias in play.
	if _, _, ok := ChooseLetter([]string{"1234 %%%"}, 'N'); ok {
		t.Fatal("zero-score utterance must not be promoted by the bias")
	}
}

func TestChooseLetterPrefersClearWinner(t *testing.T) {
	// A clean "bee" should beat the expected-letter bias on a miss.
	letter, _, ok := ChooseLetter([]string{"bee"}, 'D')
	if !ok || letter != 'B' {
		t.Fatalf("chose %c (ok=%v), want B", letter, ok)
	}
}
