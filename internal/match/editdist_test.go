package match

import "testing"

func TestLevenshteinProperties(t *testing.T) {
	words := []string{"", "a", "dog", "horse", "spider"}
	for _, w := range words {
		if d := Levenshtein(w, w); d != 0 {
			t.Fatalf("Levenshtein(%q, %q) = %d, want 0", w, w, d)
		}
	}
	for _, a := range words {
		for _, b := range words {
			if Levenshtein(a, b) != Levenshtein(b, a) {
				t.Fatalf("distance not symmetric for %q/%q", a, b)
			}
		}
	}
	// Triangle inequality over a few triples.
	triples := [][3]string{
		{"dog", "dig", "dug"},
		{"horse", "house", "mouse"},
		{"cat", "", "bat"},
	}
	for _, tr := range triples {
		ab := Levenshtein(tr[0], tr[1])
		bc := Levenshtein(tr[1], tr[2])
		ac := Levenshtein(tr[0], tr[2])
		if ac > ab+bc {
			t.Fatalf("triangle inequality violated for %v: %d > %d+%d", tr, ac, ab, bc)
		}
	}
}

func TestIsFuzzySimilar(t *testing.T) {
	cases := []struct {
		candidate, keyword string
		want               bool
	}{
		{"dogg", "dog", true},    // one edit, short keyword
		{"dig", "dog", true},     // substitution
		{"dg", "dog", true},      // deletion
		{"dog", "dog", false},    // exact is not fuzzy
		{"dxgx", "dog", false},   // two edits exceed short tolerance
		{"hors", "horse", true},  // >=5 letters tolerate two edits
		{"hose", "horse", true},  // two edits within tolerance
		{"ho", "horse", false},   // three edits
		{"", "dog", false},
		{"dog", "", false},
	}
	for _, c := range cases {
		if got := IsFuzzySimilar(c.candidate, c.keyword); got != c.want {
			t.Fatalf("IsFuzzySimilar(%q, %q) = %v, want %v", c.candidate, c.keyword, got, c.want)
		}
	}
}
