package match

import (
	"testing"

	"github.com/gulfhit/littletalk/internal/content"
)

func TestMatchesKeywords(t *testing.T) {
	dog := []string{"dog", "puppy"}
	cases := []struct {
		name       string
		candidates []string
		keywords   []string
		want       bool
	}{
		{"exact", []string{"dog"}, dog, true},
		{"alias", []string{"puppy"}, dog, true},
		{"prefix", []string{"doggy"}, dog, true},
		{"substring", []string{"a big dog barking"}, dog, true},
		{"word", []string{"the dog"}, dog, true},
		{"fuzzy one edit", []string{"dogg"}, dog, true},
		{"fuzzy long keyword", []string{"hors"}, []string{"horse"}, true},
		{"distance three", []string{"dxgxs"}, dog, false},
		{"unrelated", []string{"spaceship"}, dog, false},
		{"empty candidates", nil, dog, false},
		{"punctuation", []string{"Dog!"}, dog, true},
	}
	for _, c := range cases {
		if got := MatchesKeywords(c.candidates, c.keywords); got != c.want {
			t.Fatalf("%s: MatchesKeywords(%v, %v) = %v, want %v", c.name, c.candidates, c.keywords, got, c.want)
		}
	}
}

func TestScoreDispatch(t *testing.T) {
	letterN := content.Target{Key: "n", Display: "N", Kind: content.KindLetter, Letter: 'N'}
	v := Score([]string{"in"}, letterN)
	if !v.Matched || v.Key != "n" {
		t.Fatalf("letter verdict = %+v, want match on n", v)
	}

	// A clear different letter is a miss for the expected target.
	v = Score([]string{"bee"}, letterN)
	if v.Matched {
		t.Fatalf("verdict = %+v, want miss when another letter wins", v)
	}

	dog, ok := content.FindAnimal("dog")
	if !ok {
		t.Fatal("dog missing from catalogue")
	}
	if v := Score([]string{"it's a puppy"}, dog); !v.Matched {
		t.Fatalf("keyword verdict = %+v, want match", v)
	}
	if v := Score([]string{"tractor"}, dog); v.Matched {
		t.Fatalf("keyword verdict = %+v, want miss", v)
	}
}
