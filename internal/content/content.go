// Package content holds the built-in game content: the letter set and the
// tiered animal catalogue. Targets are immutable value data; everything a
// round needs to know about "the thing the player must say" lives here.
package content

import "strings"

// Kind distinguishes the two target shapes the games use.
type Kind string

const (
	// KindLetter targets a single character A-Z matched against the
	// phonetic alias table.
	KindLetter Kind = "letter"
	// KindKeyword targets a display name with a set of acceptable
	// keyword strings.
	KindKeyword Kind = "keyword"
)

// Target is the thing the player must speak.
type Target struct {
	// Key uniquely identifies the target across the catalogue
	// (lowercase, e.g. "n" or "dog").
	Key string
	// Display is the name shown to the player.
	Display string
	Kind    Kind
	// Letter is set for letter targets (uppercase A-Z).
	Letter rune
	// Keywords are the acceptable spoken forms for keyword targets.
	Keywords []string
	// Tier is the difficulty bucket, starting at 1. Tier 1 is always
	// unlocked.
	Tier int
}

// AcceptableForms returns the keyword list for keyword targets and the
// display letter for letter targets. Every target has at least one form.
func (t Target) AcceptableForms() []string {
	if t.Kind == KindLetter {
		return []string{strings.ToLower(string(t.Letter))}
	}
	if len(t.Keywords) == 0 {
		return []string{strings.ToLower(t.Display)}
	}
	return t.Keywords
}

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Letters returns the 26 letter targets. Letters are a single tier; the
// letters game has no unlock progression.
func Letters() []Target {
	targets := make([]Target, 0, len(alphabet))
	for _, r := range alphabet {
		targets = append(targets, Target{
			Key:     strings.ToLower(string(r)),
			Display: string(r),
			Kind:    KindLetter,
			Letter:  r,
			Tier:    1,
		})
	}
	return targets
}

func animal(tier int, name string, keywords ...string) Target {
	key := strings.ToLower(name)
	if len(keywords) == 0 {
		keywords = []string{key}
	}
	return Target{
		Key:      key,
		Display:  name,
		Kind:     KindKeyword,
		Keywords: keywords,
		Tier:     tier,
	}
}

// AnimalTiers returns the animal catalogue grouped by tier. Later tiers
// stay locked until earlier tiers are sufficiently mastered.
func AnimalTiers() [][]Target {
	return [][]Target{
		{
			animal(1, "Cat", "cat", "kitten"),
			animal(1, "Dog", "dog", "puppy"),
			animal(1, "Bird", "bird", "parrot"),
			animal(1, "Fish"),
			animal(1, "Horse", "horse", "pony"),
			animal(1, "Spider"),
		},
		{
			animal(2, "Bear"),
			animal(2, "Lizard"),
			animal(2, "Bee"),
			animal(2, "Dolphin"),
			animal(2, "Frog"),
			animal(2, "Duck"),
		},
		{
			animal(3, "Ladybug", "ladybug", "lady bug"),
			animal(3, "Lion"),
			animal(3, "Monkey"),
			animal(3, "Mouse"),
			animal(3, "Panda"),
			animal(3, "Chicken"),
		},
		{
			animal(4, "Cow"),
			animal(4, "Elephant"),
			animal(4, "Orca", "orca", "killer whale"),
			animal(4, "Penguin"),
			animal(4, "Shark"),
			animal(4, "Rabbit", "rabbit", "bunny"),
		},
		{
			animal(5, "Zebra"),
			animal(5, "Goat"),
			animal(5, "Pig"),
			animal(5, "Snake"),
			animal(5, "Tiger"),
			animal(5, "Turtle"),
		},
	}
}

// Animals returns the flattened animal catalogue in tier order.
func Animals() []Target {
	var all []Target
	for _, tier := range AnimalTiers() {
		all = append(all, tier...)
	}
	return all
}

// FindAnimal looks up an animal target by key. The second return value
// reports whether the key exists in the catalogue.
func FindAnimal(key string) (Target, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, t := range Animals() {
		if t.Key == key {
			return t, true
		}
	}
	return Target{}, false
}

// TierOf reports the tier an animal belongs to, 0 for unknown keys.
func TierOf(key string) int {
	if a, ok := FindAnimal(key); ok {
		return a.Tier
	}
	return 0
}
