// Package progress implements the pure progress/unlock ledger: per-item
// levels and correct counts, mastery, and the two unlock policies. The
// ledger operates on a plain map so that persistence stays a separate
// concern.
package progress

import (
	"math/rand/v2"

	"github.com/gulfhit/littletalk/internal/content"
)

const (
	// MaxLevel caps an item's level.
	MaxLevel = 6
	// MasteryLevel is the level at which an item counts as mastered.
	MasteryLevel = 5
)

// Entry tracks one content item. Level never decreases outside Reset;
// Mastered and Unlocked are monotonic once set.
type Entry struct {
	Level        int  `json:"level"`
	CorrectCount int  `json:"correct_count"`
	Mastered     bool `json:"mastered"`
	Unlocked     bool `json:"unlocked"`
}

// UnlockPolicy selects how new content tiers open up.
type UnlockPolicy string

const (
	// UnlockImmediate opens one item of the next tier as soon as an item
	// is newly mastered.
	UnlockImmediate UnlockPolicy = "immediate"
	// UnlockStreak gates unlocking behind consecutive qualifying rounds.
	UnlockStreak UnlockPolicy = "streak"
)

func defaultEntry(t content.Target) Entry {
	return Entry{Level: 1, Unlocked: t.Tier <= 1}
}

// Get returns the ledger entry for a target, applying defaults when the
// item has never been seen. Stored levels are clamped into [1, MaxLevel].
func Get(m map[string]Entry, t content.Target) Entry {
	e, ok := m[t.Key]
	if !ok {
		return defaultEntry(t)
	}
	if e.Level < 1 {
		e.Level = 1
	}
	if e.Level > MaxLevel {
		e.Level = MaxLevel
	}
	if t.Tier <= 1 {
		e.Unlocked = true
	}
	return e
}

// RecordCorrect credits one correct answer to the target: increments the
// correct count, bumps the level (clamped at MaxLevel), and flips
// Mastered on first crossing of MasteryLevel. The updated entry is
// stored back into m and returned along with whether mastery is new.
func RecordCorrect(m map[string]Entry, t content.Target) (Entry, bool) {
	e := Get(m, t)
	e.CorrectCount++
	if e.Level < MaxLevel {
		e.Level++
	}
	newlyMastered := false
	if !e.Mastered && e.Level >= MasteryLevel {
		e.Mastered = true
		newlyMastered = true
	}
	m[t.Key] = e
	return e, newlyMastered
}

// Reset returns a fresh ledger: every item back at level 1, unmastered,
// with everything outside tier 1 re-locked.
func Reset(tiers [][]content.Target) map[string]Entry {
	m := make(map[string]Entry)
	for _, tier := range tiers {
		for _, t := range tier {
			m[t.Key] = defaultEntry(t)
		}
	}
	return m
}

// UnlockedTargets returns the playable pool: all of tier 1 plus every
// unlocked item of later tiers, in tier order.
func UnlockedTargets(m map[string]Entry, tiers [][]content.Target) []content.Target {
	var pool []content.Target
	for i, tier := range tiers {
		for _, t := range tier {
			if i == 0 || Get(m, t).Unlocked {
				pool = append(pool, t)
			}
		}
	}
	return pool
}

func lockedInTier(m map[string]Entry, tier []content.Target) []content.Target {
	var locked []content.Target
	for _, t := range tier {
		if !Get(m, t).Unlocked {
			locked = append(locked, t)
		}
	}
	return locked
}

// UnlockOneInTier unlocks one random locked item in the given tier index
// (0-based). Returns the unlocked target, or ok=false when the tier does
// not exist or is already fully unlocked.
func UnlockOneInTier(m map[string]Entry, tiers [][]content.Target, tierIdx int, rng *rand.Rand) (content.Target, bool) {
	if tierIdx < 0 || tierIdx >= len(tiers) {
		return content.Target{}, false
	}
	locked := lockedInTier(m, tiers[tierIdx])
	if len(locked) == 0 {
		return content.Target{}, false
	}
	pick := locked[rng.IntN(len(locked))]
	e := Get(m, pick)
	e.Unlocked = true
	m[pick.Key] = e
	return pick, true
}

// UnlockOnMastery implements the immediate policy: when an item of tier n
// is newly mastered, one random locked item of tier n+1 opens up.
func UnlockOnMastery(m map[string]Entry, tiers [][]content.Target, mastered content.Target, rng *rand.Rand) (content.Target, bool) {
	return UnlockOneInTier(m, tiers, mastered.Tier, rng)
}

// unlockStage finds the first tier (index >= 1) that is not fully
// unlocked and the streak requirement to open its next item: tier n
// needs a streak of n-1 qualifying rounds.
func unlockStage(m map[string]Entry, tiers [][]content.Target) (tierIdx, requiredStreak int, ok bool) {
	for i := 1; i < len(tiers); i++ {
		if len(lockedInTier(m, tiers[i])) > 0 {
			return i, i, true
		}
	}
	return 0, 0, false
}

// ApplyRoundOutcome implements the streak policy at round completion.
// A round with at least minCorrect correct answers extends the streak;
// anything less resets it. When the streak reaches the stage requirement
// exactly one random locked item of that stage unlocks and the streak
// starts over. Returns the new streak and the unlocked target, if any.
func ApplyRoundOutcome(m map[string]Entry, tiers [][]content.Target, streak, correct, minCorrect int, rng *rand.Rand) (int, content.Target, bool) {
	tierIdx, required, ok := unlockStage(m, tiers)
	if !ok {
		return 0, content.Target{}, false
	}
	if correct < minCorrect {
		return 0, content.Target{}, false
	}
	streak++
	if streak < required {
		return streak, content.Target{}, false
	}
	unlocked, didUnlock := UnlockOneInTier(m, tiers, tierIdx, rng)
	return 0, unlocked, didUnlock
}
