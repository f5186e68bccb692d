package progress

import (
	"math/rand/v2"
	"testing"

	"github.com/gulfhit/littletalk/internal/content"
)

func testRNG() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func mustAnimal(t *testing.T, key string) content.Target {
	t.Helper()
	a, ok := content.FindAnimal(key)
	if !ok {
		t.Fatalf("animal %q missing from catalogue", key)
	}
	return a
}

func TestGetDefaults(t *testing.T) {
	m := map[string]Entry{}
	dog := mustAnimal(t, "dog")
	e := Get(m, dog)
	if e.Level != 1 || e.CorrectCount != 0 || e.Mastered {
		t.Fatalf("unexpected default entry: %+v", e)
	}
	if !e.Unlocked {
		t.Fatal("tier 1 item should default to unlocked")
	}

	bear := mustAnimal(t, "bear")
	if Get(m, bear).Unlocked {
		t.Fatal("tier 2 item should default to locked")
	}
}

func TestGetClampsStoredLevel(t *testing.T) {
	dog := mustAnimal(t, "dog")
	m := map[string]Entry{"dog": {Level: 99}}
	if got := Get(m, dog).Level; got != MaxLevel {
		t.Fatalf("level = %d, want clamp to %d", got, MaxLevel)
	}
	m["dog"] = Entry{Level: -3}
	if got := Get(m, dog).Level; got != 1 {
		t.Fatalf("level = %d, want clamp to 1", got)
	}
}

func TestRecordCorrectNeverDecreases(t *testing.T) {
	m := map[string]Entry{}
	dog := mustAnimal(t, "dog")

	prev := Get(m, dog)
	for i := 0; i < 10; i++ {
		e, _ := RecordCorrect(m, dog)
		if e.Level < prev.Level || e.CorrectCount < prev.CorrectCount {
			t.Fatalf("entry regressed: %+v -> %+v", prev, e)
		}
		if e.Level > MaxLevel {
			t.Fatalf("level exceeded cap: %+v", e)
		}
		prev = e
	}
	if prev.CorrectCount != 10 {
		t.Fatalf("correct count = %d, want 10", prev.CorrectCount)
	}
	if prev.Level != MaxLevel {
		t.Fatalf("level = %d, want %d", prev.Level, MaxLevel)
	}
}

func TestRecordCorrectMasteryFiresOnce(t *testing.T) {
	m := map[string]Entry{}
	dog := mustAnimal(t, "dog")
	fired := 0
	for i := 0; i < 8; i++ {
		if _, newly := RecordCorrect(m, dog); newly {
			fired++
		}
	}
	if fired != 1 {
		t.Fatalf("mastery fired %d times, want exactly once", fired)
	}
	if !m["dog"].Mastered {
		t.Fatal("entry should stay mastered")
	}
}

func TestResetRelocksEverything(t *testing.T) {
	tiers := content.AnimalTiers()
	m := Reset(tiers)
	// Simulate play: master a tier-1 item and unlock a tier-2 item.
	dog := mustAnimal(t, "dog")
	for i := 0; i < 6; i++ {
		RecordCorrect(m, dog)
	}
	if _, ok := UnlockOneInTier(m, tiers, 1, testRNG()); !ok {
		t.Fatal("expected an unlock in tier 2")
	}

	m = Reset(tiers)
	for _, tier := range tiers {
		for _, target := range tier {
			e := Get(m, target)
			if e.Level != 1 || e.CorrectCount != 0 || e.Mastered {
				t.Fatalf("%s not reset: %+v", target.Key, e)
			}
			if target.Tier > 1 && e.Unlocked {
				t.Fatalf("%s should be re-locked after reset", target.Key)
			}
		}
	}
}

func TestUnlockOnMastery(t *testing.T) {
	tiers := content.AnimalTiers()
	m := Reset(tiers)
	dog := mustAnimal(t, "dog")

	unlocked, ok := UnlockOnMastery(m, tiers, dog, testRNG())
	if !ok {
		t.Fatal("expected immediate unlock into tier 2")
	}
	if unlocked.Tier != 2 {
		t.Fatalf("unlocked tier %d item %q, want tier 2", unlocked.Tier, unlocked.Key)
	}
	if !Get(m, unlocked).Unlocked {
		t.Fatal("unlocked item not recorded in ledger")
	}
}

func TestApplyRoundOutcomeStreak(t *testing.T) {
	tiers := content.AnimalTiers()
	m := Reset(tiers)
	rng := testRNG()

	// Tier 2 is the first incomplete stage and needs a streak of 1, so a
	// single qualifying round unlocks one item and resets the streak.
	streak, unlocked, ok := ApplyRoundOutcome(m, tiers, 0, 5, 5, rng)
	if !ok || unlocked.Tier != 2 {
		t.Fatalf("unlock = %+v ok=%v, want a tier 2 item", unlocked, ok)
	}
	if streak != 0 {
		t.Fatalf("streak = %d, want reset to 0 after unlock", streak)
	}

	// A failing round resets the streak without unlocking.
	streak, _, ok = ApplyRoundOutcome(m, tiers, 3, 2, 5, rng)
	if ok || streak != 0 {
		t.Fatalf("failing round: streak=%d ok=%v, want 0/false", streak, ok)
	}
}

func TestApplyRoundOutcomeLaterStageNeedsLongerStreak(t *testing.T) {
	tiers := content.AnimalTiers()
	m := Reset(tiers)
	rng := testRNG()

	// Fully unlock tier 2 so tier 3 (requirement 2) becomes the stage.
	for {
		if _, ok := UnlockOneInTier(m, tiers, 1, rng); !ok {
			break
		}
	}

	streak, _, ok := ApplyRoundOutcome(m, tiers, 0, 6, 5, rng)
	if ok {
		t.Fatal("first qualifying round should only extend the streak")
	}
	if streak != 1 {
		t.Fatalf("streak = %d, want 1", streak)
	}
	streak, unlocked, ok := ApplyRoundOutcome(m, tiers, streak, 6, 5, rng)
	if !ok || unlocked.Tier != 3 {
		t.Fatalf("second qualifying round: unlock=%+v ok=%v, want tier 3", unlocked, ok)
	}
	if streak != 0 {
		t.Fatalf("streak = %d, want reset", streak)
	}
}

func TestUnlockedTargets(t *testing.T) {
	tiers := content.AnimalTiers()
	m := Reset(tiers)
	pool := UnlockedTargets(m, tiers)
	if len(pool) != len(tiers[0]) {
		t.Fatalf("fresh pool has %d items, want tier 1 only (%d)", len(pool), len(tiers[0]))
	}
	if _, ok := UnlockOneInTier(m, tiers, 1, testRNG()); !ok {
		t.Fatal("unlock failed")
	}
	if got := len(UnlockedTargets(m, tiers)); got != len(tiers[0])+1 {
		t.Fatalf("pool has %d items after unlock, want %d", got, len(tiers[0])+1)
	}
}
