package progressstore

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/gulfhit/littletalk/internal/config"
	"github.com/gulfhit/littletalk/internal/progress"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestOpenEphemeralRoundTrip(t *testing.T) {
	ctx := context.Background()
	cfg := config.ProgressStoreConfig{RetentionMode: "ephemeral"}
	s, err := Open(ctx, cfg, newLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	ledger := map[string]progress.Entry{
		"dog": {Level: 3, CorrectCount: 2, Unlocked: true},
	}
	if err := s.Save(ctx, "animals", ledger); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := s.Load(ctx, "animals")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded["dog"] != ledger["dog"] {
		t.Fatalf("round trip mismatch: %+v", loaded["dog"])
	}

	// The stored copy must not alias the caller's map.
	ledger["dog"] = progress.Entry{Level: 1}
	loaded, _ = s.Load(ctx, "animals")
	if loaded["dog"].Level != 3 {
		t.Fatal("ephemeral store aliases caller map")
	}
}

func TestSaveAndLoadSQLite(t *testing.T) {
	ctx := context.Background()
	cfg := config.ProgressStoreConfig{
		Path:          filepath.Join(t.TempDir(), "progress.db"),
		RetentionMode: "persistent",
	}
	s, err := Open(ctx, cfg, newLogger())
	if err != nil {
		t.Fatalf("open progress store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	ledger := map[string]progress.Entry{
		"dog": {Level: 5, CorrectCount: 4, Mastered: true, Unlocked: true},
		"cat": {Level: 2, CorrectCount: 1, Unlocked: true},
	}
	if err := s.Save(ctx, "animals", ledger); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Saving again upserts instead of duplicating.
	ledger["cat"] = progress.Entry{Level: 3, CorrectCount: 2, Unlocked: true}
	if err := s.Save(ctx, "animals", ledger); err != nil {
		t.Fatalf("second save: %v", err)
	}

	loaded, err := s.Load(ctx, "animals")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(loaded))
	}
	if loaded["cat"].Level != 3 {
		t.Fatalf("cat entry not upserted: %+v", loaded["cat"])
	}
	if !loaded["dog"].Mastered {
		t.Fatalf("dog mastery lost: %+v", loaded["dog"])
	}

	// Games are isolated.
	other, err := s.Load(ctx, "letters")
	if err != nil {
		t.Fatalf("load other game: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("letters ledger should be empty, got %d entries", len(other))
	}
}

func TestStreakPersistence(t *testing.T) {
	ctx := context.Background()
	cfg := config.ProgressStoreConfig{
		Path:          filepath.Join(t.TempDir(), "progress.db"),
		RetentionMode: "persistent",
	}
	s, err := Open(ctx, cfg, newLogger())
	if err != nil {
		t.Fatalf("open progress store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	streak, err := s.Streak(ctx, "animals")
	if err != nil || streak != 0 {
		t.Fatalf("fresh streak = %d err=%v, want 0/nil", streak, err)
	}
	if err := s.SetStreak(ctx, "animals", 2); err != nil {
		t.Fatalf("set streak: %v", err)
	}
	if err := s.SetStreak(ctx, "animals", 3); err != nil {
		t.Fatalf("update streak: %v", err)
	}
	streak, err = s.Streak(ctx, "animals")
	if err != nil || streak != 3 {
		t.Fatalf("streak = %d err=%v, want 3/nil", streak, err)
	}
}

func TestResetGame(t *testing.T) {
	ctx := context.Background()
	cfg := config.ProgressStoreConfig{
		Path:          filepath.Join(t.TempDir(), "progress.db"),
		RetentionMode: "persistent",
	}
	s, err := Open(ctx, cfg, newLogger())
	if err != nil {
		t.Fatalf("open progress store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.Save(ctx, "animals", map[string]progress.Entry{"dog": {Level: 4, Unlocked: true}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SetStreak(ctx, "animals", 2); err != nil {
		t.Fatalf("set streak: %v", err)
	}
	if err := s.ResetGame(ctx, "animals"); err != nil {
		t.Fatalf("reset: %v", err)
	}

	loaded, err := s.Load(ctx, "animals")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("expected empty ledger after reset, got %d entries", len(loaded))
	}
	if streak, _ := s.Streak(ctx, "animals"); streak != 0 {
		t.Fatalf("streak = %d after reset, want 0", streak)
	}
}
