package session

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/gulfhit/littletalk/internal/bus"
	"github.com/gulfhit/littletalk/internal/config"
	"github.com/gulfhit/littletalk/internal/progressstore"
	"github.com/gulfhit/littletalk/internal/speech"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Letters.Enabled = false
	cfg.Animals = config.GameConfig{
		Enabled:             true,
		RoundLength:         2,
		MaxAttempts:         2,
		WinCount:            2,
		UnlockPolicy:        "streak",
		MinCorrectForUnlock: 2,
		WatchdogMS:          200,
		EngineResetBudget:   1,
		FreeRetryBudget:     1,
		AutoAdvanceDelayMS:  1,
	}
	return cfg
}

func newTestService(t *testing.T, cfg config.Config, listener speech.Listener) *Service {
	t.Helper()
	store, err := progressstore.Open(context.Background(),
		config.ProgressStoreConfig{RetentionMode: "ephemeral"}, newLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	svc := NewService(context.Background(), cfg, listener, store, (*bus.Client)(nil), newLogger())
	if err := svc.Start(); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(svc.Close)
	return svc
}

func waitRoundDone(t *testing.T, svc *Service, game string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, active := svc.ActiveRound(game); !active {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("round did not finish in time")
}

// echoListener answers every attempt with the expected phrase.
type echoListener struct{}

func (echoListener) Init(context.Context, speech.Options) error { return nil }

func (echoListener) Listen(ctx context.Context, expected string) (speech.Result, error) {
	if err := ctx.Err(); err != nil {
		return speech.Result{}, err
	}
	return speech.Result{
		Raw:        expected,
		Candidates: []speech.Candidate{{Text: expected, Confidence: 0.9}},
		Telemetry:  speech.Telemetry{RMSSeen: true, SpeechDetected: true},
	}, nil
}

func (echoListener) Stop()                       {}
func (echoListener) Reset(context.Context) error { return nil }

// blockedListener never hears anything until the round is cancelled.
type blockedListener struct{}

func (blockedListener) Init(context.Context, speech.Options) error { return nil }

func (blockedListener) Listen(ctx context.Context, _ string) (speech.Result, error) {
	<-ctx.Done()
	return speech.Result{}, ctx.Err()
}

func (blockedListener) Stop()                       {}
func (blockedListener) Reset(context.Context) error { return nil }

func TestWinningRoundUnlocksViaStreak(t *testing.T) {
	svc := newTestService(t, testConfig(), echoListener{})

	if _, err := svc.StartRound("animals"); err != nil {
		t.Fatalf("start round: %v", err)
	}
	waitRoundDone(t, svc, "animals")

	snap, err := svc.Snapshot("animals")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	var correct int
	for _, e := range snap.Items {
		correct += e.CorrectCount
	}
	if correct != 2 {
		t.Fatalf("total correct = %d, want 2", correct)
	}
	// A qualifying round against the first stage (streak requirement 1)
	// unlocks one tier 2 item and resets the streak.
	if snap.Streak != 0 {
		t.Fatalf("streak = %d, want 0 after unlock", snap.Streak)
	}
	if len(snap.Unlocked) != 7 {
		t.Fatalf("unlocked pool = %d items, want tier 1 plus one unlock (7)", len(snap.Unlocked))
	}
}

func TestFatalEngineErrorStillCompletesRound(t *testing.T) {
	mock := speech.NewMockListener()
	mock.EnqueueError(&speech.Error{Code: speech.CodePermissionDenied})
	svc := newTestService(t, testConfig(), mock)

	if _, err := svc.StartRound("animals"); err != nil {
		t.Fatalf("start round: %v", err)
	}
	waitRoundDone(t, svc, "animals")

	if got := mock.Listens(); got != 1 {
		t.Fatalf("engine called %d times after fatal error, want 1", got)
	}
	snap, err := svc.Snapshot("animals")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	for key, e := range snap.Items {
		if e.CorrectCount != 0 {
			t.Fatalf("%s credited despite disabled speech: %+v", key, e)
		}
	}
}

func TestOnlyOneActiveRoundPerGame(t *testing.T) {
	svc := newTestService(t, testConfig(), blockedListener{})

	if _, err := svc.StartRound("animals"); err != nil {
		t.Fatalf("start round: %v", err)
	}
	if _, err := svc.StartRound("animals"); err == nil {
		t.Fatal("second concurrent round should be rejected")
	}
	if err := svc.Abandon("animals"); err != nil {
		t.Fatalf("abandon: %v", err)
	}
	waitRoundDone(t, svc, "animals")
}

func TestAbandonLeavesProgressUntouched(t *testing.T) {
	svc := newTestService(t, testConfig(), blockedListener{})

	if _, err := svc.StartRound("animals"); err != nil {
		t.Fatalf("start round: %v", err)
	}
	if err := svc.Abandon("animals"); err != nil {
		t.Fatalf("abandon: %v", err)
	}
	waitRoundDone(t, svc, "animals")

	snap, err := svc.Snapshot("animals")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Streak != 0 {
		t.Fatalf("streak = %d after abandon, want 0", snap.Streak)
	}
	for key, e := range snap.Items {
		if e.CorrectCount != 0 || e.Level != 1 {
			t.Fatalf("%s changed by abandoned round: %+v", key, e)
		}
	}
}

func TestResetProgress(t *testing.T) {
	svc := newTestService(t, testConfig(), echoListener{})

	if _, err := svc.StartRound("animals"); err != nil {
		t.Fatalf("start round: %v", err)
	}
	waitRoundDone(t, svc, "animals")

	if err := svc.ResetProgress(context.Background(), "animals"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	snap, err := svc.Snapshot("animals")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	for key, e := range snap.Items {
		if e.CorrectCount != 0 || e.Level != 1 || e.Mastered {
			t.Fatalf("%s not reset: %+v", key, e)
		}
	}
	if len(snap.Unlocked) != 6 {
		t.Fatalf("unlocked pool = %d after reset, want tier 1 only (6)", len(snap.Unlocked))
	}
}

func TestUnknownGameRejected(t *testing.T) {
	svc := newTestService(t, testConfig(), echoListener{})
	if _, err := svc.StartRound("colors"); err == nil {
		t.Fatal("expected error for unknown game")
	}
	if _, err := svc.Snapshot("colors"); err == nil {
		t.Fatal("expected error for unknown game snapshot")
	}
}
