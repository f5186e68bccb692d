package protocol

import "time"

// AttemptStarted announces a new listening attempt for a target.
type AttemptStarted struct {
	SessionID string    `json:"session_id"`
	Game      string    `json:"game"`
	RoundID   string    `json:"round_id"`
	TargetKey string    `json:"target_key"`
	Attempt   int       `json:"attempt"`
	Timestamp time.Time `json:"timestamp"`
}

// AttemptVerdict reports the outcome of one scored attempt.
type AttemptVerdict struct {
	SessionID  string    `json:"session_id"`
	Game       string    `json:"game"`
	RoundID    string    `json:"round_id"`
	TargetKey  string    `json:"target_key"`
	Attempt    int       `json:"attempt"`
	Matched    bool      `json:"matched"`
	Heard      []string  `json:"heard,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// RoundCompleted reports a terminal round state.
type RoundCompleted struct {
	SessionID string    `json:"session_id"`
	Game      string    `json:"game"`
	RoundID   string    `json:"round_id"`
	Correct   int       `json:"correct"`
	Total     int       `json:"total"`
	Won       bool      `json:"won"`
	Abandoned bool      `json:"abandoned,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ProgressUnlocked reports a newly unlocked content item.
type ProgressUnlocked struct {
	SessionID string    `json:"session_id"`
	Game      string    `json:"game"`
	TargetKey string    `json:"target_key"`
	Tier      int       `json:"tier"`
	Policy    string    `json:"policy"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectAttemptStart    = "game.attempt.start"
	SubjectAttemptVerdict  = "game.attempt.verdict"
	SubjectRoundComplete   = "game.round.complete"
	SubjectProgressUnlock  = "game.progress.unlock"
	SubjectProgressMastery = "game.progress.mastery"
)
