// Package round implements the bounded-retry round state machine as a
// pure reducer: HandleEvent consumes an event against the current state
// and returns the next state plus a list of effects for the driver to
// execute. The reducer itself never talks to the speech engine, the bus,
// or storage, which keeps every transition testable without mocks.
//
// Stale callbacks are rejected by construction: every listening session
// carries a token, and events echo the token they belong to. An event
// whose token no longer matches the state is a no-op.
package round

import (
	"math/rand/v2"

	"github.com/gulfhit/littletalk/internal/content"
	"github.com/gulfhit/littletalk/internal/match"
	"github.com/gulfhit/littletalk/internal/speech"
)

// Phase is the coarse position in the round lifecycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseListening
	PhaseCorrectFeedback
	PhaseRetryFeedback
	PhaseFinalFeedback
	// PhaseAutoAdvance covers silent progression after a fatal speech
	// failure: no listening, just a short timer per remaining target.
	PhaseAutoAdvance
	PhaseComplete
)

// Policy bundles the per-game tuning knobs.
type Policy struct {
	// RoundLength is how many targets one round plays.
	RoundLength int
	// MaxAttempts is the attempt budget per target.
	MaxAttempts int
	// WinThreshold is the minimum correct count for a winning round.
	WinThreshold int
	// MinCorrectForUnlock qualifies a round for the streak unlock policy.
	MinCorrectForUnlock int
	// EngineResetBudget caps automatic engine resets per round.
	EngineResetBudget int
	// FreeRetryBudget caps no-cost retries per target (watchdog timeouts
	// and no-match results without microphone levels). Once spent, such
	// outcomes cost an attempt so the round always terminates.
	FreeRetryBudget int
	// FreeRetryOnSilentNoMatch retries a NO_MATCH without attempt cost
	// when the engine never saw microphone levels.
	FreeRetryOnSilentNoMatch bool
}

// State is the complete round state. It is a value: HandleEvent returns
// an updated copy and never mutates shared data.
type State struct {
	Sequence       []content.Target
	Index          int
	Attempts       int
	Correct        int
	Token          uint64
	Phase          Phase
	SpeechDisabled bool
	EngineResets   int
	FreeRetries    int
	Abandoned      bool
}

// Current returns the target under play. ok is false once the round is
// past the end of the sequence.
func (s State) Current() (content.Target, bool) {
	if s.Index < 0 || s.Index >= len(s.Sequence) {
		return content.Target{}, false
	}
	return s.Sequence[s.Index], true
}

// Done reports whether the round reached its terminal phase.
func (s State) Done() bool { return s.Phase == PhaseComplete }

// Event is a stimulus consumed by HandleEvent.
type Event interface{ isEvent() }

// Start begins a round over the given sequence.
type Start struct{ Sequence []content.Target }

// HeardResult delivers a recognition result for the listening session
// identified by Token.
type HeardResult struct {
	Token  uint64
	Result speech.Result
}

// HeardError delivers an engine error for the session identified by Token.
type HeardError struct {
	Token     uint64
	Code      speech.Code
	Telemetry speech.Telemetry
}

// WatchdogFired reports that the listening watchdog elapsed with no
// engine outcome for the session identified by Token.
type WatchdogFired struct{ Token uint64 }

// FeedbackDone reports that the driver finished the feedback (or the
// auto-advance timer fired) scheduled under Token.
type FeedbackDone struct{ Token uint64 }

// Abandon ends the round immediately (navigation away).
type Abandon struct{}

func (Start) isEvent()         {}
func (HeardResult) isEvent()   {}
func (HeardError) isEvent()    {}
func (WatchdogFired) isEvent() {}
func (FeedbackDone) isEvent()  {}
func (Abandon) isEvent()       {}

// Effect is an instruction for the driver. Effects are data; executing
// them is the driver's job.
type Effect interface{ isEffect() }

// Listen starts a listening session for Target under Token.
type Listen struct {
	Target  content.Target
	Token   uint64
	Attempt int
}

// CancelListening stops any outstanding native session. Issued
// defensively before every new listen and on abandon.
type CancelListening struct{}

// ResetEngine tears down and recreates the native recognizer.
type ResetEngine struct{}

// AnnounceAttempt tells the UI/audio layer a new attempt begins.
type AnnounceAttempt struct {
	Target  content.Target
	Attempt int
}

// AnnounceCorrect reports a correct verdict for Target.
type AnnounceCorrect struct {
	Target  content.Target
	Verdict match.Verdict
}

// AnnounceIncorrect reports a miss; FinalAttempt marks the last chance.
type AnnounceIncorrect struct {
	Target       content.Target
	FinalAttempt bool
}

// AnnounceComplete reports the terminal score.
type AnnounceComplete struct {
	Correct int
	Total   int
	Won     bool
}

// RecordCorrect instructs the driver to credit Target in the ledger.
type RecordCorrect struct{ Target content.Target }

// CommitRound instructs the driver to apply the round outcome to the
// unlock policy and persist the ledger.
type CommitRound struct {
	Correct int
	Total   int
}

// ScheduleAdvance asks the driver to deliver FeedbackDone{Token} after
// the feedback audio (or a short silent delay in auto-advance mode).
type ScheduleAdvance struct{ Token uint64 }

func (Listen) isEffect()            {}
func (CancelListening) isEffect()   {}
func (ResetEngine) isEffect()       {}
func (AnnounceAttempt) isEffect()   {}
func (AnnounceCorrect) isEffect()   {}
func (AnnounceIncorrect) isEffect() {}
func (AnnounceComplete) isEffect()  {}
func (RecordCorrect) isEffect()     {}
func (CommitRound) isEffect()       {}
func (ScheduleAdvance) isEffect()   {}

// BuildSequence samples a round sequence without replacement: shuffle a
// copy of the pool and truncate to length.
func BuildSequence(pool []content.Target, length int, rng *rand.Rand) []content.Target {
	seq := make([]content.Target, len(pool))
	copy(seq, pool)
	rng.Shuffle(len(seq), func(i, j int) { seq[i], seq[j] = seq[j], seq[i] })
	if length > 0 && len(seq) > length {
		seq = seq[:length]
	}
	return seq
}

// HandleEvent advances the round state machine. Events with stale tokens
// or arriving in the wrong phase are ignored.
func HandleEvent(p Policy, s State, ev Event) (State, []Effect) {
	switch e := ev.(type) {
	case Start:
		return startRound(s, e.Sequence)
	case HeardResult:
		if s.Phase != PhaseListening || e.Token != s.Token {
			return s, nil
		}
		return evaluateResult(p, s, e.Result)
	case HeardError:
		if s.Phase != PhaseListening || e.Token != s.Token {
			return s, nil
		}
		return handleError(p, s, e.Code, e.Telemetry)
	case WatchdogFired:
		if s.Phase != PhaseListening || e.Token != s.Token {
			return s, nil
		}
		return handleSilence(p, s)
	case FeedbackDone:
		if e.Token != s.Token {
			return s, nil
		}
		return handleFeedbackDone(p, s)
	case Abandon:
		if s.Phase == PhaseComplete {
			return s, nil
		}
		s.Phase = PhaseComplete
		s.Abandoned = true
		s.Token++
		return s, []Effect{CancelListening{}}
	}
	return s, nil
}

func startRound(s State, sequence []content.Target) (State, []Effect) {
	s = State{Sequence: sequence, Token: s.Token + 1}
	if len(sequence) == 0 {
		s.Phase = PhaseComplete
		return s, []Effect{AnnounceComplete{Correct: 0, Total: 0, Won: false}}
	}
	s.Phase = PhaseListening
	target := sequence[0]
	return s, []Effect{
		CancelListening{},
		AnnounceAttempt{Target: target, Attempt: 1},
		Listen{Target: target, Token: s.Token, Attempt: 1},
	}
}

func evaluateResult(p Policy, s State, result speech.Result) (State, []Effect) {
	target, ok := s.Current()
	if !ok {
		return complete(p, s)
	}
	verdict := match.Score(result.Texts(), target)
	if verdict.Matched {
		s.Correct++
		s.Phase = PhaseCorrectFeedback
		return s, []Effect{
			RecordCorrect{Target: target},
			AnnounceCorrect{Target: target, Verdict: verdict},
			ScheduleAdvance{Token: s.Token},
		}
	}
	return missAttempt(p, s, target)
}

// missAttempt consumes an attempt slot and routes to retry feedback or
// final feedback.
func missAttempt(p Policy, s State, target content.Target) (State, []Effect) {
	s.Attempts++
	if s.Attempts < p.MaxAttempts {
		s.Phase = PhaseRetryFeedback
		return s, []Effect{
			AnnounceIncorrect{Target: target, FinalAttempt: false},
			ScheduleAdvance{Token: s.Token},
		}
	}
	s.Phase = PhaseFinalFeedback
	return s, []Effect{
		AnnounceIncorrect{Target: target, FinalAttempt: true},
		ScheduleAdvance{Token: s.Token},
	}
}

// retryQuietly restarts listening for the same target without feedback
// and with attempt cost already decided by the caller.
func retryQuietly(s State, target content.Target, extra ...Effect) (State, []Effect) {
	s.Token++
	s.Phase = PhaseListening
	effects := append([]Effect{CancelListening{}}, extra...)
	effects = append(effects, Listen{Target: target, Token: s.Token, Attempt: s.Attempts + 1})
	return s, effects
}

func handleError(p Policy, s State, code speech.Code, tel speech.Telemetry) (State, []Effect) {
	target, ok := s.Current()
	if !ok {
		return complete(p, s)
	}

	switch {
	case code == speech.CodeNoMatch:
		// A silent no-match means the engine timed out without hearing
		// anything; that should not burn the learner's attempt.
		if p.FreeRetryOnSilentNoMatch && !tel.RMSSeen && s.FreeRetries < p.FreeRetryBudget {
			s.FreeRetries++
			return retryQuietly(s, target)
		}
		return missAttempt(p, s, target)

	case speech.IsTransient(code):
		if s.EngineResets < p.EngineResetBudget {
			s.EngineResets++
			return retryQuietly(s, target, ResetEngine{})
		}
		return softErrorRetry(p, s, target)

	case speech.IsFatal(code):
		s.SpeechDisabled = true
		return advance(p, s)

	default:
		return softErrorRetry(p, s, target)
	}
}

// softErrorRetry handles non-fatal engine trouble: it costs an attempt
// but plays no wrong-answer feedback.
func softErrorRetry(p Policy, s State, target content.Target) (State, []Effect) {
	s.Attempts++
	if s.Attempts < p.MaxAttempts {
		return retryQuietly(s, target)
	}
	return advance(p, s)
}

// handleSilence covers the listening watchdog: nothing was heard within
// the window. The same attempt is retried for free until the free-retry
// budget runs out, then it costs attempts like a soft error.
func handleSilence(p Policy, s State) (State, []Effect) {
	target, ok := s.Current()
	if !ok {
		return complete(p, s)
	}
	if s.FreeRetries < p.FreeRetryBudget {
		s.FreeRetries++
		return retryQuietly(s, target)
	}
	return softErrorRetry(p, s, target)
}

func handleFeedbackDone(p Policy, s State) (State, []Effect) {
	switch s.Phase {
	case PhaseRetryFeedback:
		target, ok := s.Current()
		if !ok {
			return complete(p, s)
		}
		return retryQuietly(s, target)
	case PhaseCorrectFeedback, PhaseFinalFeedback, PhaseAutoAdvance:
		return advance(p, s)
	}
	return s, nil
}

// advance moves to the next target or completes the round. When speech
// is disabled the remaining targets are walked on a silent timer so the
// UI still reaches a terminal state.
func advance(p Policy, s State) (State, []Effect) {
	s.Index++
	s.Attempts = 0
	s.FreeRetries = 0
	s.Token++
	if s.Index >= len(s.Sequence) {
		return complete(p, s)
	}
	target := s.Sequence[s.Index]
	if s.SpeechDisabled {
		s.Phase = PhaseAutoAdvance
		return s, []Effect{
			AnnounceAttempt{Target: target, Attempt: 1},
			ScheduleAdvance{Token: s.Token},
		}
	}
	s.Phase = PhaseListening
	return s, []Effect{
		CancelListening{},
		AnnounceAttempt{Target: target, Attempt: 1},
		Listen{Target: target, Token: s.Token, Attempt: 1},
	}
}

func complete(p Policy, s State) (State, []Effect) {
	s.Phase = PhaseComplete
	s.Token++
	total := len(s.Sequence)
	won := s.Correct >= p.WinThreshold
	return s, []Effect{
		CancelListening{},
		CommitRound{Correct: s.Correct, Total: total},
		AnnounceComplete{Correct: s.Correct, Total: total, Won: won},
	}
}
