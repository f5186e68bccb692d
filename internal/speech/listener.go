// Package speech defines the boundary contract with the device's native
// speech recognizer. The engine itself is an external collaborator; this
// package only carries its results and classifies its errors.
package speech

import (
	"context"
	"errors"
	"fmt"
)

// Candidate is one recognized phrase with the engine-reported confidence.
// Confidence is surfaced but never used for scoring.
type Candidate struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Telemetry carries optional timing/level data from the engine. Malformed
// or missing telemetry is represented by the zero value and never treated
// as an error.
type Telemetry struct {
	RMSSeen        bool  `json:"rms_seen"`
	SpeechDetected bool  `json:"speech_detected"`
	EngineMS       int64 `json:"engine_ms,omitempty"`
}

// Result is one recognition outcome: the raw transcript plus alternates.
type Result struct {
	Raw        string      `json:"raw"`
	Candidates []Candidate `json:"candidates"`
	Telemetry  Telemetry   `json:"telemetry"`
}

// Texts returns the candidate strings in engine order, with the raw
// transcript first when the engine did not repeat it in the alternates.
func (r Result) Texts() []string {
	texts := make([]string, 0, len(r.Candidates)+1)
	if r.Raw != "" {
		texts = append(texts, r.Raw)
	}
	for _, c := range r.Candidates {
		if c.Text != "" && c.Text != r.Raw {
			texts = append(texts, c.Text)
		}
	}
	return texts
}

// Options configures the engine for a game session.
type Options struct {
	Language       string
	MaxUtteranceMS int
	PostSilenceMS  int
}

// Listener abstracts the native speech engine. Listen blocks until the
// engine commits a result or fails; the caller bounds it with a context
// deadline (the watchdog). Implementations must tolerate Stop while no
// session is active.
type Listener interface {
	Init(ctx context.Context, opts Options) error
	Listen(ctx context.Context, expected string) (Result, error)
	Stop()
	Reset(ctx context.Context) error
}

// Code identifies an engine error condition.
type Code string

const (
	CodeNoMatch               Code = "NO_MATCH"
	CodePermissionDenied      Code = "PERMISSION_DENIED"
	CodeInsufficientPerms     Code = "INSUFFICIENT_PERMISSIONS"
	CodeStartFailed           Code = "START_FAILED"
	CodeAlreadyListening      Code = "ALREADY_LISTENING"
	CodeEngineUnavailable     Code = "ENGINE_UNAVAILABLE"
	CodeEngineCreateFailed    Code = "ENGINE_CREATE_FAILED"
	CodeEngineRestartRequired Code = "ENGINE_RESTART_REQUIRED"
)

// Error is an engine failure with its code and whatever telemetry the
// engine delivered alongside it.
type Error struct {
	Code      Code
	Telemetry Telemetry
}

func (e *Error) Error() string {
	return fmt.Sprintf("speech engine error: %s", e.Code)
}

// CodeOf extracts the engine code from err, or "" when err is not an
// engine error.
func CodeOf(err error) Code {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// TelemetryOf extracts engine telemetry from err, zero when absent.
func TelemetryOf(err error) Telemetry {
	var se *Error
	if errors.As(err, &se) {
		return se.Telemetry
	}
	return Telemetry{}
}

// IsFatal reports whether a code must disable listening for the rest of
// the session. Fatal codes cannot be recovered by retrying or resetting
// the engine.
func IsFatal(code Code) bool {
	switch code {
	case CodePermissionDenied, CodeInsufficientPerms, CodeStartFailed,
		CodeAlreadyListening, CodeEngineUnavailable, CodeEngineCreateFailed:
		return true
	}
	return false
}

// IsTransient reports whether a code is worth an engine reset before the
// attempt is retried.
func IsTransient(code Code) bool {
	return code == CodeEngineRestartRequired
}
