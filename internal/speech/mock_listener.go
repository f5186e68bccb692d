package speech

import (
	"context"
	"sync"
)

// MockListener replays a scripted sequence of recognition outcomes. Used
// in tests and in environments without a native engine.
type MockListener struct {
	mu      sync.Mutex
	script  []scripted
	stops   int
	resets  int
	listens int
}

type scripted struct {
	result Result
	err    error
}

// NewMockListener returns an empty mock; queue outcomes with EnqueueResult
// and EnqueueError. When the script runs out, Listen reports NO_MATCH.
func NewMockListener() *MockListener {
	return &MockListener{}
}

func (m *MockListener) EnqueueResult(r Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, scripted{result: r})
}

func (m *MockListener) EnqueueError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, scripted{err: err})
}

// EnqueueTexts queues a successful result built from plain phrases.
func (m *MockListener) EnqueueTexts(texts ...string) {
	r := Result{Telemetry: Telemetry{RMSSeen: true, SpeechDetected: true}}
	if len(texts) > 0 {
		r.Raw = texts[0]
	}
	for _, t := range texts {
		r.Candidates = append(r.Candidates, Candidate{Text: t})
	}
	m.EnqueueResult(r)
}

func (m *MockListener) Init(context.Context, Options) error { return nil }

func (m *MockListener) Listen(ctx context.Context, _ string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listens++
	if len(m.script) == 0 {
		return Result{}, &Error{Code: CodeNoMatch}
	}
	next := m.script[0]
	m.script = m.script[1:]
	if next.err != nil {
		return Result{}, next.err
	}
	return next.result, nil
}

func (m *MockListener) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
}

func (m *MockListener) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
	return nil
}

// Resets returns how many engine resets were requested.
func (m *MockListener) Resets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets
}

// Listens returns how many listen sessions were started.
func (m *MockListener) Listens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listens
}
