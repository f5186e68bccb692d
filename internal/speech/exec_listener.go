package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"sync"

	"github.com/mattn/go-shellwords"
)

// ExecListener shells out to an external recognizer per listening
// session. The command reads from the microphone itself and prints one
// JSON document on stdout.
type ExecListener struct {
	cmd  []string
	opts Options
	mu   sync.Mutex
}

type execResponse struct {
	Raw        string      `json:"raw"`
	Candidates []Candidate `json:"candidates"`
	Telemetry  Telemetry   `json:"telemetry"`
	ErrorCode  string      `json:"error_code,omitempty"`
}

// NewExecListener parses the configured command line.
func NewExecListener(command string) (*ExecListener, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse speech command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("speech command is empty")
	}
	return &ExecListener{cmd: args}, nil
}

func (l *ExecListener) Init(_ context.Context, opts Options) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.opts = opts
	return nil
}

func (l *ExecListener) Listen(ctx context.Context, _ string) (Result, error) {
	l.mu.Lock()
	args := append([]string{}, l.cmd...)
	opts := l.opts
	l.mu.Unlock()

	base := args[0]
	cmdArgs := args[1:]
	if opts.Language != "" {
		cmdArgs = append(cmdArgs, "--language", opts.Language)
	}
	if opts.MaxUtteranceMS > 0 {
		cmdArgs = append(cmdArgs, "--max-ms", strconv.Itoa(opts.MaxUtteranceMS))
	}
	if opts.PostSilenceMS > 0 {
		cmdArgs = append(cmdArgs, "--silence-ms", strconv.Itoa(opts.PostSilenceMS))
	}

	command := exec.CommandContext(ctx, base, cmdArgs...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, fmt.Errorf("speech command failed: %w: %s", err, stderr.String())
	}

	var resp execResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return Result{}, fmt.Errorf("decode speech response: %w", err)
	}
	if resp.ErrorCode != "" {
		return Result{}, &Error{Code: Code(resp.ErrorCode), Telemetry: resp.Telemetry}
	}
	return Result{Raw: resp.Raw, Candidates: resp.Candidates, Telemetry: resp.Telemetry}, nil
}

// Stop is a no-op: cancelling the listen context kills the command.
func (l *ExecListener) Stop() {}

// Reset is a no-op: each session spawns a fresh process.
func (l *ExecListener) Reset(context.Context) error { return nil }
