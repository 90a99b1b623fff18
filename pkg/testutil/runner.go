package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/arthur-debert/appsweep/pkg/command"
)

// MockRunner is a testify mock of command.Runner.
type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context, spec command.Spec) (command.Result, error) {
	args := m.Called(ctx, spec)
	return args.Get(0).(command.Result), args.Error(1)
}

// MockPrivilegedRunner is a testify mock of command.PrivilegedRunner.
type MockPrivilegedRunner struct {
	mock.Mock
}

func (m *MockPrivilegedRunner) RunScript(ctx context.Context, script string) (command.Result, error) {
	args := m.Called(ctx, script)
	return args.Get(0).(command.Result), args.Error(1)
}

// Response is a scripted outcome for RecordingRunner.
type Response struct {
	Stdout string
	Lines  []string
	Err    error
}

// RecordingRunner answers commands from a table keyed by the command line
// ("name arg1 arg2") or by name alone, and records every call.
type RecordingRunner struct {
	mu        sync.Mutex
	calls     []command.Spec
	responses map[string]Response

	// Fallback answers commands with no table entry
	Fallback func(spec command.Spec) (command.Result, error)
}

// NewRecordingRunner creates an empty runner.
func NewRecordingRunner() *RecordingRunner {
	return &RecordingRunner{responses: make(map[string]Response)}
}

// On registers the response for a command line or a bare command name.
func (r *RecordingRunner) On(key string, resp Response) *RecordingRunner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[key] = resp
	return r
}

func (r *RecordingRunner) Run(_ context.Context, spec command.Spec) (command.Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, spec)
	resp, ok := r.responses[CommandLine(spec)]
	if !ok {
		resp, ok = r.responses[spec.Name]
	}
	fallback := r.Fallback
	r.mu.Unlock()

	if !ok {
		if fallback != nil {
			return fallback(spec)
		}
		return command.Result{}, nil
	}
	for _, line := range resp.Lines {
		if spec.OnLine != nil {
			spec.OnLine(command.Stdout, line)
		}
	}
	return command.Result{Stdout: resp.Stdout}, resp.Err
}

// Calls returns the command lines run so far.
func (r *RecordingRunner) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	for i, c := range r.calls {
		out[i] = CommandLine(c)
	}
	return out
}

// Specs returns the raw specs run so far.
func (r *RecordingRunner) Specs() []command.Spec {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]command.Spec(nil), r.calls...)
}

// CommandLine joins a spec's name and arguments with spaces.
func CommandLine(spec command.Spec) string {
	return strings.TrimSpace(spec.Name + " " + strings.Join(spec.Args, " "))
}
