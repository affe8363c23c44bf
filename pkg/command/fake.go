package command

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// NoopRunner logs every command without executing it. It backs the
// --dry-run mode so a plan can be reviewed without touching disks.
type NoopRunner struct{}

func NewNoopRunner() *NoopRunner { return &NoopRunner{} }

func (n *NoopRunner) Run(ctx context.Context, name string, args ...string) error {
	slog.Info("noop_exec", "tool", name, "args", strings.Join(args, " "))
	return nil
}

func (n *NoopRunner) Output(ctx context.Context, name string, args ...string) (string, error) {
	slog.Info("noop_exec_output", "tool", name, "args", strings.Join(args, " "))
	return "", nil
}

func (n *NoopRunner) Stream(ctx context.Context, name string, args ...string) (Process, error) {
	slog.Info("noop_exec_stream", "tool", name, "args", strings.Join(args, " "))
	return &fakeProcess{stderr: strings.NewReader("")}, nil
}

// Call records one command invocation observed by a FakeRunner.
type Call struct {
	Tool string
	Args []string
}

// FakeRunner is a scripted Runner for tests. Hook, when set, runs before
// each invocation and may return an error to simulate a failing tool or
// create filesystem side effects (e.g. populate a mount point). StderrFor
// supplies the streamed stderr content per tool; WaitErrFor makes a
// streamed tool fail at Wait after its output is consumed.
type FakeRunner struct {
	mu         sync.Mutex
	calls      []Call
	Hook       func(tool string, args []string) error
	StdoutFor  map[string]string
	StderrFor  map[string]string
	WaitErrFor map[string]error
}

func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		StdoutFor:  map[string]string{},
		StderrFor:  map[string]string{},
		WaitErrFor: map[string]error{},
	}
}

// Calls returns a copy of every invocation seen so far.
func (f *FakeRunner) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallsTo returns the invocations of one tool.
func (f *FakeRunner) CallsTo(tool string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Tool == tool {
			out = append(out, c)
		}
	}
	return out
}

func (f *FakeRunner) record(tool string, args []string) error {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Tool: tool, Args: args})
	hook := f.Hook
	f.mu.Unlock()
	if hook != nil {
		return hook(tool, args)
	}
	return nil
}

func (f *FakeRunner) Run(ctx context.Context, name string, args ...string) error {
	return f.record(name, args)
}

func (f *FakeRunner) Output(ctx context.Context, name string, args ...string) (string, error) {
	if err := f.record(name, args); err != nil {
		return "", err
	}
	return f.StdoutFor[name], nil
}

func (f *FakeRunner) Stream(ctx context.Context, name string, args ...string) (Process, error) {
	if err := f.record(name, args); err != nil {
		return nil, err
	}
	return &fakeProcess{
		stderr:  strings.NewReader(f.StderrFor[name]),
		waitErr: f.WaitErrFor[name],
	}, nil
}

type fakeProcess struct {
	stderr  io.Reader
	waitErr error
}

func (p *fakeProcess) Stderr() io.Reader { return p.stderr }
func (p *fakeProcess) Wait() error       { return p.waitErr }
