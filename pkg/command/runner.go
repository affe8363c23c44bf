// Package command executes the external tools (parted, mkfs, mount, dd, rsync)
// the creation flows are built on. All invocations go through the Runner
// interface so flows can be exercised against scripted runners.
package command

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"strings"
)

// Runner runs external commands. Implementations must classify a missing
// binary as *ToolNotFoundError and a non-zero exit as *CommandError.
type Runner interface {
	// Run executes the command and waits for it, discarding stdout.
	Run(ctx context.Context, name string, args ...string) error

	// Output executes the command and returns its stdout.
	Output(ctx context.Context, name string, args ...string) (string, error)

	// Stream starts the command and hands back its stderr for incremental
	// reading. The caller must drain the reader and then call Wait.
	Stream(ctx context.Context, name string, args ...string) (Process, error)
}

// Process is a started streaming command.
type Process interface {
	// Stderr is the live error/progress stream of the running command.
	Stderr() io.Reader

	// Wait blocks until the command exits.
	Wait() error
}

// ExecRunner runs commands with os/exec and logs every invocation.
type ExecRunner struct{}

// NewExecRunner creates a runner backed by os/exec.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	slog.Info("exec", "tool", name, "args", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return classifyExecError(name, err, stderr.String())
	}
	return nil
}

func (r *ExecRunner) Output(ctx context.Context, name string, args ...string) (string, error) {
	slog.Info("exec_output", "tool", name, "args", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", classifyExecError(name, err, stderr.String())
	}
	return stdout.String(), nil
}

func (r *ExecRunner) Stream(ctx context.Context, name string, args ...string) (Process, error) {
	slog.Info("exec_stream", "tool", name, "args", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, name, args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, classifyExecError(name, err, "")
	}
	if err := cmd.Start(); err != nil {
		return nil, classifyExecError(name, err, "")
	}
	return &execProcess{tool: name, cmd: cmd, stderr: stderr}, nil
}

type execProcess struct {
	tool   string
	cmd    *exec.Cmd
	stderr io.Reader
}

func (p *execProcess) Stderr() io.Reader { return p.stderr }

func (p *execProcess) Wait() error {
	if err := p.cmd.Wait(); err != nil {
		return classifyExecError(p.tool, err, "")
	}
	return nil
}

func classifyExecError(tool string, err error, stderr string) error {
	var execErr *exec.Error
	if errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound) {
		slog.Error("tool_not_found", "tool", tool)
		return &ToolNotFoundError{Tool: tool}
	}
	out := strings.TrimSpace(stderr)
	slog.Error("command_failed", "tool", tool, "error", err, "stderr", out)
	return &CommandError{Tool: tool, Output: out, Err: err}
}
