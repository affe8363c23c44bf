package command

import (
	"errors"
	"fmt"
)

// CommandError reports a non-zero exit from an external tool. Output holds
// the captured stderr, trimmed.
type CommandError struct {
	Tool   string
	Output string
	Err    error
}

func (e *CommandError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("%s failed: %v", e.Tool, e.Err)
	}
	return fmt.Sprintf("%s failed: %s", e.Tool, e.Output)
}

func (e *CommandError) Unwrap() error { return e.Err }

// ToolNotFoundError reports a binary missing from the environment. This is
// an installation problem, not a runtime fault, and is surfaced to the user
// with the tool name so they know what to install.
type ToolNotFoundError struct {
	Tool string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("required tool not found: %s", e.Tool)
}

// IsToolNotFound reports whether err wraps a ToolNotFoundError, and if so
// which tool was missing.
func IsToolNotFound(err error) (string, bool) {
	var tnf *ToolNotFoundError
	if errors.As(err, &tnf) {
		return tnf.Tool, true
	}
	return "", false
}
