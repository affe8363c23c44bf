// Package mount provides scoped acquisition and release of loopback and
// block-device mounts. Every acquisition made inside a flow is registered
// with a Scope and released in reverse order on every exit path.
package mount

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/majusb/majusb/pkg/command"
)

// Options controls how a source is mounted.
type Options struct {
	// Loop mounts a regular file through a loop device.
	Loop bool
	// ReadOnly mounts the filesystem read-only.
	ReadOnly bool
	// FSType forces the filesystem type (mount -t).
	FSType string
	// Extra holds additional comma-joined mount options.
	Extra []string
}

// Handle identifies one active mount. It is owned by the scope or flow step
// that acquired it and must be passed back to Release exactly once.
type Handle struct {
	Source   string
	Target   string
	ReadOnly bool

	createdDir bool
}

// MountError reports a failed mount acquisition. Release failures are never
// reported as errors; they are logged and swallowed because release runs
// during cleanup-after-failure.
type MountError struct {
	Source string
	Target string
	Err    error
}

func (e *MountError) Error() string {
	return fmt.Sprintf("mount %s on %s: %v", e.Source, e.Target, e.Err)
}

func (e *MountError) Unwrap() error { return e.Err }

// IsMountError reports whether err wraps a MountError.
func IsMountError(err error) bool {
	var me *MountError
	return errors.As(err, &me)
}

// Manager acquires and releases mounts through the mount/umount tools.
type Manager struct {
	runner command.Runner
}

func NewManager(runner command.Runner) *Manager {
	return &Manager{runner: runner}
}

// Acquire creates the mount point if needed and mounts source on target.
// On failure a directory created here is removed again and a MountError is
// returned.
func (m *Manager) Acquire(ctx context.Context, source, target string, opts Options) (*Handle, error) {
	createdDir := false
	if _, err := os.Stat(target); os.IsNotExist(err) {
		if err := os.MkdirAll(target, 0755); err != nil {
			return nil, &MountError{Source: source, Target: target, Err: err}
		}
		createdDir = true
	}

	args := mountArgs(source, target, opts)
	if err := m.runner.Run(ctx, "mount", args...); err != nil {
		if createdDir {
			if rmErr := os.Remove(target); rmErr != nil {
				slog.Warn("mount_point_remove_failed", "target", target, "error", rmErr)
			}
		}
		return nil, &MountError{Source: source, Target: target, Err: err}
	}

	slog.Info("mount_acquired", "source", source, "target", target, "read_only", opts.ReadOnly)
	return &Handle{
		Source:     source,
		Target:     target,
		ReadOnly:   opts.ReadOnly,
		createdDir: createdDir,
	}, nil
}

// Release unmounts the handle and removes the mount point directory if this
// manager created it. It never fails: release runs on cleanup paths where a
// secondary failure must not mask the primary one, so problems are logged
// and swallowed.
func (m *Manager) Release(ctx context.Context, h *Handle) {
	if h == nil {
		return
	}
	// Release runs on cleanup paths where the run context may already be
	// cancelled; the unmount must still execute.
	ctx = context.WithoutCancel(ctx)
	if err := m.runner.Run(ctx, "umount", h.Target); err != nil {
		slog.Warn("unmount_failed", "target", h.Target, "error", err)
	} else {
		slog.Info("mount_released", "target", h.Target)
	}
	if h.createdDir {
		if err := os.Remove(h.Target); err != nil {
			slog.Warn("mount_point_remove_failed", "target", h.Target, "error", err)
		}
	}
}

// ForceUnmount best-effort unmounts whatever is mounted at target, e.g. a
// stale mount left behind by a previous failed run. Errors are ignored.
func (m *Manager) ForceUnmount(ctx context.Context, target string) {
	if err := m.runner.Run(context.WithoutCancel(ctx), "umount", "-f", target); err != nil {
		slog.Debug("force_unmount_skipped", "target", target, "error", err)
	}
}

func mountArgs(source, target string, opts Options) []string {
	var args []string
	if opts.FSType != "" {
		args = append(args, "-t", opts.FSType)
	}
	var o []string
	if opts.Loop {
		o = append(o, "loop")
	}
	if opts.ReadOnly {
		o = append(o, "ro")
	}
	o = append(o, opts.Extra...)
	if len(o) > 0 {
		args = append(args, "-o", strings.Join(o, ","))
	}
	return append(args, source, target)
}
