// Package system covers the host-side prerequisites of a write: running
// with enough privilege and having the external tooling installed.
package system

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/majusb/majusb/pkg/errors"
	"golang.org/x/sys/unix"
)

// EnvConfig is the environment carried across a pkexec re-exec so the
// elevated process can still talk to the user's session.
type EnvConfig struct {
	Display        string
	XAuthority     string
	Home           string
	DesktopSession string
}

// CaptureEnv snapshots the session environment of the current process.
func CaptureEnv() EnvConfig {
	return EnvConfig{
		Display:        os.Getenv("DISPLAY"),
		XAuthority:     os.Getenv("XAUTHORITY"),
		Home:           os.Getenv("HOME"),
		DesktopSession: os.Getenv("XDG_SESSION_TYPE"),
	}
}

// IsRoot reports whether the process already has root privileges.
func IsRoot() bool {
	return os.Geteuid() == 0
}

// Elevate replaces the current process with a pkexec invocation of the
// same binary and arguments. It only returns on error.
func Elevate(env EnvConfig) error {
	pkexec, err := exec.LookPath("pkexec")
	if err != nil {
		return errors.Wrap(err, "pkexec not found; run as root instead")
	}

	self, err := os.Executable()
	if err != nil {
		return errors.Wrap(err, "cannot resolve own binary path")
	}

	argv := append([]string{pkexec, "env"}, env.preserved()...)
	argv = append(argv, self)
	argv = append(argv, os.Args[1:]...)

	slog.Info("elevating", "binary", self)
	return unix.Exec(pkexec, argv, os.Environ())
}

// preserved returns the env assignments re-exported through pkexec env.
func (e EnvConfig) preserved() []string {
	var out []string
	for _, kv := range []struct{ key, val string }{
		{"DISPLAY", e.Display},
		{"XAUTHORITY", e.XAuthority},
		{"HOME", e.Home},
		{"XDG_SESSION_TYPE", e.DesktopSession},
	} {
		if kv.val != "" {
			out = append(out, fmt.Sprintf("%s=%s", kv.key, kv.val))
		}
	}
	return out
}
