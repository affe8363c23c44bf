package system

import (
	"bufio"
	"os"
	"os/exec"
	"strings"
)

// RequiredTools lists the external binaries every write depends on.
// wimlib-imagex and ntfs-3g are optional and checked separately.
var RequiredTools = []string{
	"dd",
	"wipefs",
	"parted",
	"mkfs.vfat",
	"mkfs.ntfs",
	"rsync",
	"mount",
	"umount",
	"sync",
	"lsblk",
}

// OptionalTools improve the write when present but never block it.
var OptionalTools = []string{
	"ntfs-3g",
	"wimlib-imagex",
}

// ToolStatus is the lookup result for one binary.
type ToolStatus struct {
	Tool     string
	Path     string
	Found    bool
	Optional bool
}

// Lookup resolves every required and optional tool on PATH.
func Lookup() []ToolStatus {
	var out []ToolStatus
	for _, tool := range RequiredTools {
		out = append(out, lookupOne(tool, false))
	}
	for _, tool := range OptionalTools {
		out = append(out, lookupOne(tool, true))
	}
	return out
}

func lookupOne(tool string, optional bool) ToolStatus {
	path, err := exec.LookPath(tool)
	return ToolStatus{Tool: tool, Path: path, Found: err == nil, Optional: optional}
}

// MissingRequired returns the required tools absent from PATH.
func MissingRequired() []string {
	var missing []string
	for _, st := range Lookup() {
		if !st.Optional && !st.Found {
			missing = append(missing, st.Tool)
		}
	}
	return missing
}

// packageHints maps a distro ID to the packages providing the tooling.
var packageHints = map[string]string{
	"arch":   "pacman -S dosfstools ntfs-3g parted rsync wimlib",
	"fedora": "dnf install dosfstools ntfs-3g parted rsync wimlib-utils",
	"debian": "apt install dosfstools ntfs-3g parted rsync wimtools",
	"ubuntu": "apt install dosfstools ntfs-3g parted rsync wimtools",
}

// InstallHint suggests the package-manager command for the running distro,
// or an empty string when the distro is unknown.
func InstallHint() string {
	return installHintFrom("/etc/os-release")
}

func installHintFrom(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	ids := map[string]bool{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		for _, key := range []string{"ID=", "ID_LIKE="} {
			if !strings.HasPrefix(line, key) {
				continue
			}
			val := strings.Trim(strings.TrimPrefix(line, key), `"`)
			for _, id := range strings.Fields(val) {
				ids[id] = true
			}
		}
	}

	// ID takes precedence over ID_LIKE only by listing order here; the
	// hints for related distros are interchangeable anyway.
	for _, id := range []string{"arch", "fedora", "ubuntu", "debian"} {
		if ids[id] {
			return packageHints[id]
		}
	}
	return ""
}
