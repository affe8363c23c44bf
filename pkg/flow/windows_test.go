package flow

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/majusb/majusb/pkg/command"
	"github.com/majusb/majusb/pkg/mount"
	"github.com/majusb/majusb/pkg/progress"
)

func newWindowsHarness(t *testing.T) (*WindowsFlow, *command.FakeRunner, *progress.Recorder) {
	t.Helper()
	runner := command.NewFakeRunner()
	cfg := DefaultWindowsConfig()
	cfg.MountBase = t.TempDir()
	f := NewWindowsFlow(runner, mount.NewManager(runner), cfg)
	return f, runner, progress.NewRecorder()
}

func TestWindowsFlowWatermarks(t *testing.T) {
	f, runner, rec := newWindowsHarness(t)

	req := Request{ImagePath: "/tmp/win.iso", DevicePath: "/dev/sdb"}
	if err := f.Run(context.Background(), req, rec); err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantOveralls := []int{10, 30, 35, 60, 90, 100}
	if got := rec.Overalls(); !slices.Equal(got, wantOveralls) {
		t.Fatalf("overall watermarks = %v, want %v", got, wantOveralls)
	}
	for _, pct := range rec.Steps() {
		if pct != 100 {
			t.Fatalf("step boundary emitted %d, want 100", pct)
		}
	}

	if got := len(runner.CallsTo("mount")); got != 3 {
		t.Fatalf("mount called %d times, want 3", got)
	}
	if got := len(runner.CallsTo("umount")); got != 3 {
		t.Fatalf("umount called %d times, want 3", got)
	}

	mkparts := runner.CallsTo("parted")
	var sawBoot, sawInstall bool
	for _, c := range mkparts {
		joined := strings.Join(c.Args, " ")
		if strings.Contains(joined, "mkpart BOOT fat32 0% 1GiB") {
			sawBoot = true
		}
		if strings.Contains(joined, "mkpart ESD-USB ntfs 1GiB 100%") {
			sawInstall = true
		}
	}
	if !sawBoot || !sawInstall {
		t.Fatalf("missing mkpart invocations, got %v", mkparts)
	}
}

func TestWindowsFlowFailingFormatter(t *testing.T) {
	f, runner, rec := newWindowsHarness(t)
	runner.Hook = func(tool string, args []string) error {
		if tool == "mkfs.vfat" {
			return &command.CommandError{Tool: "mkfs.vfat", Output: "unable to open /dev/sdb1"}
		}
		return nil
	}

	req := Request{ImagePath: "/tmp/win.iso", DevicePath: "/dev/sdb"}
	err := f.Run(context.Background(), req, rec)
	if err == nil {
		t.Fatal("Run succeeded, want formatter failure")
	}
	if !strings.HasPrefix(err.Error(), "mkfs.vfat") {
		t.Fatalf("error %q does not lead with the tool name", err)
	}

	// Nothing was mounted before the formatter ran, so nothing may linger.
	if got := len(runner.CallsTo("mount")); got != 0 {
		t.Fatalf("mount called %d times before failure, want 0", got)
	}

	// Cleanup still drives both bars to completion.
	overalls := rec.Overalls()
	if len(overalls) == 0 || overalls[len(overalls)-1] != 100 {
		t.Fatalf("overall did not finish at 100 after failure: %v", overalls)
	}
	steps := rec.Steps()
	if len(steps) == 0 || steps[len(steps)-1] != 100 {
		t.Fatalf("step did not finish at 100 after failure: %v", steps)
	}
}

// ctxRunner refuses commands once its context is done, the way the
// exec-backed runner does.
type ctxRunner struct {
	*command.FakeRunner
}

func (r *ctxRunner) Run(ctx context.Context, name string, args ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.FakeRunner.Run(ctx, name, args...)
}

func TestWindowsFlowCancelledMidFlowReleasesMounts(t *testing.T) {
	fake := command.NewFakeRunner()
	runner := &ctxRunner{FakeRunner: fake}
	cfg := DefaultWindowsConfig()
	cfg.MountBase = t.TempDir()
	f := NewWindowsFlow(runner, mount.NewManager(runner), cfg)
	rec := progress.NewRecorder()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fake.Hook = func(tool string, args []string) error {
		if tool == "rsync" {
			cancel()
		}
		return nil
	}

	req := Request{ImagePath: "/tmp/win.iso", DevicePath: "/dev/sdb"}
	err := f.Run(ctx, req, rec)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	// Image and boot mounts were live at the cancel; both must be
	// released, and the final sync must still run.
	mounts := len(fake.CallsTo("mount"))
	umounts := len(fake.CallsTo("umount"))
	if mounts != 2 || umounts != mounts {
		t.Fatalf("mounts=%d umounts=%d, want both released after cancel", mounts, umounts)
	}
	if got := len(fake.CallsTo("sync")); got != 1 {
		t.Fatalf("sync calls = %d, want 1 after cancel", got)
	}

	overalls := rec.Overalls()
	if len(overalls) == 0 || overalls[len(overalls)-1] != 100 {
		t.Fatalf("overall did not finish at 100 after cancel: %v", overalls)
	}
}

func TestWindowsFlowMidCopyFailureReleasesMounts(t *testing.T) {
	f, runner, rec := newWindowsHarness(t)
	rsyncs := 0
	runner.Hook = func(tool string, args []string) error {
		if tool == "rsync" {
			rsyncs++
			if rsyncs == 2 {
				return &command.CommandError{Tool: "rsync", Output: "write error"}
			}
		}
		return nil
	}

	req := Request{ImagePath: "/tmp/win.iso", DevicePath: "/dev/sdb"}
	if err := f.Run(context.Background(), req, rec); err == nil {
		t.Fatal("Run succeeded, want rsync failure")
	}

	mounts := len(runner.CallsTo("mount"))
	umounts := len(runner.CallsTo("umount"))
	if mounts != 3 || umounts != mounts {
		t.Fatalf("mounts=%d umounts=%d, want all three released", mounts, umounts)
	}
}

func TestWindowsFlowRefusesSystemDevice(t *testing.T) {
	f, runner, rec := newWindowsHarness(t)
	runner.StdoutFor["lsblk"] = "sdb1 /boot/efi\nsdb2 /\nsdb3\n"

	req := Request{ImagePath: "/tmp/win.iso", DevicePath: "/dev/sdb"}
	err := f.Run(context.Background(), req, rec)
	if err == nil || !strings.Contains(err.Error(), "refusing") {
		t.Fatalf("err = %v, want refusal", err)
	}
	if got := len(runner.CallsTo("wipefs")); got != 0 {
		t.Fatalf("wipefs ran %d times on a system device", got)
	}
}

func TestWindowsFlowUnmountsBusyMounts(t *testing.T) {
	f, runner, rec := newWindowsHarness(t)
	runner.StdoutFor["lsblk"] = "sdb1 /media/usb\nsda1 /home\n"

	req := Request{ImagePath: "/tmp/win.iso", DevicePath: "/dev/sdb"}
	if err := f.Run(context.Background(), req, rec); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var forced bool
	for _, c := range runner.CallsTo("umount") {
		if slices.Equal(c.Args, []string{"-f", "/media/usb"}) {
			forced = true
		}
		if slices.Contains(c.Args, "/home") {
			t.Fatal("unmounted a mount belonging to another disk")
		}
	}
	if !forced {
		t.Fatal("busy mount /media/usb was not unmounted before the wipe")
	}
}

func TestWindowsFlowSplitImage(t *testing.T) {
	f, runner, rec := newWindowsHarness(t)

	req := Request{ImagePath: "/tmp/win.iso", DevicePath: "/dev/sdb", SplitImage: true}
	if err := f.Run(context.Background(), req, rec); err != nil {
		t.Fatalf("Run: %v", err)
	}

	calls := runner.CallsTo("wimlib-imagex")
	if len(calls) != 1 || calls[0].Args[0] != "split" {
		t.Fatalf("wimlib-imagex calls = %v, want one split", calls)
	}
	joined := strings.Join(calls[0].Args, " ")
	if !strings.Contains(joined, "install.wim") || !strings.Contains(joined, "install.swm") {
		t.Fatalf("split args %q missing wim/swm paths", joined)
	}
}

func TestWindowsFlowPartitionNaming(t *testing.T) {
	f, runner, rec := newWindowsHarness(t)

	req := Request{ImagePath: "/tmp/win.iso", DevicePath: "/dev/nvme0n1"}
	if err := f.Run(context.Background(), req, rec); err != nil {
		t.Fatalf("Run: %v", err)
	}

	vfat := runner.CallsTo("mkfs.vfat")
	if len(vfat) != 1 || vfat[0].Args[len(vfat[0].Args)-1] != "/dev/nvme0n1p1" {
		t.Fatalf("mkfs.vfat calls = %v, want target /dev/nvme0n1p1", vfat)
	}
	ntfs := runner.CallsTo("mkfs.ntfs")
	if len(ntfs) != 1 || ntfs[0].Args[len(ntfs[0].Args)-1] != "/dev/nvme0n1p2" {
		t.Fatalf("mkfs.ntfs calls = %v, want target /dev/nvme0n1p2", ntfs)
	}
}
