package flow

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/majusb/majusb/pkg/command"
	"github.com/majusb/majusb/pkg/errors"
	"github.com/majusb/majusb/pkg/mount"
	"github.com/majusb/majusb/pkg/progress"
	"github.com/majusb/majusb/pkg/wim"
)

// WindowsConfig carries the partition layout of the Windows flow.
type WindowsConfig struct {
	// MountBase is the directory under which temporary mount points are
	// created.
	MountBase string
	// BootLabel and InstallLabel name the two partitions.
	BootLabel    string
	InstallLabel string
	// BootSize is the parted end position of the boot partition.
	BootSize string
	// SplitChunkMB is the .swm chunk size used in split-image mode.
	SplitChunkMB int
}

// DefaultWindowsConfig matches the layout Windows installers expect: a
// FAT32 boot partition in the first 1GiB and an NTFS partition on the rest.
func DefaultWindowsConfig() WindowsConfig {
	return WindowsConfig{
		MountBase:    "/mnt",
		BootLabel:    "BOOT",
		InstallLabel: "ESD-USB",
		BootSize:     "1GiB",
		SplitChunkMB: wim.DefaultChunkMB,
	}
}

// WindowsFlow partitions and formats the device, then populates the boot
// partition with everything except the large install payload (copied by
// itself afterwards) and the install partition with a full copy of the
// image.
type WindowsFlow struct {
	runner command.Runner
	mounts *mount.Manager
	wim    *wim.Editor
	cfg    WindowsConfig
}

func NewWindowsFlow(runner command.Runner, mounts *mount.Manager, cfg WindowsConfig) *WindowsFlow {
	return &WindowsFlow{
		runner: runner,
		mounts: mounts,
		wim:    wim.NewEditor(runner),
		cfg:    cfg,
	}
}

func (f *WindowsFlow) Name() string { return "windows-partition-copy" }

func (f *WindowsFlow) Run(ctx context.Context, req Request, sink progress.Sink) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	base, err := os.MkdirTemp(f.cfg.MountBase, "majusb-")
	if err != nil {
		return errors.Wrap(err, "cannot create mount base")
	}
	isoM := filepath.Join(base, "iso")
	bootM := filepath.Join(base, "boot")
	instM := filepath.Join(base, "install")
	for _, dir := range []string{isoM, bootM, instM} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "cannot create mount point %s", dir)
		}
	}

	scope := f.mounts.NewScope()
	defer func() {
		// Cleanup must run even when the run context was cancelled
		// between steps.
		ctx := context.WithoutCancel(ctx)
		sink.Log("Cleaning up mounts...")
		scope.ReleaseAll(ctx)
		if err := os.RemoveAll(base); err != nil {
			slog.Warn("mount_base_remove_failed", "path", base, "error", err)
		}
		if err := f.runner.Run(ctx, "sync"); err != nil {
			slog.Warn("sync_failed", "error", err)
		}
		sink.Overall(100)
		sink.Step(100)
	}()

	if err := f.prepareDevice(ctx, req.DevicePath, sink); err != nil {
		return err
	}

	// Wipe and write the partition table.
	sink.Log("Wiping and partitioning...")
	if err := f.runner.Run(ctx, "wipefs", "-a", req.DevicePath); err != nil {
		return err
	}
	if err := f.runner.Run(ctx, "parted", "-s", req.DevicePath, "mklabel", "gpt"); err != nil {
		return err
	}
	sink.Overall(10)
	sink.Step(100)

	if err := ctx.Err(); err != nil {
		return err
	}

	// Partitions and filesystems.
	sink.Log(fmt.Sprintf("Creating partition %s...", f.cfg.BootLabel))
	if err := f.runner.Run(ctx, "parted", "-s", req.DevicePath,
		"mkpart", f.cfg.BootLabel, "fat32", "0%", f.cfg.BootSize); err != nil {
		return err
	}
	sink.Log(fmt.Sprintf("Creating partition %s...", f.cfg.InstallLabel))
	if err := f.runner.Run(ctx, "parted", "-s", req.DevicePath,
		"mkpart", f.cfg.InstallLabel, "ntfs", f.cfg.BootSize, "100%"); err != nil {
		return err
	}

	p1 := partitionPath(req.DevicePath, 1)
	p2 := partitionPath(req.DevicePath, 2)

	sink.Log(fmt.Sprintf("Formatting %s as FAT32...", f.cfg.BootLabel))
	if err := f.runner.Run(ctx, "mkfs.vfat", "-F32", "-n", f.cfg.BootLabel, p1); err != nil {
		return err
	}
	sink.Log(fmt.Sprintf("Formatting %s as NTFS...", f.cfg.InstallLabel))
	if err := f.runner.Run(ctx, "mkfs.ntfs", "--quick", "-L", f.cfg.InstallLabel, p2); err != nil {
		return err
	}
	sink.Overall(30)
	sink.Step(100)

	if err := ctx.Err(); err != nil {
		return err
	}

	// Image mount.
	sink.Log("Mounting image...")
	if _, err := scope.Acquire(ctx, req.ImagePath, isoM, mount.Options{Loop: true, ReadOnly: true}); err != nil {
		return err
	}
	sink.Overall(35)
	sink.Step(100)

	if err := ctx.Err(); err != nil {
		return err
	}

	// Boot partition: everything except the install payload, then the
	// payload's boot archive by itself.
	sink.Log("Mounting boot partition...")
	if _, err := scope.Acquire(ctx, p1, bootM, mount.Options{}); err != nil {
		return err
	}
	sink.Log("Copying files to boot partition...")
	if err := f.runner.Run(ctx, "rsync", "-a", "--no-owner", "--no-group",
		"--exclude", "sources/", isoM+"/", bootM+"/"); err != nil {
		return err
	}
	sink.Log("Copying boot.wim...")
	if err := os.MkdirAll(filepath.Join(bootM, "sources"), 0755); err != nil {
		return errors.Wrap(err, "cannot create sources dir")
	}
	if err := f.runner.Run(ctx, "cp",
		filepath.Join(isoM, "sources", "boot.wim"),
		filepath.Join(bootM, "sources")); err != nil {
		return err
	}
	if req.SplitImage {
		sink.Log("Splitting install.wim...")
		if err := f.wim.Split(ctx,
			filepath.Join(isoM, "sources", "install.wim"),
			filepath.Join(bootM, "sources", "install.swm"),
			f.cfg.SplitChunkMB); err != nil {
			return err
		}
	}
	sink.Overall(60)
	sink.Step(100)

	if err := ctx.Err(); err != nil {
		return err
	}

	// Install partition: full unfiltered copy.
	sink.Log("Mounting install partition...")
	if _, err := scope.Acquire(ctx, p2, instM, f.installMountOptions(ctx)); err != nil {
		return err
	}
	sink.Log("Copying files to install partition...")
	if err := f.runner.Run(ctx, "rsync", "-a", "--no-owner", "--no-group",
		isoM+"/", instM+"/"); err != nil {
		return err
	}
	sink.Overall(90)
	sink.Step(100)

	sink.Log("Windows USB creation completed.")
	return nil
}

// installMountOptions prefers ntfs-3g with write-friendly options when it
// is installed.
func (f *WindowsFlow) installMountOptions(ctx context.Context) mount.Options {
	if err := f.runner.Run(ctx, "which", "ntfs-3g"); err == nil {
		return mount.Options{
			FSType: "ntfs-3g",
			Extra:  []string{"big_writes", "async", "noatime", "nodiratime"},
		}
	}
	return mount.Options{Extra: []string{"noatime", "nodiratime"}}
}

// prepareDevice refuses to touch a disk hosting a system mount and
// best-effort unmounts any other busy mounts of the target before the wipe.
func (f *WindowsFlow) prepareDevice(ctx context.Context, device string, sink progress.Sink) error {
	out, err := f.runner.Output(ctx, "lsblk", "-nr", "-o", "NAME,MOUNTPOINT")
	if err != nil {
		if _, notFound := command.IsToolNotFound(err); notFound {
			return err
		}
		// lsblk trouble should not block the write; the guard is advisory.
		slog.Warn("device_guard_skipped", "error", err)
		return nil
	}

	devBase := strings.TrimPrefix(device, "/dev/")
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		name, mountpoint := fields[0], fields[1]
		if !strings.HasPrefix(name, devBase) {
			continue
		}
		switch mountpoint {
		case "/", "/boot", "/boot/efi":
			return fmt.Errorf("refusing to write %s: it hosts system mount %s", device, mountpoint)
		default:
			sink.Log(fmt.Sprintf("Unmounting busy mount %s...", mountpoint))
			f.mounts.ForceUnmount(ctx, mountpoint)
		}
	}
	return nil
}
