package flow

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/majusb/majusb/pkg/command"
	"github.com/majusb/majusb/pkg/errors"
	"github.com/majusb/majusb/pkg/progress"
)

// DefaultClusterSize is the raw copy block size used when the request does
// not carry one.
const DefaultClusterSize = "4M"

// copyWeight is the share of overall progress consumed by the streaming
// copy; the remainder belongs to the final sync.
const copyWeight = 90

// LinuxFlow streams the image byte-for-byte onto the device with dd and
// parses its progress output. It creates no mounts.
type LinuxFlow struct {
	runner command.Runner
}

func NewLinuxFlow(runner command.Runner) *LinuxFlow {
	return &LinuxFlow{runner: runner}
}

func (f *LinuxFlow) Name() string { return "linux-raw-copy" }

func (f *LinuxFlow) Run(ctx context.Context, req Request, sink progress.Sink) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fi, err := os.Stat(req.ImagePath)
	if err != nil {
		return errors.Wrap(err, "cannot stat image")
	}
	total := fi.Size()

	cluster := req.ClusterSize
	if cluster == "" {
		cluster = DefaultClusterSize
	}

	sink.Log("Starting raw image copy...")
	sink.Overall(0)

	proc, err := f.runner.Stream(ctx, "dd",
		"if="+req.ImagePath,
		"of="+req.DevicePath,
		"bs="+cluster,
		"conv=fdatasync",
		"status=progress",
	)
	if err != nil {
		return err
	}

	parser := progress.NewParser(total)
	buf := make([]byte, 1024)
	stderr := proc.Stderr()
	for {
		n, readErr := stderr.Read(buf)
		if n > 0 {
			for _, pct := range parser.Feed(buf[:n]) {
				sink.Step(pct)
				sink.Overall(pct * copyWeight / 100)
				sink.Log(fmt.Sprintf("Copied %d%%", pct))
			}
		}
		if readErr != nil {
			if readErr != io.EOF {
				slog.Warn("copy_stream_read_failed", "error", readErr)
			}
			break
		}
	}
	if waitErr := proc.Wait(); waitErr != nil {
		// The device may hold partial data; flush it before reporting.
		if err := f.runner.Run(context.WithoutCancel(ctx), "sync"); err != nil {
			slog.Warn("sync_failed", "error", err)
		}
		return waitErr
	}

	// The step bar always completes, whatever the last parsed value was.
	sink.Step(100)
	sink.Overall(copyWeight)

	sink.Log("Syncing to disk...")
	if err := f.runner.Run(ctx, "sync"); err != nil {
		// Best effort: the data already carries conv=fdatasync.
		slog.Warn("sync_failed", "error", err)
	}

	sink.Overall(100)
	sink.Log("Raw copy completed.")
	return nil
}
