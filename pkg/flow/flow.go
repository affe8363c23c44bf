// Package flow implements the two write strategies: a raw streaming copy
// for Linux images and a partition/format/populate sequence for Windows
// images. A flow is an ordered sequence of weighted steps; the first failed
// external command aborts the remaining steps, while mount cleanup always
// runs.
package flow

import (
	"context"
	"strconv"
	"strings"

	"github.com/majusb/majusb/pkg/progress"
)

// Request describes one write operation. It is created by the caller and
// immutable for the duration of the run.
type Request struct {
	ImagePath  string
	DevicePath string
	// SplitImage splits the large install payload into FAT32-safe chunks
	// on the boot partition (Windows flow only).
	SplitImage bool
	// ClusterSize is the copy block size handed to the raw copier.
	ClusterSize string
}

// Flow runs one OS-specific write strategy, emitting log and progress
// events through the sink. Cancellation is cooperative: it is honored
// between steps only, and cleanup still runs.
type Flow interface {
	Name() string
	Run(ctx context.Context, req Request, sink progress.Sink) error
}

// partitionPath returns the device node of the n-th partition, accounting
// for the p-infix naming of nvme and mmcblk devices.
func partitionPath(device string, n int) string {
	name := strings.TrimPrefix(device, "/dev/")
	if strings.HasPrefix(name, "nvme") || strings.HasPrefix(name, "mmcblk") {
		return device + "p" + strconv.Itoa(n)
	}
	return device + strconv.Itoa(n)
}
