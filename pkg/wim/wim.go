// Package wim wraps the wimlib-imagex operations used for Windows install
// archives that exceed FAT32's per-file limit.
package wim

import (
	"context"
	"strconv"

	"github.com/majusb/majusb/pkg/command"
)

// DefaultChunkMB keeps each split part safely below FAT32's 4GiB-per-file
// limit.
const DefaultChunkMB = 3800

// Editor runs wimlib-imagex against one archive.
type Editor struct {
	runner command.Runner
}

func NewEditor(runner command.Runner) *Editor {
	return &Editor{runner: runner}
}

// Split divides the archive at wimPath into chunkMB-sized .swm parts
// written to destPath (e.g. .../sources/install.swm). A missing
// wimlib-imagex surfaces as a ToolNotFoundError like any other tool.
func (e *Editor) Split(ctx context.Context, wimPath, destPath string, chunkMB int) error {
	if chunkMB <= 0 {
		chunkMB = DefaultChunkMB
	}
	return e.runner.Run(ctx, "wimlib-imagex", "split", wimPath, destPath, strconv.Itoa(chunkMB))
}

// Verify checks that the given image index exists inside the archive.
func (e *Editor) Verify(ctx context.Context, wimPath string, index int) error {
	return e.runner.Run(ctx, "wimlib-imagex", "info", wimPath, strconv.Itoa(index))
}
