// Package classify determines which operating system family a bootable
// image targets, which in turn selects the write strategy.
package classify

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/majusb/majusb/pkg/mount"
)

// OSKind is the detected image family. It is produced once per run and
// immutable thereafter.
type OSKind string

const (
	Linux   OSKind = "linux"
	Windows OSKind = "windows"
)

// ClassificationError reports that an image could not be inspected. Unlike
// release failures this propagates: without a successful mount there is no
// classification to make.
type ClassificationError struct {
	ImagePath string
	Err       error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("cannot inspect image %s: %v", e.ImagePath, e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// Classifier inspects an image by loop-mounting it read-only at a private
// detection mount point.
type Classifier struct {
	mounts    *mount.Manager
	detectDir string
}

// NewClassifier creates a classifier that mounts images at detectDir.
func NewClassifier(mounts *mount.Manager, detectDir string) *Classifier {
	return &Classifier{mounts: mounts, detectDir: detectDir}
}

// Classify mounts the image read-only and inspects its root: the image is
// Windows iff a bootmgr file and a sources directory both exist there,
// Linux otherwise. The mount is released before returning, on every path.
func (c *Classifier) Classify(ctx context.Context, imagePath string) (OSKind, error) {
	// A previous failed run may have left the detection mount busy.
	c.mounts.ForceUnmount(ctx, c.detectDir)

	h, err := c.mounts.Acquire(ctx, imagePath, c.detectDir, mount.Options{Loop: true, ReadOnly: true})
	if err != nil {
		return "", &ClassificationError{ImagePath: imagePath, Err: err}
	}
	defer c.mounts.Release(ctx, h)

	kind := Linux
	if isRegularFile(filepath.Join(c.detectDir, "bootmgr")) && isDir(filepath.Join(c.detectDir, "sources")) {
		kind = Windows
	}

	slog.Info("image_classified", "image", imagePath, "kind", kind)
	return kind, nil
}

func isRegularFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
