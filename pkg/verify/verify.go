// Package verify computes checksums of image files before a write.
package verify

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/majusb/majusb/pkg/errors"
)

// SHA256File streams the file through sha256 and returns the hex digest.
func SHA256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "cannot open %s", path)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, 64*1024)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", errors.Wrapf(err, "cannot read %s", path)
	}

	digest := hex.EncodeToString(h.Sum(nil))
	slog.Info("checksum_computed", "path", path, "sha256", digest[:16]+"...")
	return digest, nil
}

// CheckSHA256 compares the file's digest against the expected hex string.
// Comparison is case-insensitive.
func CheckSHA256(path, expected string) error {
	digest, err := SHA256File(path)
	if err != nil {
		return err
	}
	if !strings.EqualFold(digest, expected) {
		return fmt.Errorf("checksum mismatch for %s: got %s, want %s", path, digest, strings.ToLower(expected))
	}
	return nil
}
