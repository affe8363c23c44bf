package commands

import (
	"os"
	"path/filepath"

	"github.com/majusb/majusb/pkg/errors"
)

// ensureDirectories creates all necessary directories for the application
func ensureDirectories(historyDBPath, fsmDBPath string) error {
	// Create journal directory
	if err := os.MkdirAll(filepath.Dir(historyDBPath), 0755); err != nil {
		return errors.Wrap(err, "failed to create history directory")
	}

	// Create FSM state directory (only needed for write command)
	if fsmDBPath != "" {
		if err := os.MkdirAll(fsmDBPath, 0755); err != nil {
			return errors.Wrap(err, "failed to create FSM directory")
		}
	}

	return nil
}
