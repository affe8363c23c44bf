package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/majusb/majusb/internal/config"
	"github.com/majusb/majusb/pkg/command"
	"github.com/majusb/majusb/pkg/errors"
	"github.com/majusb/majusb/pkg/mount"
	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove leftover mount directories from interrupted runs",
	Long: `Scans the mount base for leftover work directories of interrupted
runs, force-unmounts anything still mounted inside them, and removes
them.`,
	RunE: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "config load failed")
	}

	ctx := context.Background()
	runner := command.NewExecRunner()
	mounts := mount.NewManager(runner)

	entries, err := os.ReadDir(cfg.MountBase)
	if err != nil {
		return errors.Wrapf(err, "cannot read %s", cfg.MountBase)
	}

	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "majusb-") {
			continue
		}
		base := filepath.Join(cfg.MountBase, entry.Name())

		// Unmount innermost first.
		for _, sub := range []string{"install", "boot", "iso"} {
			mounts.ForceUnmount(ctx, filepath.Join(base, sub))
		}
		if err := os.RemoveAll(base); err != nil {
			fmt.Printf("Failed to remove %s: %v\n", base, err)
			continue
		}
		fmt.Printf("Removed %s\n", base)
		removed++
	}

	// Stale detection mounts are a single directory.
	mounts.ForceUnmount(ctx, cfg.DetectDir)

	fmt.Printf("Removed %d leftover directories\n", removed)
	return nil
}
