package commands

import (
	"fmt"

	"github.com/majusb/majusb/internal/config"
	"github.com/majusb/majusb/pkg/errors"
	"github.com/majusb/majusb/pkg/history"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past write runs and their outcome",
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "config load failed")
	}

	if err := ensureDirectories(cfg.HistoryDBPath, ""); err != nil {
		return err
	}

	store, err := history.NewStore(cfg.HistoryDBPath)
	if err != nil {
		return errors.Wrap(err, "history init failed")
	}
	defer store.Close()

	runs, err := store.List()
	if err != nil {
		return errors.Wrap(err, "list failed")
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded")
		return nil
	}

	fmt.Printf("%-5s %-36s %-14s %-8s %-10s %s\n", "ID", "IMAGE", "DEVICE", "OS", "STATUS", "STARTED")
	fmt.Println("--------------------------------------------------------------------------------------------")
	for _, r := range runs {
		osKind := r.OSKind
		if osKind == "" {
			osKind = "-"
		}
		fmt.Printf("%-5d %-36s %-14s %-8s %-10s %s\n",
			r.ID, truncate(r.ImagePath, 36), r.DevicePath, osKind, r.Status, r.CreatedAt)
		if r.Status == history.StatusFailed && r.ErrorMessage != "" {
			fmt.Printf("      └─ %s\n", r.ErrorMessage)
		}
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return "..." + s[len(s)-max+3:]
}
