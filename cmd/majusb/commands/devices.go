package commands

import (
	"context"
	"fmt"

	"github.com/majusb/majusb/pkg/command"
	"github.com/majusb/majusb/pkg/devices"
	"github.com/majusb/majusb/pkg/errors"
	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List removable devices a write can target",
	RunE:  runDevices,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}

func runDevices(cmd *cobra.Command, args []string) error {
	found, err := devices.NewLister(command.NewExecRunner()).List(context.Background())
	if err != nil {
		return errors.Wrap(err, "device enumeration failed")
	}

	if len(found) == 0 {
		fmt.Println("No removable devices found")
		return nil
	}

	fmt.Printf("%-14s %-10s %-28s %-8s %s\n", "DEVICE", "SIZE", "MODEL", "TRAN", "REMOVABLE")
	fmt.Println("----------------------------------------------------------------------")
	for _, d := range found {
		model := d.Model
		if model == "" {
			model = "-"
		}
		fmt.Printf("%-14s %-10s %-28s %-8s %v\n", d.Path, d.Size, model, d.Transport, d.Removable)
	}
	return nil
}
