package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/majusb/majusb/pkg/system"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that the external tooling a write needs is installed",
	RunE:  runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	missing := 0
	for _, st := range system.Lookup() {
		switch {
		case st.Found:
			color.Green("✔ %-16s %s", st.Tool, st.Path)
		case st.Optional:
			color.Yellow("○ %-16s not found (optional)", st.Tool)
		default:
			color.Red("✖ %-16s not found", st.Tool)
			missing++
		}
	}

	if missing == 0 {
		fmt.Println("\nAll required tools are installed.")
		return nil
	}

	if hint := system.InstallHint(); hint != "" {
		fmt.Printf("\nInstall the missing tools with: %s\n", hint)
	}
	return fmt.Errorf("%d required tools are missing", missing)
}
