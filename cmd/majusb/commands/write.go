package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/majusb/majusb/internal/config"
	"github.com/majusb/majusb/pkg/classify"
	"github.com/majusb/majusb/pkg/command"
	"github.com/majusb/majusb/pkg/devices"
	"github.com/majusb/majusb/pkg/errors"
	"github.com/majusb/majusb/pkg/flow"
	"github.com/majusb/majusb/pkg/history"
	"github.com/majusb/majusb/pkg/mount"
	"github.com/majusb/majusb/pkg/progress"
	"github.com/majusb/majusb/pkg/run"
	"github.com/majusb/majusb/pkg/system"
	"github.com/majusb/majusb/pkg/verify"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	writeDryRun bool
	writeSplit  bool
	writeYes    bool
	writeSHA256 string
)

var writeCmd = &cobra.Command{
	Use:   "write <image> [device]",
	Short: "Write an installer image to a USB device",
	Long: `Writes an installer image to a USB device. The image kind is detected
automatically: Windows images get a partitioned file copy, everything
else is written byte-for-byte. Omitting the device opens a picker over
the removable disks found on the system.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runWrite,
}

func init() {
	rootCmd.AddCommand(writeCmd)
	writeCmd.Flags().BoolVar(&writeDryRun, "dry-run", false, "Log commands without executing them")
	writeCmd.Flags().BoolVar(&writeSplit, "split-image", false, "Split install.wim into FAT32-safe chunks")
	writeCmd.Flags().BoolVarP(&writeYes, "yes", "y", false, "Skip the confirmation prompt")
	writeCmd.Flags().StringVar(&writeSHA256, "verify-sha256", "", "Verify the image checksum before writing")
}

func runWrite(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	imagePath := args[0]

	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "config load failed")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "config invalid")
	}

	if !writeDryRun && !system.IsRoot() {
		color.Yellow("Root privileges required, re-executing through pkexec...")
		return system.Elevate(system.CaptureEnv())
	}

	if !writeDryRun {
		if missing := system.MissingRequired(); len(missing) > 0 {
			color.Red("Missing required tools: %v", missing)
			if hint := system.InstallHint(); hint != "" {
				fmt.Printf("Install them with: %s\n", hint)
			}
			return fmt.Errorf("missing required tools: %v", missing)
		}
	}

	if writeSHA256 != "" {
		fmt.Println("Verifying image checksum...")
		if err := verify.CheckSHA256(imagePath, writeSHA256); err != nil {
			return err
		}
		color.Green("Checksum OK.")
	}

	var runner command.Runner = command.NewExecRunner()
	if writeDryRun {
		runner = command.NewNoopRunner()
	}

	// Enumeration is read-only; use the real runner even in a dry run,
	// where the noop runner would yield no lsblk output to pick from.
	devicePath, err := pickDevice(ctx, args, command.NewExecRunner())
	if err != nil {
		return err
	}

	if !writeYes && !writeDryRun {
		color.Red("WARNING: This will DESTROY ALL DATA on %s", devicePath)
		confirm := false
		prompt := &survey.Confirm{
			Message: fmt.Sprintf("Write %s to %s?", imagePath, devicePath),
			Default: false,
		}
		if err := survey.AskOne(prompt, &confirm); err != nil {
			return err
		}
		if !confirm {
			fmt.Println("Aborted.")
			return nil
		}
	}

	if err := ensureDirectories(cfg.HistoryDBPath, cfg.FSMDBPath); err != nil {
		return err
	}

	store, err := history.NewStore(cfg.HistoryDBPath)
	if err != nil {
		return errors.Wrap(err, "history init failed")
	}
	defer store.Close()

	mounts := mount.NewManager(runner)
	classifier := classify.NewClassifier(mounts, cfg.DetectDir)

	wcfg := flow.WindowsConfig{
		MountBase:    cfg.MountBase,
		BootLabel:    cfg.BootLabel,
		InstallLabel: cfg.InstallLabel,
		BootSize:     cfg.BootSize,
		SplitChunkMB: cfg.SplitChunkMB,
	}
	flows := map[classify.OSKind]flow.Flow{
		classify.Linux:   flow.NewLinuxFlow(runner),
		classify.Windows: flow.NewWindowsFlow(runner, mounts, wcfg),
	}

	validator := run.NewValidator()
	validator.SkipDeviceCheck = writeDryRun

	machine := run.NewMachine(classifier, flows, store, validator)
	controller, err := run.NewController(ctx, cfg.FSMDBPath, machine)
	if err != nil {
		return err
	}
	defer controller.Shutdown()

	events, err := controller.Start(ctx, run.WriteRequest{
		ImagePath:   imagePath,
		DevicePath:  devicePath,
		SplitImage:  writeSplit,
		ClusterSize: cfg.ClusterSize,
	})
	if err != nil {
		return err
	}

	return renderRun(events)
}

// pickDevice resolves the target from the arguments or interactively.
func pickDevice(ctx context.Context, args []string, runner command.Runner) (string, error) {
	if len(args) == 2 {
		return args[1], nil
	}

	found, err := devices.NewLister(runner).List(ctx)
	if err != nil {
		return "", errors.Wrap(err, "device enumeration failed")
	}
	if len(found) == 0 {
		return "", fmt.Errorf("no removable devices found")
	}

	options := make([]string, len(found))
	for i, d := range found {
		options[i] = d.String()
	}

	var selected string
	prompt := &survey.Select{
		Message: "Select target device:",
		Options: options,
	}
	if err := survey.AskOne(prompt, &selected); err != nil {
		return "", err
	}
	for i, opt := range options {
		if opt == selected {
			return found[i].Path, nil
		}
	}
	return "", fmt.Errorf("no device selected")
}

// renderRun drains the event channel into the terminal UI. The channel
// closes after the terminal done event.
func renderRun(events <-chan progress.Event) error {
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetDescription("writing"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
	)

	for ev := range events {
		switch ev.Type {
		case progress.EventLog:
			bar.Clear()
			color.Cyan("%s", ev.Message)
		case progress.EventOverall:
			bar.Set(ev.Percent)
		case progress.EventStep:
			// The overall bar is the terminal UI; step granularity only
			// goes to debug logs.
		case progress.EventDone:
			bar.Finish()
			fmt.Println()
			if !ev.Success {
				color.Red("✖ %s", ev.Message)
				return fmt.Errorf("%s", ev.Message)
			}
			color.Green("✔ %s", ev.Message)
		}
	}
	return nil
}
