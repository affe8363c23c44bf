package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "majusb",
	Short: "MajUSB - Bootable USB creator",
	Long:  `Writes Linux and Windows installer images to USB devices with automatic image detection.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("history-db-path", "/var/lib/majusb/runs.db", "Run journal SQLite path")
	rootCmd.PersistentFlags().String("fsm-db-path", "/var/lib/majusb/fsm", "FSM state directory")
	rootCmd.PersistentFlags().String("mount-base", "/mnt", "Base directory for temporary mounts")
	rootCmd.PersistentFlags().String("detect-dir", "/tmp/majusb-detect", "Mount point used for image detection")
	rootCmd.PersistentFlags().String("cluster-size", "4M", "Block size of the raw copy")
	rootCmd.PersistentFlags().String("boot-size", "1GiB", "End position of the boot partition")
	rootCmd.PersistentFlags().Int("split-chunk-mb", 3800, "Chunk size for split install images")

	viper.BindPFlag("history-db-path", rootCmd.PersistentFlags().Lookup("history-db-path"))
	viper.BindPFlag("fsm-db-path", rootCmd.PersistentFlags().Lookup("fsm-db-path"))
	viper.BindPFlag("mount-base", rootCmd.PersistentFlags().Lookup("mount-base"))
	viper.BindPFlag("detect-dir", rootCmd.PersistentFlags().Lookup("detect-dir"))
	viper.BindPFlag("cluster-size", rootCmd.PersistentFlags().Lookup("cluster-size"))
	viper.BindPFlag("boot-size", rootCmd.PersistentFlags().Lookup("boot-size"))
	viper.BindPFlag("split-chunk-mb", rootCmd.PersistentFlags().Lookup("split-chunk-mb"))
}
