package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// State paths
	HistoryDBPath string `mapstructure:"history-db-path"`
	FSMDBPath     string `mapstructure:"fsm-db-path"`

	// Mount layout
	MountBase string `mapstructure:"mount-base"`
	DetectDir string `mapstructure:"detect-dir"`

	// Raw copy
	ClusterSize string `mapstructure:"cluster-size"`

	// Windows partition layout
	BootLabel    string `mapstructure:"boot-label"`
	InstallLabel string `mapstructure:"install-label"`
	BootSize     string `mapstructure:"boot-size"`

	// Split-image mode
	SplitChunkMB int `mapstructure:"split-chunk-mb"`
}

// Load reads configuration from environment, config file, and defaults
func Load() (*Config, error) {
	// Set defaults
	viper.SetDefault("history-db-path", "/var/lib/majusb/runs.db")
	viper.SetDefault("fsm-db-path", "/var/lib/majusb/fsm")
	viper.SetDefault("mount-base", "/mnt")
	viper.SetDefault("detect-dir", "/tmp/majusb-detect")
	viper.SetDefault("cluster-size", "4M")
	viper.SetDefault("boot-label", "BOOT")
	viper.SetDefault("install-label", "ESD-USB")
	viper.SetDefault("boot-size", "1GiB")
	viper.SetDefault("split-chunk-mb", 3800)

	// Environment variables (will be MAJUSB_MOUNT_BASE, etc.)
	viper.SetEnvPrefix("MAJUSB")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	// Config file (optional)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.majusb")

	// Read config file (ignore if not found)
	_ = viper.ReadInConfig()

	// Unmarshal into config struct
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration for errors
func (c *Config) Validate() error {
	if c.HistoryDBPath == "" {
		return fmt.Errorf("history-db-path cannot be empty")
	}
	if c.FSMDBPath == "" {
		return fmt.Errorf("fsm-db-path cannot be empty")
	}
	if c.MountBase == "" {
		return fmt.Errorf("mount-base cannot be empty")
	}
	if c.DetectDir == "" {
		return fmt.Errorf("detect-dir cannot be empty")
	}
	if c.ClusterSize == "" {
		return fmt.Errorf("cluster-size cannot be empty")
	}
	if c.BootLabel == "" || c.InstallLabel == "" {
		return fmt.Errorf("partition labels cannot be empty")
	}
	if c.BootSize == "" {
		return fmt.Errorf("boot-size cannot be empty")
	}
	if c.SplitChunkMB <= 0 {
		return fmt.Errorf("split-chunk-mb must be positive")
	}
	return nil
}
