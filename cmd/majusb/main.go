package main

import (
	"log/slog"
	"os"

	"github.com/majusb/majusb/cmd/majusb/commands"
)

func main() {
	// Initialize structured logger; verbose diagnostics go to stderr so
	// the progress UI owns stdout.
	level := slog.LevelWarn
	if os.Getenv("MAJUSB_DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	commands.Execute()
}
