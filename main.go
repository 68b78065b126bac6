package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var version string = "<dev>"

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "jcr",
	Short: "Relay and send JSON requests with comments stripped",
	Long: `jcr removes // and /* */ comments from JSON bodies.

It runs as a reverse proxy in front of a JSON backend (serve), sends a single
request defined in a YAML file (send), or strips files and stdin (strip).`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}

// parseLogLevel converts a string log level to slog.Level
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		slog.Warn("Invalid log level, defaulting to info", "level", level)
		return slog.LevelInfo
	}
}

// setupLogger installs the default logger. The relay logs JSON; the one-shot
// commands log text to stderr.
func setupLogger(w io.Writer, json bool) {
	opts := &slog.HandlerOptions{Level: parseLogLevel(logLevel)}

	var handler slog.Handler = slog.NewTextHandler(w, opts)
	if json {
		handler = slog.NewJSONHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
