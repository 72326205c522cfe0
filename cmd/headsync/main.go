package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/headsync/internal/config"
	"github.com/vango-dev/headsync/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		errors.Print(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "headsync",
		Short: "Manage document head tags from many contributors",
		Long: `headsync merges head tag contributions (title, meta, link, script,
style, base, noscript and root element attributes) into one canonical
set and keeps a document head in sync with it.

Commands:
  render   Reconcile a declarations file and print the markup
  rules    Print the effective tag rule table
  serve    Run the HTTP API with a live head document`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		renderCmd(),
		rulesCmd(),
		serveCmd(),
		versionCmd(),
	)
	return cmd
}

// newLogger builds the process logger from the log section of cfg.
func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel()}
	var h slog.Handler
	if cfg.Log.Format == "json" {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(h)
}

// loadConfig reads path when set, otherwise searches upward from the working
// directory and falls back to defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.LoadFromWorkingDir()
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}
