// Command explorer maintains and serves the spatial-temporal summaries of an
// Open Data Cube catalog.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/persistorai/explorer/internal/config"
)

// Build-time variables set via ldflags.
var (
	commit    = ""
	buildDate = ""
)

var (
	cfg     *config.Config
	log     = logrus.New()
	flagFmt string
)

func versionString() string {
	if commit != "" && buildDate != "" {
		return fmt.Sprintf("explorer version %s (commit: %s, built: %s)", config.Version, commit, buildDate)
	}

	return fmt.Sprintf("explorer version %s-dev", config.Version)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "explorer",
		Short:   "Spatial-temporal summaries of an Open Data Cube catalog",
		Version: versionString(),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return err
			}

			cfg = loaded
			configureLogger(log, cfg.LogLevel, cfg.LogFormat)

			return nil
		},
		SilenceUsage: true,
	}
	root.SetVersionTemplate("{{.Version}}\n")

	root.PersistentFlags().StringVar(&flagFmt, "format", "table", "Output format: table|json|csv")

	root.AddCommand(newInitCmd())
	root.AddCommand(newGenerateCmd())
	root.AddCommand(newShowCmd())
	root.AddCommand(newInspectCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newRefreshCmd())

	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// configureLogger applies LOG_LEVEL and LOG_FORMAT. Output goes to stderr so
// that command output on stdout stays machine-readable.
func configureLogger(l *logrus.Logger, level, format string) {
	l.SetOutput(os.Stderr)

	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	if format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
