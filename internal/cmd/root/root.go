// Package root assembles the mocksvc command tree.
package root

import (
	"github.com/spf13/cobra"

	"github.com/schmitthub/svcharness/internal/cmd/prune"
	"github.com/schmitthub/svcharness/internal/cmd/serve"
	"github.com/schmitthub/svcharness/internal/cmd/up"
	"github.com/schmitthub/svcharness/internal/cmdutil"
	"github.com/schmitthub/svcharness/internal/logger"
)

// NewCmdRoot creates the root command for the mocksvc CLI.
func NewCmdRoot(f *cmdutil.Factory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mocksvc",
		Short: "Run mock services and containers for integration testing",
		Long: `mocksvc runs the harness outside of go test.

Quick start:
  mocksvc serve hello bank        # Serve mock services on random ports
  mocksvc up containers.yaml      # Start containers from a spec file until Ctrl+C
  mocksvc prune                   # Remove containers and networks leaked by killed runs`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initializeLogger(f); err != nil {
				return err
			}
			logger.Debug().
				Str("version", f.Version).
				Str("command", cmd.CommandPath()).
				Msg("mocksvc starting")
			return nil
		},
		Version: f.Version,
	}

	cmd.PersistentFlags().StringVarP(&f.ConfigPath, "config", "c", "", "Path to svcharness.yaml (default: ./svcharness.yaml if present)")
	cmd.PersistentFlags().BoolVarP(&f.Debug, "debug", "D", false, "Enable debug logging")

	cmd.AddCommand(serve.NewCmd(f))
	cmd.AddCommand(up.NewCmd(f))
	cmd.AddCommand(prune.NewCmd(f))

	return cmd
}

// initializeLogger sets up the logger from config, falling back to console
// output when file logging cannot be initialised. A config that fails to
// load is an error.
func initializeLogger(f *cmdutil.Factory) error {
	if f.Config == nil {
		logger.Init(f.Debug)
		return nil
	}
	cfg, err := f.Config()
	if err != nil {
		logger.Init(f.Debug)
		return err
	}

	debug := f.Debug || cfg.Logging.Debug
	if err := logger.InitWithFile(debug, cfg.LogsDir(), cfg.Logging.LoggerConfig()); err != nil {
		logger.Init(debug)
		logger.Warn().Err(err).Msg("file logging unavailable: failed to initialize file writer")
	}
	return nil
}
