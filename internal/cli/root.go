// Package cli wires the colada command-line tool: snapshot inspection and a
// fetch-deduplication bench harness on top of the cache library.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/87xie/pinia-colada/internal/config"
)

// logger is the package-level logger for CLI operations, initialized by the
// root command's PersistentPreRunE.
var logger zerolog.Logger //nolint:gochecknoglobals // shared across subcommands by design

// cfg is the loaded CLI configuration.
var cfg *config.Config //nolint:gochecknoglobals // shared across subcommands by design

// NewRootCmd creates the root Cobra command for the colada CLI.
func NewRootCmd(ver string) *cobra.Command {
	var (
		logLevel string
		cfgPath  string
	)

	cmd := &cobra.Command{
		Use:           "colada",
		Short:         "Inspect and exercise colada query-cache snapshots",
		Version:       ver,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			loaded, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			cfg = loaded
			if logLevel == "" {
				logLevel = cfg.Logging.Level
			}
			logger = config.NewLogger(logLevel)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/"+config.DefaultPath+")")

	cmd.AddCommand(newDumpCmd())
	cmd.AddCommand(newBenchCmd())
	return cmd
}
