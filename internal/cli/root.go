/*
PURPOSE:
  Defines the root Cobra command for the Forecast Runner CLI.
  Handles global flags and the shared setup every subcommand needs.

REQUIREMENTS:
  User-specified:
  - Provide a CLI interface.
  - Support global flags like --config.

  Implementation-discovered:
  - Needs to expose an Execute() function for main.go.
  - Logger and run store are built once from config in PersistentPreRunE.

ARCHITECTURE INTEGRATION:
  - Called by: cmd/forecast-runner/main.go
  - Calls: Child commands (run, benchmark, serve, history, template, columns)

ERROR HANDLING:
  - Returns error to main.go for exit code handling.

IMPLEMENTATION RULES:
  - Use `PersistentFlags()` for flags available to all subcommands.
  - Keep Run logic in subcommands.

USAGE:
  Called by main.go.

SELF-HEALING INSTRUCTIONS:
  - If adding new global flags, add them to init().

RELATED FILES:
  - cmd/forecast-runner/main.go
  - internal/config/config.go

MAINTENANCE:
  - Update when adding global configuration options.
*/

package cli

import (
	"context"
	"os"

	"github.com/daryltucker/forecast-runner/internal/config"
	"github.com/daryltucker/forecast-runner/internal/output"
	"github.com/daryltucker/forecast-runner/internal/storage"
	"github.com/spf13/cobra"
)

var (
	// cfgFile stores the path to the config file (if specified via flag)
	cfgFile string
	// user is recorded as the owner of persisted runs.
	user string

	// Populated by PersistentPreRunE.
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "forecast-runner",
		Short: "Run and benchmark forecasting scripts against time series",
		Long: `Executes user-supplied Go forecasting scripts in an isolated interpreter,
validates their output contract, and scores them against historical data.
Use 'benchmark --help' for multi-dataset runs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = loaded
			output.Configure(os.Stderr, cfg.LogLevel, cfg.LogFormat)
			return nil
		},
	}
)

// Execute executes the root command with ctx.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// openStore returns PostgreSQL when a database URL is configured and an
// in-memory store otherwise.
func openStore(ctx context.Context) (storage.Store, error) {
	if cfg.DatabaseURL == "" {
		output.Logger.Debug().Msg("No database configured, runs are kept in memory")
		return storage.NewMemory(), nil
	}
	return storage.OpenPostgres(ctx, cfg.DatabaseURL, cfg.PersistMaxElapsed)
}

func defaultUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "local"
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./forecast_runner.yaml)")
	rootCmd.PersistentFlags().StringVar(&user, "user", defaultUser(), "owner recorded on persisted runs")
}
