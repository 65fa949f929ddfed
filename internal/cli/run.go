/*
PURPOSE:
  Defines the 'run' subcommand.
  Runs one or more scripts against a single CSV dataset and prints the outcomes.

REQUIREMENTS:
  User-specified:
  - Forecast and score against a single dataset.
  - Dates in the output use day precision.

  Implementation-discovered:
  - Need to load config first (done by root PersistentPreRunE).
  - Apply flag overrides to config.

ARCHITECTURE INTEGRATION:
  - Calls: internal/engine.Engine.Run()
  - Uses: internal/dataset, internal/storage

ERROR HANDLING:
  - Returns error if the dataset is invalid or no script is given.
  - Per-script failures are part of the printed results.

USAGE:
  forecast-runner run -s naive.go -d sales.csv --date-column date --numeric-column sales

RELATED FILES:
  - internal/cli/root.go
  - internal/cli/benchmark.go
*/

package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/daryltucker/forecast-runner/internal/dataset"
	"github.com/daryltucker/forecast-runner/internal/engine"
	"github.com/spf13/cobra"
)

var (
	scriptPaths     []string
	dataPath        string
	dateColumn      string
	numericColumn   string
	timeoutOverride string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run scripts against a single dataset",
	Long: `Runs every script against one CSV dataset.
Each script goes through the same protocol:
1. Load: the source is compiled in a fresh interpreter.
2. Probe: the entry point is called on a tiny synthetic table and its output checked.
3. Execute: the entry point is called on the real data while time and heap are measured.
4. Score: the forecast is joined to the history by date and MAE, RMSE and R2 computed.

Results are printed as JSON on stdout.`,
	Example: `  # Score two scripts on one file
  forecast-runner run -s naive.go -s drift.go -d sales.csv --date-column date --numeric-column sales

  # Every script in a directory, with a 30s limit per invocation
  forecast-runner run -s ./scripts -d sales.csv --date-column date --numeric-column sales --timeout 30s`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := applyTimeout(); err != nil {
			return err
		}

		scripts, err := readScripts(scriptPaths)
		if err != nil {
			return err
		}
		ds, err := dataset.LoadFile(dataPath, dateColumn, numericColumn)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		outcomes, err := engine.New(cfg, store).Run(ctx, user, scripts, ds)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{"results": outcomes})
	},
}

func applyTimeout() error {
	if timeoutOverride == "" {
		return nil
	}
	d, err := time.ParseDuration(timeoutOverride)
	if err != nil {
		return fmt.Errorf("invalid --timeout: %w", err)
	}
	cfg.Timeout = d
	return nil
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringSliceVarP(&scriptPaths, "scripts", "s", nil, "Script files or directories (repeatable)")
	runCmd.Flags().StringVarP(&dataPath, "data", "d", "", "CSV file with the history")
	runCmd.Flags().StringVar(&dateColumn, "date-column", "", "Name of the date column")
	runCmd.Flags().StringVar(&numericColumn, "numeric-column", "", "Name of the value column")
	runCmd.Flags().StringVar(&timeoutOverride, "timeout", "", "Limit per invocation, e.g. 30s (overrides config)")
	runCmd.MarkFlagRequired("scripts")
	runCmd.MarkFlagRequired("data")
	runCmd.MarkFlagRequired("date-column")
	runCmd.MarkFlagRequired("numeric-column")
}
