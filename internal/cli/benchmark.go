/*
PURPOSE:
  Defines the 'benchmark' subcommand.
  Runs every script against every dataset and writes the outcomes to disk.

REQUIREMENTS:
  User-specified:
  - Compare several scripts across several datasets in one go.
  - A broken script or dataset never stops the batch.

  Implementation-discovered:
  - Each dataset names its own columns: --data path:date:numeric.
  - Outcomes stream to CSV and JSON Lines files while the batch runs.

ARCHITECTURE INTEGRATION:
  - Calls: internal/engine.Engine.Benchmark()
  - Uses: internal/output writers as engine sinks

ERROR HANDLING:
  - Returns error if outputs cannot be created or no dataset is usable.
  - Rejected datasets are logged and written as failed rows.

IMPLEMENTATION RULES:
  - Logic: Load Config -> Override -> Open outputs -> Engine.Benchmark.

USAGE:
  forecast-runner benchmark -s ./scripts --data a.csv:date:sales --data b.csv:day:units -o ./results
*/

package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/daryltucker/forecast-runner/internal/engine"
	"github.com/daryltucker/forecast-runner/internal/model"
	"github.com/daryltucker/forecast-runner/internal/output"
	"github.com/spf13/cobra"
)

var (
	dataSpecs      []string
	outputOverride string
)

var benchmarkCmd = &cobra.Command{
	Use:   "benchmark",
	Short: "Benchmark scripts across several datasets",
	Long: `Runs every script against every dataset and records MAE, RMSE, R2,
duration and peak memory for each pair.

Results are written to a CSV file and a JSON Lines file in the output
directory as each pair completes.`,
	Example: `  # Two datasets with different column names
  forecast-runner benchmark -s ./scripts --data sales.csv:date:sales --data traffic.csv:day:visits

  # Custom output directory and per-invocation limit
  forecast-runner benchmark -s naive.go --data sales.csv:date:sales -o ./results --timeout 1m`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := applyTimeout(); err != nil {
			return err
		}
		if outputOverride != "" {
			cfg.OutputDir = outputOverride
		}

		scripts, err := readScripts(scriptPaths)
		if err != nil {
			return err
		}
		datasets, rejected, err := loadDatasets(dataSpecs)
		if err != nil {
			return err
		}

		if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory %s: %w", cfg.OutputDir, err)
		}

		csvPath := filepath.Join(cfg.OutputDir, cfg.OutputFile)
		csvWriter, err := output.NewCSVWriter(csvPath)
		if err != nil {
			return fmt.Errorf("failed to init CSV writer at %s: %w", csvPath, err)
		}
		defer csvWriter.Close()

		jsonPath := filepath.Join(cfg.OutputDir, "forecast_results.jsonl")
		jsonWriter, err := output.NewJSONWriter(jsonPath)
		if err != nil {
			return fmt.Errorf("failed to init JSON writer at %s: %w", jsonPath, err)
		}
		defer jsonWriter.Close()

		if len(datasets) == 0 {
			writeRejected(model.Report{}, rejected, csvWriter, jsonWriter)
			return engine.ErrNoDatasets
		}

		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		report, err := engine.New(cfg, store).Benchmark(ctx, engine.Request{
			User:     user,
			Scripts:  scripts,
			Datasets: datasets,
			Sinks:    []engine.Sink{csvWriter, jsonWriter},
		})
		if err != nil {
			return err
		}
		writeRejected(report, rejected, csvWriter, jsonWriter)

		total, failed := 0, 0
		for _, outcomes := range report {
			for _, o := range outcomes {
				total++
				if o.Failed() {
					failed++
				}
			}
		}
		output.Logger.Info().
			Int("pairs", total).
			Int("failed", failed).
			Str("csv", csvPath).
			Str("json", jsonPath).
			Msg("Benchmark complete")
		return nil
	},
}

// writeRejected adds every rejected dataset to the report and the sinks under
// a key no other dataset uses.
func writeRejected(report model.Report, rejected []rejectedDataset, sinks ...engine.Sink) {
	for _, r := range rejected {
		key := report.UniqueKey(r.Name)
		output.Logger.Error().Err(r.Err).Str("dataset", key).Msg("Skipping dataset")
		failed := model.Outcome{Error: r.Err.Error()}
		report[key] = []model.Outcome{failed}
		for _, sink := range sinks {
			if err := sink.Write(key, failed); err != nil {
				output.Logger.Error().Err(err).Str("dataset", key).Msg("Failed to write outcome")
			}
		}
	}
}

func init() {
	rootCmd.AddCommand(benchmarkCmd)

	benchmarkCmd.Flags().StringSliceVarP(&scriptPaths, "scripts", "s", nil, "Script files or directories (repeatable)")
	benchmarkCmd.Flags().StringArrayVar(&dataSpecs, "data", nil, "Dataset as path:date_column:numeric_column (repeatable)")
	benchmarkCmd.Flags().StringVarP(&outputOverride, "output-dir", "o", "", "Output directory for results (CSV/JSON)")
	benchmarkCmd.Flags().StringVar(&timeoutOverride, "timeout", "", "Limit per invocation, e.g. 30s (overrides config)")
	benchmarkCmd.MarkFlagRequired("scripts")
	benchmarkCmd.MarkFlagRequired("data")
}
