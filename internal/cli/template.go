package cli

import (
	"fmt"
	"os"

	"github.com/daryltucker/forecast-runner/internal/assets"
	"github.com/daryltucker/forecast-runner/internal/dataset"
	"github.com/daryltucker/forecast-runner/internal/output"
	"github.com/spf13/cobra"
)

var templateOut string

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Write the starter forecasting script",
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := assets.ForecastTemplate()
		if err != nil {
			return fmt.Errorf("failed to read embedded template: %w", err)
		}
		if templateOut == "" {
			_, err = os.Stdout.Write(src)
			return err
		}
		if err := os.WriteFile(templateOut, src, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", templateOut, err)
		}
		output.Logger.Info().Str("path", templateOut).Msg("Template written")
		return nil
	},
}

var columnsCmd = &cobra.Command{
	Use:   "columns <file.csv>",
	Short: "List the columns of a CSV file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		columns, err := dataset.Columns(f)
		if err != nil {
			return err
		}
		for _, c := range columns {
			fmt.Println(c)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(templateCmd)
	rootCmd.AddCommand(columnsCmd)
	templateCmd.Flags().StringVarP(&templateOut, "out", "o", "", "Write to this file instead of stdout")
}
