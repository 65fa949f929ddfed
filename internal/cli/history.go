package cli

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var historyDataset string

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List persisted runs for the current user",
	Long: `Prints the runs recorded for --user, newest first, as JSON.
Only meaningful with a database configured; the in-memory store starts empty.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.ListRuns(cmd.Context(), user, historyDataset)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{"results": runs})
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().StringVar(&historyDataset, "dataset", "", "Only runs for this dataset or CSV file name")
}
