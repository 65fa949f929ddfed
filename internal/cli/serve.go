package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/daryltucker/forecast-runner/internal/engine"
	"github.com/daryltucker/forecast-runner/internal/server"
	"github.com/spf13/cobra"
)

var listenOverride string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the forecasting HTTP API",
	Example: `  forecast-runner serve --listen :9090
  FORECAST_DATABASE_URL=postgres://... forecast-runner serve`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if listenOverride != "" {
			cfg.ListenAddr = listenOverride
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		srv := server.New(cfg, engine.New(cfg, store), store)
		return srv.ListenAndServe(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&listenOverride, "listen", "", "Listen address (overrides config)")
}
