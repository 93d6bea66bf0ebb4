package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/samirrijal/housingetl/internal/pkg/config"
	"github.com/samirrijal/housingetl/internal/pkg/logging"
	"github.com/samirrijal/housingetl/internal/pkg/telemetry"
)

var cfg *config.Config

func main() {
	rootCmd := &cobra.Command{
		Use:           "ingestor",
		Short:         "Housing offer ETL",
		Long:          `Extracts the yearly sales and rents offer maps, reconciles their schemas and loads one unified dataset`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load("housingetl-ingestor")
			if err != nil {
				return err
			}
			logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)
			return nil
		},
	}

	rootCmd.AddCommand(createRunCmd())
	rootCmd.AddCommand(createScheduleCmd())
	rootCmd.AddCommand(createSubmitCmd())
	rootCmd.AddCommand(createVintagesCmd())
	rootCmd.AddCommand(createVerifyCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// startTracing installs the exporter when telemetry is enabled and returns
// its shutdown hook.
func startTracing(ctx context.Context) func() {
	if !cfg.Telemetry.Enabled {
		return func() {}
	}
	shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.Endpoint)
	if err != nil {
		slog.Warn("telemetry init failed", "error", err)
		return func() {}
	}
	return shutdown
}
