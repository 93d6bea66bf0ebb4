package main

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/samirrijal/housingetl/internal/bootstrap"
	"github.com/samirrijal/housingetl/internal/core/usecases"
)

func createScheduleCmd() *cobra.Command {
	var runNow bool
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the pipeline on the configured cron schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Pipeline.Schedule == "" {
				return errors.New("pipeline.schedule is empty")
			}
			ctx := cmd.Context()
			defer startTracing(ctx)()

			rt, err := bootstrap.NewRuntime(ctx, cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			run := func() {
				report, err := rt.Pipeline.Run(ctx, usecases.RunOptions{})
				if err != nil {
					slog.Error("scheduled run failed", "error", err)
					return
				}
				slog.Info("scheduled run finished",
					"run_id", report.RunID,
					"rows", report.Rows,
					"failed_vintages", len(report.Failed()))
			}

			job := exclusiveJob(run)
			c := cron.New()
			if _, err := c.AddJob(cfg.Pipeline.Schedule, job); err != nil {
				return err
			}
			c.Start()
			slog.Info("scheduler started", "schedule", cfg.Pipeline.Schedule)

			var immediate sync.WaitGroup
			if runNow {
				immediate.Add(1)
				go func() {
					defer immediate.Done()
					job.Run()
				}()
			}

			<-ctx.Done()
			slog.Info("scheduler stopping, waiting for the current run")
			<-c.Stop().Done()
			immediate.Wait()
			return nil
		},
	}
	cmd.Flags().BoolVar(&runNow, "now", false, "also run once immediately")
	return cmd
}

// exclusiveJob wraps run so that a call arriving while another is in
// progress is skipped. Ticks and the immediate run share it so two runs never
// write the same staging tables.
func exclusiveJob(run func()) cron.Job {
	return cron.NewChain(cron.SkipIfStillRunning(cron.DefaultLogger)).Then(cron.FuncJob(run))
}
