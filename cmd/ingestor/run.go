package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/samirrijal/housingetl/internal/bootstrap"
	"github.com/samirrijal/housingetl/internal/core/domain"
	"github.com/samirrijal/housingetl/internal/core/usecases"
)

func createRunCmd() *cobra.Command {
	var opts usecases.RunOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once and print the run report",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			defer startTracing(ctx)()

			rt, err := bootstrap.NewRuntime(ctx, cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			report, err := rt.Pipeline.Run(ctx, opts)
			if report != nil {
				if perr := printReport(report); perr != nil {
					return perr
				}
			}
			return err
		},
	}
	cmd.Flags().StringSliceVar(&opts.Collections, "collection", nil, "collections to extract (default: all)")
	cmd.Flags().IntSliceVar(&opts.Years, "year", nil, "years to extract (default: all)")
	return cmd
}

func printReport(report *domain.RunReport) error {
	for _, v := range report.Failed() {
		slog.Warn("vintage failed", "vintage", v.Key.String(), "error", v.Error)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
