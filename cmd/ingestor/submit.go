package main

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"

	"github.com/samirrijal/housingetl/internal/core/domain"
	"github.com/samirrijal/housingetl/internal/workflows"
)

func createSubmitCmd() *cobra.Command {
	var (
		input workflows.PipelineInput
		wait  bool
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Start the pipeline as a Temporal workflow",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			c, err := client.Dial(client.Options{
				HostPort:  cfg.Temporal.HostPort,
				Namespace: cfg.Temporal.Namespace,
			})
			if err != nil {
				return fmt.Errorf("temporal client: %w", err)
			}
			defer c.Close()

			opts := client.StartWorkflowOptions{
				ID:        "housing-pipeline-" + uuid.NewString(),
				TaskQueue: cfg.Temporal.TaskQueue,
			}
			run, err := c.ExecuteWorkflow(ctx, opts, workflows.HousingPipelineWorkflow, input)
			if err != nil {
				return fmt.Errorf("start workflow: %w", err)
			}
			slog.Info("workflow started", "workflow_id", run.GetID(), "run_id", run.GetRunID())
			if !wait {
				fmt.Println(run.GetID())
				return nil
			}

			var report domain.RunReport
			if err := run.Get(ctx, &report); err != nil {
				return fmt.Errorf("workflow %s: %w", run.GetID(), err)
			}
			return printReport(&report)
		},
	}
	cmd.Flags().StringSliceVar(&input.Collections, "collection", nil, "collections to extract (default: all)")
	cmd.Flags().IntSliceVar(&input.Years, "year", nil, "years to extract (default: all)")
	cmd.Flags().BoolVar(&wait, "wait", false, "wait for the workflow and print its report")
	return cmd
}
