package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/housingetl/internal/core/domain"
	"github.com/samirrijal/housingetl/internal/core/usecases"
)

// PipelineInput is the input for the pipeline workflow. An empty RunID
// defaults to the workflow ID.
type PipelineInput struct {
	RunID       string
	Collections []string
	Years       []int
}

// HousingPipelineWorkflow extracts every selected vintage in parallel and
// then builds and loads the unified dataset.
func HousingPipelineWorkflow(ctx workflow.Context, input PipelineInput) (*domain.RunReport, error) {
	logger := workflow.GetLogger(ctx)

	runID := input.RunID
	if runID == "" {
		runID = workflow.GetInfo(ctx).WorkflowExecution.ID
	}
	logger.Info("Starting housing pipeline", "runID", runID)

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	})

	var jobs []domain.VintageKey
	if err := workflow.ExecuteActivity(ctx, "PlanVintages", input).Get(ctx, &jobs); err != nil {
		return nil, err
	}

	futures := make([]workflow.Future, len(jobs))
	for i, key := range jobs {
		futures[i] = workflow.ExecuteActivity(ctx, "ExtractVintage", key)
	}

	// Collected in job order so the unified dataset keeps its row order.
	results := make([]usecases.VintageResult, len(jobs))
	for i, f := range futures {
		if err := f.Get(ctx, &results[i]); err != nil {
			logger.Error("vintage extraction failed", "vintage", jobs[i].String(), "error", err)
			return nil, err
		}
	}

	var report domain.RunReport
	if err := workflow.ExecuteActivity(ctx, "FinalizeDataset", runID, results).Get(ctx, &report); err != nil {
		return nil, err
	}

	logger.Info("Housing pipeline finished", "runID", runID, "rows", report.Rows)
	return &report, nil
}
