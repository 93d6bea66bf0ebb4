package workflows

import (
	"context"
	"errors"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/samirrijal/housingetl/internal/core/domain"
	"github.com/samirrijal/housingetl/internal/core/usecases"
)

// PipelineActivities holds the activity implementations for the pipeline workflow.
type PipelineActivities struct {
	Pipeline *usecases.PipelineService
}

// PlanVintages expands the run options into the ordered job list.
func (a *PipelineActivities) PlanVintages(ctx context.Context, input PipelineInput) ([]domain.VintageKey, error) {
	return a.Pipeline.Jobs(usecases.RunOptions{Collections: input.Collections, Years: input.Years}), nil
}

// ExtractVintage fetches and processes one vintage.
func (a *PipelineActivities) ExtractVintage(ctx context.Context, key domain.VintageKey) (usecases.VintageResult, error) {
	activity.GetLogger(ctx).Info("extracting vintage", "vintage", key.String())
	return a.Pipeline.ExtractVintage(ctx, key)
}

// FinalizeDataset unifies, normalizes, persists and publishes. Outcomes that
// a retry cannot change are returned as non-retryable errors.
func (a *PipelineActivities) FinalizeDataset(ctx context.Context, runID string, results []usecases.VintageResult) (*domain.RunReport, error) {
	report, err := a.Pipeline.Finalize(ctx, runID, results)
	switch {
	case err == nil:
		return report, nil
	case errors.Is(err, usecases.ErrAllVintagesFailed),
		errors.Is(err, usecases.ErrEmptyDataset),
		errors.Is(err, usecases.ErrNoVintages):
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), "PipelineOutcome", err)
	default:
		return nil, err
	}
}
