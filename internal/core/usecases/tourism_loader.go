package usecases

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samirrijal/housingetl/internal/core/domain"
	"github.com/samirrijal/housingetl/internal/core/tourism"
	"github.com/samirrijal/housingetl/internal/pkg/metrics"
)

// loadTourism writes the supplementary tourism tables. Failures are recorded
// in the report and never fail the run.
func (s *PipelineService) loadTourism(ctx context.Context, report *domain.RunReport) {
	src := s.cfg.Tourism

	if src.EntriesURL != "" {
		report.Tables = append(report.Tables, s.loadTable(ctx, tourism.EntriesTable, func() (*domain.Dataset, error) {
			rows, err := s.tables.FetchTable(ctx, src.EntriesURL)
			if err != nil {
				return nil, err
			}
			return tourism.Entries(rows)
		}))
	}

	if src.ForeignersURL != "" && src.ColombiansURL != "" {
		report.Tables = append(report.Tables, s.loadTable(ctx, tourism.PassengersTable, func() (*domain.Dataset, error) {
			foreigners, err := s.tables.FetchTable(ctx, src.ForeignersURL)
			if err != nil {
				return nil, fmt.Errorf("foreigners: %w", err)
			}
			colombians, err := s.tables.FetchTable(ctx, src.ColombiansURL)
			if err != nil {
				return nil, fmt.Errorf("colombians: %w", err)
			}
			return tourism.Passengers(foreigners, colombians)
		}))
	}
}

func (s *PipelineService) loadTable(ctx context.Context, name string, build func() (*domain.Dataset, error)) domain.TableReport {
	tr := domain.TableReport{Table: name}
	ds, err := build()
	if err != nil {
		slog.Warn("tourism table skipped", "table", name, "error", err)
		tr.Error = err.Error()
		return tr
	}
	for _, sink := range s.sinks {
		if err := sink.Replace(ctx, ds); err != nil {
			slog.Warn("tourism table load failed", "table", name, "sink", sink.Name(), "error", err)
			tr.Error = fmt.Sprintf("%s: %v", sink.Name(), err)
			continue
		}
		metrics.RowsLoaded.WithLabelValues(sink.Name()).Add(float64(len(ds.Rows)))
	}
	tr.Rows = len(ds.Rows)
	return tr
}
