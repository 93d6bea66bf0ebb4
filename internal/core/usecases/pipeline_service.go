package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/housingetl/internal/core/domain"
	"github.com/samirrijal/housingetl/internal/core/engine"
	"github.com/samirrijal/housingetl/internal/core/ports"
	"github.com/samirrijal/housingetl/internal/pkg/metrics"
	"github.com/samirrijal/housingetl/internal/pkg/telemetry"
)

var (
	// ErrAllVintagesFailed is returned when every attempted retrieval failed.
	ErrAllVintagesFailed = errors.New("every vintage retrieval failed")
	// ErrNoVintages is returned when the run selects no vintage at all.
	ErrNoVintages = errors.New("no vintages selected")
	// ErrEmptyDataset is returned when nothing survives unification; the
	// sinks keep their previous content.
	ErrEmptyDataset = errors.New("unified dataset is empty")
)

// PipelineConfig holds the run settings.
type PipelineConfig struct {
	Dataset          string
	Concurrency      int
	RecordWorkers    int
	PropertyPrefixes []string
	Tourism          *TourismSources
}

// TourismSources are the open-data CSVs loaded next to the housing dataset.
type TourismSources struct {
	EntriesURL    string
	ForeignersURL string
	ColombiansURL string
}

// RunOptions narrows a run. Empty slices select everything registered.
type RunOptions struct {
	Collections []string `json:"collections,omitempty"`
	Years       []int    `json:"years,omitempty"`
}

// VintageResult is the outcome of extracting one vintage.
type VintageResult struct {
	Report domain.VintageReport `json:"report"`
	Table  domain.VintageTable  `json:"table"`
}

// PipelineService runs the extract, unify, normalize and load stages.
type PipelineService struct {
	registry ports.SchemaRegistry
	source   ports.RecordSource
	tables   ports.TableSource
	sinks    []ports.DatasetWriter
	events   ports.EventPublisher
	cfg      PipelineConfig
}

// NewPipelineService creates a PipelineService. tables and events may be nil.
func NewPipelineService(
	registry ports.SchemaRegistry,
	source ports.RecordSource,
	tables ports.TableSource,
	sinks []ports.DatasetWriter,
	events ports.EventPublisher,
	cfg PipelineConfig,
) *PipelineService {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.RecordWorkers <= 0 {
		cfg.RecordWorkers = 1
	}
	return &PipelineService{
		registry: registry,
		source:   source,
		tables:   tables,
		sinks:    sinks,
		events:   events,
		cfg:      cfg,
	}
}

// Jobs lists the vintages a run with opts visits, collection by collection in
// registry order and years ascending within a collection. Requested
// combinations the registry does not know are kept so that the run reports
// them as skipped.
func (s *PipelineService) Jobs(opts RunOptions) []domain.VintageKey {
	keys := s.registry.Keys()

	collections := opts.Collections
	if len(collections) == 0 {
		seen := map[string]bool{}
		for _, k := range keys {
			if !seen[k.Collection] {
				seen[k.Collection] = true
				collections = append(collections, k.Collection)
			}
		}
	}

	var jobs []domain.VintageKey
	for _, c := range collections {
		years := opts.Years
		if len(years) == 0 {
			for _, k := range keys {
				if k.Collection == c {
					years = append(years, k.Year)
				}
			}
		}
		years = append([]int(nil), years...)
		sort.Ints(years)
		for _, y := range years {
			jobs = append(jobs, domain.VintageKey{Collection: c, Year: y})
		}
	}
	return jobs
}

// Run executes a full pipeline run.
func (s *PipelineService) Run(ctx context.Context, opts RunOptions) (*domain.RunReport, error) {
	runID := uuid.NewString()
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanRun)
	defer span.End()
	span.SetAttributes(attribute.String(telemetry.AttrRunID, runID))

	jobs := s.Jobs(opts)
	slog.Info("pipeline run starting", "run_id", runID, "vintages", len(jobs))
	started := time.Now()

	results := make([]VintageResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, key := range jobs {
		g.Go(func() error {
			res, err := s.ExtractVintage(gctx, key)
			results[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		metrics.RunsTotal.WithLabelValues("error").Inc()
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	report, err := s.Finalize(ctx, runID, results)
	if report != nil {
		report.StartedAt = started
	}
	if err != nil {
		metrics.RunsTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return report, err
	}
	metrics.RunsTotal.WithLabelValues("ok").Inc()
	return report, nil
}

// ExtractVintage retrieves and processes one vintage. A missing schema or a
// retrieval failure is reported in the result, not returned; the error is
// reserved for cancellation.
func (s *PipelineService) ExtractVintage(ctx context.Context, key domain.VintageKey) (VintageResult, error) {
	label := key.String()
	res := VintageResult{Report: domain.VintageReport{Key: key}}
	start := time.Now()
	defer func() {
		res.Report.Duration = time.Since(start).Round(time.Millisecond).String()
		metrics.VintageDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	}()

	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanVintage)
	defer span.End()
	span.SetAttributes(attribute.String(telemetry.AttrVintage, label))

	schema, ok := s.registry.Lookup(key)
	if !ok {
		slog.Warn("no schema for vintage, skipping", "vintage", label)
		res.Report.Status = domain.VintageSkipped
		return res, nil
	}

	records, err := s.source.Fetch(ctx, schema.URL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		slog.Error("vintage retrieval failed", "vintage", label, "error", err)
		metrics.FetchErrors.WithLabelValues(label).Inc()
		span.RecordError(err)
		res.Report.Status = domain.VintageFailed
		res.Report.Error = err.Error()
		res.Table = domain.VintageTable{Key: key, Columns: append([]string(nil), schema.Fields...)}
		return res, nil
	}
	metrics.RecordsFetched.WithLabelValues(label).Add(float64(len(records)))

	table, err := engine.ProcessConcurrent(ctx, records, schema, s.cfg.RecordWorkers)
	if err != nil {
		return res, fmt.Errorf("process %s: %w", label, err)
	}
	metrics.RowsExtracted.WithLabelValues(label).Add(float64(table.Len()))

	res.Table = table
	res.Report.Records = len(records)
	res.Report.Rows = table.Len()
	res.Report.Skipped = len(records) - table.Len()
	res.Report.Status = domain.VintageLoaded
	if table.Len() == 0 {
		res.Report.Status = domain.VintageEmpty
	}
	span.SetAttributes(attribute.Int(telemetry.AttrRows, table.Len()))
	slog.Info("vintage extracted", "vintage", label, "records", len(records), "rows", table.Len())
	return res, nil
}

// Finalize unifies the extracted vintages, normalizes the result and writes it
// to every sink. results must be in job order.
func (s *PipelineService) Finalize(ctx context.Context, runID string, results []VintageResult) (*domain.RunReport, error) {
	report := &domain.RunReport{
		RunID:     runID,
		Dataset:   s.cfg.Dataset,
		StartedAt: time.Now(),
	}

	var (
		tables    []domain.VintageTable
		attempted int
		failed    int
		extracted int
	)
	for _, r := range results {
		report.Vintages = append(report.Vintages, r.Report)
		switch r.Report.Status {
		case domain.VintageSkipped:
			continue
		case domain.VintageFailed:
			failed++
		}
		attempted++
		extracted += r.Table.Len()
		tables = append(tables, r.Table)
	}
	if len(results) == 0 {
		return report, ErrNoVintages
	}
	if attempted > 0 && failed == attempted {
		return report, ErrAllVintagesFailed
	}

	keep := engine.PrefixFilter(domain.ColProperty, s.cfg.PropertyPrefixes...)
	unified := engine.Unify(tables, s.registry.Aliases(), domain.HousingSchema.Names(), keep)
	clean := engine.Normalize(unified)
	report.Unified = extracted
	report.Filtered = extracted - len(clean.Rows)
	report.Rows = len(clean.Rows)
	metrics.RowsFiltered.Add(float64(report.Filtered))
	countMissing(clean)

	if len(clean.Rows) == 0 {
		return report, ErrEmptyDataset
	}

	ds := engine.ToDataset(s.cfg.Dataset, domain.HousingSchema, clean)
	if err := s.load(ctx, ds, report); err != nil {
		return report, err
	}

	if s.cfg.Tourism != nil && s.tables != nil {
		s.loadTourism(ctx, report)
	}

	report.FinishedAt = time.Now()
	s.publish(ctx, report)
	slog.Info("pipeline run finished", "run_id", runID, "rows", report.Rows,
		"filtered", report.Filtered, "failed_vintages", failed)
	return report, nil
}

func countMissing(t domain.CanonicalTable) {
	for i, col := range t.Columns {
		missing := 0
		for _, row := range t.Rows {
			if !row[i].Valid {
				missing++
			}
		}
		if missing > 0 {
			metrics.FieldsMissing.WithLabelValues(col).Add(float64(missing))
		}
	}
}

// load writes ds to every sink. All sinks are attempted; failures are joined.
func (s *PipelineService) load(ctx context.Context, ds *domain.Dataset, report *domain.RunReport) error {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanLoad)
	defer span.End()

	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Replace(ctx, ds); err != nil {
			slog.Error("sink load failed", "sink", sink.Name(), "table", ds.Name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
			continue
		}
		metrics.RowsLoaded.WithLabelValues(sink.Name()).Add(float64(len(ds.Rows)))
		report.Sinks = append(report.Sinks, sink.Name())
		span.SetAttributes(attribute.String(telemetry.AttrSink, sink.Name()))
	}
	report.Tables = append(report.Tables, domain.TableReport{Table: ds.Name, Rows: len(ds.Rows)})
	return errors.Join(errs...)
}

func (s *PipelineService) publish(ctx context.Context, report *domain.RunReport) {
	if s.events == nil {
		return
	}
	event := &domain.DatasetEvent{
		RunID:    report.RunID,
		Dataset:  report.Dataset,
		Rows:     report.Rows,
		Sinks:    report.Sinks,
		Vintages: report.Vintages,
		LoadedAt: report.FinishedAt,
	}
	if err := s.events.PublishDatasetLoaded(ctx, event); err != nil {
		slog.Warn("publish dataset event failed", "run_id", report.RunID, "error", err)
	}
}
