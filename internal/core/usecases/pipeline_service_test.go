package usecases_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/samirrijal/housingetl/internal/core/domain"
	"github.com/samirrijal/housingetl/internal/core/ports"
	"github.com/samirrijal/housingetl/internal/core/tourism"
	"github.com/samirrijal/housingetl/internal/core/usecases"
	"github.com/samirrijal/housingetl/internal/registry"
)

const testRegistry = `
aliases:
  Fecha: Period
  Tipo Predio: Property
  Predio: Property
  Area Privada: Private_Area_m2
  Valor Comercial: Commercial_Price_COP
collections:
  - name: sales
    vintages:
      - year: 2016
        url: http://example.test/sales-2016.kml
        schema:
          fields: [Name, Fecha, Tipo Predio, Area Privada, Valor Comercial, Latitude, Longitude]
          patterns:
            - {field: Fecha, match: ['FECHA:\s*(.*)']}
            - {field: Tipo Predio, match: ['TIPO PREDIO:\s*(.*)']}
            - {field: Area Privada, match: ['AREA PRIVADA:\s*(.*)']}
            - {field: Valor Comercial, match: ['VALOR COMERCIAL:\s*(.*)']}
  - name: rents
    vintages:
      - year: 2020
        url: http://example.test/rents-2020.kml
        schema:
          fields: [Name, Fecha, Predio, Area Privada, Valor Comercial, Longitude, Latitude]
          patterns:
            - {field: Fecha, match: ['FECHA:\s*(.*)']}
            - {field: Predio, match: ['PREDIO:\s*(.*)']}
            - {field: Area Privada, match: ['AREA:\s*(.*)']}
            - {field: Valor Comercial, match: ['CANON:\s*(.*)']}
`

// --- Mocks ---

type mockSource struct {
	fetchFn func(ctx context.Context, url string) ([]domain.GeoRecord, error)
}

func (m *mockSource) Fetch(ctx context.Context, url string) ([]domain.GeoRecord, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, url)
	}
	return nil, nil
}

type mockTables struct {
	fetchFn func(ctx context.Context, url string) ([][]string, error)
}

func (m *mockTables) FetchTable(ctx context.Context, url string) ([][]string, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, url)
	}
	return nil, nil
}

type mockSink struct {
	name      string
	replaceFn func(ctx context.Context, ds *domain.Dataset) error

	mu     sync.Mutex
	tables map[string]*domain.Dataset
}

func (m *mockSink) Name() string { return m.name }

func (m *mockSink) Replace(ctx context.Context, ds *domain.Dataset) error {
	if m.replaceFn != nil {
		if err := m.replaceFn(ctx, ds); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tables == nil {
		m.tables = map[string]*domain.Dataset{}
	}
	m.tables[ds.Name] = ds
	return nil
}

type mockPublisher struct {
	publishFn func(ctx context.Context, event *domain.DatasetEvent) error
	events    []*domain.DatasetEvent
}

func (m *mockPublisher) PublishDatasetLoaded(ctx context.Context, event *domain.DatasetEvent) error {
	m.events = append(m.events, event)
	if m.publishFn != nil {
		return m.publishFn(ctx, event)
	}
	return nil
}

// --- Fixtures ---

func loadRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r, err := registry.Parse([]byte(testRegistry))
	if err != nil {
		t.Fatalf("parse registry: %v", err)
	}
	return r
}

func desc(s string) domain.Text { return domain.Present(s) }

var fixtures = map[string][]domain.GeoRecord{
	"http://example.test/sales-2016.kml": {
		{
			Name:        "s1",
			Description: desc("FECHA: 15-03-2016<br>TIPO PREDIO: CASA<br>AREA PRIVADA: 100<br>VALOR COMERCIAL: 250.000.000"),
			Point:       &domain.GeoPoint{Lat: 6.2, Lon: -75.5},
		},
		{
			Name:        "s2",
			Description: desc("FECHA: 15-03-2016<br>TIPO PREDIO: LOTE<br>VALOR COMERCIAL: 90.000.000"),
			Point:       &domain.GeoPoint{Lat: 6.3, Lon: -75.6},
		},
		{Name: "no point", Description: desc("TIPO PREDIO: CASA")},
	},
	"http://example.test/rents-2020.kml": {
		{
			Name:        "r1",
			Description: desc("FECHA: 2/7/2020<br>PREDIO: APARTAMENTO<br>AREA: 60<br>CANON: 1,200,000"),
			Point:       &domain.GeoPoint{Lat: 6.25, Lon: -75.57},
		},
	},
}

func fixtureSource() *mockSource {
	return &mockSource{fetchFn: func(ctx context.Context, url string) ([]domain.GeoRecord, error) {
		recs, ok := fixtures[url]
		if !ok {
			return nil, errors.New("unexpected url " + url)
		}
		return recs, nil
	}}
}

func newPipeline(t *testing.T, source *mockSource, sinks []*mockSink, events *mockPublisher) *usecases.PipelineService {
	t.Helper()
	writers := make([]ports.DatasetWriter, 0, len(sinks))
	for _, s := range sinks {
		writers = append(writers, s)
	}
	cfg := usecases.PipelineConfig{
		Dataset:          "sales_rents_2011_2021",
		Concurrency:      2,
		RecordWorkers:    2,
		PropertyPrefixes: []string{"APARTAMENTO", "CASA"},
	}
	var pub ports.EventPublisher
	if events != nil {
		pub = events
	}
	return usecases.NewPipelineService(loadRegistry(t), source, nil, writers, pub, cfg)
}

// --- Tests ---

func TestPipelineService_Jobs(t *testing.T) {
	svc := usecases.NewPipelineService(loadRegistry(t), &mockSource{}, nil, nil, nil, usecases.PipelineConfig{})

	tests := []struct {
		name string
		opts usecases.RunOptions
		want []string
	}{
		{"everything", usecases.RunOptions{}, []string{"sales:2016", "rents:2020"}},
		{"one collection", usecases.RunOptions{Collections: []string{"rents"}}, []string{"rents:2020"}},
		{"years sorted per collection", usecases.RunOptions{Collections: []string{"sales"}, Years: []int{2017, 2016}}, []string{"sales:2016", "sales:2017"}},
		{"requested collection order", usecases.RunOptions{Collections: []string{"rents", "sales"}}, []string{"rents:2020", "sales:2016"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs := svc.Jobs(tt.opts)
			var got []string
			for _, j := range jobs {
				got = append(got, j.String())
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestPipelineService_Run(t *testing.T) {
	sink := &mockSink{name: "sqlite"}
	events := &mockPublisher{}
	svc := newPipeline(t, fixtureSource(), []*mockSink{sink}, events)

	report, err := svc.Run(context.Background(), usecases.RunOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.RunID == "" {
		t.Error("expected a run id")
	}
	if report.Rows != 2 || report.Unified != 3 || report.Filtered != 1 {
		t.Errorf("expected rows=2 unified=3 filtered=1, got %d %d %d", report.Rows, report.Unified, report.Filtered)
	}
	if len(report.Vintages) != 2 {
		t.Fatalf("expected 2 vintage reports, got %d", len(report.Vintages))
	}
	sales := report.Vintages[0]
	if sales.Key.String() != "sales:2016" || sales.Status != domain.VintageLoaded || sales.Records != 3 || sales.Rows != 2 || sales.Skipped != 1 {
		t.Errorf("unexpected sales report %+v", sales)
	}

	ds := sink.tables["sales_rents_2011_2021"]
	if ds == nil {
		t.Fatal("expected the dataset in the sink")
	}
	if len(ds.Rows) != 2 {
		t.Fatalf("expected 2 stored rows, got %d", len(ds.Rows))
	}
	// sales rows come before rents rows
	if ds.Rows[0][0] != "2016.03" || ds.Rows[0][2] != "CASA" {
		t.Errorf("unexpected first row %v", ds.Rows[0])
	}
	if ds.Rows[1][0] != "2020.07" || ds.Rows[1][2] != "APARTAMENTO" {
		t.Errorf("unexpected second row %v", ds.Rows[1])
	}

	if len(events.events) != 1 {
		t.Fatalf("expected one event, got %d", len(events.events))
	}
	if ev := events.events[0]; ev.RunID != report.RunID || ev.Rows != 2 || len(ev.Sinks) != 1 {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestPipelineService_Run_FailedVintageIsNotFatal(t *testing.T) {
	source := &mockSource{fetchFn: func(ctx context.Context, url string) ([]domain.GeoRecord, error) {
		if strings.Contains(url, "rents") {
			return nil, errors.New("connection reset")
		}
		return fixtures[url], nil
	}}
	sink := &mockSink{name: "sqlite"}
	svc := newPipeline(t, source, []*mockSink{sink}, nil)

	report, err := svc.Run(context.Background(), usecases.RunOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	failed := report.Failed()
	if len(failed) != 1 || failed[0].Key.String() != "rents:2020" || failed[0].Error == "" {
		t.Errorf("expected rents:2020 to be reported failed, got %+v", failed)
	}
	if report.Rows != 1 {
		t.Errorf("expected 1 row from sales, got %d", report.Rows)
	}
}

func TestPipelineService_Run_AllVintagesFailed(t *testing.T) {
	source := &mockSource{fetchFn: func(ctx context.Context, url string) ([]domain.GeoRecord, error) {
		return nil, errors.New("503")
	}}
	sink := &mockSink{name: "sqlite", replaceFn: func(ctx context.Context, ds *domain.Dataset) error {
		t.Error("sink must not be written")
		return nil
	}}
	svc := newPipeline(t, source, []*mockSink{sink}, nil)

	_, err := svc.Run(context.Background(), usecases.RunOptions{})
	if !errors.Is(err, usecases.ErrAllVintagesFailed) {
		t.Fatalf("expected ErrAllVintagesFailed, got %v", err)
	}
}

func TestPipelineService_Run_UnknownVintageIsSkipped(t *testing.T) {
	sink := &mockSink{name: "sqlite"}
	svc := newPipeline(t, fixtureSource(), []*mockSink{sink}, nil)

	report, err := svc.Run(context.Background(), usecases.RunOptions{Collections: []string{"sales"}, Years: []int{2009, 2016}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Vintages[0].Status != domain.VintageSkipped {
		t.Errorf("expected sales:2009 skipped, got %s", report.Vintages[0].Status)
	}
	if report.Vintages[1].Status != domain.VintageLoaded {
		t.Errorf("expected sales:2016 loaded, got %s", report.Vintages[1].Status)
	}
}

func TestPipelineService_Run_EmptyDatasetLeavesSinksAlone(t *testing.T) {
	sink := &mockSink{name: "sqlite"}
	svc := newPipeline(t, fixtureSource(), []*mockSink{sink}, nil)

	_, err := svc.Run(context.Background(), usecases.RunOptions{Years: []int{2009}})
	if !errors.Is(err, usecases.ErrEmptyDataset) {
		t.Fatalf("expected ErrEmptyDataset, got %v", err)
	}
	if len(sink.tables) != 0 {
		t.Error("expected no writes")
	}
}

func TestPipelineService_Run_SinkFailure(t *testing.T) {
	broken := &mockSink{name: "mysql", replaceFn: func(ctx context.Context, ds *domain.Dataset) error {
		return errors.New("access denied")
	}}
	good := &mockSink{name: "sqlite"}
	events := &mockPublisher{}
	svc := newPipeline(t, fixtureSource(), []*mockSink{broken, good}, events)

	_, err := svc.Run(context.Background(), usecases.RunOptions{})
	if err == nil || !strings.Contains(err.Error(), "mysql") {
		t.Fatalf("expected an error naming the mysql sink, got %v", err)
	}
	if good.tables["sales_rents_2011_2021"] == nil {
		t.Error("expected the healthy sink to be written")
	}
	if len(events.events) != 0 {
		t.Error("no event expected after a failed load")
	}
}

func TestPipelineService_Run_PublishFailureIsNotFatal(t *testing.T) {
	events := &mockPublisher{publishFn: func(ctx context.Context, event *domain.DatasetEvent) error {
		return errors.New("nats: no responders")
	}}
	svc := newPipeline(t, fixtureSource(), []*mockSink{{name: "sqlite"}}, events)

	if _, err := svc.Run(context.Background(), usecases.RunOptions{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPipelineService_Run_Tourism(t *testing.T) {
	tables := &mockTables{fetchFn: func(ctx context.Context, url string) ([][]string, error) {
		switch url {
		case "entries":
			return [][]string{
				{"ing_nacionalidad", "ing_periodo", "ing_valor", "ing_indic"},
				{"Extranjero", "201003", "10", "x"},
				{"Extranjero", "201103", "12", "x"},
				{"Colombiano", "201104", "30", "x"},
			}, nil
		case "foreigners":
			return [][]string{
				{"lle_codigo", "lle_origenpax", "lle_periodo", "lle_valor", "lle_indicador"},
				{"US", "Estados Unidos", "201201", "5", "x"},
			}, nil
		}
		return nil, errors.New("404")
	}}
	sink := &mockSink{name: "sqlite"}
	cfg := usecases.PipelineConfig{
		Dataset:          "sales_rents_2011_2021",
		PropertyPrefixes: []string{"APARTAMENTO", "CASA"},
		Tourism: &usecases.TourismSources{
			EntriesURL:    "entries",
			ForeignersURL: "foreigners",
			ColombiansURL: "colombians",
		},
	}
	svc := usecases.NewPipelineService(loadRegistry(t), fixtureSource(), tables, []ports.DatasetWriter{sink}, nil, cfg)

	report, err := svc.Run(context.Background(), usecases.RunOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Tables) != 3 {
		t.Fatalf("expected 3 table reports, got %+v", report.Tables)
	}
	entries := report.Tables[1]
	if entries.Table != tourism.EntriesTable || entries.Rows != 2 || entries.Error != "" {
		t.Errorf("unexpected entries report %+v", entries)
	}
	passengers := report.Tables[2]
	if passengers.Table != tourism.PassengersTable || passengers.Error == "" {
		t.Errorf("expected the passengers table to report the missing CSV, got %+v", passengers)
	}
	if sink.tables[tourism.EntriesTable] == nil {
		t.Error("expected the entries table in the sink")
	}
	if sink.tables[tourism.PassengersTable] != nil {
		t.Error("passengers table must not be written")
	}
}
