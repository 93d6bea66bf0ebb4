package bootstrap_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/samirrijal/housingetl/internal/bootstrap"
	"github.com/samirrijal/housingetl/internal/core/usecases"
	"github.com/samirrijal/housingetl/internal/pkg/config"
)

const offersKML = `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2"><Document>
  <Placemark>
    <name>Oferta 1</name>
    <description><![CDATA[FECHA: 15/03/2016<br>TIPO PREDIO: APARTAMENTO<br>VALOR: 250.000.000<br>AREA: 80]]></description>
    <Point><coordinates>-75.5812,6.2442,0</coordinates></Point>
  </Placemark>
  <Placemark>
    <name>Oferta 2</name>
    <description><![CDATA[FECHA: 16/03/2016<br>TIPO PREDIO: LOTE<br>VALOR: 90.000.000<br>AREA: 300]]></description>
    <Point><coordinates>-75.59,6.25,0</coordinates></Point>
  </Placemark>
</Document></kml>`

const registryDoc = `
aliases:
  Fecha: Period
  Tipo Predio: Property
  Valor: Commercial_Price_COP
  Area: Private_Area_m2
collections:
  - name: sales
    vintages:
      - year: 2016
        url: %s/sales-2016.kml
        schema:
          fields: [Name, Fecha, Tipo Predio, Valor, Area, Latitude, Longitude]
          patterns:
            - {field: Fecha, match: ['FECHA:\s*(.*)']}
            - {field: Tipo Predio, match: ['TIPO PREDIO:\s*(.*)']}
            - {field: Valor, match: ['VALOR:\s*(.*)']}
            - {field: Area, match: ['AREA:\s*(.*)']}
`

func testConfig(t *testing.T, sourceURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	regPath := filepath.Join(dir, "vintages.yaml")
	if err := os.WriteFile(regPath, []byte(fmt.Sprintf(registryDoc, sourceURL)), 0o644); err != nil {
		t.Fatal(err)
	}
	return &config.Config{
		SQLite: config.SQLiteConfig{Path: filepath.Join(dir, "out", "housing.sqlite")},
		Pipeline: config.PipelineConfig{
			RegistryPath:     regPath,
			Dataset:          "housing",
			Concurrency:      2,
			RecordWorkers:    2,
			Sinks:            []string{config.SinkSQLite},
			PropertyPrefixes: []string{"APARTAMENTO", "CASA"},
		},
		Fetch: config.FetchConfig{
			TimeoutSeconds:   5,
			MaxAttempts:      1,
			InitialBackoffMs: 1,
			MaxBackoffMs:     1,
			UserAgent:        "housingetl-test",
		},
	}
}

func TestNewRuntime_RunsIntoSQLite(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sales-2016.kml" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(offersKML))
	}))
	defer srv.Close()

	ctx := context.Background()
	cfg := testConfig(t, srv.URL)

	rt, err := bootstrap.NewRuntime(ctx, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rt.Close()

	if len(rt.Sinks) != 1 || rt.Sinks[0].Name() != "sqlite" {
		t.Fatalf("expected the sqlite sink, got %d sinks", len(rt.Sinks))
	}

	report, err := rt.Pipeline.Run(ctx, usecases.RunOptions{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if report.Rows != 1 {
		t.Errorf("expected 1 row after the property filter, got %d", report.Rows)
	}

	inspector, err := rt.Inspector(config.SinkSQLite)
	if err != nil {
		t.Fatal(err)
	}
	n, err := inspector.RowCount(ctx, "housing")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 stored row, got %d", n)
	}
}

func TestRuntime_InspectorUnknownSink(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:0")
	rt, err := bootstrap.NewRuntime(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer rt.Close()

	if _, err := rt.Inspector(config.SinkMySQL); err == nil {
		t.Error("expected an error for an unconfigured sink")
	}
}

func TestNewRuntime_BadRegistry(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:0")
	cfg.Pipeline.RegistryPath = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := bootstrap.NewRuntime(context.Background(), cfg); err == nil {
		t.Error("expected an error for a missing registry file")
	}
}

func TestOpenListings_SQLite(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:0")
	store, err := bootstrap.OpenListings(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if err := bootstrap.PingFunc(store.Ping).Ping(context.Background()); err != nil {
		t.Errorf("ping: %v", err)
	}
}
