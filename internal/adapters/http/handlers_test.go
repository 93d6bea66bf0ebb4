package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/housingetl/internal/adapters/http"
	"github.com/samirrijal/housingetl/internal/core/domain"
	"github.com/samirrijal/housingetl/internal/core/usecases"
	"github.com/samirrijal/housingetl/internal/registry"
)

// ---- Mocks ----

type mockListingRepo struct {
	listFn         func(ctx context.Context, f domain.ListingFilter) ([]domain.Listing, int, error)
	withinBoundsFn func(ctx context.Context, box domain.Bounds, limit int) ([]domain.Listing, error)
	statsFn        func(ctx context.Context) ([]domain.PeriodStats, error)
}

func (m *mockListingRepo) List(ctx context.Context, f domain.ListingFilter) ([]domain.Listing, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, f)
	}
	return nil, 0, nil
}

func (m *mockListingRepo) WithinBounds(ctx context.Context, box domain.Bounds, limit int) ([]domain.Listing, error) {
	if m.withinBoundsFn != nil {
		return m.withinBoundsFn(ctx, box, limit)
	}
	return nil, nil
}

func (m *mockListingRepo) Stats(ctx context.Context) ([]domain.PeriodStats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx)
	}
	return nil, nil
}

type pinger struct{ err error }

func (p pinger) Ping(ctx context.Context) error { return p.err }

// ---- Helpers ----

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func makeDeps(t *testing.T, opts ...func(*handler.Dependencies)) *handler.Dependencies {
	t.Helper()
	reg, err := registry.Default()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	d := &handler.Dependencies{
		Listings: usecases.NewListingService(&mockListingRepo{}, nil),
		Vintages: usecases.NewVintageService(reg),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func withRepo(repo *mockListingRepo) func(*handler.Dependencies) {
	return func(d *handler.Dependencies) {
		d.Listings = usecases.NewListingService(repo, nil)
	}
}

func get(t *testing.T, app *fiber.App, url string) *httpResponse {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", url, nil), -1)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return &httpResponse{Status: resp.StatusCode, Header: resp.Header.Get, Body: body}
}

type httpResponse struct {
	Status int
	Header func(string) string
	Body   []byte
}

func (r *httpResponse) decode(t *testing.T, v any) {
	t.Helper()
	if err := json.Unmarshal(r.Body, v); err != nil {
		t.Fatalf("decode %s: %v", r.Body, err)
	}
}

func sampleListings(n int) []domain.Listing {
	out := make([]domain.Listing, n)
	for i := range out {
		price := int64(100000000 + i)
		out[i] = domain.Listing{
			Period:   "2016.03",
			Property: "CASA",
			Price:    &price,
			Location: domain.GeoPoint{Lat: 6.24, Lon: -75.58},
		}
	}
	return out
}

// ---- Vintage handler tests ----

func TestListVintages(t *testing.T) {
	app := setupApp(makeDeps(t))

	resp := get(t, app, "/v1/vintages")
	if resp.Status != 200 {
		t.Fatalf("expected 200, got %d", resp.Status)
	}
	var all []domain.VintageInfo
	resp.decode(t, &all)
	if len(all) != 22 {
		t.Errorf("expected 22 vintages, got %d", len(all))
	}

	resp = get(t, app, "/v1/vintages?collection=rents")
	var rents []domain.VintageInfo
	resp.decode(t, &rents)
	if len(rents) != 11 {
		t.Errorf("expected 11 rent vintages, got %d", len(rents))
	}
	if cc := resp.Header("Cache-Control"); cc != "public, max-age=3600" {
		t.Errorf("unexpected Cache-Control %q", cc)
	}
}

func TestGetVintage(t *testing.T) {
	app := setupApp(makeDeps(t))

	tests := []struct {
		url    string
		status int
	}{
		{"/v1/vintages/sales/2016", 200},
		{"/v1/vintages/sales/1999", 404},
		{"/v1/vintages/sales/recent", 400},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			resp := get(t, app, tt.url)
			if resp.Status != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, resp.Status, resp.Body)
			}
			if tt.status != 200 {
				var apiErr handler.APIError
				resp.decode(t, &apiErr)
				if apiErr.Status != tt.status || apiErr.Code == "" {
					t.Errorf("unexpected error body %+v", apiErr)
				}
			}
		})
	}
}

// ---- Listing handler tests ----

func TestListListings_Pagination(t *testing.T) {
	var got domain.ListingFilter
	repo := &mockListingRepo{listFn: func(ctx context.Context, f domain.ListingFilter) ([]domain.Listing, int, error) {
		got = f
		return sampleListings(f.Limit), 10, nil
	}}
	app := setupApp(makeDeps(t, withRepo(repo)))

	resp := get(t, app, "/v1/listings?period=2016.03&property=casa&offset=2&limit=3")
	if resp.Status != 200 {
		t.Fatalf("expected 200, got %d: %s", resp.Status, resp.Body)
	}
	if got.Period != "2016.03" || got.Property != "CASA" || got.Offset != 2 || got.Limit != 3 {
		t.Errorf("unexpected filter %+v", got)
	}

	var result struct {
		Data       []domain.Listing   `json:"data"`
		Pagination handler.Pagination `json:"pagination"`
	}
	resp.decode(t, &result)
	if len(result.Data) != 3 || result.Pagination.Total != 10 || result.Pagination.Offset != 2 {
		t.Errorf("unexpected page %+v", result.Pagination)
	}

	link := resp.Header("Link")
	for _, rel := range []string{`rel="first"`, `rel="prev"`, `rel="next"`, `rel="last"`} {
		if !strings.Contains(link, rel) {
			t.Errorf("expected %s in Link header %q", rel, link)
		}
	}
	if !strings.Contains(link, "period=2016.03") {
		t.Errorf("expected filters carried into links, got %q", link)
	}
	if cc := resp.Header("Cache-Control"); cc != "public, max-age=300" {
		t.Errorf("unexpected Cache-Control %q", cc)
	}
}

func TestListListings_ClampsLimit(t *testing.T) {
	repo := &mockListingRepo{listFn: func(ctx context.Context, f domain.ListingFilter) ([]domain.Listing, int, error) {
		if f.Limit != 50 {
			t.Errorf("expected limit clamped to 50, got %d", f.Limit)
		}
		return nil, 0, nil
	}}
	app := setupApp(makeDeps(t, withRepo(repo)))

	resp := get(t, app, "/v1/listings?limit=5000")
	if resp.Status != 200 {
		t.Fatalf("expected 200, got %d", resp.Status)
	}
	var result struct {
		Data []domain.Listing `json:"data"`
	}
	resp.decode(t, &result)
	if result.Data == nil {
		t.Error("expected an empty array, not null")
	}
}

func TestListListings_BadPeriod(t *testing.T) {
	app := setupApp(makeDeps(t))
	for _, p := range []string{"2016-03", "2016.13", "16.03"} {
		if resp := get(t, app, "/v1/listings?period="+p); resp.Status != 400 {
			t.Errorf("period %q: expected 400, got %d", p, resp.Status)
		}
	}
}

func TestListListings_RepositoryError(t *testing.T) {
	repo := &mockListingRepo{listFn: func(ctx context.Context, f domain.ListingFilter) ([]domain.Listing, int, error) {
		return nil, 0, errors.New("connection refused")
	}}
	app := setupApp(makeDeps(t, withRepo(repo)))

	resp := get(t, app, "/v1/listings")
	if resp.Status != 500 {
		t.Fatalf("expected 500, got %d", resp.Status)
	}
	var apiErr handler.APIError
	resp.decode(t, &apiErr)
	if apiErr.Code != "internal_error" || apiErr.RequestID == "" {
		t.Errorf("unexpected error body %+v", apiErr)
	}
}

func TestListings_NoStore(t *testing.T) {
	app := setupApp(makeDeps(t, func(d *handler.Dependencies) { d.Listings = nil }))
	for _, url := range []string{"/v1/listings", "/v1/listings/nearby?lat=6.2&lon=-75.5", "/v1/listings/stats"} {
		if resp := get(t, app, url); resp.Status != 503 {
			t.Errorf("%s: expected 503, got %d", url, resp.Status)
		}
	}
}

func TestNearbyListings_Success(t *testing.T) {
	repo := &mockListingRepo{withinBoundsFn: func(ctx context.Context, box domain.Bounds, limit int) ([]domain.Listing, error) {
		return []domain.Listing{{Property: "CASA", Location: domain.GeoPoint{Lat: 6.2445, Lon: -75.5812}}}, nil
	}}
	app := setupApp(makeDeps(t, withRepo(repo)))

	resp := get(t, app, "/v1/listings/nearby?lat=6.2442&lon=-75.5812&radius=500")
	if resp.Status != 200 {
		t.Fatalf("expected 200, got %d: %s", resp.Status, resp.Body)
	}
	var listings []domain.Listing
	resp.decode(t, &listings)
	if len(listings) != 1 || listings[0].Distance == nil {
		t.Fatalf("expected one listing with a distance, got %+v", listings)
	}
}

func TestNearbyListings_BadParams(t *testing.T) {
	app := setupApp(makeDeps(t))
	tests := []string{
		"/v1/listings/nearby",
		"/v1/listings/nearby?lat=6.2",
		"/v1/listings/nearby?lat=96&lon=-75.5",
		"/v1/listings/nearby?lat=6.2&lon=-75.5&radius=50000",
		"/v1/listings/nearby?lat=6.2&lon=-75.5&radius=-1",
	}
	for _, url := range tests {
		if resp := get(t, app, url); resp.Status != 400 {
			t.Errorf("%s: expected 400, got %d", url, resp.Status)
		}
	}
}

func TestListingStats(t *testing.T) {
	avg := 1500000.0
	repo := &mockListingRepo{statsFn: func(ctx context.Context) ([]domain.PeriodStats, error) {
		return []domain.PeriodStats{{Period: "2016.03", Listings: 4, AvgPrice: &avg}}, nil
	}}
	app := setupApp(makeDeps(t, withRepo(repo)))

	resp := get(t, app, "/v1/listings/stats")
	if resp.Status != 200 {
		t.Fatalf("expected 200, got %d", resp.Status)
	}
	var stats []domain.PeriodStats
	resp.decode(t, &stats)
	if len(stats) != 1 || stats[0].Listings != 4 || *stats[0].AvgPrice != avg {
		t.Errorf("unexpected stats %+v", stats)
	}
	if cc := resp.Header("Cache-Control"); cc != "public, max-age=600" {
		t.Errorf("unexpected Cache-Control %q", cc)
	}
}

// ---- Health handler tests ----

func TestHealth_Returns200(t *testing.T) {
	resp := get(t, setupApp(makeDeps(t)), "/v1/health")
	if resp.Status != 200 {
		t.Fatalf("expected 200, got %d", resp.Status)
	}
	var result map[string]interface{}
	resp.decode(t, &result)
	if result["status"] != "healthy" {
		t.Errorf("expected healthy status, got %v", result["status"])
	}
}

func TestReady(t *testing.T) {
	tests := []struct {
		name   string
		db     handler.Pinger
		cache  handler.Pinger
		status int
	}{
		{"no database", nil, nil, 503},
		{"database ok", pinger{}, nil, 200},
		{"database down", pinger{err: errors.New("refused")}, nil, 503},
		{"cache down", pinger{}, pinger{err: errors.New("timeout")}, 503},
		{"all ok", pinger{}, pinger{}, 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := setupApp(makeDeps(t, func(d *handler.Dependencies) {
				d.DB = tt.db
				d.Cache = tt.cache
			}))
			if resp := get(t, app, "/v1/ready"); resp.Status != tt.status {
				t.Errorf("expected %d, got %d: %s", tt.status, resp.Status, resp.Body)
			}
		})
	}
}

// ---- Middleware ----

func TestAPIVersionHeader(t *testing.T) {
	resp := get(t, setupApp(makeDeps(t)), "/v1/health")
	if v := resp.Header("X-API-Version"); v != "1.0.0" {
		t.Errorf("expected X-API-Version 1.0.0, got %q", v)
	}
}

func TestETag_NotModified(t *testing.T) {
	app := setupApp(makeDeps(t))

	first := get(t, app, "/v1/vintages")
	etag := first.Header("ETag")
	if etag == "" {
		t.Fatal("expected an ETag")
	}

	req := httptest.NewRequest("GET", "/v1/vintages", nil)
	req.Header.Set("If-None-Match", `W/"other", `+etag)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 304 {
		t.Errorf("expected 304, got %d", resp.StatusCode)
	}
}

func TestAccessLogMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(handler.AccessLogMiddleware())
	app.Get("/test", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/test", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "ok") {
		t.Errorf("expected response body to contain 'ok', got %s", string(body))
	}
}

// ---- GraphQL ----

func postGraphQL(t *testing.T, app *fiber.App, query string) map[string]any {
	t.Helper()
	payload, _ := json.Marshal(map[string]string{"query": query})
	req := httptest.NewRequest("POST", "/graphql", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if errs, ok := out["errors"]; ok {
		t.Fatalf("graphql errors: %v", errs)
	}
	return out["data"].(map[string]any)
}

func TestGraphQL_Listings(t *testing.T) {
	repo := &mockListingRepo{listFn: func(ctx context.Context, f domain.ListingFilter) ([]domain.Listing, int, error) {
		if f.Property != "CASA" {
			t.Errorf("unexpected property filter %q", f.Property)
		}
		return sampleListings(2), 7, nil
	}}
	app := setupApp(makeDeps(t, withRepo(repo)))

	data := postGraphQL(t, app, `{ listings(property: "CASA", limit: 2) { total listings { period property commercial_price_cop location { lat } } } }`)
	page := data["listings"].(map[string]any)
	if page["total"] != float64(7) {
		t.Errorf("expected total 7, got %v", page["total"])
	}
	listings := page["listings"].([]any)
	if len(listings) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(listings))
	}
	first := listings[0].(map[string]any)
	if first["property"] != "CASA" || first["commercial_price_cop"] != float64(100000000) {
		t.Errorf("unexpected listing %v", first)
	}
}

func TestGraphQL_Vintages(t *testing.T) {
	app := setupApp(makeDeps(t))

	data := postGraphQL(t, app, `{ vintages(collection: "sales") { collection year coordinate_order } }`)
	vintages := data["vintages"].([]any)
	if len(vintages) != 11 {
		t.Fatalf("expected 11 vintages, got %d", len(vintages))
	}
	first := vintages[0].(map[string]any)
	if first["collection"] != "sales" || first["year"] != float64(2011) {
		t.Errorf("unexpected vintage %v", first)
	}
	if order := first["coordinate_order"].([]any); len(order) != 2 {
		t.Errorf("unexpected coordinate order %v", order)
	}
}

// ---- Docs ----

func TestDocs(t *testing.T) {
	app := setupApp(makeDeps(t))

	resp := get(t, app, "/docs/openapi.yaml")
	if resp.Status != 200 {
		t.Fatalf("expected 200, got %d", resp.Status)
	}
	if ct := resp.Header("Content-Type"); ct != "application/yaml" {
		t.Errorf("unexpected content type %q", ct)
	}
	if !bytes.Contains(resp.Body, []byte("openapi:")) {
		t.Error("expected the OpenAPI document")
	}

	if resp := get(t, app, "/docs"); resp.Status != 200 || !bytes.Contains(resp.Body, []byte("swagger-ui")) {
		t.Errorf("expected the Swagger UI page, got %d", resp.Status)
	}
}

func ExampleSetLinkHeaders() {
	app := fiber.New()
	app.Get("/v1/listings", func(c *fiber.Ctx) error {
		handler.SetLinkHeaders(c, handler.Pagination{Offset: 0, Limit: 2, Total: 5})
		return c.SendStatus(200)
	})
	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/listings?period=2016.03", nil))
	fmt.Println(resp.Header.Get("Link"))
	// Output: </v1/listings?limit=2&offset=0&period=2016.03>; rel="first", </v1/listings?limit=2&offset=2&period=2016.03>; rel="next", </v1/listings?limit=2&offset=3&period=2016.03>; rel="last"
}
