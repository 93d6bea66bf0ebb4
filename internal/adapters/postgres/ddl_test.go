package postgres_test

import (
	"strings"
	"testing"

	"github.com/samirrijal/housingetl/internal/adapters/postgres"
	"github.com/samirrijal/housingetl/internal/core/domain"
)

func TestCreateTableSQL(t *testing.T) {
	got := postgres.CreateTableSQL("sales_rents_2011_2021", domain.HousingSchema)
	for _, want := range []string{
		`CREATE TABLE "sales_rents_2011_2021" (`,
		`"Period" TEXT`,
		`"Private_Area_m2" DOUBLE PRECISION`,
		`"Lot_Area_m2" BIGINT`,
		`"Latitude" DOUBLE PRECISION)`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in %s", want, got)
		}
	}
}

func TestIndexSQL(t *testing.T) {
	stmts := postgres.IndexSQL("sales_rents_2011_2021", domain.HousingSchema)
	if len(stmts) != 2 {
		t.Fatalf("expected period and location indexes, got %v", stmts)
	}
	if !strings.Contains(stmts[1], `("Latitude", "Longitude")`) {
		t.Errorf("unexpected location index %s", stmts[1])
	}

	tourism := []domain.CanonicalColumn{{Name: "Code", Kind: domain.KindText}, {Name: "Number", Kind: domain.KindInteger}}
	if got := postgres.IndexSQL("monthly_passengers_origin", tourism); len(got) != 0 {
		t.Errorf("expected no indexes, got %v", got)
	}
}
