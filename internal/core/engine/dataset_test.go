package engine_test

import (
	"testing"

	"github.com/samirrijal/housingetl/internal/core/domain"
	"github.com/samirrijal/housingetl/internal/core/engine"
)

func TestToDataset_TypesCells(t *testing.T) {
	table := housingTable(housingRow(map[string]string{
		domain.ColPeriod:      "2016.03",
		domain.ColProperty:    "CASA",
		domain.ColPrivateArea: "80.5",
		domain.ColLotArea:     "0",
		domain.ColPrice:       "8000000",
		domain.ColPricePerM2:  "oops",
		domain.ColLatitude:    "6.24",
	}))

	ds := engine.ToDataset("sales_rents", domain.HousingSchema, table)
	if ds.Name != "sales_rents" || len(ds.Columns) != len(domain.HousingSchema) {
		t.Fatalf("unexpected dataset header %+v", ds)
	}
	row := ds.Rows[0]
	get := func(col string) any { return row[table.Index(col)] }

	if v, ok := get(domain.ColPeriod).(string); !ok || v != "2016.03" {
		t.Errorf("period: got %#v", get(domain.ColPeriod))
	}
	if v, ok := get(domain.ColPrivateArea).(float64); !ok || v != 80.5 {
		t.Errorf("area: got %#v", get(domain.ColPrivateArea))
	}
	if v, ok := get(domain.ColPrice).(int64); !ok || v != 8000000 {
		t.Errorf("price: got %#v", get(domain.ColPrice))
	}
	if v, ok := get(domain.ColLotArea).(int64); !ok || v != 0 {
		t.Errorf("lot: got %#v", get(domain.ColLotArea))
	}
	if get(domain.ColPricePerM2) != nil {
		t.Errorf("unparsable integer should be nil, got %#v", get(domain.ColPricePerM2))
	}
	if get(domain.ColResearch) != nil || get(domain.ColLongitude) != nil {
		t.Error("missing cells should be nil")
	}
}

func TestToDataset_ReordersToSchema(t *testing.T) {
	table := domain.CanonicalTable{
		Columns: []string{domain.ColLatitude, domain.ColProperty},
		Rows:    [][]domain.Text{{text("6.1"), text("CASA")}},
	}
	schema := domain.CanonicalSchema{
		{Name: domain.ColProperty, Kind: domain.KindText},
		{Name: domain.ColLatitude, Kind: domain.KindReal},
		{Name: domain.ColStratum, Kind: domain.KindText},
	}
	ds := engine.ToDataset("t", schema, table)
	if ds.Rows[0][0] != "CASA" || ds.Rows[0][1] != 6.1 || ds.Rows[0][2] != nil {
		t.Errorf("unexpected row %#v", ds.Rows[0])
	}
}
