package engine

import (
	"context"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/housingetl/internal/core/domain"
)

// Process runs the extractor over every record and lays the results out in
// the vintage's own column order. Records without coordinates are dropped.
// A nil schema yields an empty table.
func Process(records []domain.GeoRecord, schema *domain.VintageSchema) domain.VintageTable {
	if schema == nil {
		return domain.VintageTable{}
	}
	table := newTable(schema, len(records))
	for i := range records {
		if row, ok := buildRow(&records[i], schema); ok {
			table.Rows = append(table.Rows, row)
		}
	}
	return table
}

// ProcessConcurrent is Process split across up to workers goroutines.
// Row order always matches record order.
func ProcessConcurrent(ctx context.Context, records []domain.GeoRecord, schema *domain.VintageSchema, workers int) (domain.VintageTable, error) {
	if schema == nil {
		return domain.VintageTable{}, nil
	}
	if workers <= 1 || len(records) < 2*workers {
		return Process(records, schema), nil
	}

	slots := make([][]domain.Text, len(records))
	chunk := (len(records) + workers - 1) / workers

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < len(records); start += chunk {
		end := min(start+chunk, len(records))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				if row, ok := buildRow(&records[i], schema); ok {
					slots[i] = row
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.VintageTable{}, err
	}

	table := newTable(schema, len(records))
	for _, row := range slots {
		if row != nil {
			table.Rows = append(table.Rows, row)
		}
	}
	return table, nil
}

func newTable(schema *domain.VintageSchema, capacity int) domain.VintageTable {
	return domain.VintageTable{
		Key:     schema.Key,
		Columns: append([]string(nil), schema.Fields...),
		Rows:    make([][]domain.Text, 0, capacity),
	}
}

func buildRow(rec *domain.GeoRecord, schema *domain.VintageSchema) ([]domain.Text, bool) {
	if rec.Point == nil {
		return nil, false
	}
	extracted := Extract(rec.Description, schema)

	n := len(schema.Fields)
	row := make([]domain.Text, n)
	row[0] = domain.Present(rec.Name)
	for i := 1; i < n-2; i++ {
		row[i] = extracted[schema.Fields[i]]
	}
	for i := n - 2; i < n; i++ {
		row[i] = coordinate(schema.Fields[i], rec.Point)
	}
	return row, true
}

func coordinate(field string, p *domain.GeoPoint) domain.Text {
	v := p.Lon
	if field == domain.ColLatitude {
		v = p.Lat
	}
	return domain.Present(strconv.FormatFloat(v, 'f', -1, 64))
}
