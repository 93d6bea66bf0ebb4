package engine

import (
	"strconv"

	"github.com/samirrijal/housingetl/internal/core/domain"
)

// ToDataset types a normalized table against schema. Missing cells, and
// cells that do not parse as the column's kind, become nil.
func ToDataset(name string, schema domain.CanonicalSchema, t domain.CanonicalTable) *domain.Dataset {
	ds := &domain.Dataset{
		Name:    name,
		Columns: append([]domain.CanonicalColumn(nil), schema...),
		Rows:    make([][]any, len(t.Rows)),
	}

	source := make([]int, len(schema))
	for i, c := range schema {
		source[i] = t.Index(c.Name)
	}

	for r, row := range t.Rows {
		typed := make([]any, len(schema))
		for i, c := range schema {
			typed[i] = typedValue(c.Kind, cell(row, source[i]))
		}
		ds.Rows[r] = typed
	}
	return ds
}

func typedValue(kind domain.ColumnKind, t domain.Text) any {
	if !t.Valid {
		return nil
	}
	switch kind {
	case domain.KindInteger:
		if v, err := strconv.ParseInt(t.String, 10, 64); err == nil {
			return v
		}
		if v, ok := parseNumber(t); ok {
			return int64(v)
		}
		return nil
	case domain.KindReal:
		if v, ok := parseNumber(t); ok {
			return v
		}
		return nil
	default:
		return t.String
	}
}
