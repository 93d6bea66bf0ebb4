package postgres

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/housingetl/internal/core/domain"
)

var columnTypes = map[domain.ColumnKind]string{
	domain.KindText:    "TEXT",
	domain.KindReal:    "DOUBLE PRECISION",
	domain.KindInteger: "BIGINT",
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// CreateTableSQL renders the DDL for a dataset table.
func CreateTableSQL(table string, cols []domain.CanonicalColumn) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		t, ok := columnTypes[c.Kind]
		if !ok {
			t = columnTypes[domain.KindText]
		}
		defs[i] = ident(c.Name) + " " + t
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", ident(table), strings.Join(defs, ", "))
}

// IndexSQL returns the secondary indexes worth building for a table with
// cols: the period column and the coordinate pair, when present.
func IndexSQL(table string, cols []domain.CanonicalColumn) []string {
	has := make(map[string]bool, len(cols))
	for _, c := range cols {
		has[c.Name] = true
	}

	var stmts []string
	if has[domain.ColPeriod] {
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX %s ON %s (%s)",
			ident(table+"_period_idx"), ident(table), ident(domain.ColPeriod)))
	}
	if has[domain.ColLatitude] && has[domain.ColLongitude] {
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX %s ON %s (%s, %s)",
			ident(table+"_location_idx"), ident(table), ident(domain.ColLatitude), ident(domain.ColLongitude)))
	}
	return stmts
}
