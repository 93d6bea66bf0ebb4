package engine

import (
	"strings"

	"github.com/samirrijal/housingetl/internal/core/domain"
)

// RowFilter decides whether a unified row is kept.
type RowFilter func(columns []string, row []domain.Text) bool

// PrefixFilter keeps rows whose column value starts with one of prefixes.
// Rows where the column is missing are dropped.
func PrefixFilter(column string, prefixes ...string) RowFilter {
	return func(columns []string, row []domain.Text) bool {
		for i, c := range columns {
			if c != column {
				continue
			}
			if !row[i].Valid {
				return false
			}
			for _, p := range prefixes {
				if strings.HasPrefix(row[i].String, p) {
					return true
				}
			}
			return false
		}
		return false
	}
}

// Unify concatenates the vintage tables in order, renames their columns
// through aliases and reindexes every row onto canonical. Columns outside
// canonical are dropped and absent ones become Missing. When two local
// columns resolve to the same canonical name the first one wins. keep may be
// nil to retain every row.
func Unify(tables []domain.VintageTable, aliases domain.AliasTable, canonical []string, keep RowFilter) domain.CanonicalTable {
	out := domain.CanonicalTable{Columns: append([]string(nil), canonical...)}

	position := make(map[string]int, len(canonical))
	for i, c := range canonical {
		position[c] = i
	}

	for _, t := range tables {
		// source[i] is the local column feeding canonical column i, or -1.
		source := make([]int, len(canonical))
		for i := range source {
			source[i] = -1
		}
		for local, col := range t.Columns {
			if i, ok := position[aliases.Resolve(col)]; ok && source[i] < 0 {
				source[i] = local
			}
		}

		for _, row := range t.Rows {
			unified := make([]domain.Text, len(canonical))
			for i, local := range source {
				if local >= 0 && local < len(row) {
					unified[i] = row[local]
				}
			}
			if keep != nil && !keep(out.Columns, unified) {
				continue
			}
			out.Rows = append(out.Rows, unified)
		}
	}
	return out
}
