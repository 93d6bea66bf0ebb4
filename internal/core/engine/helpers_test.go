package engine_test

import (
	"regexp"
	"testing"

	"github.com/samirrijal/housingetl/internal/core/domain"
)

// schemaOf builds a schema from field -> patterns pairs, keeping the given order.
func schemaOf(t *testing.T, key domain.VintageKey, fields []string, patterns ...[]string) *domain.VintageSchema {
	t.Helper()
	s := &domain.VintageSchema{Key: key, Fields: fields}
	for _, p := range patterns {
		fp := domain.FieldPatterns{Field: p[0]}
		for _, expr := range p[1:] {
			fp.Patterns = append(fp.Patterns, regexp.MustCompile(expr))
		}
		s.Patterns = append(s.Patterns, fp)
	}
	return s
}

func text(s string) domain.Text { return domain.Present(s) }

func values(row []domain.Text) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = v.OrElse("<missing>")
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
