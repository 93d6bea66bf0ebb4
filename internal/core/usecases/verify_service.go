package usecases

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/samirrijal/housingetl/internal/core/domain"
	"github.com/samirrijal/housingetl/internal/core/ports"
	"github.com/samirrijal/housingetl/internal/core/tourism"
)

// Check is one named verification result.
type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// VerifyReport collects the checks run against one sink.
type VerifyReport struct {
	Sink   string  `json:"sink"`
	Checks []Check `json:"checks"`
}

// Passed reports whether every check passed.
func (r *VerifyReport) Passed() bool {
	for _, c := range r.Checks {
		if !c.Passed {
			return false
		}
	}
	return true
}

func (r *VerifyReport) add(name string, passed bool, format string, args ...any) {
	c := Check{Name: name, Passed: passed}
	if !passed && format != "" {
		c.Detail = fmt.Sprintf(format, args...)
	}
	r.Checks = append(r.Checks, c)
}

var countryCode = regexp.MustCompile(`^[A-Z]{2}$`)

type expectedTable struct {
	name   string
	schema domain.CanonicalSchema
}

// VerifyService checks that a sink holds a sane copy of the output tables.
type VerifyService struct {
	inspector ports.DatasetInspector
	dataset   string
	tourism   bool
}

// NewVerifyService creates a VerifyService. When withTourism is set the two
// tourism tables are checked as well.
func NewVerifyService(inspector ports.DatasetInspector, dataset string, withTourism bool) *VerifyService {
	return &VerifyService{inspector: inspector, dataset: dataset, tourism: withTourism}
}

// Verify runs every check. The error is reserved for inspector failures.
func (s *VerifyService) Verify(ctx context.Context, sink string) (*VerifyReport, error) {
	report := &VerifyReport{Sink: sink}

	tables := []expectedTable{{s.dataset, domain.HousingSchema}}
	if s.tourism {
		tables = append(tables,
			expectedTable{tourism.EntriesTable, tourism.EntriesSchema},
			expectedTable{tourism.PassengersTable, tourism.PassengersSchema},
		)
	}

	for _, t := range tables {
		ok, err := s.structure(ctx, report, t.name, t.schema.Names())
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		switch t.name {
		case s.dataset:
			err = s.housingSanity(ctx, report)
		case tourism.EntriesTable:
			err = s.entriesSanity(ctx, report)
		case tourism.PassengersTable:
			err = s.passengersSanity(ctx, report)
		}
		if err != nil {
			return nil, err
		}
	}
	return report, nil
}

// structure checks existence, row count and column set. It reports whether
// the table is present and non-empty.
func (s *VerifyService) structure(ctx context.Context, report *VerifyReport, table string, want []string) (bool, error) {
	exists, err := s.inspector.TableExists(ctx, table)
	if err != nil {
		return false, fmt.Errorf("inspect %s: %w", table, err)
	}
	report.add(table+": exists", exists, "table not found")
	if !exists {
		return false, nil
	}

	n, err := s.inspector.RowCount(ctx, table)
	if err != nil {
		return false, fmt.Errorf("count %s: %w", table, err)
	}
	report.add(table+": non-empty", n > 0, "table is empty")

	got, err := s.inspector.Columns(ctx, table)
	if err != nil {
		return false, fmt.Errorf("columns %s: %w", table, err)
	}
	var missing, unexpected []string
	for _, c := range want {
		if !slices.Contains(got, c) {
			missing = append(missing, c)
		}
	}
	for _, c := range got {
		if !slices.Contains(want, c) {
			unexpected = append(unexpected, c)
		}
	}
	report.add(table+": columns", len(missing) == 0 && len(unexpected) == 0,
		"missing %v, unexpected %v", missing, unexpected)
	return n > 0, nil
}

func (s *VerifyService) housingSanity(ctx context.Context, report *VerifyReport) error {
	for _, col := range []string{domain.ColPrivateArea, domain.ColLotArea, domain.ColPrice, domain.ColPricePerM2} {
		lo, hi, err := s.inspector.Range(ctx, s.dataset, col)
		if err != nil {
			return fmt.Errorf("range %s.%s: %w", s.dataset, col, err)
		}
		name := s.dataset + ": " + col + " range"
		switch {
		case lo == nil || hi == nil:
			report.add(name, false, "column holds no values")
		case *lo < 0:
			report.add(name, false, "negative minimum %v", *lo)
		default:
			report.add(name, *hi > *lo, "max %v not above min %v", *hi, *lo)
		}
	}
	return nil
}

func (s *VerifyService) entriesSanity(ctx context.Context, report *VerifyReport) error {
	if err := s.nonNegative(ctx, report, tourism.EntriesTable, "Number"); err != nil {
		return err
	}
	values, err := s.inspector.Distinct(ctx, tourism.EntriesTable, "Nationality")
	if err != nil {
		return fmt.Errorf("distinct nationality: %w", err)
	}
	var bad []string
	for _, v := range values {
		if v != tourism.Foreigner && v != tourism.Colombian {
			bad = append(bad, v)
		}
	}
	report.add(tourism.EntriesTable+": nationality values", len(bad) == 0, "unexpected %s", strings.Join(bad, ", "))
	return nil
}

func (s *VerifyService) passengersSanity(ctx context.Context, report *VerifyReport) error {
	if err := s.nonNegative(ctx, report, tourism.PassengersTable, "Number"); err != nil {
		return err
	}
	codes, err := s.inspector.Distinct(ctx, tourism.PassengersTable, "Code")
	if err != nil {
		return fmt.Errorf("distinct code: %w", err)
	}
	var bad []string
	for _, c := range codes {
		if !countryCode.MatchString(c) {
			bad = append(bad, c)
		}
	}
	report.add(tourism.PassengersTable+": country codes", len(bad) == 0, "invalid %s", strings.Join(bad, ", "))
	return nil
}

func (s *VerifyService) nonNegative(ctx context.Context, report *VerifyReport, table, col string) error {
	lo, _, err := s.inspector.Range(ctx, table, col)
	if err != nil {
		return fmt.Errorf("range %s.%s: %w", table, col, err)
	}
	report.add(table+": "+col+" non-negative", lo == nil || *lo >= 0, "negative minimum %v", deref(lo))
	return nil
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
