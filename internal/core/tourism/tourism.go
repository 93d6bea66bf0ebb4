// Package tourism shapes the airport arrival tables published next to the
// housing offers.
package tourism

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/samirrijal/housingetl/internal/core/domain"
)

// Table names written by the tourism step.
const (
	EntriesTable    = "monthly_entry_colombians_foreigners"
	PassengersTable = "monthly_passengers_origin"
)

// Nationality labels.
const (
	Foreigner = "Extranjero"
	Colombian = "Colombiano"
)

// FirstYear is the earliest period kept, matching the housing collections.
const FirstYear = 2011

// EntriesSchema is the layout of EntriesTable.
var EntriesSchema = domain.CanonicalSchema{
	{Name: "Nationality", Kind: domain.KindText},
	{Name: "Period", Kind: domain.KindText},
	{Name: "Number", Kind: domain.KindInteger},
}

// PassengersSchema is the layout of PassengersTable.
var PassengersSchema = domain.CanonicalSchema{
	{Name: "Code", Kind: domain.KindText},
	{Name: "Origin", Kind: domain.KindText},
	{Name: "Period", Kind: domain.KindText},
	{Name: "Number", Kind: domain.KindInteger},
	{Name: "Nationality", Kind: domain.KindText},
}

var (
	countryCode     = regexp.MustCompile(`^[A-Z]{2}$`)
	excludedOrigins = map[string]bool{"Acuerdo internacional": true, "Inconsistencia": true}
)

// header maps trimmed column names to their index.
type header map[string]int

func indexColumns(row []string) header {
	h := make(header, len(row))
	for i, col := range row {
		// Strip BOM from first column
		col = strings.TrimPrefix(col, "\xef\xbb\xbf")
		h[strings.TrimSpace(col)] = i
	}
	return h
}

func (h header) require(cols ...string) error {
	var missing []string
	for _, c := range cols {
		if _, ok := h[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing columns %s", strings.Join(missing, ", "))
	}
	return nil
}

func (h header) get(record []string, name string) string {
	idx, ok := h[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// FormatPeriod turns YYYYMM into YYYY.MM. The second result is the year, or
// false when the first four characters are not a number.
func FormatPeriod(raw string) (string, int, bool) {
	raw = strings.TrimSpace(raw)
	if len(raw) < 4 {
		return raw, 0, false
	}
	year, err := strconv.Atoi(raw[:4])
	if err != nil {
		return raw, 0, false
	}
	return raw[:4] + "." + raw[4:], year, true
}

func parseCount(s string) (int64, bool) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return int64(math.Round(v)), true
}

// Entries builds EntriesTable from the monthly entry CSV (header row first).
// Rows before FirstYear are dropped; an unparsable count is stored as NULL.
func Entries(rows [][]string) (*domain.Dataset, error) {
	ds := &domain.Dataset{Name: EntriesTable, Columns: EntriesSchema}
	if len(rows) == 0 {
		return ds, nil
	}
	h := indexColumns(rows[0])
	if err := h.require("ing_nacionalidad", "ing_periodo", "ing_valor"); err != nil {
		return nil, fmt.Errorf("%s: %w", EntriesTable, err)
	}

	for _, rec := range rows[1:] {
		period, year, ok := FormatPeriod(h.get(rec, "ing_periodo"))
		if !ok || year < FirstYear {
			continue
		}
		var number any
		if n, ok := parseCount(h.get(rec, "ing_valor")); ok {
			number = n
		}
		ds.Rows = append(ds.Rows, []any{h.get(rec, "ing_nacionalidad"), period, number})
	}
	return ds, nil
}

// Passengers builds PassengersTable from the foreign arrivals by country CSV
// and the domestic arrivals by origin airport CSV. Domestic rows are coded CO.
// Excluded origins, negative or unparsable counts and codes that are not two
// capital letters are dropped.
func Passengers(foreigners, colombians [][]string) (*domain.Dataset, error) {
	ds := &domain.Dataset{Name: PassengersTable, Columns: PassengersSchema}

	if len(foreigners) > 0 {
		h := indexColumns(foreigners[0])
		if err := h.require("lle_codigo", "lle_origenpax", "lle_periodo", "lle_valor"); err != nil {
			return nil, fmt.Errorf("%s foreigners: %w", PassengersTable, err)
		}
		for _, rec := range foreigners[1:] {
			appendPassenger(ds, h.get(rec, "lle_codigo"), h.get(rec, "lle_origenpax"),
				h.get(rec, "lle_periodo"), h.get(rec, "lle_valor"), Foreigner)
		}
	}

	if len(colombians) > 0 {
		h := indexColumns(colombians[0])
		if err := h.require("lle_llegadanal", "lle_periodo", "lle_valor"); err != nil {
			return nil, fmt.Errorf("%s colombians: %w", PassengersTable, err)
		}
		for _, rec := range colombians[1:] {
			appendPassenger(ds, "CO", h.get(rec, "lle_llegadanal"),
				h.get(rec, "lle_periodo"), h.get(rec, "lle_valor"), Colombian)
		}
	}
	return ds, nil
}

func appendPassenger(ds *domain.Dataset, code, origin, rawPeriod, rawNumber, nationality string) {
	period, year, ok := FormatPeriod(rawPeriod)
	if !ok || year < FirstYear {
		return
	}
	if excludedOrigins[origin] || !countryCode.MatchString(code) {
		return
	}
	n, ok := parseCount(rawNumber)
	if !ok || n < 0 {
		return
	}
	ds.Rows = append(ds.Rows, []any{code, origin, period, n, nationality})
}
