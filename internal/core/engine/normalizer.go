package engine

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/samirrijal/housingetl/internal/core/domain"
)

// Date layouts tried in order; both carry day, month and year.
var periodLayouts = []string{"2-1-2006", "2/1/2006"}

const periodLayout = "2006.01"

// FormatPeriod rewrites a day-month-year date as YYYY.MM. Values matching no
// layout are returned unchanged.
func FormatPeriod(s string) string {
	for _, layout := range periodLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(periodLayout)
		}
	}
	return s
}

// CleanPrice interprets a commercial price whose numeral convention depends
// on whether the row also reports a price per m2.
//
// Without a price per m2 "." groups thousands and "," is the decimal mark.
// With one, "," groups thousands. The second return is false when the price
// is missing or does not parse.
func CleanPrice(price, perM2 domain.Text) (float64, bool) {
	if !price.Valid {
		return 0, false
	}
	s := price.String
	switch {
	case !perM2.Valid:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	case strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ",", "")
	}
	return parseNumber(domain.Present(s))
}

// Normalize parses dates and numbers of a unified table, fills the price per
// m2 where it can be derived and rounds prices to whole units. Applying it to
// its own output changes nothing.
func Normalize(t domain.CanonicalTable) domain.CanonicalTable {
	out := domain.CanonicalTable{
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([][]domain.Text, len(t.Rows)),
	}
	idx := resolveColumns(t)
	for i, row := range t.Rows {
		r := append([]domain.Text(nil), row...)
		idx.normalizeRow(r)
		out.Rows[i] = r
	}
	return out
}

type columnIndex struct {
	period, area, lot, price, perM2, lon, lat int
}

func resolveColumns(t domain.CanonicalTable) columnIndex {
	return columnIndex{
		period: t.Index(domain.ColPeriod),
		area:   t.Index(domain.ColPrivateArea),
		lot:    t.Index(domain.ColLotArea),
		price:  t.Index(domain.ColPrice),
		perM2:  t.Index(domain.ColPricePerM2),
		lon:    t.Index(domain.ColLongitude),
		lat:    t.Index(domain.ColLatitude),
	}
}

func cell(row []domain.Text, i int) domain.Text {
	if i < 0 {
		return domain.Missing
	}
	return row[i]
}

func set(row []domain.Text, i int, v domain.Text) {
	if i >= 0 {
		row[i] = v
	}
}

func (c columnIndex) normalizeRow(row []domain.Text) {
	if p := cell(row, c.period); p.Valid {
		set(row, c.period, domain.Present(FormatPeriod(p.String)))
	}

	price, hasPrice := CleanPrice(cell(row, c.price), cell(row, c.perM2))
	area, hasArea := parseNumber(cell(row, c.area))
	perM2, hasPerM2 := parseNumber(cell(row, c.perM2))

	lot := int64(0)
	if v, ok := parseNumber(cell(row, c.lot)); ok {
		lot = int64(math.RoundToEven(v))
	}

	if !hasPerM2 && hasArea && area > 0 && hasPrice {
		perM2, hasPerM2 = price/area, true
	}

	set(row, c.price, roundedOrMissing(price, hasPrice))
	set(row, c.perM2, roundedOrMissing(perM2, hasPerM2))
	set(row, c.area, floatOrMissing(area, hasArea))
	set(row, c.lot, domain.Present(strconv.FormatInt(lot, 10)))

	lon, ok := parseNumber(cell(row, c.lon))
	set(row, c.lon, floatOrMissing(lon, ok))
	lat, ok := parseNumber(cell(row, c.lat))
	set(row, c.lat, floatOrMissing(lat, ok))
}

// parseNumber accepts plain decimal numerals only; NaN and infinities are
// treated as unparsable.
func parseNumber(t domain.Text) (float64, bool) {
	if !t.Valid {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(t.String), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func roundedOrMissing(v float64, ok bool) domain.Text {
	if !ok {
		return domain.Missing
	}
	return domain.Present(strconv.FormatFloat(math.RoundToEven(v), 'f', 0, 64))
}

func floatOrMissing(v float64, ok bool) domain.Text {
	if !ok {
		return domain.Missing
	}
	return domain.Present(strconv.FormatFloat(v, 'f', -1, 64))
}
