package domain

import (
	"fmt"
	"regexp"
)

// VintageKey identifies one edition of a source collection.
type VintageKey struct {
	Collection string `json:"collection"`
	Year       int    `json:"year"`
}

func (k VintageKey) String() string {
	return fmt.Sprintf("%s:%d", k.Collection, k.Year)
}

// NameField is the passthrough column that carries the placemark name.
const NameField = "Name"

// FieldPatterns is the ordered list of candidate patterns for one field.
type FieldPatterns struct {
	Field    string
	Patterns []*regexp.Regexp
}

// VintageSchema describes how one vintage lays out its description text.
//
// Fields[0] is always NameField and the last two entries are the coordinate
// pair in the order the vintage declares it. Everything in between is
// extracted from the description.
type VintageSchema struct {
	Key      VintageKey
	URL      string
	Fields   []string
	Patterns []FieldPatterns
}

// ExtractedFields returns the fields filled from the description.
func (s *VintageSchema) ExtractedFields() []string {
	if len(s.Fields) < 3 {
		return nil
	}
	return s.Fields[1 : len(s.Fields)-2]
}

// CoordinateFields returns the two trailing coordinate column names.
func (s *VintageSchema) CoordinateFields() (first, second string) {
	n := len(s.Fields)
	return s.Fields[n-2], s.Fields[n-1]
}

// AliasTable maps vintage-local column names to canonical names.
type AliasTable map[string]string

// Resolve returns the canonical name for col, or col itself when unmapped.
func (a AliasTable) Resolve(col string) string {
	if canonical, ok := a[col]; ok {
		return canonical
	}
	return col
}

// ColumnKind is the storage type of a canonical column.
type ColumnKind string

const (
	KindText    ColumnKind = "text"
	KindReal    ColumnKind = "real"
	KindInteger ColumnKind = "integer"
)

// CanonicalColumn is one column of the unified dataset.
type CanonicalColumn struct {
	Name string     `json:"name"`
	Kind ColumnKind `json:"kind"`
}

// CanonicalSchema is the ordered column set every vintage converges to.
type CanonicalSchema []CanonicalColumn

// Names returns the column names in order.
func (s CanonicalSchema) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// Canonical housing columns.
const (
	ColPeriod       = "Period"
	ColResearch     = "Research"
	ColProperty     = "Property"
	ColCondition    = "Condition"
	ColNeighborhood = "Neighborhood"
	ColStratum      = "Stratum"
	ColPrivateArea  = "Private_Area_m2"
	ColLotArea      = "Lot_Area_m2"
	ColPrice        = "Commercial_Price_COP"
	ColPricePerM2   = "Price_per_m2_COP"
	ColLongitude    = "Longitude"
	ColLatitude     = "Latitude"
)

// HousingSchema is the canonical layout of the sales and rents dataset.
var HousingSchema = CanonicalSchema{
	{Name: ColPeriod, Kind: KindText},
	{Name: ColResearch, Kind: KindText},
	{Name: ColProperty, Kind: KindText},
	{Name: ColCondition, Kind: KindText},
	{Name: ColNeighborhood, Kind: KindText},
	{Name: ColStratum, Kind: KindText},
	{Name: ColPrivateArea, Kind: KindReal},
	{Name: ColLotArea, Kind: KindInteger},
	{Name: ColPrice, Kind: KindInteger},
	{Name: ColPricePerM2, Kind: KindInteger},
	{Name: ColLongitude, Kind: KindReal},
	{Name: ColLatitude, Kind: KindReal},
}
