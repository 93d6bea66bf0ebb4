package domain

import (
	"time"
)

// GeoRecord is one placemark pulled out of a source document.
// Point is nil when the placemark carried no coordinate pair.
type GeoRecord struct {
	Name        string    `json:"name"`
	Description Text      `json:"description"`
	Point       *GeoPoint `json:"point,omitempty"`
}

// ExtractedRow maps field name to the value recovered from a description.
type ExtractedRow map[string]Text

// VintageTable is the output of one vintage, in that vintage's column order.
type VintageTable struct {
	Key     VintageKey `json:"key"`
	Columns []string   `json:"columns"`
	Rows    [][]Text   `json:"rows"`
}

// Len returns the number of rows.
func (t VintageTable) Len() int { return len(t.Rows) }

// CanonicalTable holds unified rows sharing one column set and order.
// Raw and normalized tables use the same shape.
type CanonicalTable struct {
	Columns []string `json:"columns"`
	Rows    [][]Text `json:"rows"`
}

// Index returns the position of col, or -1.
func (t CanonicalTable) Index(col string) int {
	for i, c := range t.Columns {
		if c == col {
			return i
		}
	}
	return -1
}

// Dataset is a typed table handed to a sink. A nil cell is stored as NULL.
type Dataset struct {
	Name    string            `json:"name"`
	Columns []CanonicalColumn `json:"columns"`
	Rows    [][]any           `json:"rows"`
}

// Listing is one row of the housing dataset as served by the API.
type Listing struct {
	Period       string   `json:"period"`
	Research     *string  `json:"research,omitempty"`
	Property     string   `json:"property"`
	Condition    *string  `json:"condition,omitempty"`
	Neighborhood *string  `json:"neighborhood,omitempty"`
	Stratum      *string  `json:"stratum,omitempty"`
	PrivateArea  *float64 `json:"private_area_m2,omitempty"`
	LotArea      int64    `json:"lot_area_m2"`
	Price        *int64   `json:"commercial_price_cop,omitempty"`
	PricePerM2   *int64   `json:"price_per_m2_cop,omitempty"`
	Location     GeoPoint `json:"location"`
	Distance     *float64 `json:"distance,omitempty"` // computed field
}

// ListingFilter narrows a listing query.
type ListingFilter struct {
	Period   string
	Property string
	Offset   int
	Limit    int
}

// PeriodStats aggregates listings for one period.
type PeriodStats struct {
	Period         string   `json:"period"`
	Listings       int      `json:"listings"`
	AvgPrice       *float64 `json:"avg_price_cop,omitempty"`
	AvgPricePerM2  *float64 `json:"avg_price_per_m2_cop,omitempty"`
	AvgPrivateArea *float64 `json:"avg_private_area_m2,omitempty"`
}

// Vintage run statuses.
const (
	VintageLoaded  = "loaded"
	VintageEmpty   = "empty"
	VintageSkipped = "skipped"
	VintageFailed  = "failed"
)

// VintageReport records what happened to one vintage during a run.
type VintageReport struct {
	Key      VintageKey `json:"key"`
	Status   string     `json:"status"`
	Records  int        `json:"records"`
	Rows     int        `json:"rows"`
	Skipped  int        `json:"skipped"`
	Error    string     `json:"error,omitempty"`
	Duration string     `json:"duration,omitempty"`
}

// DatasetEvent is published after a dataset has been replaced in the sinks.
type DatasetEvent struct {
	RunID    string          `json:"run_id"`
	Dataset  string          `json:"dataset"`
	Rows     int             `json:"rows"`
	Sinks    []string        `json:"sinks"`
	Vintages []VintageReport `json:"vintages,omitempty"`
	LoadedAt time.Time       `json:"loaded_at"`
}

// TableReport records one table written during a run.
type TableReport struct {
	Table string `json:"table"`
	Rows  int    `json:"rows"`
	Error string `json:"error,omitempty"`
}

// RunReport summarises a pipeline run.
type RunReport struct {
	RunID      string          `json:"run_id"`
	Dataset    string          `json:"dataset"`
	Vintages   []VintageReport `json:"vintages"`
	Unified    int             `json:"unified_rows"`
	Filtered   int             `json:"filtered_rows"`
	Rows       int             `json:"rows"`
	Sinks      []string        `json:"sinks"`
	Tables     []TableReport   `json:"tables,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}

// Failed returns the vintages whose retrieval failed.
func (r *RunReport) Failed() []VintageReport {
	var out []VintageReport
	for _, v := range r.Vintages {
		if v.Status == VintageFailed {
			out = append(out, v)
		}
	}
	return out
}

// VintageInfo describes a registered vintage for listings and the CLI.
type VintageInfo struct {
	Key             VintageKey `json:"key"`
	URL             string     `json:"url"`
	Fields          []string   `json:"fields"`
	CoordinateOrder [2]string  `json:"coordinate_order"`
	Patterns        int        `json:"patterns"`
}
