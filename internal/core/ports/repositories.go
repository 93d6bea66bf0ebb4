package ports

import (
	"context"

	"github.com/samirrijal/housingetl/internal/core/domain"
)

// RecordSource retrieves the placemarks of one source document.
// Any returned error is a retrieval failure for that document.
type RecordSource interface {
	Fetch(ctx context.Context, url string) ([]domain.GeoRecord, error)
}

// TableSource retrieves a delimited table (header row first).
type TableSource interface {
	FetchTable(ctx context.Context, url string) ([][]string, error)
}

// DatasetWriter stores a dataset as a named table, replacing whatever was
// stored under that name before. Replace is atomic per writer.
type DatasetWriter interface {
	Name() string
	Replace(ctx context.Context, ds *domain.Dataset) error
}

// DatasetInspector answers the questions the verification checks ask.
type DatasetInspector interface {
	TableExists(ctx context.Context, table string) (bool, error)
	RowCount(ctx context.Context, table string) (int64, error)
	Columns(ctx context.Context, table string) ([]string, error)
	// Range returns nil bounds when the column holds no non-null values.
	Range(ctx context.Context, table, column string) (minValue, maxValue *float64, err error)
	Distinct(ctx context.Context, table, column string) ([]string, error)
}

// ListingRepository reads the housing dataset for the API.
type ListingRepository interface {
	List(ctx context.Context, filter domain.ListingFilter) ([]domain.Listing, int, error)
	WithinBounds(ctx context.Context, box domain.Bounds, limit int) ([]domain.Listing, error)
	Stats(ctx context.Context) ([]domain.PeriodStats, error)
}
