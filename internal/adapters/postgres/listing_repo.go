package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/housingetl/internal/core/domain"
)

// ListingRepo implements ports.ListingRepository over the housing table.
type ListingRepo struct {
	db    *DB
	table string
}

// NewListingRepo reads listings from table.
func NewListingRepo(db *DB, table string) *ListingRepo {
	return &ListingRepo{db: db, table: table}
}

func (r *ListingRepo) selectColumns() string {
	names := domain.HousingSchema.Names()
	for i, n := range names {
		names[i] = ident(n)
	}
	return strings.Join(names, ", ")
}

func scanListing(row pgx.Row) (domain.Listing, error) {
	var (
		l                domain.Listing
		period, property *string
		lot              *int64
		lon, lat         *float64
	)
	err := row.Scan(&period, &l.Research, &property, &l.Condition, &l.Neighborhood, &l.Stratum,
		&l.PrivateArea, &lot, &l.Price, &l.PricePerM2, &lon, &lat)
	if err != nil {
		return l, err
	}
	if period != nil {
		l.Period = *period
	}
	if property != nil {
		l.Property = *property
	}
	if lot != nil {
		l.LotArea = *lot
	}
	if lon != nil {
		l.Location.Lon = *lon
	}
	if lat != nil {
		l.Location.Lat = *lat
	}
	return l, nil
}

// List returns one page of listings and the total matching filter.
func (r *ListingRepo) List(ctx context.Context, f domain.ListingFilter) ([]domain.Listing, int, error) {
	var (
		conds []string
		args  []any
	)
	if f.Period != "" {
		args = append(args, f.Period)
		conds = append(conds, fmt.Sprintf("%s = $%d", ident(domain.ColPeriod), len(args)))
	}
	if f.Property != "" {
		args = append(args, f.Property+"%")
		conds = append(conds, fmt.Sprintf("%s LIKE $%d", ident(domain.ColProperty), len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+ident(r.table)+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count listings: %w", err)
	}

	args = append(args, f.Limit, f.Offset)
	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s, %s, %s LIMIT $%d OFFSET $%d",
		r.selectColumns(), ident(r.table), where,
		ident(domain.ColPeriod), ident(domain.ColProperty), ident(domain.ColPrice), len(args)-1, len(args))
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	var out []domain.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, l)
	}
	return out, total, rows.Err()
}

// WithinBounds returns up to limit listings inside box, closest to the box
// centre first, using the coordinate index built on load.
func (r *ListingRepo) WithinBounds(ctx context.Context, box domain.Bounds, limit int) ([]domain.Listing, error) {
	query := fmt.Sprintf(`SELECT %[1]s FROM %[2]s
		WHERE %[3]s BETWEEN $1 AND $2 AND %[4]s BETWEEN $3 AND $4
		ORDER BY (%[3]s - $5) ^ 2 + (%[4]s - $6) ^ 2
		LIMIT $7`,
		r.selectColumns(), ident(r.table), ident(domain.ColLatitude), ident(domain.ColLongitude))
	cLat, cLon := box.Center()
	rows, err := r.db.Pool.Query(ctx, query, box.MinLat, box.MaxLat, box.MinLon, box.MaxLon, cLat, cLon, limit)
	if err != nil {
		return nil, fmt.Errorf("listings within bounds: %w", err)
	}
	defer rows.Close()

	var out []domain.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Stats aggregates listings per period.
func (r *ListingRepo) Stats(ctx context.Context) ([]domain.PeriodStats, error) {
	query := fmt.Sprintf(`SELECT %[1]s, COUNT(*), AVG(%[2]s)::float8, AVG(%[3]s)::float8, AVG(%[4]s)::float8
		FROM %[5]s WHERE %[1]s IS NOT NULL GROUP BY %[1]s ORDER BY %[1]s`,
		ident(domain.ColPeriod), ident(domain.ColPrice), ident(domain.ColPricePerM2),
		ident(domain.ColPrivateArea), ident(r.table))
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing stats: %w", err)
	}
	defer rows.Close()

	var out []domain.PeriodStats
	for rows.Next() {
		var s domain.PeriodStats
		if err := rows.Scan(&s.Period, &s.Listings, &s.AvgPrice, &s.AvgPricePerM2, &s.AvgPrivateArea); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
