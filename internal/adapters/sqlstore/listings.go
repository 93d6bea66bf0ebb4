package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/samirrijal/housingetl/internal/core/domain"
)

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) listingColumns() string {
	names := domain.HousingSchema.Names()
	for i, n := range names {
		names[i] = s.dialect.quote(n)
	}
	return strings.Join(names, ", ")
}

func scanListing(row scanner) (domain.Listing, error) {
	var (
		l        domain.Listing
		period   *string
		property *string
		lot      *int64
		lon, lat *float64
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

func (s *Store) where(f domain.ListingFilter) (string, []any) {
	q := s.dialect.quote
	var (
		conds []string
		args  []any
	)
	if f.Period != "" {
		conds = append(conds, q(domain.ColPeriod)+" = ?")
		args = append(args, f.Period)
	}
	if f.Property != "" {
		conds = append(conds, q(domain.ColProperty)+" LIKE ?")
		args = append(args, f.Property+"%")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns one page of listings and the total number matching filter.
func (s *Store) List(ctx context.Context, f domain.ListingFilter) ([]domain.Listing, int, error) {
	q := s.dialect.quote
	where, args := s.where(f)

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+q(s.listing)+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count listings: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s, %s, %s LIMIT ? OFFSET ?",
		s.listingColumns(), q(s.listing), where, q(domain.ColPeriod), q(domain.ColProperty), q(domain.ColPrice))
	rows, err := s.db.QueryContext(ctx, query, append(args, f.Limit, f.Offset)...)
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
// centre first.
func (s *Store) WithinBounds(ctx context.Context, box domain.Bounds, limit int) ([]domain.Listing, error) {
	q := s.dialect.quote
	lat, lon := q(domain.ColLatitude), q(domain.ColLongitude)
	query := fmt.Sprintf(`SELECT %[1]s FROM %[2]s
		WHERE %[3]s BETWEEN ? AND ? AND %[4]s BETWEEN ? AND ?
		ORDER BY (%[3]s - ?) * (%[3]s - ?) + (%[4]s - ?) * (%[4]s - ?)
		LIMIT ?`,
		s.listingColumns(), q(s.listing), lat, lon)
	cLat, cLon := box.Center()
	rows, err := s.db.QueryContext(ctx, query,
		box.MinLat, box.MaxLat, box.MinLon, box.MaxLon,
		cLat, cLat, cLon, cLon, limit)
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
func (s *Store) Stats(ctx context.Context) ([]domain.PeriodStats, error) {
	q := s.dialect.quote
	query := fmt.Sprintf(`SELECT %[1]s, COUNT(*), AVG(%[2]s), AVG(%[3]s), AVG(%[4]s)
		FROM %[5]s WHERE %[1]s IS NOT NULL GROUP BY %[1]s ORDER BY %[1]s`,
		q(domain.ColPeriod), q(domain.ColPrice), q(domain.ColPricePerM2), q(domain.ColPrivateArea), q(s.listing))
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing stats: %w", err)
	}
	defer rows.Close()

	var out []domain.PeriodStats
	for rows.Next() {
		var st domain.PeriodStats
		if err := rows.Scan(&st.Period, &st.Listings, &st.AvgPrice, &st.AvgPricePerM2, &st.AvgPrivateArea); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
