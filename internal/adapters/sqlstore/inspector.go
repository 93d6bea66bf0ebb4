package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
)

// TableExists reports whether table is present.
func (s *Store) TableExists(ctx context.Context, table string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, s.dialect.tableExists, table).Scan(&n); err != nil {
		return false, fmt.Errorf("table exists %s: %w", table, err)
	}
	return n > 0, nil
}

// RowCount counts the rows of table.
func (s *Store) RowCount(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+s.dialect.quote(table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// Columns lists the column names of table in declaration order.
func (s *Store) Columns(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.tableColumns, table)
	if err != nil {
		return nil, fmt.Errorf("columns %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

// Range returns the minimum and maximum of column, nil when it is all NULL.
func (s *Store) Range(ctx context.Context, table, column string) (*float64, *float64, error) {
	q := s.dialect.quote
	var lo, hi sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT MIN(%s), MAX(%s) FROM %s", q(column), q(column), q(table)),
	).Scan(&lo, &hi)
	if err != nil {
		return nil, nil, fmt.Errorf("range %s.%s: %w", table, column, err)
	}
	var minValue, maxValue *float64
	if lo.Valid {
		minValue = &lo.Float64
	}
	if hi.Valid {
		maxValue = &hi.Float64
	}
	return minValue, maxValue, nil
}

// Distinct returns the distinct non-NULL values of column as text.
func (s *Store) Distinct(ctx context.Context, table, column string) ([]string, error) {
	q := s.dialect.quote
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL ORDER BY 1", q(column), q(table), q(column)))
	if err != nil {
		return nil, fmt.Errorf("distinct %s.%s: %w", table, column, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
