package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/housingetl/internal/core/domain"
)

// DatasetRepo implements ports.DatasetWriter and ports.DatasetInspector.
type DatasetRepo struct {
	db *DB
}

// NewDatasetRepo creates a new DatasetRepo.
func NewDatasetRepo(db *DB) *DatasetRepo {
	return &DatasetRepo{db: db}
}

// Name identifies the sink in reports and metrics.
func (r *DatasetRepo) Name() string { return "postgres" }

// Replace drops and recreates the table and bulk-loads the rows with COPY,
// all in one transaction. The load is recorded in dataset_loads.
func (r *DatasetRepo) Replace(ctx context.Context, ds *domain.Dataset) error {
	if len(ds.Columns) == 0 {
		return fmt.Errorf("dataset %s has no columns", ds.Name)
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+ident(ds.Name)); err != nil {
		return fmt.Errorf("drop %s: %w", ds.Name, err)
	}
	if _, err := tx.Exec(ctx, CreateTableSQL(ds.Name, ds.Columns)); err != nil {
		return fmt.Errorf("create %s: %w", ds.Name, err)
	}

	names := make([]string, len(ds.Columns))
	for i, c := range ds.Columns {
		names[i] = c.Name
	}
	copied, err := tx.CopyFrom(ctx, pgx.Identifier{ds.Name}, names, pgx.CopyFromRows(ds.Rows))
	if err != nil {
		return fmt.Errorf("copy %s: %w", ds.Name, err)
	}

	for _, stmt := range IndexSQL(ds.Name, ds.Columns) {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("index %s: %w", ds.Name, err)
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO dataset_loads (dataset, row_count, loaded_at)
		SELECT $1, $2, now()
		WHERE to_regclass('dataset_loads') IS NOT NULL
	`, ds.Name, copied); err != nil {
		return fmt.Errorf("record load: %w", err)
	}

	return tx.Commit(ctx)
}

// TableExists reports whether table is present in the search path.
func (r *DatasetRepo) TableExists(ctx context.Context, table string) (bool, error) {
	var ok bool
	err := r.db.Pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, ident(table)).Scan(&ok)
	return ok, err
}

// RowCount counts the rows of table.
func (r *DatasetRepo) RowCount(ctx context.Context, table string) (int64, error) {
	var n int64
	err := r.db.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+ident(table)).Scan(&n)
	return n, err
}

// Columns lists the column names of table in declaration order.
func (r *DatasetRepo) Columns(ctx context.Context, table string) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT column_name FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position
	`, table)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// Range returns the minimum and maximum of column, nil when it is all NULL.
func (r *DatasetRepo) Range(ctx context.Context, table, column string) (*float64, *float64, error) {
	var lo, hi *float64
	err := r.db.Pool.QueryRow(ctx, fmt.Sprintf(
		"SELECT MIN(%[1]s)::float8, MAX(%[1]s)::float8 FROM %[2]s", ident(column), ident(table),
	)).Scan(&lo, &hi)
	return lo, hi, err
}

// Distinct returns the distinct non-NULL values of column as text.
func (r *DatasetRepo) Distinct(ctx context.Context, table, column string) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, fmt.Sprintf(
		"SELECT DISTINCT %[1]s::text FROM %[2]s WHERE %[1]s IS NOT NULL ORDER BY 1", ident(column), ident(table),
	))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
