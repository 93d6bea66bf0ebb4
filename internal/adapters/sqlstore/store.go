// Package sqlstore writes and reads datasets through database/sql. It backs
// the sqlite file the pipeline produces by default and an optional MySQL
// mirror.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/samirrijal/housingetl/internal/core/domain"
)

// Store implements ports.DatasetWriter, ports.DatasetInspector and
// ports.ListingRepository.
type Store struct {
	db      *sql.DB
	dialect dialect
	name    string
	listing string
}

// OpenSQLite opens (creating if needed) the sqlite file at path. ":memory:"
// gives a private in-memory database.
func OpenSQLite(path, listingTable string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create %s: %w", dir, err)
			}
		}
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: sqlite has a single writer and ":memory:" is per connection.
	db.SetMaxOpenConns(1)
	return &Store{db: db, dialect: sqliteDialect, name: "sqlite", listing: listingTable}, nil
}

// OpenMySQL connects to the MySQL server described by dsn.
func OpenMySQL(ctx context.Context, dsn, listingTable string) (*Store, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return &Store{db: db, dialect: mysqlDialect, name: "mysql", listing: listingTable}, nil
}

// Name identifies the sink in reports and metrics.
func (s *Store) Name() string { return s.name }

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

const insertBatch = 500

// Replace loads ds into a staging table and swaps it in for ds.Name.
func (s *Store) Replace(ctx context.Context, ds *domain.Dataset) error {
	if len(ds.Columns) == 0 {
		return fmt.Errorf("dataset %s has no columns", ds.Name)
	}
	staging := ds.Name + "__staging"
	q := s.dialect.quote

	if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+q(staging)); err != nil {
		return fmt.Errorf("drop staging %s: %w", staging, err)
	}
	if _, err := s.db.ExecContext(ctx, s.createTable(staging, ds.Columns)); err != nil {
		return fmt.Errorf("create %s: %w", staging, err)
	}
	if err := s.insertRows(ctx, staging, ds); err != nil {
		_, _ = s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+q(staging))
		return err
	}
	if err := s.dialect.swap(ctx, s.db, staging, ds.Name); err != nil {
		return fmt.Errorf("swap %s: %w", ds.Name, err)
	}
	return nil
}

func (s *Store) createTable(table string, cols []domain.CanonicalColumn) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = s.dialect.quote(c.Name) + " " + s.dialect.columnType(c.Kind)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", s.dialect.quote(table), strings.Join(defs, ", "))
}

func (s *Store) insertRows(ctx context.Context, table string, ds *domain.Dataset) error {
	names := make([]string, len(ds.Columns))
	for i, c := range ds.Columns {
		names[i] = s.dialect.quote(c.Name)
	}
	rowPlaceholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ") + ")"
	prefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", s.dialect.quote(table), strings.Join(names, ", "))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for start := 0; start < len(ds.Rows); start += insertBatch {
		end := min(start+insertBatch, len(ds.Rows))
		batch := ds.Rows[start:end]

		placeholders := make([]string, len(batch))
		args := make([]any, 0, len(batch)*len(names))
		for i, row := range batch {
			if len(row) != len(names) {
				return fmt.Errorf("row %d has %d values, want %d", start+i, len(row), len(names))
			}
			placeholders[i] = rowPlaceholder
			args = append(args, row...)
		}
		if _, err := tx.ExecContext(ctx, prefix+strings.Join(placeholders, ", "), args...); err != nil {
			return fmt.Errorf("insert rows %d-%d: %w", start, end, err)
		}
	}
	return tx.Commit()
}
