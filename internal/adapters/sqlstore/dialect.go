package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/samirrijal/housingetl/internal/core/domain"
)

type dialect struct {
	quote        func(string) string
	types        map[domain.ColumnKind]string
	tableExists  string
	tableColumns string
	swap         func(ctx context.Context, db *sql.DB, staging, table string) error
}

func (d dialect) columnType(k domain.ColumnKind) string {
	if t, ok := d.types[k]; ok {
		return t
	}
	return d.types[domain.KindText]
}

func quoteSQLite(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

func quoteMySQL(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }

const mysqlTableExists = `SELECT COUNT(*) FROM information_schema.tables
	WHERE table_schema = DATABASE() AND table_name = ?`

var sqliteDialect = dialect{
	quote: quoteSQLite,
	types: map[domain.ColumnKind]string{
		domain.KindText:    "TEXT",
		domain.KindReal:    "REAL",
		domain.KindInteger: "INTEGER",
	},
	tableExists:  `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`,
	tableColumns: `SELECT name FROM pragma_table_info(?) ORDER BY cid`,
	swap:         swapSQLite,
}

var mysqlDialect = dialect{
	quote: quoteMySQL,
	types: map[domain.ColumnKind]string{
		domain.KindText:    "TEXT",
		domain.KindReal:    "DOUBLE",
		domain.KindInteger: "BIGINT",
	},
	tableExists: mysqlTableExists,
	tableColumns: `SELECT column_name FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = ? ORDER BY ordinal_position`,
	swap: swapMySQL,
}

// sqlite DDL is transactional, so drop and rename commit together.
func swapSQLite(ctx context.Context, db *sql.DB, staging, table string) error {
	q := quoteSQLite
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+q(table)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s RENAME TO %s", q(staging), q(table))); err != nil {
		return err
	}
	return tx.Commit()
}

// MySQL renames several tables in one atomic statement.
func swapMySQL(ctx context.Context, db *sql.DB, staging, table string) error {
	q := quoteMySQL
	var n int
	if err := db.QueryRowContext(ctx, mysqlTableExists, table).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		_, err := db.ExecContext(ctx, fmt.Sprintf("RENAME TABLE %s TO %s", q(staging), q(table)))
		return err
	}

	old := table + "__old"
	if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+q(old)); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("RENAME TABLE %s TO %s, %s TO %s",
		q(table), q(old), q(staging), q(table))); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+q(old))
	return err
}
