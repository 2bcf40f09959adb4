// Package columnengine is the analytical, columnar (OLAP) engine facade
// (spec C2). It wraps github.com/duckdb/duckdb-go/v2, the columnar driver
// grounded on jkilzi-assisted-migration-agent's internal/store facade
// (store-over-*sql.DB, squirrel-assembled DDL/DML), generalized here to
// serve as the analytical half of Lumos-DB's dual-engine storage.
package columnengine

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/lumos-db/lumosdb/internal/errs"
	"github.com/lumos-db/lumosdb/internal/logging"
	"github.com/lumos-db/lumosdb/internal/schema"
)

var log = logging.GetLogger("columnengine")

// Engine is the column (OLAP) engine facade.
type Engine struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

// Open opens a column-engine database file, creating its parent directory
// if necessary.
func Open(path string) (*Engine, error) {
	log.Info("opening column engine", "path", path)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errs.WrapEngine("column", fmt.Errorf("create data directory: %w", err))
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errs.WrapEngine("column", fmt.Errorf("open: %w", err))
	}
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errs.WrapEngine("column", fmt.Errorf("ping: %w", err))
	}

	log.Info("column engine connection established", "path", path)
	return &Engine{db: db, path: path}, nil
}

// Close closes the underlying connection.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.db == nil {
		return nil
	}
	return e.db.Close()
}

// DB returns the underlying *sql.DB for advanced/test-only use, and so
// query-builder callers (squirrel) can run the statements it assembles.
func (e *Engine) DB() *sql.DB { return e.db }

// Path returns the database file path.
func (e *Engine) Path() string { return e.path }

// StatementBuilder is a squirrel builder configured for DuckDB's `?`
// positional placeholder style (no $N rewriting needed, matching the row
// engine's parameter style so the cross-engine executor can share SQL
// fragments).
var StatementBuilder = sq.StatementBuilder.PlaceholderFormat(sq.Question)

func trace(op, query string, start time.Time, err error) {
	dur := time.Since(start)
	q := query
	if len(q) > 200 {
		q = q[:200] + "..."
	}
	if err != nil {
		log.Error("statement failed", "op", op, "sql", q, "duration_ms", dur.Milliseconds(), "error", err)
		return
	}
	log.Debug("statement executed", "op", op, "sql", q, "duration_ms", dur.Milliseconds())
}

// Exec executes a statement outside of any explicit transaction.
func (e *Engine) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	res, err := e.db.ExecContext(ctx, query, args...)
	trace("exec", query, start, err)
	if err != nil {
		return nil, errs.WrapEngine("column", err)
	}
	return res, nil
}

// Query executes a query and returns the resulting rows.
func (e *Engine) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	start := time.Now()
	rows, err := e.db.QueryContext(ctx, query, args...)
	trace("query", query, start, err)
	if err != nil {
		return nil, errs.WrapEngine("column", err)
	}
	return rows, nil
}

// QueryRow executes a query expected to return at most one row.
func (e *Engine) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	e.mu.RLock()
	defer e.mu.RUnlock()
	start := time.Now()
	row := e.db.QueryRowContext(ctx, query, args...)
	trace("query_row", query, start, nil)
	return row
}

// Begin starts a new transaction. Callers are responsible for Commit/Rollback.
func (e *Engine) Begin(ctx context.Context) (*sql.Tx, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errs.WrapEngine("column", err)
	}
	return tx, nil
}

// TableExists reports whether a table with the given name exists.
func (e *Engine) TableExists(ctx context.Context, name string) (bool, error) {
	var count int
	err := e.QueryRow(ctx,
		`SELECT COUNT(*) FROM information_schema.tables WHERE table_name = ?`, name,
	).Scan(&count)
	if err != nil {
		return false, errs.WrapEngine("column", err)
	}
	return count > 0, nil
}

// ListTables returns user tables, excluding Lumos-DB's own internal naming
// convention (companion tables are a row-engine-only concept, but
// temporaries staged by the cross-engine executor use the same "_"
// prefix convention and are excluded here too).
func (e *Engine) ListTables(ctx context.Context) ([]string, error) {
	rows, err := e.Query(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = 'main' AND table_name NOT LIKE '\_%' ESCAPE '\'
		ORDER BY table_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, errs.WrapEngine("column", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// DescribeTable introspects a table's schema (columns, types, nullability,
// defaults and primary-key membership) via DuckDB's pragma_table_info.
func (e *Engine) DescribeTable(ctx context.Context, name string) (*schema.Table, error) {
	rows, err := e.Query(ctx, `SELECT name, type, "notnull", dflt_value, pk FROM pragma_table_info(?)`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	t := &schema.Table{Name: name}
	for rows.Next() {
		var (
			colName   string
			colType   string
			notNull   bool
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&colName, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, errs.WrapEngine("column", err)
		}
		col := schema.Column{
			Name:       colName,
			Type:       strings.ToUpper(colType),
			Nullable:   !notNull,
			PrimaryKey: pk > 0,
		}
		if dfltValue.Valid {
			col.Default = dfltValue.String
			col.HasDefault = true
		}
		t.Columns = append(t.Columns, col)
		if pk > 0 {
			t.PrimaryKey = append(t.PrimaryKey, colName)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errs.WrapEngine("column", err)
	}
	if len(t.Columns) == 0 {
		return nil, errs.WrapEngine("column", fmt.Errorf("table %q not found", name))
	}

	var count int64
	if err := e.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdent(name))).Scan(&count); err == nil {
		t.EstimatedRows = count
	}

	return t, nil
}

// quoteIdent double-quotes a SQL identifier; table names in this system are
// internally generated or operator-configured, never raw user input routed
// through SQL text.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteIdent is the exported form used by other packages (syncengine,
// vector) assembling DuckDB DDL/DML via squirrel's raw expression escape.
func QuoteIdent(name string) string { return quoteIdent(name) }
