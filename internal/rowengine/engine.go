// Package rowengine is the transactional, row-oriented (OLTP) engine
// facade (spec C1). It wraps github.com/mattn/go-sqlite3, the same driver
// the teacher repo uses for its single embedded store, generalized here to
// serve as one half of Lumos-DB's dual-engine storage.
package rowengine

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/lumos-db/lumosdb/internal/errs"
	"github.com/lumos-db/lumosdb/internal/logging"
	"github.com/lumos-db/lumosdb/internal/schema"
	_ "github.com/mattn/go-sqlite3"
)

var log = logging.GetLogger("rowengine")

// Engine is the row (OLTP) engine facade.
type Engine struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

// Open opens a row-engine database file, creating it (and its parent
// directory) if necessary.
func Open(path string) (*Engine, error) {
	log.Info("opening row engine", "path", path)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errs.WrapEngine("row", fmt.Errorf("create data directory: %w", err))
	}

	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errs.WrapEngine("row", fmt.Errorf("open: %w", err))
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errs.WrapEngine("row", fmt.Errorf("ping: %w", err))
	}

	log.Info("row engine connection established", "path", path)
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

// DB returns the underlying *sql.DB for advanced/test-only use.
func (e *Engine) DB() *sql.DB { return e.db }

// Path returns the database file path.
func (e *Engine) Path() string { return e.path }

// trace logs a per-statement trace entry (§2 C1 "per-statement tracing").
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
		return nil, errs.WrapEngine("row", err)
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
		return nil, errs.WrapEngine("row", err)
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
		return nil, errs.WrapEngine("row", err)
	}
	return tx, nil
}

// TableExists reports whether a table with the given name exists.
func (e *Engine) TableExists(ctx context.Context, name string) (bool, error) {
	var count int
	err := e.QueryRow(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListTables returns user tables, excluding SQLite's own system tables and
// change-tracker companion tables (names beginning with "_").
func (e *Engine) ListTables(ctx context.Context) ([]string, error) {
	rows, err := e.Query(ctx, `
		SELECT name FROM sqlite_master
		WHERE type='table' AND name NOT LIKE 'sqlite_%' AND name NOT LIKE '\_%' ESCAPE '\'
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, errs.WrapEngine("row", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// DescribeTable introspects a table's schema via PRAGMA table_info, per
// spec.md §6 ("PRAGMA table_info(…) for introspection").
func (e *Engine) DescribeTable(ctx context.Context, name string) (*schema.Table, error) {
	rows, err := e.Query(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, quoteIdent(name)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	t := &schema.Table{Name: name}
	for rows.Next() {
		var (
			cid        int
			colName    string
			colType    string
			notNull    int
			dfltValue  sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, errs.WrapEngine("row", err)
		}
		col := schema.Column{
			Name:       colName,
			Type:       strings.ToUpper(colType),
			Nullable:   notNull == 0 && pk == 0,
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
		return nil, errs.WrapEngine("row", err)
	}
	if len(t.Columns) == 0 {
		return nil, errs.WrapEngine("row", fmt.Errorf("table %q not found", name))
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
