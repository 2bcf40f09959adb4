package columnengine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.duckdb")
	e, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func TestEngineOpenClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.duckdb")

	e, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestEngineExecQuery(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	if _, err := e.Exec(ctx, `CREATE TABLE t (id BIGINT PRIMARY KEY, v VARCHAR)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := e.Exec(ctx, `INSERT INTO t (id, v) VALUES (?, ?)`, 1, "a"); err != nil {
		t.Fatalf("insert: %v", err)
	}

	var v string
	if err := e.QueryRow(ctx, `SELECT v FROM t WHERE id = ?`, 1).Scan(&v); err != nil {
		t.Fatalf("query row: %v", err)
	}
	if v != "a" {
		t.Errorf("expected v=a, got %s", v)
	}
}

func TestDescribeTable(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	if _, err := e.Exec(ctx, `CREATE TABLE t (id BIGINT PRIMARY KEY, name VARCHAR NOT NULL, value DOUBLE)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	tbl, err := e.DescribeTable(ctx, "t")
	if err != nil {
		t.Fatalf("DescribeTable failed: %v", err)
	}
	if len(tbl.Columns) != 3 {
		t.Fatalf("expected 3 columns, got %d", len(tbl.Columns))
	}
	if len(tbl.PrimaryKey) != 1 || tbl.PrimaryKey[0] != "id" {
		t.Errorf("expected primary key [id], got %v", tbl.PrimaryKey)
	}
}

func TestBulkIngestAndFetchAsStrings(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	e.Exec(ctx, `CREATE TABLE t (id BIGINT PRIMARY KEY, v VARCHAR)`)

	rows := [][]any{{1, "a"}, {2, "b"}, {3, "c"}}
	n, err := e.BulkIngest(ctx, "t", []string{"id", "v"}, rows, 2)
	if err != nil {
		t.Fatalf("BulkIngest failed: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 rows ingested, got %d", n)
	}

	cols, recs, err := e.FetchAsStrings(ctx, `SELECT id, v FROM t ORDER BY id`)
	if err != nil {
		t.Fatalf("FetchAsStrings failed: %v", err)
	}
	if len(cols) != 2 || len(recs) != 3 {
		t.Fatalf("expected 2 cols / 3 rows, got %d/%d", len(cols), len(recs))
	}
	if recs[0][0] != "1" || recs[0][1] != "a" {
		t.Errorf("expected first row [1 a], got %v", recs[0])
	}
}

func TestTruncate(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	e.Exec(ctx, `CREATE TABLE t (id BIGINT PRIMARY KEY)`)
	e.BulkIngest(ctx, "t", []string{"id"}, [][]any{{1}, {2}}, 10)

	if err := e.Truncate(ctx, "t"); err != nil {
		t.Fatalf("Truncate failed: %v", err)
	}
	var count int
	e.QueryRow(ctx, `SELECT COUNT(*) FROM t`).Scan(&count)
	if count != 0 {
		t.Errorf("expected 0 rows after truncate, got %d", count)
	}
}

func TestListTablesExcludesInternal(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	e.Exec(ctx, `CREATE TABLE orders (id BIGINT PRIMARY KEY)`)
	e.Exec(ctx, `CREATE TABLE _xe_staging (id BIGINT PRIMARY KEY)`)

	tables, err := e.ListTables(ctx)
	if err != nil {
		t.Fatalf("ListTables failed: %v", err)
	}
	for _, tb := range tables {
		if tb == "_xe_staging" {
			t.Errorf("expected _xe_staging to be excluded, got %v", tables)
		}
	}
}
