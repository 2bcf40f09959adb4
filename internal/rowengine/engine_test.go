package rowengine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	e, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func TestEngineOpenClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

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

	if _, err := e.Exec(ctx, `CREATE TABLE t (id INTEGER PRIMARY KEY, v TEXT)`); err != nil {
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

	if _, err := e.Exec(ctx, `CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT NOT NULL, value REAL)`); err != nil {
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
	nameCol, ok := tbl.ColumnByName("name")
	if !ok {
		t.Fatal("expected column 'name'")
	}
	if nameCol.Nullable {
		t.Error("expected 'name' to be NOT NULL")
	}
}

func TestListTablesExcludesTrackerTables(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	e.Exec(ctx, `CREATE TABLE orders (id INTEGER PRIMARY KEY)`)
	e.Exec(ctx, `CREATE TABLE _track_orders (change_id INTEGER PRIMARY KEY)`)

	tables, err := e.ListTables(ctx)
	if err != nil {
		t.Fatalf("ListTables failed: %v", err)
	}
	for _, tb := range tables {
		if tb == "_track_orders" {
			t.Errorf("expected _track_orders to be excluded, got %v", tables)
		}
	}
	found := false
	for _, tb := range tables {
		if tb == "orders" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected orders in table list, got %v", tables)
	}
}

func TestBulkInsert(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	e.Exec(ctx, `CREATE TABLE t (id INTEGER PRIMARY KEY, v TEXT)`)

	rows := [][]any{{1, "a"}, {2, "b"}, {3, "c"}}
	n, err := e.BulkInsert(ctx, "t", []string{"id", "v"}, rows, 2)
	if err != nil {
		t.Fatalf("BulkInsert failed: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 rows inserted, got %d", n)
	}

	var count int
	e.QueryRow(ctx, `SELECT COUNT(*) FROM t`).Scan(&count)
	if count != 3 {
		t.Errorf("expected 3 rows in table, got %d", count)
	}
}

func TestBulkUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	e.Exec(ctx, `CREATE TABLE t (id INTEGER PRIMARY KEY, v TEXT)`)
	e.BulkInsert(ctx, "t", []string{"id", "v"}, [][]any{{1, "a"}, {2, "b"}}, 10)

	n, err := e.BulkUpdate(ctx, "t", []string{"id"}, []string{"v"},
		[]UpdateRow{{PKValues: []any{1}, SetValues: []any{"a2"}}}, 10)
	if err != nil {
		t.Fatalf("BulkUpdate failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 row updated, got %d", n)
	}

	var v string
	e.QueryRow(ctx, `SELECT v FROM t WHERE id = 1`).Scan(&v)
	if v != "a2" {
		t.Errorf("expected v=a2, got %s", v)
	}

	dn, err := e.BulkDelete(ctx, "t", []string{"id"}, [][]any{{2}}, 10)
	if err != nil {
		t.Fatalf("BulkDelete failed: %v", err)
	}
	if dn != 1 {
		t.Errorf("expected 1 row deleted, got %d", dn)
	}

	var count int
	e.QueryRow(ctx, `SELECT COUNT(*) FROM t`).Scan(&count)
	if count != 1 {
		t.Errorf("expected 1 row remaining, got %d", count)
	}
}
