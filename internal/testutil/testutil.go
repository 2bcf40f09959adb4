// Package testutil provides shared fixtures for packages that need a
// scratch row engine, column engine, or both — so each package's _test.go
// files don't hand-roll the same t.TempDir()/Open/Close boilerplate.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/lumos-db/lumosdb/internal/columnengine"
	"github.com/lumos-db/lumosdb/internal/rowengine"
)

// OpenRowEngine opens a fresh row engine backed by a temp-dir SQLite file,
// closed automatically on test cleanup.
func OpenRowEngine(t *testing.T) *rowengine.Engine {
	t.Helper()

	row, err := rowengine.Open(filepath.Join(t.TempDir(), "row.db"))
	if err != nil {
		t.Fatalf("open row engine: %v", err)
	}
	t.Cleanup(func() { row.Close() })
	return row
}

// OpenColumnEngine opens a fresh column engine backed by a temp-dir DuckDB
// file, closed automatically on test cleanup.
func OpenColumnEngine(t *testing.T) *columnengine.Engine {
	t.Helper()

	col, err := columnengine.Open(filepath.Join(t.TempDir(), "col.duckdb"))
	if err != nil {
		t.Fatalf("open column engine: %v", err)
	}
	t.Cleanup(func() { col.Close() })
	return col
}

// OpenEngines opens both engines for tests that exercise router, cross-
// engine, or sync behavior spanning both sides.
func OpenEngines(t *testing.T) (*rowengine.Engine, *columnengine.Engine) {
	t.Helper()
	return OpenRowEngine(t), OpenColumnEngine(t)
}

// AssertNoError fails the test immediately if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertEqual fails the test if got != want.
func AssertEqual(t *testing.T, got, want interface{}) {
	t.Helper()

	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}
