package testutil

import (
	"context"
	"testing"
)

func TestOpenRowEngine(t *testing.T) {
	row := OpenRowEngine(t)

	if _, err := row.Exec(context.Background(), "CREATE TABLE scratch (id TEXT PRIMARY KEY)"); err != nil {
		t.Fatalf("exec on opened row engine: %v", err)
	}
}

func TestOpenColumnEngine(t *testing.T) {
	col := OpenColumnEngine(t)

	if _, err := col.Exec(context.Background(), "CREATE TABLE scratch (id TEXT PRIMARY KEY)"); err != nil {
		t.Fatalf("exec on opened column engine: %v", err)
	}
}

func TestOpenEngines(t *testing.T) {
	row, col := OpenEngines(t)

	if row == nil || col == nil {
		t.Fatal("expected both engines to be non-nil")
	}
	if _, err := row.Exec(context.Background(), "CREATE TABLE t (id INTEGER PRIMARY KEY)"); err != nil {
		t.Fatalf("exec on row engine: %v", err)
	}
	if _, err := col.Exec(context.Background(), "CREATE TABLE t (id BIGINT PRIMARY KEY)"); err != nil {
		t.Fatalf("exec on column engine: %v", err)
	}
}

func TestAssertNoError(t *testing.T) {
	AssertNoError(t, nil)
}

func TestAssertEqual(t *testing.T) {
	AssertEqual(t, 1, 1)
	AssertEqual(t, "test", "test")
	AssertEqual(t, true, true)
}

