package syncengine

import (
	"context"
	"testing"

	"github.com/lumos-db/lumosdb/internal/synctrack"
)

func TestParseStrategyRoundTrip(t *testing.T) {
	cases := map[string]Strategy{
		"full": StrategyFull, "incremental": StrategyIncremental,
		"snapshot": StrategySnapshot, "mirror": StrategyMirror, "manual": StrategyManual,
	}
	for text, want := range cases {
		got, ok := ParseStrategy(text)
		if !ok || got != want {
			t.Errorf("ParseStrategy(%q) = %v, %v; want %v, true", text, got, ok, want)
		}
		if got.String() != text {
			t.Errorf("Strategy(%v).String() = %q, want %q", got, got.String(), text)
		}
	}
	if _, ok := ParseStrategy("bogus"); ok {
		t.Error("expected ParseStrategy to reject an unknown strategy name")
	}
}

func TestRunFullSyncRoundTrip(t *testing.T) {
	ctx := context.Background()
	row, col := newTestEngines(t)

	row.Exec(ctx, "CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT, value REAL)")
	row.Exec(ctx, "INSERT INTO t (id, name, value) VALUES (1, 'a', 1.5), (2, 'b', 2.5)")

	reconciler := NewReconciler(row, col)
	cfg := TableSyncConfig{Table: "t", PKColumns: []string{"id"}}

	result, err := ExecuteStrategy(ctx, StrategyFull, cfg, row, col, reconciler, nil, 0)
	if err != nil {
		t.Fatalf("ExecuteStrategy(Full) failed: %v", err)
	}
	if result.RowsSynced != 2 {
		t.Errorf("expected 2 rows synced, got %d", result.RowsSynced)
	}
	if result.NewWatermark == 0 {
		t.Error("expected non-zero watermark after full sync")
	}

	var count int
	if err := col.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM t").Scan(&count); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 rows in target, got %d", count)
	}
}

func TestRunIncrementalSyncWithTimestamp(t *testing.T) {
	ctx := context.Background()
	row, col := newTestEngines(t)

	row.Exec(ctx, "CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT, updated_at INTEGER)")
	row.Exec(ctx, "INSERT INTO t (id, name, updated_at) VALUES (1, 'a', 100)")

	reconciler := NewReconciler(row, col)
	cfg := TableSyncConfig{Table: "t", PKColumns: []string{"id"}, TimestampCandidates: []string{"updated_at"}}

	first, err := ExecuteStrategy(ctx, StrategyIncremental, cfg, row, col, reconciler, nil, 0)
	if err != nil {
		t.Fatalf("first incremental sync failed: %v", err)
	}
	if first.RowsSynced != 1 || first.NewWatermark != 100 {
		t.Fatalf("unexpected first sync result: %+v", first)
	}

	// No new rows: second sync at the same watermark should see nothing new.
	second, err := ExecuteStrategy(ctx, StrategyIncremental, cfg, row, col, reconciler, nil, first.NewWatermark)
	if err != nil {
		t.Fatalf("second incremental sync failed: %v", err)
	}
	if second.RowsSynced != 0 {
		t.Errorf("expected 0 new rows on second sync, got %d", second.RowsSynced)
	}

	row.Exec(ctx, "INSERT INTO t (id, name, updated_at) VALUES (2, 'b', 200)")
	third, err := ExecuteStrategy(ctx, StrategyIncremental, cfg, row, col, reconciler, nil, second.NewWatermark)
	if err != nil {
		t.Fatalf("third incremental sync failed: %v", err)
	}
	if third.RowsSynced != 1 || third.NewWatermark != 200 {
		t.Errorf("expected to pick up row 2 with watermark 200, got %+v", third)
	}
}

func TestRunIncrementalFallsBackToFullScanWithoutTimestamp(t *testing.T) {
	ctx := context.Background()
	row, col := newTestEngines(t)

	row.Exec(ctx, "CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)")
	row.Exec(ctx, "INSERT INTO t (id, name) VALUES (1, 'a')")

	reconciler := NewReconciler(row, col)
	cfg := TableSyncConfig{Table: "t", PKColumns: []string{"id"}, TimestampCandidates: []string{"updated_at"}}

	result, err := ExecuteStrategy(ctx, StrategyIncremental, cfg, row, col, reconciler, nil, 0)
	if err != nil {
		t.Fatalf("ExecuteStrategy(Incremental) failed: %v", err)
	}
	if result.RowsSynced != 1 {
		t.Errorf("expected full-scan fallback to sync 1 row, got %d", result.RowsSynced)
	}
}

func TestRunSnapshotCreatesNamedTable(t *testing.T) {
	ctx := context.Background()
	row, col := newTestEngines(t)

	row.Exec(ctx, "CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)")
	row.Exec(ctx, "INSERT INTO t (id, name) VALUES (1, 'a')")

	reconciler := NewReconciler(row, col)
	cfg := TableSyncConfig{Table: "t", PKColumns: []string{"id"}}

	result, err := ExecuteStrategy(ctx, StrategySnapshot, cfg, row, col, reconciler, nil, 0)
	if err != nil {
		t.Fatalf("ExecuteStrategy(Snapshot) failed: %v", err)
	}
	if result.SnapshotTable == "" {
		t.Fatal("expected a snapshot table name")
	}

	exists, err := col.TableExists(ctx, result.SnapshotTable)
	if err != nil || !exists {
		t.Fatalf("expected snapshot table %s to exist, err=%v", result.SnapshotTable, err)
	}

	primaryExists, err := col.TableExists(ctx, "t")
	if err != nil {
		t.Fatalf("TableExists failed: %v", err)
	}
	if primaryExists {
		t.Error("snapshot must not touch the primary target table")
	}
}

func TestRunMirrorPropagatesDeletes(t *testing.T) {
	ctx := context.Background()
	row, col := newTestEngines(t)

	row.Exec(ctx, "CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT, updated_at INTEGER)")
	tracker := synctrack.NewTracker(row)
	if err := tracker.Init(ctx, "t", []string{"id"}); err != nil {
		t.Fatalf("tracker.Init failed: %v", err)
	}

	row.Exec(ctx, "INSERT INTO t (id, name, updated_at) VALUES (1, 'a', 100), (2, 'b', 100)")

	reconciler := NewReconciler(row, col)
	cfg := TableSyncConfig{Table: "t", PKColumns: []string{"id"}, TimestampCandidates: []string{"updated_at"}}

	first, err := ExecuteStrategy(ctx, StrategyMirror, cfg, row, col, reconciler, tracker, 0)
	if err != nil {
		t.Fatalf("first mirror sync failed: %v", err)
	}
	if first.RowsSynced != 2 {
		t.Fatalf("expected 2 rows synced on first mirror pass, got %d", first.RowsSynced)
	}

	row.Exec(ctx, "DELETE FROM t WHERE id = 1")
	row.Exec(ctx, "UPDATE t SET name = 'b2', updated_at = 200 WHERE id = 2")
	row.Exec(ctx, "INSERT INTO t (id, name, updated_at) VALUES (3, 'c', 200)")

	second, err := ExecuteStrategy(ctx, StrategyMirror, cfg, row, col, reconciler, tracker, first.NewWatermark)
	if err != nil {
		t.Fatalf("second mirror sync failed: %v", err)
	}
	if second.RowsDeleted != 1 {
		t.Errorf("expected 1 deleted row, got %d", second.RowsDeleted)
	}

	var count int
	if err := col.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM t").Scan(&count); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 surviving rows (2 and 3), got %d", count)
	}

	var name string
	if err := col.DB().QueryRowContext(ctx, "SELECT name FROM t WHERE id = 2").Scan(&name); err != nil {
		t.Fatalf("select name failed: %v", err)
	}
	if name != "b2" {
		t.Errorf("expected row 2's name to be updated to b2, got %s", name)
	}
}
