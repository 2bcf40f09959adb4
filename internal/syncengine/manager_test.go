package syncengine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/lumos-db/lumosdb/internal/columnengine"
	"github.com/lumos-db/lumosdb/internal/errs"
	"github.com/lumos-db/lumosdb/internal/rowengine"
	"github.com/lumos-db/lumosdb/internal/synctrack"
)

func newTestManager(t *testing.T, cfg ManagerConfig) (*Manager, *rowengine.Engine, *columnengine.Engine) {
	t.Helper()
	row, col := newTestEngines(t)
	tracker := synctrack.NewTracker(row)
	return NewManager(row, col, tracker, cfg), row, col
}

func TestManagerInitDiscoversAndFullSyncsTables(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultManagerConfig()
	mgr, row, _ := newTestManager(t, cfg)

	if _, err := row.Exec(ctx, "CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := row.Exec(ctx, "INSERT INTO t (id, name) VALUES (1, 'a')"); err != nil {
		t.Fatalf("insert: %v", err)
	}

	results, err := mgr.Init(ctx)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	res, ok := results["t"]
	if !ok {
		t.Fatal("expected a result for table t")
	}
	if res.RowsSynced != 1 {
		t.Errorf("expected 1 row synced on init full sync, got %d", res.RowsSynced)
	}

	status := mgr.Status()
	if status["t"].Status != StatusCompleted {
		t.Errorf("expected table t status Completed, got %s", status["t"].Status)
	}
}

func TestManagerExcludeFiltersOutTable(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultManagerConfig()
	cfg.Exclude = []string{"skip_me"}
	cfg.FullSyncOnStart = false
	mgr, row, _ := newTestManager(t, cfg)

	row.Exec(ctx, "CREATE TABLE skip_me (id INTEGER PRIMARY KEY)")
	row.Exec(ctx, "CREATE TABLE keep_me (id INTEGER PRIMARY KEY)")

	if _, err := mgr.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	status := mgr.Status()
	if _, ok := status["skip_me"]; ok {
		t.Error("expected skip_me to be excluded from discovery")
	}
	if _, ok := status["keep_me"]; !ok {
		t.Error("expected keep_me to be discovered")
	}
}

func TestManagerSyncTableAlreadyRunning(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultManagerConfig()
	cfg.FullSyncOnStart = false
	mgr, row, _ := newTestManager(t, cfg)

	row.Exec(ctx, "CREATE TABLE t (id INTEGER PRIMARY KEY)")
	if _, err := mgr.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	// Hold the lease manually to simulate an in-flight run, then verify a
	// second caller observes AlreadyRunning rather than blocking.
	var wg sync.WaitGroup
	started := make(chan struct{})
	release := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		mgr.mu.Lock()
		lease := mgr.leases["t"]
		mgr.mu.Unlock()
		lease.Lock()
		close(started)
		<-release
		lease.Unlock()
	}()

	<-started
	_, err := mgr.SyncTable(ctx, "t", StrategyFull)
	close(release)
	wg.Wait()

	var already *errs.AlreadyRunning
	if !errors.As(err, &already) {
		t.Fatalf("expected AlreadyRunning error, got %v", err)
	}
}

func TestManagerConcurrentSyncDifferentTables(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultManagerConfig()
	mgr, row, _ := newTestManager(t, cfg)

	row.Exec(ctx, "CREATE TABLE a (id INTEGER PRIMARY KEY)")
	row.Exec(ctx, "CREATE TABLE b (id INTEGER PRIMARY KEY)")
	row.Exec(ctx, "INSERT INTO a (id) VALUES (1)")
	row.Exec(ctx, "INSERT INTO b (id) VALUES (1)")

	results, err := mgr.Init(ctx)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected results for both tables, got %d", len(results))
	}
	for _, table := range []string{"a", "b"} {
		if results[table].RowsSynced != 1 {
			t.Errorf("expected table %s to sync 1 row, got %d", table, results[table].RowsSynced)
		}
	}
}
