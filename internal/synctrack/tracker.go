// Package synctrack is the Change Tracker (C6): a per-table append-only
// log of row mutations, driven by triggers installed on the row engine.
// Grounded on mycelicmemory's internal/database/schema.go (companion-table
// and trigger DDL embedded as Go string constants) and operations.go's
// mutation-helper shape.
package synctrack

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/lumos-db/lumosdb/internal/errs"
	"github.com/lumos-db/lumosdb/internal/logging"
	"github.com/lumos-db/lumosdb/internal/rowengine"
)

var log = logging.GetLogger("synctrack")

// Op is the kind of mutation recorded in a change record (§3 "Change
// record").
type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
)

// SyncState tags a change record's replication state.
type SyncState int

const (
	Pending SyncState = iota
	Synced
)

// ChangeRecord is one tracked mutation (§3 "Change record").
type ChangeRecord struct {
	ChangeID   int64
	Table      string
	RowKey     string
	Op         Op
	ModifiedAt int64
	SyncState  SyncState
}

// Tracker wraps the row engine exclusively (§3 Ownership: "Sync Manager
// exclusively owns the Change Tracker and Strategy Executor").
type Tracker struct {
	row *rowengine.Engine

	mu         sync.Mutex
	dirty      map[string]bool // in-memory fast path for UDF-driven tracking
	udfEnabled map[string]bool
}

// NewTracker constructs a Tracker bound to the given row engine.
func NewTracker(row *rowengine.Engine) *Tracker {
	return &Tracker{
		row:        row,
		dirty:      make(map[string]bool),
		udfEnabled: make(map[string]bool),
	}
}

func trackTableName(table string) string { return "_track_" + table }

// Init creates the companion tracking table `_track_<table>` and installs
// the three AFTER triggers exactly as spec.md §4.4 describes.
func (t *Tracker) Init(ctx context.Context, table string, pk []string) error {
	trackTable := trackTableName(table)

	createSQL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			change_id INTEGER PRIMARY KEY AUTOINCREMENT,
			row_pk TEXT NOT NULL,
			op_kind TEXT NOT NULL,
			modified_at INTEGER NOT NULL,
			sync_state INTEGER NOT NULL DEFAULT 0
		)`, quoteIdent(trackTable))
	if _, err := t.row.Exec(ctx, createSQL); err != nil {
		return &errs.TrackerError{Table: table, Err: err}
	}

	pkExpr := pkConcatExpr(pk, "NEW")
	pkExprOld := pkConcatExpr(pk, "OLD")

	triggers := []string{
		fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %s
			AFTER INSERT ON %s
			BEGIN
				INSERT INTO %s (row_pk, op_kind, modified_at, sync_state)
				VALUES (%s, 'INSERT', CAST(strftime('%%s','now') AS INTEGER), 0);
			END`,
			quoteIdent("_trg_"+table+"_ins"), quoteIdent(table), quoteIdent(trackTable), pkExpr),
		fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %s
			AFTER UPDATE ON %s
			BEGIN
				INSERT INTO %s (row_pk, op_kind, modified_at, sync_state)
				VALUES (%s, 'UPDATE', CAST(strftime('%%s','now') AS INTEGER), 0);
			END`,
			quoteIdent("_trg_"+table+"_upd"), quoteIdent(table), quoteIdent(trackTable), pkExpr),
		fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %s
			AFTER DELETE ON %s
			BEGIN
				INSERT INTO %s (row_pk, op_kind, modified_at, sync_state)
				VALUES (%s, 'DELETE', CAST(strftime('%%s','now') AS INTEGER), 0);
			END`,
			quoteIdent("_trg_"+table+"_del"), quoteIdent(table), quoteIdent(trackTable), pkExprOld),
	}
	for _, trig := range triggers {
		if _, err := t.row.Exec(ctx, trig); err != nil {
			return &errs.TrackerError{Table: table, Err: err}
		}
	}

	log.Info("change tracker initialized", "table", table)
	return nil
}

// pkConcatExpr builds a SQLite expression concatenating PK column values
// with '|' so composite keys collapse to one TEXT row_pk value.
func pkConcatExpr(pk []string, alias string) string {
	if len(pk) == 0 {
		return "''"
	}
	parts := make([]string, len(pk))
	for i, c := range pk {
		parts[i] = fmt.Sprintf("CAST(%s.%s AS TEXT)", alias, quoteIdent(c))
	}
	return strings.Join(parts, " || '|' || ")
}

// InstallUDF flags table as using the in-process dirty-set path (§4.4). It
// does not register a SQL function with the driver: no mark_modified(table)
// function exists on the row engine, and the triggers installed by Init do
// not call one. The dirty set is filled only by MarkDirty and serves as the
// fast path for GetChangedTables, while `_track_<table>` stays
// authoritative.
func (t *Tracker) InstallUDF(table string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.udfEnabled[table] = true
}

// MarkDirty records table as dirty in the in-memory fast-path set; it is
// the only writer of that set.
func (t *Tracker) MarkDirty(table string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dirty[table] = true
}

// GetChangedTables returns the set of tables with any Pending change
// record. The in-memory dirty set (populated via MarkDirty) is
// consulted as a fast path; `_track_<table>` remains authoritative so a
// table with a UDF not installed is still discovered.
func (t *Tracker) GetChangedTables(ctx context.Context, candidateTables []string) ([]string, error) {
	var changed []string
	for _, table := range candidateTables {
		t.mu.Lock()
		fastPath := t.dirty[table]
		t.mu.Unlock()
		if fastPath {
			changed = append(changed, table)
			continue
		}

		exists, err := t.row.TableExists(ctx, trackTableName(table))
		if err != nil {
			return nil, &errs.TrackerError{Table: table, Err: err}
		}
		if !exists {
			continue
		}
		var count int
		err = t.row.QueryRow(ctx,
			fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE sync_state = 0", quoteIdent(trackTableName(table))),
		).Scan(&count)
		if err != nil {
			return nil, &errs.TrackerError{Table: table, Err: err}
		}
		if count > 0 {
			changed = append(changed, table)
		}
	}
	return changed, nil
}

// GetChanges returns ordered Pending rows for table (§4.4). Ordering is
// monotonically increasing modified_at, ties broken by change_id
// (insertion order), matching §3's Change record ordering invariant.
func (t *Tracker) GetChanges(ctx context.Context, table string) ([]ChangeRecord, error) {
	rows, err := t.row.Query(ctx, fmt.Sprintf(
		`SELECT change_id, row_pk, op_kind, modified_at, sync_state
		 FROM %s WHERE sync_state = 0 ORDER BY modified_at ASC, change_id ASC`,
		quoteIdent(trackTableName(table))))
	if err != nil {
		return nil, &errs.TrackerError{Table: table, Err: err}
	}
	defer rows.Close()

	var out []ChangeRecord
	for rows.Next() {
		var (
			id, modifiedAt int64
			rowPK, opKind  string
			syncState      int
		)
		if err := rows.Scan(&id, &rowPK, &opKind, &modifiedAt, &syncState); err != nil {
			return nil, &errs.TrackerError{Table: table, Err: err}
		}
		out = append(out, ChangeRecord{
			ChangeID:   id,
			Table:      table,
			RowKey:     rowPK,
			Op:         Op(opKind),
			ModifiedAt: modifiedAt,
			SyncState:  SyncState(syncState),
		})
	}
	return out, rows.Err()
}

// MarkSynced atomically flips sync_state to Synced for the listed
// change-ids. Idempotent and monotone: once Synced, no operation flips a
// row back to Pending (§4.4, §8 "mark_synced(ids) is idempotent and
// monotone").
func (t *Tracker) MarkSynced(ctx context.Context, table string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(
		"UPDATE %s SET sync_state = 1 WHERE change_id IN (%s) AND sync_state = 0",
		quoteIdent(trackTableName(table)), strings.Join(placeholders, ","))
	_, err := t.row.Exec(ctx, query, args...)
	if err != nil {
		return &errs.TrackerError{Table: table, Err: err}
	}
	t.mu.Lock()
	delete(t.dirty, table)
	t.mu.Unlock()
	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
