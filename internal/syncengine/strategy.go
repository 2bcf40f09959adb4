package syncengine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lumos-db/lumosdb/internal/columnengine"
	"github.com/lumos-db/lumosdb/internal/rowengine"
	"github.com/lumos-db/lumosdb/internal/synctrack"
)

// Strategy is the tagged variant over table-sync policies (§3 "Sync
// config"). Per spec.md §9's "Dynamic dispatch among strategies" note,
// this is modeled as a single dispatch function over a closed enum rather
// than per-strategy objects.
type Strategy int

const (
	StrategyFull Strategy = iota
	StrategyIncremental
	StrategySnapshot
	StrategyMirror
	StrategyManual
)

func (s Strategy) String() string {
	switch s {
	case StrategyFull:
		return "full"
	case StrategyIncremental:
		return "incremental"
	case StrategySnapshot:
		return "snapshot"
	case StrategyMirror:
		return "mirror"
	default:
		return "manual"
	}
}

// ParseStrategy maps a config string (pkg/config.SyncConfig.DefaultStrategy)
// to its Strategy value.
func ParseStrategy(s string) (Strategy, bool) {
	switch strings.ToLower(s) {
	case "full":
		return StrategyFull, true
	case "incremental":
		return StrategyIncremental, true
	case "snapshot":
		return StrategySnapshot, true
	case "mirror":
		return StrategyMirror, true
	case "manual":
		return StrategyManual, true
	default:
		return 0, false
	}
}

// TableSyncConfig configures one table's sync run, a per-table projection
// of §3 "Sync config".
type TableSyncConfig struct {
	Table               string
	Columns             []string // resolved, filtered column set; empty means "all source columns"
	PKColumns           []string
	TimestampCandidates []string
	TransformSQL        string // optional; overrides the plain source SELECT when set
	BatchSize           int
}

// SyncResult is the per-table strategy-run outcome (§4.5 "Result").
type SyncResult struct {
	RowsSynced     int64
	RowsDeleted    int64
	SchemaUpdated  bool
	SnapshotTable  string
	NewWatermark   int64
	Errors         []error
}

// nowFunc is a seam for deterministic tests; defaults to time.Now's Unix
// epoch seconds.
var nowFunc = func() int64 { return time.Now().Unix() }

// ExecuteStrategy dispatches to the concrete strategy arm named in spec.md
// §4.5. The Schema Reconciler preamble (table exists, matches) runs first
// for every strategy except Manual and Snapshot (§4.5 "Common preamble").
func ExecuteStrategy(
	ctx context.Context,
	strat Strategy,
	cfg TableSyncConfig,
	row *rowengine.Engine,
	column *columnengine.Engine,
	reconciler *Reconciler,
	tracker *synctrack.Tracker,
	lastWatermark int64,
) (SyncResult, error) {
	if strat == StrategyManual {
		return SyncResult{NewWatermark: lastWatermark}, nil
	}

	var schemaUpdated bool
	var err error
	// Snapshot writes only its own `<table>_<epoch>` table, so the primary
	// target is neither reconciled nor created for it.
	if strat != StrategySnapshot {
		schemaUpdated, err = reconciler.Reconcile(ctx, cfg.Table)
		if err != nil {
			return SyncResult{Errors: []error{err}}, err
		}
	}

	var result SyncResult
	switch strat {
	case StrategyFull:
		result, err = runFull(ctx, cfg, row, column)
	case StrategyIncremental:
		result, err = runIncremental(ctx, cfg, row, column, lastWatermark)
	case StrategySnapshot:
		result, err = runSnapshot(ctx, cfg, row, column)
	case StrategyMirror:
		result, err = runMirror(ctx, cfg, row, column, tracker, lastWatermark)
	}
	result.SchemaUpdated = result.SchemaUpdated || schemaUpdated
	if err != nil {
		result.Errors = append(result.Errors, err)
	}
	return result, err
}

func resolvedColumns(cfg TableSyncConfig, row *rowengine.Engine, ctx context.Context) ([]string, error) {
	if len(cfg.Columns) > 0 {
		return cfg.Columns, nil
	}
	tbl, err := row.DescribeTable(ctx, cfg.Table)
	if err != nil {
		return nil, err
	}
	return tbl.ColumnNames(), nil
}

func sourceSelectSQL(cfg TableSyncConfig, cols []string) string {
	if cfg.TransformSQL != "" {
		return cfg.TransformSQL
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), cfg.Table)
}

func readSourceRows(ctx context.Context, row *rowengine.Engine, query string, args ...any) ([]string, [][]any, error) {
	rows, err := row.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var out [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		out = append(out, vals)
	}
	return cols, out, rows.Err()
}

// runFull implements §4.5 Full: read all source rows, truncate the target,
// bulk-insert in batches within one pass, watermark advances to now().
func runFull(ctx context.Context, cfg TableSyncConfig, row *rowengine.Engine, column *columnengine.Engine) (SyncResult, error) {
	cols, err := resolvedColumns(cfg, row, ctx)
	if err != nil {
		return SyncResult{}, err
	}
	_, rows, err := readSourceRows(ctx, row, sourceSelectSQL(cfg, cols))
	if err != nil {
		return SyncResult{}, err
	}

	if err := column.Truncate(ctx, cfg.Table); err != nil {
		return SyncResult{}, err
	}
	n, err := column.BulkIngest(ctx, cfg.Table, cols, rows, batchSize(cfg))
	if err != nil {
		return SyncResult{RowsSynced: n}, err
	}
	return SyncResult{RowsSynced: n, NewWatermark: nowFunc()}, nil
}

// runIncremental implements §4.5 Incremental: timestamp-filtered read when
// a candidate timestamp column is present, full-scan fallback with a
// logged warning otherwise (spec.md §9's mandated fallback). Upserts row
// by row in batched transactions.
func runIncremental(ctx context.Context, cfg TableSyncConfig, row *rowengine.Engine, column *columnengine.Engine, lastWatermark int64) (SyncResult, error) {
	cols, err := resolvedColumns(cfg, row, ctx)
	if err != nil {
		return SyncResult{}, err
	}

	tsCol, hasTS := detectTimestampColumn(cfg, cols)
	var query string
	var args []any
	if hasTS {
		query = fmt.Sprintf("SELECT %s FROM %s WHERE %s > ? ORDER BY %s ASC",
			strings.Join(cols, ", "), cfg.Table, tsCol, tsCol)
		args = []any{lastWatermark}
	} else {
		log.Warn("incremental sync: no timestamp column found, falling back to full-table scan", "table", cfg.Table)
		query = sourceSelectSQL(cfg, cols)
	}

	_, rows, err := readSourceRows(ctx, row, query, args...)
	if err != nil {
		return SyncResult{}, err
	}

	n, maxTS, err := upsertRows(ctx, column, cfg, cols, rows, tsCol, hasTS)
	watermark := lastWatermark
	if hasTS && maxTS > watermark {
		watermark = maxTS
	} else if !hasTS {
		watermark = nowFunc()
	}
	return SyncResult{RowsSynced: n, NewWatermark: watermark}, err
}

// runSnapshot implements §4.5 Snapshot: like Full, but into a freshly
// named `<table>_<epoch>` table; the primary target is never touched.
func runSnapshot(ctx context.Context, cfg TableSyncConfig, row *rowengine.Engine, column *columnengine.Engine) (SyncResult, error) {
	cols, err := resolvedColumns(cfg, row, ctx)
	if err != nil {
		return SyncResult{}, err
	}
	_, rows, err := readSourceRows(ctx, row, sourceSelectSQL(cfg, cols))
	if err != nil {
		return SyncResult{}, err
	}

	epoch := nowFunc()
	snapshotTable := fmt.Sprintf("%s_%d", cfg.Table, epoch)

	srcSchema, err := row.DescribeTable(ctx, cfg.Table)
	if err != nil {
		return SyncResult{}, err
	}
	colDefs := make([]string, 0, len(cols))
	for _, name := range cols {
		c, _ := srcSchema.ColumnByName(name)
		colDefs = append(colDefs, fmt.Sprintf("%s %s", columnengine.QuoteIdent(name), TranslateRowToColumn(c.Type)))
	}
	createSQL := fmt.Sprintf("CREATE TABLE %s (%s)", columnengine.QuoteIdent(snapshotTable), strings.Join(colDefs, ", "))
	if _, err := column.Exec(ctx, createSQL); err != nil {
		return SyncResult{}, err
	}

	n, err := column.BulkIngest(ctx, snapshotTable, cols, rows, batchSize(cfg))
	return SyncResult{RowsSynced: n, SnapshotTable: snapshotTable, NewWatermark: epoch}, err
}

// runMirror implements §4.5 Mirror: like Incremental, plus it is the only
// strategy that propagates deletions, sourced from the Change Tracker's
// Pending delete entries — it issues a matching DELETE on the target
// before processing upserts.
func runMirror(ctx context.Context, cfg TableSyncConfig, row *rowengine.Engine, column *columnengine.Engine, tracker *synctrack.Tracker, lastWatermark int64) (SyncResult, error) {
	var deleted int64
	if tracker != nil {
		changes, err := tracker.GetChanges(ctx, cfg.Table)
		if err != nil {
			return SyncResult{}, err
		}
		var syncedIDs []int64
		for _, c := range changes {
			if c.Op != synctrack.OpDelete {
				continue
			}
			if err := deleteByCompositeKey(ctx, column, cfg, c.RowKey); err != nil {
				return SyncResult{}, err
			}
			deleted++
			syncedIDs = append(syncedIDs, c.ChangeID)
		}
		if len(syncedIDs) > 0 {
			if err := tracker.MarkSynced(ctx, cfg.Table, syncedIDs); err != nil {
				return SyncResult{}, err
			}
		}
	}

	incResult, err := runIncremental(ctx, cfg, row, column, lastWatermark)
	incResult.RowsDeleted = deleted
	return incResult, err
}

// deleteByCompositeKey deletes the target row whose PK columns match the
// '|'-joined row_pk recorded by the Change Tracker.
func deleteByCompositeKey(ctx context.Context, column *columnengine.Engine, cfg TableSyncConfig, rowPK string) error {
	parts := strings.Split(rowPK, "|")
	whereClauses := make([]string, len(cfg.PKColumns))
	args := make([]any, len(cfg.PKColumns))
	for i, c := range cfg.PKColumns {
		whereClauses[i] = columnengine.QuoteIdent(c) + " = ?"
		if i < len(parts) {
			args[i] = parts[i]
		}
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s", columnengine.QuoteIdent(cfg.Table), strings.Join(whereClauses, " AND "))
	_, err := column.Exec(ctx, query, args...)
	return err
}

// upsertRows applies per-row UPDATE-or-INSERT in batches of one
// transaction per batch (§4.5 Incremental), tracking the max observed
// timestamp when a timestamp column is in play.
func upsertRows(ctx context.Context, column *columnengine.Engine, cfg TableSyncConfig, cols []string, rows [][]any, tsCol string, hasTS bool) (int64, int64, error) {
	if len(rows) == 0 {
		return 0, 0, nil
	}

	pkIndex := make(map[string]int, len(cfg.PKColumns))
	colIndex := make(map[string]int, len(cols))
	for i, c := range cols {
		colIndex[c] = i
	}
	for _, pk := range cfg.PKColumns {
		if idx, ok := colIndex[pk]; ok {
			pkIndex[pk] = idx
		}
	}

	var n int64
	var maxTS int64
	batch := batchSize(cfg)

	for start := 0; start < len(rows); start += batch {
		end := min(start+batch, len(rows))
		tx, err := column.Begin(ctx)
		if err != nil {
			return n, maxTS, err
		}
		for _, r := range rows[start:end] {
			pkArgs := make([]any, len(cfg.PKColumns))
			for i, pk := range cfg.PKColumns {
				pkArgs[i] = r[pkIndex[pk]]
			}
			whereClauses := make([]string, len(cfg.PKColumns))
			for i, pk := range cfg.PKColumns {
				whereClauses[i] = columnengine.QuoteIdent(pk) + " = ?"
			}

			var exists int
			existsQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s",
				columnengine.QuoteIdent(cfg.Table), strings.Join(whereClauses, " AND "))
			if err := tx.QueryRowContext(ctx, existsQuery, pkArgs...).Scan(&exists); err != nil {
				tx.Rollback()
				return n, maxTS, err
			}

			if exists > 0 {
				var setClauses []string
				var setArgs []any
				for _, c := range cols {
					if _, isPK := pkIndex[c]; isPK {
						continue
					}
					setClauses = append(setClauses, columnengine.QuoteIdent(c)+" = ?")
					setArgs = append(setArgs, r[colIndex[c]])
				}
				if len(setClauses) > 0 {
					updSQL := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
						columnengine.QuoteIdent(cfg.Table), strings.Join(setClauses, ", "), strings.Join(whereClauses, " AND "))
					args := append(setArgs, pkArgs...)
					if _, err := tx.ExecContext(ctx, updSQL, args...); err != nil {
						tx.Rollback()
						return n, maxTS, err
					}
				}
			} else {
				placeholders := make([]string, len(cols))
				for i := range cols {
					placeholders[i] = "?"
				}
				insSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
					columnengine.QuoteIdent(cfg.Table), strings.Join(quoteAll(cols), ", "), strings.Join(placeholders, ","))
				if _, err := tx.ExecContext(ctx, insSQL, r...); err != nil {
					tx.Rollback()
					return n, maxTS, err
				}
			}
			n++

			if hasTS {
				if idx, ok := colIndex[tsCol]; ok {
					if ts := toUnix(r[idx]); ts > maxTS {
						maxTS = ts
					}
				}
			}
		}
		if err := tx.Commit(); err != nil {
			return n, maxTS, err
		}
	}
	return n, maxTS, nil
}

func toUnix(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

// detectTimestampColumn finds the first configured candidate (in priority
// order) present in cols, or a `_last_modified` companion column (§4.5
// "Common preamble").
func detectTimestampColumn(cfg TableSyncConfig, cols []string) (string, bool) {
	set := make(map[string]bool, len(cols))
	for _, c := range cols {
		set[c] = true
	}
	for _, cand := range cfg.TimestampCandidates {
		if set[cand] {
			return cand, true
		}
	}
	if set["_last_modified"] {
		return "_last_modified", true
	}
	return "", false
}

func batchSize(cfg TableSyncConfig) int {
	if cfg.BatchSize <= 0 {
		return 10000
	}
	return cfg.BatchSize
}
