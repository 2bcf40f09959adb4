// Package syncengine implements the Schema Reconciler (C7), Sync Strategy
// Executor (C8), and Sync Manager (C9). Grounded on mycelicmemory's
// internal/ratelimit.Limiter (mutex-guarded map of per-key buckets,
// generalized here to per-table sync leases) and internal/benchmark's
// status-record-driven run loop (no channels, matching spec.md §9's "Sync
// runs are tasks; they expose progress via status records").
package syncengine

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/lumos-db/lumosdb/internal/columnengine"
	"github.com/lumos-db/lumosdb/internal/errs"
	"github.com/lumos-db/lumosdb/internal/logging"
	"github.com/lumos-db/lumosdb/internal/rowengine"
	"github.com/lumos-db/lumosdb/internal/schema"
)

var log = logging.GetLogger("syncengine")

// SchemaDiff is the four disjoint column lists of §3 "Schema difference".
type SchemaDiff struct {
	Added             []schema.Column
	Removed           []schema.Column
	TypeChanged       []schema.Column // source-side definition of the column
	ConstraintChanged []schema.Column
}

// NeedsRecreate reports whether the diff requires the recreate-and-copy
// path (§3 invariant: "removed ∪ type-changed ⇒ table recreation").
func (d SchemaDiff) NeedsRecreate() bool {
	return len(d.Removed) > 0 || len(d.TypeChanged) > 0 || len(d.ConstraintChanged) > 0
}

// IsEmpty reports whether source and target already match.
func (d SchemaDiff) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.TypeChanged) == 0 && len(d.ConstraintChanged) == 0
}

// Reconciler diffs row-engine schema against column-engine schema and
// applies additive ALTERs or recreate-and-copy (§4.7). It operates on the
// two engine facades directly; it does not hold persistent state of its
// own.
type Reconciler struct {
	row    *rowengine.Engine
	column *columnengine.Engine
}

// NewReconciler constructs a Reconciler bound to both engines.
func NewReconciler(row *rowengine.Engine, column *columnengine.Engine) *Reconciler {
	return &Reconciler{row: row, column: column}
}

var typeAliases = map[string]string{
	"INTEGER": "INTEGER", "INT": "INTEGER", "BIGINT": "INTEGER", "SMALLINT": "INTEGER", "TINYINT": "INTEGER",
	"REAL": "REAL", "FLOAT": "REAL", "DOUBLE": "REAL", "DECIMAL": "REAL",
	"TEXT": "TEXT", "VARCHAR": "TEXT", "CHAR": "TEXT", "STRING": "TEXT",
	"BLOB": "BLOB", "BINARY": "BLOB",
}

// NormalizeType maps an engine-native type name to the normalized form of
// §4.7's alias table, for cross-engine comparison.
func NormalizeType(t string) string {
	base := strings.ToUpper(strings.TrimSpace(t))
	if idx := strings.IndexByte(base, '('); idx >= 0 {
		base = base[:idx]
	}
	if norm, ok := typeAliases[base]; ok {
		return norm
	}
	return "TEXT"
}

// TranslateRowToColumn maps a row-engine type to its column-engine
// equivalent per §4.7's translation table.
func TranslateRowToColumn(rowType string) string {
	switch NormalizeType(rowType) {
	case "INTEGER":
		return "BIGINT"
	case "REAL":
		return "DOUBLE"
	case "TEXT":
		return "VARCHAR"
	case "BLOB":
		return "BLOB"
	default:
		return "VARCHAR"
	}
}

// Diff builds the four disjoint column lists of §4.7's diff algorithm.
func Diff(source, target *schema.Table) SchemaDiff {
	srcByName := make(map[string]schema.Column, len(source.Columns))
	for _, c := range source.Columns {
		srcByName[c.Name] = c
	}
	tgtByName := make(map[string]schema.Column, len(target.Columns))
	for _, c := range target.Columns {
		tgtByName[c.Name] = c
	}

	var diff SchemaDiff
	for name, sc := range srcByName {
		if _, ok := tgtByName[name]; !ok {
			diff.Added = append(diff.Added, sc)
		}
	}
	for name, tc := range tgtByName {
		if _, ok := srcByName[name]; !ok {
			diff.Removed = append(diff.Removed, tc)
		}
	}
	for name, sc := range srcByName {
		tc, ok := tgtByName[name]
		if !ok {
			continue
		}
		if NormalizeType(sc.Type) != NormalizeType(tc.Type) {
			diff.TypeChanged = append(diff.TypeChanged, sc)
			continue
		}
		if sc.Nullable != tc.Nullable || sc.PrimaryKey != tc.PrimaryKey {
			diff.ConstraintChanged = append(diff.ConstraintChanged, sc)
		}
	}
	return diff
}

// Reconcile ensures the target (column-engine) table exists and matches
// source (row-engine) schema, applying the diff policy of §4.7. It
// returns whether any schema change was made.
func (r *Reconciler) Reconcile(ctx context.Context, table string) (bool, error) {
	source, err := r.row.DescribeTable(ctx, table)
	if err != nil {
		return false, &errs.SchemaConflict{Table: table, Err: err}
	}

	exists, err := r.column.TableExists(ctx, table)
	if err != nil {
		return false, &errs.SchemaConflict{Table: table, Err: err}
	}
	if !exists {
		if err := r.createTarget(ctx, table, source); err != nil {
			return false, &errs.SchemaConflict{Table: table, Err: err}
		}
		log.Info("created target table", "table", table)
		return true, nil
	}

	target, err := r.column.DescribeTable(ctx, table)
	if err != nil {
		return false, &errs.SchemaConflict{Table: table, Err: err}
	}

	diff := Diff(source, target)
	if diff.IsEmpty() {
		return false, nil
	}

	if err := r.apply(ctx, table, source, diff); err != nil {
		// One automatic recreate attempt; second failure surfaces (§7).
		if err2 := r.apply(ctx, table, source, diff); err2 != nil {
			return false, &errs.SchemaConflict{Table: table, Err: err2}
		}
	}
	log.Info("reconciled schema drift", "table", table, "added", len(diff.Added),
		"removed", len(diff.Removed), "type_changed", len(diff.TypeChanged),
		"constraint_changed", len(diff.ConstraintChanged))
	return true, nil
}

func (r *Reconciler) createTarget(ctx context.Context, table string, source *schema.Table) error {
	cols := make([]string, len(source.Columns))
	for i, c := range source.Columns {
		cols[i] = columnDef(c)
	}
	var pkClause string
	if len(source.PrimaryKey) > 0 {
		pkClause = fmt.Sprintf(", PRIMARY KEY (%s)", strings.Join(quoteAll(source.PrimaryKey), ", "))
	}
	createSQL := fmt.Sprintf("CREATE TABLE %s (%s%s)",
		columnengine.QuoteIdent(table), strings.Join(cols, ", "), pkClause)
	_, err := r.column.Exec(ctx, createSQL)
	return err
}

func columnDef(c schema.Column) string {
	def := fmt.Sprintf("%s %s", columnengine.QuoteIdent(c.Name), TranslateRowToColumn(c.Type))
	if !c.Nullable {
		def += " NOT NULL"
	}
	if c.HasDefault {
		def += " DEFAULT " + c.Default
	}
	return def
}

// apply applies the §4.7 apply policy: additive ALTER TABLE ADD COLUMN for
// purely-added columns; full recreate-and-copy when any column was
// removed, type-changed, or constraint-changed.
func (r *Reconciler) apply(ctx context.Context, table string, source *schema.Table, diff SchemaDiff) error {
	if !diff.NeedsRecreate() {
		for _, c := range diff.Added {
			alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", columnengine.QuoteIdent(table), columnDef(c))
			if _, err := r.column.Exec(ctx, alter); err != nil {
				return err
			}
		}
		return nil
	}
	return r.recreate(ctx, table, source)
}

// recreate implements the recreate-and-copy path: create `<table>_temp`
// with the current source schema, copy the intersection of columns from
// the old target, drop the old target, rename temp.
func (r *Reconciler) recreate(ctx context.Context, table string, source *schema.Table) error {
	tempTable := table + "_temp"

	oldTarget, err := r.column.DescribeTable(ctx, table)
	if err != nil {
		return err
	}
	oldCols := make(map[string]bool, len(oldTarget.Columns))
	for _, c := range oldTarget.Columns {
		oldCols[c.Name] = true
	}

	cols := make([]string, len(source.Columns))
	var shared []string
	for i, c := range source.Columns {
		cols[i] = columnDef(c)
		if oldCols[c.Name] {
			shared = append(shared, c.Name)
		}
	}
	var pkClause string
	if len(source.PrimaryKey) > 0 {
		pkClause = fmt.Sprintf(", PRIMARY KEY (%s)", strings.Join(quoteAll(source.PrimaryKey), ", "))
	}

	createSQL := fmt.Sprintf("CREATE TABLE %s (%s%s)",
		columnengine.QuoteIdent(tempTable), strings.Join(cols, ", "), pkClause)
	if _, err := r.column.Exec(ctx, createSQL); err != nil {
		return err
	}

	if len(shared) > 0 {
		quotedShared := quoteAll(shared)
		insertSQL, args, err := sq.Insert(columnengine.QuoteIdent(tempTable)).
			Columns(quotedShared...).
			Select(sq.Select(quotedShared...).From(columnengine.QuoteIdent(table))).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := r.column.Exec(ctx, insertSQL, args...); err != nil {
			return err
		}
	}

	if _, err := r.column.Exec(ctx, fmt.Sprintf("DROP TABLE %s", columnengine.QuoteIdent(table))); err != nil {
		return err
	}
	if _, err := r.column.Exec(ctx, fmt.Sprintf("ALTER TABLE %s RENAME TO %s",
		columnengine.QuoteIdent(tempTable), columnengine.QuoteIdent(table))); err != nil {
		return err
	}
	return nil
}

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = columnengine.QuoteIdent(n)
	}
	return out
}
