package columnengine

import (
	"context"
	"fmt"
	"strconv"

	sq "github.com/Masterminds/squirrel"
	"github.com/lumos-db/lumosdb/internal/errs"
)

// BulkIngest inserts rows in chunks of batchSize, each chunk assembled as a
// single multi-row INSERT via squirrel and run in its own transaction
// (spec C2: "bulk ingest").
func (e *Engine) BulkIngest(ctx context.Context, table string, columns []string, rows [][]any, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = len(rows)
	}
	if batchSize <= 0 {
		return 0, nil
	}

	var total int64
	for start := 0; start < len(rows); start += batchSize {
		end := min(start+batchSize, len(rows))
		chunk := rows[start:end]

		n, err := e.ingestChunk(ctx, table, columns, chunk)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (e *Engine) ingestChunk(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	builder := StatementBuilder.Insert(quoteIdent(table)).Columns(quoteAll(columns)...)
	for _, row := range rows {
		builder = builder.Values(row...)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return 0, errs.WrapEngine("column", err)
	}

	tx, err := e.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return 0, errs.WrapEngine("column", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, errs.WrapEngine("column", err)
	}
	return int64(len(rows)), nil
}

// Truncate removes all rows from a table (used by the Full sync strategy).
func (e *Engine) Truncate(ctx context.Context, table string) error {
	_, err := e.Exec(ctx, fmt.Sprintf("DELETE FROM %s", quoteIdent(table)))
	return err
}

// FetchAsStrings runs query and materializes every column value as its
// string representation (spec C2: "string-materialized result fetch"),
// used by the cross-engine executor to read a column-engine fragment
// before staging it.
func (e *Engine) FetchAsStrings(ctx context.Context, query string, args ...any) ([]string, [][]string, error) {
	rows, err := e.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, errs.WrapEngine("column", err)
	}

	scanDest := make([]any, len(cols))
	rawVals := make([]any, len(cols))
	for i := range rawVals {
		scanDest[i] = &rawVals[i]
	}

	var out [][]string
	for rows.Next() {
		if err := rows.Scan(scanDest...); err != nil {
			return nil, nil, errs.WrapEngine("column", err)
		}
		rec := make([]string, len(cols))
		for i, v := range rawVals {
			rec[i] = stringify(v)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, errs.WrapEngine("column", err)
	}
	return cols, out, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(t)
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = quoteIdent(n)
	}
	return out
}
