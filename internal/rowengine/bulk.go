package rowengine

import (
	"context"
	"fmt"
	"strings"

	"github.com/lumos-db/lumosdb/internal/errs"
)

// BulkInsert inserts rows in chunks of batchSize, each chunk in its own
// transaction (spec C1: "bulk insert/update/delete batching").
func (e *Engine) BulkInsert(ctx context.Context, table string, columns []string, rows [][]any, batchSize int) (int64, error) {
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

		n, err := e.insertChunk(ctx, table, columns, chunk)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (e *Engine) insertChunk(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	tx, err := e.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = "?"
	}
	stmtText := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(quoteAll(columns), ","), strings.Join(placeholders, ","))

	stmt, err := tx.PrepareContext(ctx, stmtText)
	if err != nil {
		return 0, errs.WrapEngine("row", err)
	}
	defer stmt.Close()

	var n int64
	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return n, errs.WrapEngine("row", err)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return n, errs.WrapEngine("row", err)
	}
	return n, nil
}

// BulkUpdate applies per-row column updates keyed by primary key values, in
// chunks of batchSize, one transaction per chunk.
func (e *Engine) BulkUpdate(ctx context.Context, table string, pkColumns []string, setColumns []string, rows []UpdateRow, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = len(rows)
	}
	if batchSize <= 0 {
		return 0, nil
	}

	setClauses := make([]string, len(setColumns))
	for i, c := range setColumns {
		setClauses[i] = quoteIdent(c) + " = ?"
	}
	whereClauses := make([]string, len(pkColumns))
	for i, c := range pkColumns {
		whereClauses[i] = quoteIdent(c) + " = ?"
	}
	stmtText := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		quoteIdent(table), strings.Join(setClauses, ","), strings.Join(whereClauses, " AND "))

	var total int64
	for start := 0; start < len(rows); start += batchSize {
		end := min(start+batchSize, len(rows))
		chunk := rows[start:end]

		tx, err := e.Begin(ctx)
		if err != nil {
			return total, err
		}
		stmt, err := tx.PrepareContext(ctx, stmtText)
		if err != nil {
			tx.Rollback()
			return total, errs.WrapEngine("row", err)
		}

		ok := true
		for _, r := range chunk {
			args := append(append([]any{}, r.SetValues...), r.PKValues...)
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				ok = false
				stmt.Close()
				tx.Rollback()
				return total, errs.WrapEngine("row", err)
			}
			total++
		}
		stmt.Close()
		if ok {
			if err := tx.Commit(); err != nil {
				return total, errs.WrapEngine("row", err)
			}
		}
	}
	return total, nil
}

// UpdateRow pairs primary-key values with the new values for the configured
// set columns, used by BulkUpdate.
type UpdateRow struct {
	PKValues  []any
	SetValues []any
}

// BulkDelete deletes rows by primary key, in chunks of batchSize.
func (e *Engine) BulkDelete(ctx context.Context, table string, pkColumns []string, pkValues [][]any, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = len(pkValues)
	}
	if batchSize <= 0 {
		return 0, nil
	}

	whereClauses := make([]string, len(pkColumns))
	for i, c := range pkColumns {
		whereClauses[i] = quoteIdent(c) + " = ?"
	}
	stmtText := fmt.Sprintf("DELETE FROM %s WHERE %s", quoteIdent(table), strings.Join(whereClauses, " AND "))

	var total int64
	for start := 0; start < len(pkValues); start += batchSize {
		end := min(start+batchSize, len(pkValues))
		chunk := pkValues[start:end]

		tx, err := e.Begin(ctx)
		if err != nil {
			return total, err
		}
		stmt, err := tx.PrepareContext(ctx, stmtText)
		if err != nil {
			tx.Rollback()
			return total, errs.WrapEngine("row", err)
		}
		for _, pk := range chunk {
			if _, err := stmt.ExecContext(ctx, pk...); err != nil {
				stmt.Close()
				tx.Rollback()
				return total, errs.WrapEngine("row", err)
			}
			total++
		}
		stmt.Close()
		if err := tx.Commit(); err != nil {
			return total, errs.WrapEngine("row", err)
		}
	}
	return total, nil
}

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = quoteIdent(n)
	}
	return out
}
