package query

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/lumos-db/lumosdb/internal/columnengine"
	"github.com/lumos-db/lumosdb/internal/errs"
	"github.com/lumos-db/lumosdb/internal/rowengine"
)

// CrossEngineExecutor implements §4.3: stage each fragment's result into a
// Column-engine temporary, rewrite the outer query to reference it, and
// finish in the Column engine.
type CrossEngineExecutor struct {
	row    *rowengine.Engine
	column *columnengine.Engine
}

// NewCrossEngineExecutor constructs an executor holding both engine facades.
func NewCrossEngineExecutor(row *rowengine.Engine, column *columnengine.Engine) *CrossEngineExecutor {
	return &CrossEngineExecutor{row: row, column: column}
}

type engineTag int

const (
	engineRow engineTag = iota
	engineColumn
)

var crossEngineMarker = regexp.MustCompile(`(?is)CROSSENGINE\s*\(\s*(.*)\s*\)\s*$`)

// fragment is one (engine, sql) pair extracted from an explicit CROSSENGINE
// form or synthesized for an implicit split.
type fragment struct {
	engine engineTag
	sql    string
	table  string // the table name this fragment stands in for (implicit split only)
}

// Execute runs the stage/rewrite/finish algorithm of spec.md §4.3. On
// completion, or on any fragment's failure, all staged temporaries are
// dropped (deferred), and the first fragment error is surfaced wrapped as
// errs.DependencyError.
func (x *CrossEngineExecutor) Execute(ctx context.Context, sqlText string, tables []string) (QueryResult, error) {
	fragments, outer, err := x.planFragments(ctx, sqlText, tables)
	if err != nil {
		return QueryResult{}, err
	}

	var staged []string
	defer func() {
		for _, name := range staged {
			if _, err := x.column.Exec(context.Background(), fmt.Sprintf(`DROP TABLE IF EXISTS %s`, columnengine.QuoteIdent(name))); err != nil {
				log.Error("failed to drop staged cross-engine temporary", "table", name, "error", err)
			}
		}
	}()

	rewritten := outer
	isExplicit := strings.Contains(outer, "%PLACEHOLDER%")

	for _, frag := range fragments {
		tempName := fmt.Sprintf("_xe_%s", strings.ReplaceAll(uuid.NewString(), "-", ""))
		staged = append(staged, tempName)

		switch frag.engine {
		case engineRow:
			rows, err := x.row.Query(ctx, frag.sql)
			if err != nil {
				return QueryResult{}, &errs.DependencyError{Fragment: frag.sql, Err: err}
			}
			cols, recs, err := materializeRows(rows)
			if err != nil {
				return QueryResult{}, &errs.DependencyError{Fragment: frag.sql, Err: err}
			}
			if err := stageIntoColumn(ctx, x.column, tempName, cols, recs); err != nil {
				return QueryResult{}, &errs.DependencyError{Fragment: frag.sql, Err: err}
			}
		case engineColumn:
			cols, recs, err := x.column.FetchAsStrings(ctx, frag.sql)
			if err != nil {
				return QueryResult{}, &errs.DependencyError{Fragment: frag.sql, Err: err}
			}
			rows := make([][]any, len(recs))
			for i, r := range recs {
				row := make([]any, len(r))
				for j, v := range r {
					row[j] = v
				}
				rows[i] = row
			}
			if err := stageIntoColumn(ctx, x.column, tempName, cols, rows); err != nil {
				return QueryResult{}, &errs.DependencyError{Fragment: frag.sql, Err: err}
			}
		}

		if frag.table != "" {
			rewritten = replaceTableReference(rewritten, frag.table, tempName)
		}
	}

	if isExplicit {
		// Explicit CROSSENGINE(...) form: no join condition is carried in
		// the outer text, so the finishing query selects across all staged
		// fragments (callers encode the join predicate in a wrapping SELECT
		// of their own when one is needed; a bare CROSSENGINE(...) call
		// finishes as a plain multi-table select).
		rewritten = fmt.Sprintf("SELECT * FROM %s", strings.Join(staged, ", "))
	}

	resultRows, err := x.column.Query(ctx, rewritten)
	if err != nil {
		return QueryResult{}, &errs.DependencyError{Fragment: rewritten, Err: err}
	}
	_, recs, err := materializeRows(resultRows)
	if err != nil {
		return QueryResult{}, &errs.DependencyError{Fragment: rewritten, Err: err}
	}
	return QueryResult{Rows: recs}, nil
}

// planFragments either parses the explicit `CROSSENGINE(Engine: sql, …)`
// form, or, for an implicit split, synthesizes one row-engine subquery per
// referenced row-resident table that projects all its columns; tables
// already in the column engine are left in the outer query as they are.
func (x *CrossEngineExecutor) planFragments(ctx context.Context, sqlText string, tables []string) ([]fragment, string, error) {
	if m := crossEngineMarker.FindStringSubmatch(sqlText); m != nil {
		frags, err := parseExplicitFragments(m[1])
		if err != nil {
			return nil, "", err
		}
		outer := crossEngineMarker.ReplaceAllString(sqlText, "%PLACEHOLDER%")
		return frags, outer, nil
	}

	rowTables, err := x.row.ListTables(ctx)
	if err != nil {
		return nil, "", err
	}
	rowSet := toLowerSet(rowTables)

	var frags []fragment
	for _, t := range tables {
		if rowSet[strings.ToLower(t)] {
			frags = append(frags, fragment{
				engine: engineRow,
				sql:    fmt.Sprintf("SELECT * FROM %s", t),
				table:  t,
			})
		}
	}
	return frags, sqlText, nil
}

// parseExplicitFragments splits a `Engine: sql, Engine: sql, …` body on
// top-level commas (respecting parentheses) and tags each by engine name.
func parseExplicitFragments(body string) ([]fragment, error) {
	parts := splitTopLevel(body, ',')
	frags := make([]fragment, 0, len(parts))
	for _, part := range parts {
		idx := strings.IndexByte(part, ':')
		if idx < 0 {
			return nil, &errs.ParseError{SQL: part, Reason: "CROSSENGINE fragment missing 'Engine:' prefix"}
		}
		engineName := strings.ToUpper(strings.TrimSpace(part[:idx]))
		sqlPart := strings.TrimSpace(part[idx+1:])
		var tag engineTag
		switch engineName {
		case "ROW":
			tag = engineRow
		case "COLUMN":
			tag = engineColumn
		default:
			return nil, &errs.ParseError{SQL: part, Reason: "unknown CROSSENGINE engine tag " + engineName}
		}
		frags = append(frags, fragment{engine: tag, sql: sqlPart})
	}
	return frags, nil
}

func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

var tableRefPattern = func(table string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(table) + `\b`)
}

func replaceTableReference(sqlText, table, replacement string) string {
	return tableRefPattern(table).ReplaceAllString(sqlText, replacement)
}

// stageIntoColumn creates a column-engine temporary table named tempName
// with all columns typed VARCHAR (simplest common denominator for staged
// query results) and bulk-ingests the fetched rows.
func stageIntoColumn(ctx context.Context, column *columnengine.Engine, tempName string, cols []string, rows [][]any) error {
	colDefs := make([]string, len(cols))
	for i, c := range cols {
		colDefs[i] = fmt.Sprintf("%s VARCHAR", columnengine.QuoteIdent(c))
	}
	createSQL := fmt.Sprintf("CREATE TABLE %s (%s)", columnengine.QuoteIdent(tempName), strings.Join(colDefs, ", "))
	if _, err := column.Exec(ctx, createSQL); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	stringRows := make([][]any, len(rows))
	for i, r := range rows {
		sr := make([]any, len(r))
		for j, v := range r {
			sr[j] = fmt.Sprintf("%v", v)
		}
		stringRows[i] = sr
	}
	_, err := column.BulkIngest(ctx, tempName, cols, stringRows, 1000)
	return err
}

// materializeRows scans *sql.Rows (shared shape between the row and
// column engine facades, both database/sql-based) into the Rows form of
// QueryResult.
func materializeRows(rows *sql.Rows) ([]string, []map[string]any, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		rec := make(map[string]any, len(cols))
		for i, c := range cols {
			rec[c] = vals[i]
		}
		out = append(out, rec)
	}
	return cols, out, rows.Err()
}
