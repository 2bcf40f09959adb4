package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lumos-db/lumosdb/internal/columnengine"
	"github.com/lumos-db/lumosdb/internal/query"
	"github.com/lumos-db/lumosdb/internal/rowengine"
)

var queryCmd = &cobra.Command{
	Use:   "query [sql]",
	Short: "Route and execute a SQL statement against the core engines",
	Long: `Routes the given SQL through the Query Router (classification,
analytical flag, cross-engine detection) and executes the resulting Plan,
printing the result as JSON. With no argument, reads statements one per
line from stdin until EOF (a minimal REPL).`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		row, column := openEngines(cfg)
		defer row.Close()
		defer column.Close()

		runner := &queryRunner{
			row:         row,
			column:      column,
			router:      query.NewRouter(row, column),
			crossEngine: query.NewCrossEngineExecutor(row, column),
		}
		ctx := context.Background()

		if len(args) == 1 {
			runner.run(ctx, args[0])
			return
		}

		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			runner.run(ctx, line)
		}
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
}

// queryRunner holds the engine handles the CLI needs to execute a routed
// Plan, mirroring internal/restapi's executePlan but kept separate since
// both row/column engine handles are unexported Router fields.
type queryRunner struct {
	row         *rowengine.Engine
	column      *columnengine.Engine
	router      *query.Router
	crossEngine *query.CrossEngineExecutor
}

func (r *queryRunner) run(ctx context.Context, sqlText string) {
	plan, analysis, err := r.router.Route(ctx, sqlText)
	if err != nil {
		fmt.Fprintf(os.Stderr, "routing error: %v\n", err)
		return
	}

	result, err := r.execute(ctx, sqlText, plan, analysis)
	if err != nil {
		fmt.Fprintf(os.Stderr, "execution error: %v\n", err)
		return
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(map[string]any{
		"classification": analysis.Classification.String(),
		"analytical":     analysis.Analytical,
		"cross_engine":   plan.CrossEngine,
		"rows":           result.Rows,
		"affected":       result.Affected,
	})
}

func (r *queryRunner) execute(ctx context.Context, sqlText string, plan query.Plan, analysis query.Analysis) (query.QueryResult, error) {
	if plan.CrossEngine {
		return r.crossEngine.Execute(ctx, sqlText, analysis.Tables)
	}

	var affected int64
	var rows []map[string]any
	for _, target := range plan.Targets {
		a, rs, err := r.execTarget(ctx, target, sqlText)
		if err != nil {
			return query.QueryResult{}, err
		}
		affected += a
		if rs != nil {
			rows = rs
		}
	}
	return query.QueryResult{Rows: rows, Affected: affected, Empty: rows == nil}, nil
}

func (r *queryRunner) execTarget(ctx context.Context, target query.Target, sqlText string) (int64, []map[string]any, error) {
	isSelect := strings.HasPrefix(strings.TrimSpace(strings.ToUpper(sqlText)), "SELECT")

	if !isSelect {
		var (
			res sql.Result
			err error
		)
		if target == query.TargetColumn {
			res, err = r.column.Exec(ctx, sqlText)
		} else {
			res, err = r.row.Exec(ctx, sqlText)
		}
		if err != nil {
			return 0, nil, err
		}
		affected, _ := res.RowsAffected()
		return affected, nil, nil
	}

	var (
		rows *sql.Rows
		err  error
	)
	if target == query.TargetColumn {
		rows, err = r.column.Query(ctx, sqlText)
	} else {
		rows, err = r.row.Query(ctx, sqlText)
	}
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return 0, nil, err
	}
	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return 0, nil, err
		}
		rec := make(map[string]any, len(cols))
		for i, c := range cols {
			rec[c] = vals[i]
		}
		out = append(out, rec)
	}
	return 0, out, rows.Err()
}
