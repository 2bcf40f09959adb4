package restapi

import (
	"context"
	"database/sql"

	"github.com/gin-gonic/gin"

	"github.com/lumos-db/lumosdb/internal/query"
)

type queryRequest struct {
	SQL string `json:"sql" binding:"required"`
}

type queryResponse struct {
	Classification string           `json:"classification"`
	Analytical     bool             `json:"analytical"`
	CrossEngine    bool             `json:"cross_engine"`
	Rows           []map[string]any `json:"rows,omitempty"`
	Affected       int64            `json:"affected,omitempty"`
}

// runQuery is POST /query: it routes sql through internal/query.Router and
// executes the resulting Plan against the engine(s) it names, matching the
// in-process Query Router 1:1 (SPEC_FULL.md §7).
func (s *Server) runQuery(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequestError(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	plan, analysis, err := s.queryRouter.Route(ctx, req.SQL)
	if err != nil {
		badRequestError(c, err.Error())
		return
	}

	result, err := s.executePlan(ctx, req.SQL, plan, analysis)
	if err != nil {
		internalError(c, err.Error())
		return
	}

	successResponse(c, queryResponse{
		Classification: analysis.Classification.String(),
		Analytical:     analysis.Analytical,
		CrossEngine:    plan.CrossEngine,
		Rows:           result.Rows,
		Affected:       result.Affected,
	})
}

// executePlan dispatches a routed Plan to the engine(s) it names. Cross-
// engine plans go through the CrossEngineExecutor's stage/rewrite/finish
// algorithm; single-target plans run directly against that engine; a
// schema-change plan (both engines) applies to each in turn.
func (s *Server) executePlan(ctx context.Context, sqlText string, plan query.Plan, analysis query.Analysis) (query.QueryResult, error) {
	if plan.CrossEngine {
		return s.crossEngine.Execute(ctx, sqlText, analysis.Tables)
	}

	if len(plan.Targets) > 1 {
		var affected int64
		for _, t := range plan.Targets {
			res, err := s.execOnTarget(ctx, t, sqlText)
			if err != nil {
				return query.QueryResult{}, err
			}
			affected += res.Affected
		}
		return query.QueryResult{Affected: affected, Empty: true}, nil
	}

	return s.execOnTarget(ctx, plan.Targets[0], sqlText)
}

func (s *Server) execOnTarget(ctx context.Context, target query.Target, sqlText string) (query.QueryResult, error) {
	if looksLikeSelect(sqlText) {
		var (
			rows *sql.Rows
			err  error
		)
		if target == query.TargetColumn {
			rows, err = s.column.Query(ctx, sqlText)
		} else {
			rows, err = s.row.Query(ctx, sqlText)
		}
		if err != nil {
			return query.QueryResult{}, err
		}
		return scanToResult(rows)
	}

	var (
		res sql.Result
		err error
	)
	if target == query.TargetColumn {
		res, err = s.column.Exec(ctx, sqlText)
	} else {
		res, err = s.row.Exec(ctx, sqlText)
	}
	if err != nil {
		return query.QueryResult{}, err
	}
	affected, _ := res.RowsAffected()
	return query.QueryResult{Affected: affected, Empty: true}, nil
}

func scanToResult(rows *sql.Rows) (query.QueryResult, error) {
	out, err := scanRows(rows)
	if err != nil {
		return query.QueryResult{}, err
	}
	return query.QueryResult{Rows: out}, nil
}

func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(map[string]any, len(cols))
		for i, col := range cols {
			rec[col] = vals[i]
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func looksLikeSelect(sqlText string) bool {
	for _, r := range sqlText {
		switch r {
		case ' ', '\t', '\n', '\r', '(':
			continue
		case 'S', 's':
			return true
		default:
			return false
		}
	}
	return false
}
