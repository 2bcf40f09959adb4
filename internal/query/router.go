package query

import (
	"context"
	"strings"

	"github.com/lumos-db/lumosdb/internal/columnengine"
	"github.com/lumos-db/lumosdb/internal/rowengine"
)

// Target names one engine a Plan dispatches to.
type Target int

const (
	TargetRow Target = iota
	TargetColumn
)

func (t Target) String() string {
	if t == TargetColumn {
		return "column"
	}
	return "row"
}

// Plan is the Router's output: the statement's classification, analytical
// flag, and the ordered set of engines it must be executed against (§4.2).
type Plan struct {
	Classification Classification
	Analytical     bool
	Targets        []Target
	CrossEngine    bool
}

// Router owns the Parser and both engine facades exclusively (§3
// Ownership: "the Query Router exclusively owns the Parser and both
// Engine Facades").
type Router struct {
	parser *Parser
	row    *rowengine.Engine
	column *columnengine.Engine
}

// NewRouter constructs a Router with its own Parser instance.
func NewRouter(row *rowengine.Engine, column *columnengine.Engine) *Router {
	return &Router{parser: NewParser(), row: row, column: column}
}

// Route classifies sql and maps (classification, analytical, residency) to
// a Plan per the exhaustive routing table in spec.md §4.2.
func (r *Router) Route(ctx context.Context, sql string) (Plan, Analysis, error) {
	a, err := r.parser.Analyze(sql)
	if err != nil {
		return Plan{}, Analysis{}, err
	}

	plan := Plan{Classification: a.Classification, Analytical: a.Analytical}

	switch a.Classification {
	case ClassInsert, ClassUpdate, ClassDelete:
		plan.Targets = []Target{TargetRow}
	case ClassSelect:
		if a.Analytical {
			plan.Targets = []Target{TargetColumn}
		} else {
			plan.Targets = []Target{TargetRow}
		}
	case ClassSchemaChange:
		plan.Targets = []Target{TargetRow, TargetColumn}
	default:
		plan.Targets = []Target{TargetRow}
	}

	crossEngine, err := r.IsCrossEngine(ctx, sql, a)
	if err != nil {
		return Plan{}, Analysis{}, err
	}
	plan.CrossEngine = crossEngine

	log.Debug("routed query", "classification", a.Classification, "analytical", a.Analytical,
		"targets", plan.Targets, "cross_engine", plan.CrossEngine)
	return plan, a, nil
}

// IsCrossEngine implements the independent predicate of §4.2: true if the
// normalized text carries the `CROSSENGINE(` marker, OR the referenced
// tables split across the two engines' catalogs. Per spec.md §9's
// "Unclear behaviors" note, either signal alone is sufficient (OR
// semantics) — this is a deliberate, documented choice, not an omission.
func (r *Router) IsCrossEngine(ctx context.Context, sql string, a Analysis) (bool, error) {
	if strings.Contains(a.Normalized, "CROSSENGINE(") || strings.Contains(strings.ToUpper(a.Normalized), "CROSSENGINE(") {
		return true, nil
	}
	if len(a.Tables) < 2 {
		return false, nil
	}

	rowTables, err := r.row.ListTables(ctx)
	if err != nil {
		return false, err
	}
	colTables, err := r.column.ListTables(ctx)
	if err != nil {
		return false, err
	}
	rowSet := toLowerSet(rowTables)
	colSet := toLowerSet(colTables)

	sawRow, sawColumn := false, false
	for _, t := range a.Tables {
		if rowSet[t] {
			sawRow = true
		}
		if colSet[t] {
			sawColumn = true
		}
	}
	return sawRow && sawColumn, nil
}

func toLowerSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[strings.ToLower(n)] = true
	}
	return set
}
