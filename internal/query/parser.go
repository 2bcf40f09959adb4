// Package query is the SQL parser/classifier (C3), router (C4), and
// cross-engine executor (C5). The classification dispatch is modeled on
// mycelicmemory's internal/search.SearchType enum-and-options shape,
// generalized here to a tagged-variant classification over SQL text.
package query

import (
	"regexp"
	"strings"
	"sync"

	"github.com/lumos-db/lumosdb/internal/errs"
	"github.com/lumos-db/lumosdb/internal/logging"
)

var log = logging.GetLogger("query")

// Classification is the tagged variant over statement shapes (§3 "Query
// classification").
type Classification int

const (
	ClassOther Classification = iota
	ClassSelect
	ClassInsert
	ClassUpdate
	ClassDelete
	ClassSchemaChange
)

func (c Classification) String() string {
	switch c {
	case ClassSelect:
		return "select"
	case ClassInsert:
		return "insert"
	case ClassUpdate:
		return "update"
	case ClassDelete:
		return "delete"
	case ClassSchemaChange:
		return "schema_change"
	default:
		return "other"
	}
}

// ParamKind tags a Param's variant (§3 "Query parameter").
type ParamKind int

const (
	ParamNull ParamKind = iota
	ParamInteger
	ParamReal
	ParamText
	ParamBlob
)

// Param is a positionally-bound query parameter.
type Param struct {
	Kind    ParamKind
	Integer int64
	Real    float64
	Text    string
	Blob    []byte
}

// Analysis is the full result of classifying one SQL statement: its
// classification, the analytical flag, the referenced table set, and a
// rule-based cost estimate.
type Analysis struct {
	Classification Classification
	Analytical     bool
	Tables         []string // deduplicated, lower-cased, insertion order
	Cost           int
	Normalized     string
}

// Parser owns its own classification cache, per spec.md §9's
// "mapping-owning-data" note: never a package-level global, so the Router
// that owns a Parser instance controls its lifetime.
type Parser struct {
	mu    sync.Mutex
	cache map[string]Analysis
}

// NewParser returns a Parser with an empty classification cache.
func NewParser() *Parser {
	return &Parser{cache: make(map[string]Analysis)}
}

// Analyze normalizes, classifies, flags, extracts tables from, and costs a
// SQL statement, caching the result keyed by the raw (unnormalized) text
// (§4.1 "Cache classification keyed by the raw text"). Parser errors
// (ParseError, EmptyQuery) are never cached (§7 "Parser cache never stores
// error classifications").
func (p *Parser) Analyze(sql string) (Analysis, error) {
	p.mu.Lock()
	if a, ok := p.cache[sql]; ok {
		p.mu.Unlock()
		return a, nil
	}
	p.mu.Unlock()

	norm, err := normalize(sql)
	if err != nil {
		return Analysis{}, err
	}
	if norm == "" {
		return Analysis{}, errs.ErrEmptyQuery
	}

	upper := strings.ToUpper(norm)
	a := Analysis{
		Classification: classify(upper),
		Analytical:     isAnalytical(upper),
		Tables:         extractTables(upper),
		Cost:           estimateCost(upper),
		Normalized:     norm,
	}

	p.mu.Lock()
	p.cache[sql] = a
	p.mu.Unlock()
	return a, nil
}

// normalize strips line/block comments, collapses whitespace runs to a
// single space, and trims, while preserving string/identifier quoting
// verbatim (§4.1: a state machine tracks in-quote state; backslash before
// the quote escapes it).
func normalize(sql string) (string, error) {
	var out strings.Builder
	runes := []rune(sql)
	n := len(runes)

	inSingle, inDouble := false, false
	lastWasSpace := false

	for i := 0; i < n; i++ {
		c := runes[i]

		if inSingle {
			out.WriteRune(c)
			if c == '\\' && i+1 < n {
				out.WriteRune(runes[i+1])
				i++
				continue
			}
			if c == '\'' {
				inSingle = false
			}
			lastWasSpace = false
			continue
		}
		if inDouble {
			out.WriteRune(c)
			if c == '\\' && i+1 < n {
				out.WriteRune(runes[i+1])
				i++
				continue
			}
			if c == '"' {
				inDouble = false
			}
			lastWasSpace = false
			continue
		}

		// Line comment.
		if c == '-' && i+1 < n && runes[i+1] == '-' {
			for i < n && runes[i] != '\n' {
				i++
			}
			continue
		}
		// Block comment.
		if c == '/' && i+1 < n && runes[i+1] == '*' {
			i += 2
			closed := false
			for i+1 < n {
				if runes[i] == '*' && runes[i+1] == '/' {
					i++
					closed = true
					break
				}
				i++
			}
			if !closed {
				return "", &errs.ParseError{SQL: sql, Reason: "unterminated block comment"}
			}
			continue
		}

		if c == '\'' {
			inSingle = true
			out.WriteRune(c)
			lastWasSpace = false
			continue
		}
		if c == '"' {
			inDouble = true
			out.WriteRune(c)
			lastWasSpace = false
			continue
		}

		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			if !lastWasSpace && out.Len() > 0 {
				out.WriteRune(' ')
				lastWasSpace = true
			}
			continue
		}

		out.WriteRune(c)
		lastWasSpace = false
	}

	if inSingle || inDouble {
		return "", &errs.ParseError{SQL: sql, Reason: "unterminated quote"}
	}

	return strings.TrimSpace(out.String()), nil
}

// classify uppercases the first token of the normalized text and maps it
// to a Classification (§4.1).
func classify(upperNorm string) Classification {
	first := upperNorm
	if idx := strings.IndexByte(upperNorm, ' '); idx >= 0 {
		first = upperNorm[:idx]
	}
	switch first {
	case "SELECT":
		return ClassSelect
	case "INSERT":
		return ClassInsert
	case "UPDATE":
		return ClassUpdate
	case "DELETE":
		return ClassDelete
	case "CREATE", "ALTER", "DROP":
		return ClassSchemaChange
	default:
		return ClassOther
	}
}

var aggregatePattern = regexp.MustCompile(`\b(COUNT|SUM|AVG|MIN|MAX|STDDEV|VARIANCE|PERCENTILE)\(`)

var analyticalClauses = []string{
	" GROUP BY ", " HAVING ", " ORDER BY ", " LIMIT ", " JOIN ", " UNION ",
	" INTERSECT ", " EXCEPT ", " OVER(", " PARTITION BY ",
}

// isAnalytical implements §4.1's analytical-flag predicate. The padded
// text (leading/trailing space) lets the clause markers match clauses at
// the very start or end of the statement.
func isAnalytical(upperNorm string) bool {
	padded := " " + upperNorm + " "
	for _, clause := range analyticalClauses {
		if strings.Contains(padded, clause) {
			return true
		}
	}
	return aggregatePattern.MatchString(upperNorm)
}

var clauseStarters = []string{"WHERE", "GROUP", "HAVING", "ORDER", "LIMIT", "ON", "USING", "CROSSENGINE"}

// extractTables scans FROM/JOIN clauses for comma-separated table
// references, strips aliases, ignores parenthesized subqueries, and
// returns the deduplicated lower-cased set in first-seen order (§4.1,
// §8 "deduplicated set of identifiers appearing in FROM/JOIN positions").
func extractTables(upperNorm string) []string {
	seen := make(map[string]bool)
	var out []string

	tokens := strings.Fields(upperNorm)
	for i := 0; i < len(tokens); i++ {
		if tokens[i] != "FROM" && tokens[i] != "JOIN" {
			continue
		}
		j := i + 1
		depth := 0
		var items []string
		var cur strings.Builder
		for ; j < len(tokens); j++ {
			tok := tokens[j]
			opens := strings.Count(tok, "(")
			closes := strings.Count(tok, ")")
			if depth == 0 && opens > 0 {
				// Parenthesized subquery begins: skip until balanced.
				depth += opens - closes
				continue
			}
			if depth > 0 {
				depth += opens - closes
				continue
			}
			if tok == "FROM" || tok == "JOIN" {
				// Leave the next FROM/JOIN clause to the outer scan.
				break
			}
			if isClauseStarter(tok) {
				break
			}
			if strings.HasSuffix(tok, ",") {
				cur.WriteString(tok[:len(tok)-1])
				items = append(items, cur.String())
				cur.Reset()
				continue
			}
			if cur.Len() > 0 {
				cur.WriteByte(' ')
			}
			cur.WriteString(tok)
		}
		if cur.Len() > 0 {
			items = append(items, cur.String())
		}
		for _, item := range items {
			name := firstIdentifier(item)
			if name == "" {
				continue
			}
			lower := strings.ToLower(name)
			if !seen[lower] {
				seen[lower] = true
				out = append(out, lower)
			}
		}
		i = j - 1
	}
	return out
}

func isClauseStarter(tok string) bool {
	for _, s := range clauseStarters {
		if tok == s || strings.HasPrefix(tok, s+"(") {
			return true
		}
	}
	return false
}

// firstIdentifier strips an explicit "AS alias" or implicit trailing-alias
// from a FROM/JOIN item, returning the bare table name.
func firstIdentifier(item string) string {
	fields := strings.Fields(item)
	if len(fields) == 0 {
		return ""
	}
	name := fields[0]
	// "table AS alias" or "table alias": drop everything after the name.
	return strings.Trim(name, `"`)
}

// estimateCost applies the rule-based cost model of §4.1.
func estimateCost(upperNorm string) int {
	cost := 100
	cost += 1000 * strings.Count(upperNorm, " JOIN ")
	if strings.Contains(upperNorm, " GROUP BY ") {
		cost += 500
	}
	if strings.Contains(upperNorm, " HAVING ") {
		cost += 300
	}
	if strings.Contains(upperNorm, " ORDER BY ") {
		cost += 200
	}
	if strings.Contains(upperNorm, "DISTINCT") {
		cost += 200
	}
	nested := strings.Count(upperNorm, "SELECT") - 1
	if nested > 0 {
		cost += 500 * nested
	}
	return cost
}
