// Package schema holds the table/column model shared by the row engine,
// the column engine, and the schema reconciler (§3 Data model: "Table
// (row or column engine)").
package schema

// Column describes one column of a table, tagged with the declaring
// engine's native type name (normalized for comparison by the reconciler,
// not here).
type Column struct {
	Name          string
	Type          string // engine-native type name, e.g. "INTEGER", "VARCHAR"
	Nullable      bool
	Default       string // empty if none
	HasDefault    bool
	PrimaryKey    bool
	AutoIncrement bool
}

// Table describes a table resident in one engine.
//
// Invariant: a primary-key column is always non-null (enforced by callers
// that build a Table from live introspection; DescribeTable on both
// engines upholds it).
type Table struct {
	Name          string
	Columns       []Column
	PrimaryKey    []string // ordered PK column names
	EstimatedRows int64
	SampleRows    []map[string]any // optional, nil unless requested
}

// ColumnByName returns the column with the given name, or false if absent.
func (t *Table) ColumnByName(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns the ordered list of column names.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}
