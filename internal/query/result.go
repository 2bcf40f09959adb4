package query

// QueryResult is the Either Rows/Affected/Empty sum type of §3 "Query
// result". Exactly one of Rows/Affected is meaningful, selected by Empty
// and whether Rows is non-nil.
type QueryResult struct {
	Rows     []map[string]any
	Affected int64
	Empty    bool
}
