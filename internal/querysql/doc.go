// Package querysql builds parameterized SQL for the encrypted entry tables.
//
// Statements are assembled from fragments that use the backend-neutral marker
// "$$" for every bound value. ReplacePlaceholders rewrites markers into the
// dialect's placeholder syntax while threading a 1-based argument index, so
// fragments built by different components can be concatenated and still bind
// in order.
//
// # Components
//
//	Params              - ordered argument collector for one statement
//	ReplacePlaceholders - marker rewriter shared by every fragment
//	LimitQuery          - appends the dialect's offset/limit clause
//	EncodeTagFilter     - compiles a tagquery.Query into an encrypted clause
//	ExtendQuery         - appends a compiled filter, ordering and pagination
//
// # Argument Order
//
// Arguments are pushed in the textual order of their placeholders: base query
// arguments, then filter arguments, then offset, then limit. Callers must not
// push into Params between building a fragment and appending it.
package querysql
