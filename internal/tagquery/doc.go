// Package tagquery defines the tag-query tree consumed by the SQL filter
// compiler.
//
// A tag query is an immutable boolean expression over tag comparisons. It is
// backend- and encryption-agnostic: the compiler in internal/querysql decides
// how names and values are encrypted and how each node becomes SQL.
//
// # Sealed Interface
//
// Query is sealed with a marker method so backends can switch exhaustively:
//
//	switch q := query.(type) {
//	case And, Or, Not:
//	    // combinators
//	case Compare, Between, In, Exist:
//	    // leaves
//	}
//
// # Plaintext Tags
//
// A tag name written "~name" refers to a plaintext tag. Its value is stored
// unencrypted, which is what makes range and LIKE comparisons meaningful.
// Encrypted tag values only support equality, inequality, membership and
// existence; Validate rejects anything else.
//
// # JSON Encoding
//
// Decode reads the WQL-style JSON encoding used by the CLI:
//
//	{"color": "red", "~size": {"$gt": "10"}, "$not": {"archived": "1"}}
//
// Decode is a convenience for tooling; the compiler only ever sees trees.
package tagquery
