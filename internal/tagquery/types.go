package tagquery

import "strings"

// Query is a node in a tag-query tree.
//
// This is a sealed interface - only types in this package implement it.
type Query interface {
	queryNode()
}

// PlaintextPrefix marks a plaintext tag name in filters and on the CLI.
const PlaintextPrefix = "~"

// TagName names a tag and records whether its value is stored in the clear.
type TagName struct {
	Name      string
	Plaintext bool
}

// Encrypted returns the TagName for an encrypted tag.
func Encrypted(name string) TagName {
	return TagName{Name: name}
}

// Plaintext returns the TagName for a plaintext tag.
func Plaintext(name string) TagName {
	return TagName{Name: name, Plaintext: true}
}

// ParseTagName interprets a leading "~" as the plaintext marker.
func ParseTagName(s string) TagName {
	if strings.HasPrefix(s, PlaintextPrefix) {
		return Plaintext(strings.TrimPrefix(s, PlaintextPrefix))
	}
	return Encrypted(s)
}

// String renders the name with its plaintext marker.
func (t TagName) String() string {
	if t.Plaintext {
		return PlaintextPrefix + t.Name
	}
	return t.Name
}

// CompareOp is a binary comparison between a tag value and a literal.
type CompareOp int

const (
	OpEq CompareOp = iota
	OpNeq
	OpGt
	OpGte
	OpLt
	OpLte
	OpLike
)

// SQL returns the SQL operator for op.
func (op CompareOp) SQL() string {
	switch op {
	case OpEq:
		return "="
	case OpNeq:
		return "!="
	case OpGt:
		return ">"
	case OpGte:
		return ">="
	case OpLt:
		return "<"
	case OpLte:
		return "<="
	case OpLike:
		return "LIKE"
	default:
		return "?"
	}
}

// String returns the JSON operator name for op.
func (op CompareOp) String() string {
	switch op {
	case OpEq:
		return "$eq"
	case OpNeq:
		return "$neq"
	case OpGt:
		return "$gt"
	case OpGte:
		return "$gte"
	case OpLt:
		return "$lt"
	case OpLte:
		return "$lte"
	case OpLike:
		return "$like"
	default:
		return "$unknown"
	}
}

// IsOrdered reports whether op depends on value ordering or pattern matching,
// which only plaintext values support.
func (op CompareOp) IsOrdered() bool {
	switch op {
	case OpGt, OpGte, OpLt, OpLte, OpLike:
		return true
	default:
		return false
	}
}

// Compare matches entries having tag Tag whose value compares to Value.
//
//	Compare{Op: OpEq, Tag: Encrypted("color"), Value: "red"}
type Compare struct {
	Op    CompareOp
	Tag   TagName
	Value string
}

func (Compare) queryNode() {}

// Between matches plaintext tag values in the closed range [Low, High].
type Between struct {
	Tag  TagName
	Low  string
	High string
}

func (Between) queryNode() {}

// In matches entries whose tag value is one of Values.
// With Negate set it matches entries having the tag with any other value.
type In struct {
	Tag    TagName
	Values []string
	Negate bool
}

func (In) queryNode() {}

// Exist matches entries that carry the tag, whatever its value.
type Exist struct {
	Tag TagName
}

func (Exist) queryNode() {}

// And matches when every sub-query matches. Empty And matches everything.
type And struct {
	Queries []Query
}

func (And) queryNode() {}

// Or matches when any sub-query matches. Empty Or matches nothing.
type Or struct {
	Queries []Query
}

func (Or) queryNode() {}

// Not inverts its sub-query.
type Not struct {
	Query Query
}

func (Not) queryNode() {}

// Eq is shorthand for an equality comparison; name may carry the "~" prefix.
func Eq(name, value string) Compare {
	return Compare{Op: OpEq, Tag: ParseTagName(name), Value: value}
}

// Neq is shorthand for an inequality comparison.
func Neq(name, value string) Compare {
	return Compare{Op: OpNeq, Tag: ParseTagName(name), Value: value}
}

// AllOf is shorthand for And.
func AllOf(qs ...Query) And {
	return And{Queries: qs}
}

// AnyOf is shorthand for Or.
func AnyOf(qs ...Query) Or {
	return Or{Queries: qs}
}

// Negate is shorthand for Not.
func Negate(q Query) Not {
	return Not{Query: q}
}

// Deref returns the value form of pointer nodes so callers only need to switch
// on value types. A nil pointer becomes a nil Query.
func Deref(q Query) Query {
	switch n := q.(type) {
	case *Compare:
		if n == nil {
			return nil
		}
		return *n
	case *Between:
		if n == nil {
			return nil
		}
		return *n
	case *In:
		if n == nil {
			return nil
		}
		return *n
	case *Exist:
		if n == nil {
			return nil
		}
		return *n
	case *And:
		if n == nil {
			return nil
		}
		return *n
	case *Or:
		if n == nil {
			return nil
		}
		return *n
	case *Not:
		if n == nil {
			return nil
		}
		return *n
	default:
		return q
	}
}
