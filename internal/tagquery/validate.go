package tagquery

import (
	"fmt"
	"strings"

	"github.com/roach88/sealkv/internal/kv"
)

// ValidationResult lists the structural problems found in a tag query.
type ValidationResult struct {
	// IsValid is true when Problems is empty.
	IsValid bool

	// Problems describes each rejected node.
	Problems []string
}

// Err returns a STRUCTURAL kv.Error summarizing the problems, or nil.
func (r ValidationResult) Err() error {
	if r.IsValid {
		return nil
	}
	return kv.NewError(kv.ErrCodeStructural, "invalid tag query: "+strings.Join(r.Problems, "; "))
}

// Validate checks a tag query before compilation.
//
// Rules:
//  1. No nil nodes
//  2. Tag names are non-empty
//  3. Range and LIKE comparisons only on plaintext tags
//  4. In lists are non-empty
//
// Validate is a pure function with no side effects.
func Validate(q Query) ValidationResult {
	v := &validator{}
	v.validate(q, "$")

	return ValidationResult{
		IsValid:  len(v.problems) == 0,
		Problems: v.problems,
	}
}

// validator accumulates problems during traversal.
type validator struct {
	problems []string
}

func (v *validator) addProblem(path, format string, args ...any) {
	v.problems = append(v.problems, path+": "+fmt.Sprintf(format, args...))
}

func (v *validator) validate(q Query, path string) {
	switch n := Deref(q).(type) {
	case nil:
		v.addProblem(path, "nil query node")
	case Compare:
		v.validateTag(n.Tag, path)
		if n.Op < OpEq || n.Op > OpLike {
			v.addProblem(path, "unknown comparison operator %d", n.Op)
		} else if n.Op.IsOrdered() && !n.Tag.Plaintext {
			v.addProblem(path, "%s on encrypted tag %q: encrypted values only support equality, membership and existence", n.Op, n.Tag.Name)
		}
	case Between:
		v.validateTag(n.Tag, path)
		if !n.Tag.Plaintext {
			v.addProblem(path, "$between on encrypted tag %q: encrypted values only support equality, membership and existence", n.Tag.Name)
		}
	case In:
		v.validateTag(n.Tag, path)
		if len(n.Values) == 0 {
			v.addProblem(path, "$in on tag %q has no values", n.Tag.Name)
		}
	case Exist:
		v.validateTag(n.Tag, path)
	case And:
		for i, sub := range n.Queries {
			v.validate(sub, fmt.Sprintf("%s.$and[%d]", path, i))
		}
	case Or:
		for i, sub := range n.Queries {
			v.validate(sub, fmt.Sprintf("%s.$or[%d]", path, i))
		}
	case Not:
		v.validate(n.Query, path+".$not")
	default:
		v.addProblem(path, "unknown query type %T", q)
	}
}

func (v *validator) validateTag(t TagName, path string) {
	if t.Name == "" {
		v.addProblem(path, "empty tag name")
	}
}
