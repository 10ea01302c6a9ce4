package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/sealkv/internal/kv"
	"github.com/roach88/sealkv/internal/tagquery"
)

// Clauses for empty boolean composites.
const (
	clauseTrue  = "1 = 1"
	clauseFalse = "1 = 0"
)

// TagEncoder renders a tag-query tree into an SQL condition over items_tags.
//
// Tag names always go through EncName and are inlined as binary literals.
// Values of encrypted tags go through EncValue; plaintext tag values are bound
// as raw bytes. Every value becomes one Marker and one argument, in textual
// order.
//
//	i.id IN (SELECT item_id FROM items_tags WHERE name = X'..' AND value = $$ AND plaintext = 0)
//
// A TagEncoder is used for a single tree and is not safe for concurrent use.
type TagEncoder struct {
	Dialect  Dialect
	EncName  func([]byte) ([]byte, error)
	EncValue func([]byte) ([]byte, error)

	args [][]byte
}

// Encode renders q. The clause contains Marker placeholders, one per returned
// argument. A callback failure is returned as an ENCRYPTION kv.Error.
func (e *TagEncoder) Encode(q tagquery.Query) (string, [][]byte, error) {
	e.args = nil
	clause, err := e.encode(q)
	if err != nil {
		return "", nil, err
	}
	return clause, e.args, nil
}

func (e *TagEncoder) encode(q tagquery.Query) (string, error) {
	switch n := tagquery.Deref(q).(type) {
	case tagquery.Compare:
		return e.leaf(n.Tag, func(value func(string) (string, error)) (string, error) {
			v, err := value(n.Value)
			if err != nil {
				return "", err
			}
			return "value " + n.Op.SQL() + " " + v, nil
		})
	case tagquery.Between:
		return e.leaf(n.Tag, func(value func(string) (string, error)) (string, error) {
			lo, err := value(n.Low)
			if err != nil {
				return "", err
			}
			hi, err := value(n.High)
			if err != nil {
				return "", err
			}
			return "value BETWEEN " + lo + " AND " + hi, nil
		})
	case tagquery.In:
		return e.leaf(n.Tag, func(value func(string) (string, error)) (string, error) {
			marks := make([]string, 0, len(n.Values))
			for _, v := range n.Values {
				m, err := value(v)
				if err != nil {
					return "", err
				}
				marks = append(marks, m)
			}
			op := "IN"
			if n.Negate {
				op = "NOT IN"
			}
			return "value " + op + " (" + strings.Join(marks, ", ") + ")", nil
		})
	case tagquery.Exist:
		return e.leaf(n.Tag, nil)
	case tagquery.Not:
		inner, err := e.encode(n.Query)
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil
	case tagquery.And:
		return e.join(n.Queries, " AND ", clauseTrue)
	case tagquery.Or:
		return e.join(n.Queries, " OR ", clauseFalse)
	case nil:
		return "", kv.NewError(kv.ErrCodeStructural, "nil query node")
	default:
		return "", kv.NewError(kv.ErrCodeStructural, fmt.Sprintf("unsupported query type %T", q))
	}
}

func (e *TagEncoder) join(qs []tagquery.Query, sep, empty string) (string, error) {
	if len(qs) == 0 {
		return empty, nil
	}
	parts := make([]string, 0, len(qs))
	for _, sub := range qs {
		s, err := e.encode(sub)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

// leaf renders the items_tags subquery for one tag. cond renders the value
// condition using the supplied binder; a nil cond tests existence only.
func (e *TagEncoder) leaf(tag tagquery.TagName, cond func(value func(string) (string, error)) (string, error)) (string, error) {
	name, err := e.encName([]byte(tag.Name))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("i.id IN (SELECT item_id FROM items_tags WHERE name = ")
	b.WriteString(e.Dialect.BlobLiteral(name))

	if cond != nil {
		bind := func(v string) (string, error) {
			arg := []byte(v)
			if !tag.Plaintext {
				if arg, err = e.encValue(arg); err != nil {
					return "", err
				}
			}
			e.args = append(e.args, arg)
			return Marker, nil
		}
		c, err := cond(bind)
		if err != nil {
			return "", err
		}
		b.WriteString(" AND ")
		b.WriteString(c)
	}

	if tag.Plaintext {
		b.WriteString(" AND plaintext = 1)")
	} else {
		b.WriteString(" AND plaintext = 0)")
	}
	return b.String(), nil
}

func (e *TagEncoder) encName(name []byte) ([]byte, error) {
	if e.EncName == nil {
		return name, nil
	}
	out, err := e.EncName(name)
	if err != nil {
		return nil, kv.WrapError(kv.ErrCodeEncryption, "encrypt tag name", err)
	}
	return out, nil
}

func (e *TagEncoder) encValue(value []byte) ([]byte, error) {
	if e.EncValue == nil {
		return value, nil
	}
	out, err := e.EncValue(value)
	if err != nil {
		return nil, kv.WrapError(kv.ErrCodeEncryption, "encrypt tag value", err)
	}
	return out, nil
}
