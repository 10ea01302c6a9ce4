package tagquery

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/sealkv/internal/kv"
)

// Decode parses the WQL-style JSON encoding of a tag query.
//
// Object keys are combined with AND in sorted order so the same document
// always yields the same tree. Tag names and values are NFC-normalized,
// matching how the CLI normalizes tags on write.
//
// An empty document ("{}") decodes to an empty And, which matches everything.
func Decode(data []byte) (Query, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, kv.WrapError(kv.ErrCodeInput, "decode tag filter", err)
	}
	q, err := decodeObject(raw)
	if err != nil {
		return nil, kv.WrapError(kv.ErrCodeStructural, "decode tag filter", err)
	}
	return q, nil
}

func decodeObject(raw any) (Query, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected object, got %s", jsonKind(raw))
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := make([]Query, 0, len(keys))
	for _, k := range keys {
		q, err := decodeClause(k, obj[k])
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, q)
	}

	if len(clauses) == 1 {
		return clauses[0], nil
	}
	return And{Queries: clauses}, nil
}

func decodeClause(key string, raw any) (Query, error) {
	switch key {
	case "$and", "$or":
		list, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("%s: expected array, got %s", key, jsonKind(raw))
		}
		subs := make([]Query, 0, len(list))
		for i, item := range list {
			q, err := decodeObject(item)
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", key, i, err)
			}
			subs = append(subs, q)
		}
		if key == "$and" {
			return And{Queries: subs}, nil
		}
		return Or{Queries: subs}, nil

	case "$not":
		q, err := decodeObject(raw)
		if err != nil {
			return nil, fmt.Errorf("$not: %w", err)
		}
		return Not{Query: q}, nil

	case "$exist":
		names, err := stringList(raw)
		if err != nil {
			// A single name is accepted as well as a list.
			name, serr := scalar(raw)
			if serr != nil {
				return nil, fmt.Errorf("$exist: %w", err)
			}
			names = []string{name}
		}
		if len(names) == 1 {
			return Exist{Tag: ParseTagName(names[0])}, nil
		}
		subs := make([]Query, len(names))
		for i, name := range names {
			subs[i] = Exist{Tag: ParseTagName(name)}
		}
		return And{Queries: subs}, nil
	}

	tag := ParseTagName(norm.NFC.String(key))
	if ops, ok := raw.(map[string]any); ok {
		return decodeOperator(tag, ops)
	}
	value, err := scalar(raw)
	if err != nil {
		return nil, fmt.Errorf("tag %q: %w", key, err)
	}
	return Compare{Op: OpEq, Tag: tag, Value: value}, nil
}

var compareOps = map[string]CompareOp{
	"$eq":   OpEq,
	"$neq":  OpNeq,
	"$gt":   OpGt,
	"$gte":  OpGte,
	"$lt":   OpLt,
	"$lte":  OpLte,
	"$like": OpLike,
}

func decodeOperator(tag TagName, ops map[string]any) (Query, error) {
	if len(ops) != 1 {
		return nil, fmt.Errorf("tag %q: expected exactly one operator, got %d", tag, len(ops))
	}
	var op string
	var raw any
	for k, v := range ops {
		op, raw = k, v
	}

	switch op {
	case "$in":
		values, err := stringList(raw)
		if err != nil {
			return nil, fmt.Errorf("tag %q: $in: %w", tag, err)
		}
		return In{Tag: tag, Values: values}, nil
	case "$between":
		values, err := stringList(raw)
		if err != nil {
			return nil, fmt.Errorf("tag %q: $between: %w", tag, err)
		}
		if len(values) != 2 {
			return nil, fmt.Errorf("tag %q: $between needs [low, high], got %d values", tag, len(values))
		}
		return Between{Tag: tag, Low: values[0], High: values[1]}, nil
	}

	cmp, ok := compareOps[op]
	if !ok {
		return nil, fmt.Errorf("tag %q: unsupported operator %q", tag, op)
	}
	value, err := scalar(raw)
	if err != nil {
		return nil, fmt.Errorf("tag %q: %s: %w", tag, op, err)
	}
	return Compare{Op: cmp, Tag: tag, Value: value}, nil
}

// scalar accepts strings, numbers and booleans; tag values are always compared
// as their string form.
func scalar(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return norm.NFC.String(v), nil
	case json.Number:
		return v.String(), nil
	case bool:
		if v {
			return "1", nil
		}
		return "0", nil
	default:
		return "", fmt.Errorf("expected scalar value, got %s", jsonKind(raw))
	}
}

func stringList(raw any) ([]string, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("expected array, got %s", jsonKind(raw))
	}
	out := make([]string, 0, len(list))
	for i, item := range list {
		s, err := scalar(item)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func jsonKind(raw any) string {
	switch raw.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", raw)
	}
}
