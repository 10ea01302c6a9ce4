package tagquery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sealkv/internal/kv"
)

func TestDecode(t *testing.T) {
	testCases := []struct {
		name string
		json string
		want Query
	}{
		{
			name: "empty matches all",
			json: `{}`,
			want: And{Queries: []Query{}},
		},
		{
			name: "single equality",
			json: `{"color": "red"}`,
			want: Eq("color", "red"),
		},
		{
			name: "implicit and sorted by key",
			json: `{"b": "2", "a": "1"}`,
			want: AllOf(Eq("a", "1"), Eq("b", "2")),
		},
		{
			name: "plaintext range",
			json: `{"~size": {"$gte": 10}}`,
			want: Compare{Op: OpGte, Tag: Plaintext("size"), Value: "10"},
		},
		{
			name: "membership",
			json: `{"color": {"$in": ["red", "blue"]}}`,
			want: In{Tag: Encrypted("color"), Values: []string{"red", "blue"}},
		},
		{
			name: "between",
			json: `{"~size": {"$between": ["1", "9"]}}`,
			want: Between{Tag: Plaintext("size"), Low: "1", High: "9"},
		},
		{
			name: "exist single and list",
			json: `{"$exist": ["a", "~b"]}`,
			want: AllOf(Exist{Tag: Encrypted("a")}, Exist{Tag: Plaintext("b")}),
		},
		{
			name: "exist scalar",
			json: `{"$exist": "a"}`,
			want: Exist{Tag: Encrypted("a")},
		},
		{
			name: "or and not",
			json: `{"$or": [{"a": "1", "b": "2"}, {"$not": {"c": "3"}}]}`,
			want: AnyOf(AllOf(Eq("a", "1"), Eq("b", "2")), Negate(Eq("c", "3"))),
		},
		{
			name: "boolean value",
			json: `{"active": true}`,
			want: Eq("active", "1"),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Decode([]byte(tc.json))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecode_NormalizesToNFC(t *testing.T) {
	// "é" as e + combining acute accent decodes to the precomposed form.
	got, err := Decode([]byte(`{"name": "cafe\u0301"}`))
	require.NoError(t, err)
	assert.Equal(t, Eq("name", "caf\u00e9"), got)
}

func TestDecode_Errors(t *testing.T) {
	testCases := []struct {
		name string
		json string
		code kv.ErrorCode
	}{
		{"not json", `{`, kv.ErrCodeInput},
		{"top-level array", `[]`, kv.ErrCodeStructural},
		{"and not array", `{"$and": {}}`, kv.ErrCodeStructural},
		{"two operators", `{"a": {"$gt": "1", "$lt": "2"}}`, kv.ErrCodeStructural},
		{"unknown operator", `{"a": {"$regex": "x"}}`, kv.ErrCodeStructural},
		{"between arity", `{"~a": {"$between": ["1"]}}`, kv.ErrCodeStructural},
		{"null value", `{"a": null}`, kv.ErrCodeStructural},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.json))
			require.Error(t, err)
			assert.Equal(t, tc.code, kv.CodeOf(err))
		})
	}
}
