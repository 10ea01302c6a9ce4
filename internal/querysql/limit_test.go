package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimitQuery_NoPageLeavesQueryUntouched(t *testing.T) {
	p := NewParams()
	p.Push(int64(9))

	got := LimitQuery(SQLite, "SELECT 1", p, Page{OrderBy: "id"})

	assert.Equal(t, "SELECT 1", got)
	assert.Equal(t, 1, p.Len())
}

func TestLimitQuery_OffsetAndLimit(t *testing.T) {
	p := NewParams()
	p.Extend("a", "b")

	got := LimitQuery(SQLite, "SELECT 1", p, Page{Offset: Int64(4), Limit: Int64(2)})

	assert.Equal(t, "SELECT 1 LIMIT ?3, ?4", got)
	assert.Equal(t, []any{"a", "b", int64(4), int64(2)}, p.Args())
}

func TestLimitQuery_Defaults(t *testing.T) {
	t.Run("limit only", func(t *testing.T) {
		p := NewParams()
		got := LimitQuery(Postgres, "SELECT 1", p, Page{Limit: Int64(10)})
		assert.Equal(t, "SELECT 1 OFFSET $1 LIMIT NULLIF($2::bigint, -1)", got)
		assert.Equal(t, []any{int64(0), int64(10)}, p.Args())
	})

	t.Run("offset only", func(t *testing.T) {
		p := NewParams()
		got := LimitQuery(SQLite, "SELECT 1", p, Page{Offset: Int64(5)})
		assert.Equal(t, "SELECT 1 LIMIT ?1, ?2", got)
		assert.Equal(t, []any{int64(5), int64(-1)}, p.Args())
	})
}

func TestPage_IsSet(t *testing.T) {
	assert.False(t, Page{}.IsSet())
	assert.False(t, Page{OrderBy: "id"}.IsSet())
	assert.True(t, Page{Offset: Int64(0)}.IsSet())
	assert.True(t, Page{Limit: Int64(0)}.IsSet())
}
