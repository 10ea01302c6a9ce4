package querysql

// Page selects a window of rows. Nil fields are unset.
type Page struct {
	// Offset skips rows; defaults to 0 when only Limit is set.
	Offset *int64

	// Limit caps the row count; defaults to the dialect's NoLimit when only
	// Offset is set.
	Limit *int64

	// OrderBy is an SQL ordering expression applied before pagination.
	// It is trusted input and never comes from end users.
	OrderBy string
}

// IsSet reports whether the page restricts the row window.
func (p Page) IsSet() bool {
	return p.Offset != nil || p.Limit != nil
}

// Int64 returns a pointer to v, for building Page literals.
func Int64(v int64) *int64 {
	return &v
}

// LimitQuery appends the dialect's pagination clause to query when page sets
// an offset or a limit, pushing the offset and then the limit into params.
// Otherwise query and params are left unchanged.
func LimitQuery(d Dialect, query string, params *Params, page Page) string {
	if !page.IsSet() {
		return query
	}

	lastIdx := int64(params.Len()) + 1

	offset := int64(0)
	if page.Offset != nil {
		offset = *page.Offset
	}
	limit := d.NoLimit()
	if page.Limit != nil {
		limit = *page.Limit
	}
	params.Push(offset)
	params.Push(limit)

	clause, _ := ReplacePlaceholders(d, d.LimitClause(), lastIdx)
	return query + clause
}
