package querysql

import "strings"

// Marker is the backend-neutral placeholder used in every SQL fragment.
const Marker = "$$"

// ReplacePlaceholders rewrites each Marker in frag, left to right, into
// d.Placeholder(start), d.Placeholder(start+1), and so on. It returns the
// rewritten fragment and the next unused index.
//
// Rendered placeholders are never rescanned, so a dialect may emit "$" in its
// output. Adjacent markers are distinct: "$$$$" is two placeholders.
func ReplacePlaceholders(d Dialect, frag string, start int64) (string, int64) {
	next := start
	if !strings.Contains(frag, Marker) {
		return frag, next
	}

	var b strings.Builder
	b.Grow(len(frag) + 8)
	rest := frag
	for {
		i := strings.Index(rest, Marker)
		if i < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:i])
		b.WriteString(d.Placeholder(next))
		next++
		rest = rest[i+len(Marker):]
	}
	return b.String(), next
}
