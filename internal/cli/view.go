package cli

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/sealkv/internal/kv"
	"github.com/roach88/sealkv/internal/tagquery"
)

// EntryView is the printable form of an entry.
type EntryView struct {
	Category string        `json:"category"`
	Name     string        `json:"name"`
	Value    string        `json:"value"`
	Tags     []kv.EntryTag `json:"tags,omitempty"`
}

func newEntryView(e kv.Entry) EntryView {
	return EntryView{Category: e.Category, Name: e.Name, Value: string(e.Value), Tags: e.Tags}
}

func (v EntryView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s/%s = %s", v.Category, v.Name, v.Value)
	if len(v.Tags) > 0 {
		b.WriteString(" [")
		for i, t := range v.Tags {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(tagquery.TagName{Name: t.Name, Plaintext: t.Plaintext}.String())
			b.WriteByte('=')
			b.WriteString(t.Value)
		}
		b.WriteByte(']')
	}
	return b.String()
}

// EntryList is the result of scan.
type EntryList struct {
	Entries []EntryView `json:"entries"`
}

func (l EntryList) String() string {
	if len(l.Entries) == 0 {
		return "(no entries)"
	}
	lines := make([]string, len(l.Entries))
	for i, e := range l.Entries {
		lines[i] = e.String()
	}
	return strings.Join(lines, "\n")
}

// Message is a plain confirmation with optional structured fields.
type Message struct {
	Text   string         `json:"message"`
	Fields map[string]any `json:"fields,omitempty"`
}

func (m Message) String() string { return m.Text }

// parseTags parses "name=value" flags. A leading "~" marks a plaintext tag.
// Names and values are NFC-normalized, as tag filters are.
func parseTags(specs []string) ([]kv.EntryTag, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	tags := make([]kv.EntryTag, 0, len(specs))
	for _, s := range specs {
		name, value, ok := strings.Cut(s, "=")
		if !ok {
			return nil, kv.NewError(kv.ErrCodeInput, fmt.Sprintf("invalid tag %q: want name=value", s))
		}
		tn := tagquery.ParseTagName(norm.NFC.String(name))
		if tn.Name == "" {
			return nil, kv.NewError(kv.ErrCodeInput, fmt.Sprintf("invalid tag %q: empty name", s))
		}
		tags = append(tags, kv.EntryTag{Name: tn.Name, Value: norm.NFC.String(value), Plaintext: tn.Plaintext})
	}
	return tags, nil
}

// parseFilter decodes a JSON tag filter; empty means no filter.
func parseFilter(raw string) (tagquery.Query, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	return tagquery.Decode([]byte(raw))
}

// formatArg renders a bound SQL argument: printable bytes quoted, other bytes
// as hex, anything else with %v.
func formatArg(v any) string {
	b, ok := v.([]byte)
	if !ok {
		return fmt.Sprint(v)
	}
	if printable(b) {
		return strconv.Quote(string(b))
	}
	return "0x" + hex.EncodeToString(b)
}

func printable(b []byte) bool {
	if !utf8.Valid(b) {
		return false
	}
	for _, r := range string(b) {
		if !strconv.IsPrint(r) {
			return false
		}
	}
	return true
}
