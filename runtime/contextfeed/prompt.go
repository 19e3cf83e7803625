package contextfeed

import (
	"html"
	"sort"
	"strings"
)

// BuildBlock renders the manager's current feed snapshot as the
// <context_feeds> prompt block, one <feed> element per feed with
// non-empty content. Returns "" when there is nothing to inject, so the
// caller can omit the block entirely.
func (m *Manager) BuildBlock() string {
	feeds := m.Snapshot()
	if len(feeds) == 0 {
		return ""
	}
	sort.Slice(feeds, func(i, j int) bool { return feeds[i].ID < feeds[j].ID })

	var b strings.Builder
	b.WriteString("<context_feeds>")
	for _, f := range feeds {
		b.WriteString(`<feed id="`)
		b.WriteString(html.EscapeString(f.ID))
		b.WriteString(`" type="`)
		b.WriteString(html.EscapeString(string(f.Type)))
		b.WriteString(`">`)
		b.WriteString(f.content)
		b.WriteString(`</feed>`)
	}
	b.WriteString("</context_feeds>")
	return b.String()
}
