// Package completion indexes autocomplete candidates and matches them
// against the text typed before the editor cursor.
package completion

import (
	"sort"
	"strings"
)

// Priorities used by the built-in sources. Lower sorts first.
const (
	PriorityKeyword  = 100
	PriorityFunction = 200
	PriorityCatalog  = 500
	PriorityBackend  = 1000
	PrioritySetting  = 2000
)

// Item is one autocomplete candidate. Context is empty unless the item is
// only reachable as a member, after typing "context." or "context::".
type Item struct {
	Label     string
	TypeLabel string
	Value     string
	Priority  int
	Context   string
}

// Less orders items by priority, then label.
func Less(a, b Item) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.Label < b.Label
}

// Sort sorts items in place by (priority, label), keeping the input order
// of full ties.
func Sort(items []Item) {
	sort.SliceStable(items, func(i, j int) bool { return Less(items[i], items[j]) })
}

// Dedupe drops items that repeat an earlier (label, type, context) triple.
func Dedupe(items []Item) []Item {
	type key struct{ label, typ, ctx string }
	seen := make(map[key]bool, len(items))
	out := items[:0:0]
	for _, it := range items {
		k := key{it.Label, it.TypeLabel, it.Context}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, it)
	}
	return out
}

// Match is one matcher result: what the popup shows and what it inserts.
type Match struct {
	Label     string
	TypeLabel string
	Value     string
}

func newItems(labels []string, typeLabel string, priority int) []Item {
	items := make([]Item, 0, len(labels))
	for _, l := range labels {
		l = strings.ToLower(l)
		items = append(items, Item{Label: l, TypeLabel: typeLabel, Value: l, Priority: priority})
	}
	return items
}
