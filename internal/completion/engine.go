package completion

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sahilm/fuzzy"

	"github.com/sadopc/sqlharbor/internal/catalog"
	"github.com/sadopc/sqlharbor/internal/quote"
)

// fuzzyThreshold is the number of exact and prefix matches below which
// fuzzy matches are appended.
const fuzzyThreshold = 20

// Sources are the four lists an index is built from.
type Sources struct {
	Keywords  []Item
	Functions []Item
	Catalog   []Item
	Extra     []Item
}

// Index is an immutable pair of sorted item lists: every item, and only
// the items with a context.
type Index struct {
	flat    []entry
	members []entry
}

type entry struct {
	Item
	matchVal string
	context  string
}

// NewIndex merges and sorts the sources.
func NewIndex(src Sources) *Index {
	all := make([]Item, 0, len(src.Keywords)+len(src.Functions)+len(src.Catalog)+len(src.Extra))
	all = append(all, src.Keywords...)
	all = append(all, src.Functions...)
	all = append(all, src.Catalog...)
	all = append(all, src.Extra...)
	Sort(all)

	idx := &Index{flat: make([]entry, 0, len(all))}
	for _, it := range all {
		e := entry{Item: it, matchVal: strings.ToLower(it.Label), context: strings.ToLower(it.Context)}
		idx.flat = append(idx.flat, e)
		if it.Context != "" {
			idx.members = append(idx.members, e)
		}
	}
	return idx
}

// Len returns the number of indexed items.
func (x *Index) Len() int { return len(x.flat) }

// Complete matches prefix against every item: exact matches first, then
// prefix matches, deduplicated by rendered label.
func (x *Index) Complete(prefix string, withFuzzy bool) []Match {
	matchVal := strings.ToLower(prefix)
	var matches []Match
	add := func(e entry) {
		matches = append(matches, Match{Label: e.Label, TypeLabel: e.TypeLabel, Value: e.Value})
	}
	for _, e := range x.flat {
		if e.matchVal == matchVal {
			add(e)
		}
	}
	for _, e := range x.flat {
		if strings.HasPrefix(e.matchVal, matchVal) {
			add(e)
		}
	}
	if withFuzzy && len(matches) < fuzzyThreshold {
		for _, e := range fuzzyEntries(matchVal, x.flat) {
			add(e)
		}
	}
	return dedupe(matches)
}

// CompleteMember matches a member access such as `"drivers"."d` or
// `main.dr`. Only items whose context equals the namespace before the last
// separator are candidates. Results keep what the user already typed,
// including an opening quote, which is closed in the result. A prefix
// without a separator yields nil.
func (x *Index) CompleteMember(prefix string, withFuzzy bool) []Match {
	parts, seps := splitMember(prefix)
	if len(parts) < 2 {
		return nil
	}
	itemPrefix := parts[len(parts)-1]
	context := strings.ToLower(quote.Strip(parts[len(parts)-2]))

	quoteChar := ""
	if itemPrefix != "" && strings.ContainsRune("\"'`", rune(itemPrefix[0])) {
		quoteChar = itemPrefix[:1]
		itemPrefix = itemPrefix[1:]
	}
	matchVal := strings.ToLower(itemPrefix)

	var valuePrefix strings.Builder
	for i, sep := range seps {
		valuePrefix.WriteString(parts[i])
		valuePrefix.WriteString(sep)
	}
	vp := valuePrefix.String()

	var candidates []entry
	for _, e := range x.members {
		if e.context == context {
			candidates = append(candidates, e)
		}
	}

	var matches []Match
	add := func(e entry) {
		matches = append(matches, Match{
			Label:     vp + quoteChar + e.Label + quoteChar,
			TypeLabel: e.TypeLabel,
			Value:     vp + quoteChar + e.Value + quoteChar,
		})
	}
	for _, e := range candidates {
		if e.matchVal == matchVal {
			add(e)
		}
	}
	for _, e := range candidates {
		if strings.HasPrefix(e.matchVal, matchVal) {
			add(e)
		}
	}
	if withFuzzy && len(matches) < fuzzyThreshold {
		for _, e := range fuzzyEntries(matchVal, candidates) {
			add(e)
		}
	}
	return dedupe(matches)
}

// splitMember splits s on ".", ":" and "::", returning the pieces and the
// separators between them.
func splitMember(s string) (parts, seps []string) {
	start := 0
	for i := 0; i < len(s); {
		switch {
		case strings.HasPrefix(s[i:], "::"):
			parts, seps = append(parts, s[start:i]), append(seps, "::")
			i += 2
			start = i
		case s[i] == '.' || s[i] == ':':
			parts, seps = append(parts, s[start:i]), append(seps, s[i:i+1])
			i++
			start = i
		default:
			i++
		}
	}
	return append(parts, s[start:]), seps
}

func dedupe(matches []Match) []Match {
	type key struct{ label, typ string }
	seen := make(map[key]bool, len(matches))
	out := matches[:0]
	for _, m := range matches {
		k := key{m.Label, m.TypeLabel}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, m)
	}
	return out
}

// matchVals implements fuzzy.Source over lower-cased labels.
type matchVals []entry

func (m matchVals) String(i int) string { return m[i].matchVal }
func (m matchVals) Len() int            { return len(m) }

func fuzzyEntries(pattern string, entries []entry) []entry {
	if pattern == "" || len(entries) == 0 {
		return nil
	}
	found := fuzzy.FindFrom(pattern, matchVals(entries))
	sort.SliceStable(found, func(i, j int) bool { return found[i].Score > found[j].Score })
	out := make([]entry, 0, len(found))
	for _, f := range found {
		out = append(out, entries[f.Index])
	}
	return out
}

// Engine serves matches from the current Index. Updates build a new Index
// and swap it in, so readers never see a partly built one.
type Engine struct {
	index atomic.Pointer[Index]
	fuzzy atomic.Bool

	mu  sync.Mutex // serializes updates
	src Sources
}

// NewEngine builds an engine over the static keyword and function lists.
func NewEngine(keywords, functions []Item) *Engine {
	e := &Engine{src: Sources{Keywords: keywords, Functions: functions}}
	e.index.Store(NewIndex(e.src))
	return e
}

// SetFuzzy turns the fuzzy fallback on or off.
func (e *Engine) SetFuzzy(on bool) { e.fuzzy.Store(on) }

// Index returns the current index.
func (e *Engine) Index() *Index { return e.index.Load() }

// Complete dispatches to the member matcher when prefix contains a member
// separator, and to the flat matcher otherwise.
func (e *Engine) Complete(prefix string) []Match {
	idx := e.index.Load()
	if strings.ContainsAny(prefix, ".:") {
		return idx.CompleteMember(prefix, e.fuzzy.Load())
	}
	return idx.Complete(prefix, e.fuzzy.Load())
}

// UpdateCatalog regenerates the catalog-derived items from c.
func (e *Engine) UpdateCatalog(c *catalog.Catalog) {
	e.update(func(src *Sources) { src.Catalog = FromCatalog(c) })
}

// ExtendCatalog adds items for children that were lazily loaded under
// parent.
func (e *Engine) ExtendCatalog(parent *catalog.Item, children []*catalog.Item) {
	extra := fromItems(children, parent.Label, len(parent.Path))
	e.update(func(src *Sources) {
		src.Catalog = Dedupe(append(append([]Item{}, src.Catalog...), extra...))
	})
}

// SetExtra replaces the caller-supplied items, typically the completions
// harvested from the connection.
func (e *Engine) SetExtra(items []Item) {
	e.update(func(src *Sources) { src.Extra = items })
}

func (e *Engine) update(fn func(src *Sources)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.src)
	e.index.Store(NewIndex(e.src))
}

// FromCatalog derives items from every loaded node of c. Each item's
// context is its parent's label; deeper items get larger priorities.
func FromCatalog(c *catalog.Catalog) []Item {
	if c == nil {
		return nil
	}
	return fromItems(c.Items, "", 0)
}

func fromItems(items []*catalog.Item, context string, depth int) []Item {
	var out []Item
	for _, it := range items {
		out = append(out, Item{
			Label:     it.Label,
			TypeLabel: it.TypeLabel,
			Value:     it.Label,
			Priority:  PriorityCatalog + depth,
			Context:   context,
		})
		out = append(out, fromItems(it.Children, it.Label, depth+1)...)
	}
	return out
}
