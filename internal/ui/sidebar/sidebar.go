// Package sidebar is the data catalog tree.
package sidebar

import (
	"os"
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/sadopc/sqlharbor/internal/catalog"
	appmsg "github.com/sadopc/sqlharbor/internal/msg"
	"github.com/sadopc/sqlharbor/internal/theme"
)

// useSimpleIcons is set inside Neovim's terminal, whose libvterm
// miscounts emoji widths.
var useSimpleIcons = os.Getenv("NVIM") != ""

// writeClipboard is swapped out in tests.
var writeClipboard = clipboard.WriteAll

// Row is one visible line of the tree.
type Row struct {
	Item  *catalog.Item
	Depth int
}

// Model is the catalog browser. Expansion is tracked by qualified
// identifier so it survives catalog rebuilds.
type Model struct {
	catalog  *catalog.Catalog
	expanded map[string]bool
	loading  map[string]bool
	rows     []Row

	cursor     int
	offset     int
	width      int
	height     int
	focused    bool
	refreshing bool
	stale      bool

	menuOpen   bool
	menuCursor int
}

func New() Model {
	return Model{expanded: map[string]bool{}, loading: map[string]bool{}}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// Build returns the expanded set for c: the identifiers in previous that
// still name an item of c.
func Build(c *catalog.Catalog, previous map[string]bool) map[string]bool {
	next := map[string]bool{}
	c.Walk(func(it *catalog.Item, _ int) bool {
		if previous[it.QualifiedIdentifier] {
			next[it.QualifiedIdentifier] = true
		}
		return true
	})
	return next
}

// Flatten lists the visible rows of c: top-level items and the children
// of every expanded item.
func Flatten(c *catalog.Catalog, expanded map[string]bool) []Row {
	if c == nil {
		return nil
	}
	var rows []Row
	var walk func(items []*catalog.Item, depth int)
	walk = func(items []*catalog.Item, depth int) {
		for _, it := range items {
			rows = append(rows, Row{Item: it, Depth: depth})
			if expanded[it.QualifiedIdentifier] {
				walk(it.Children, depth+1)
			}
		}
	}
	walk(c.Items, 0)
	return rows
}

// SetCatalog replaces the tree, keeping the expansion of items that still
// exist. stale marks a cached snapshot shown before the live catalog. The
// returned command requests children for expanded items that are not
// loaded yet.
func (m *Model) SetCatalog(c *catalog.Catalog, stale bool) tea.Cmd {
	var selected string
	if it := m.Selected(); it != nil {
		selected = it.QualifiedIdentifier
	}

	m.catalog = c
	m.stale = stale
	m.refreshing = false
	m.loading = map[string]bool{}
	m.expanded = Build(c, m.expanded)
	if len(m.expanded) == 0 && c != nil && len(c.Items) == 1 {
		m.expanded[c.Items[0].QualifiedIdentifier] = true
	}
	m.flatten()

	for i, r := range m.rows {
		if r.Item.QualifiedIdentifier == selected {
			m.cursor = i
			break
		}
	}
	m.ensureVisible()

	var cmds []tea.Cmd
	c.Walk(func(it *catalog.Item, _ int) bool {
		if m.expanded[it.QualifiedIdentifier] && it.State == catalog.Unloaded && !it.Leaf() {
			cmds = append(cmds, m.requestChildren(it))
		}
		return true
	})
	return tea.Batch(cmds...)
}

// Catalog returns the displayed catalog.
func (m Model) Catalog() *catalog.Catalog { return m.catalog }

// Expanded returns the identifiers of the expanded items.
func (m Model) Expanded() []string {
	ids := make([]string, 0, len(m.expanded))
	m.catalog.Walk(func(it *catalog.Item, _ int) bool {
		if m.expanded[it.QualifiedIdentifier] {
			ids = append(ids, it.QualifiedIdentifier)
		}
		return true
	})
	return ids
}

// ChildrenLoaded refreshes the rows after the app stored an item's lazily
// loaded children. A failed load collapses the item again.
func (m *Model) ChildrenLoaded(it *catalog.Item, err error) {
	delete(m.loading, it.QualifiedIdentifier)
	if err != nil {
		delete(m.expanded, it.QualifiedIdentifier)
	}
	m.flatten()
}

// Selected returns the item under the cursor, or nil.
func (m Model) Selected() *catalog.Item {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return nil
	}
	return m.rows[m.cursor].Item
}

// MenuOpen reports whether the interactions menu is showing.
func (m Model) MenuOpen() bool { return m.menuOpen }

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok || !m.focused {
		return m, nil
	}
	if m.menuOpen {
		return m.updateMenu(key)
	}

	switch key.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
	case "pgup":
		m.cursor = max(m.cursor-m.contentHeight(), 0)
	case "pgdown":
		m.cursor = max(min(m.cursor+m.contentHeight(), len(m.rows)-1), 0)
	case "home", "g":
		m.cursor = 0
	case "end", "G":
		m.cursor = max(len(m.rows)-1, 0)
	case " ", "right", "l":
		return m, m.toggle()
	case "left", "h":
		m.collapseOrParent()
	case "enter":
		if it := m.Selected(); it != nil {
			text := it.QueryName
			return m, func() tea.Msg { return appmsg.InsertTextMsg{Text: text} }
		}
	case "y":
		if it := m.Selected(); it != nil {
			return m, copyIdentifier(it.QualifiedIdentifier)
		}
	case "m", ".":
		if it := m.Selected(); it != nil && len(it.Interactions) > 0 {
			m.menuOpen = true
			m.menuCursor = 0
		}
	}
	m.ensureVisible()
	return m, nil
}

func (m Model) updateMenu(key tea.KeyMsg) (Model, tea.Cmd) {
	it := m.Selected()
	if it == nil {
		m.menuOpen = false
		return m, nil
	}
	switch key.String() {
	case "up", "k":
		if m.menuCursor > 0 {
			m.menuCursor--
		}
	case "down", "j":
		if m.menuCursor < len(it.Interactions)-1 {
			m.menuCursor++
		}
	case "esc", "q", "m", ".":
		m.menuOpen = false
	case "enter":
		m.menuOpen = false
		if m.menuCursor < len(it.Interactions) {
			in := it.Interactions[m.menuCursor]
			return m, func() tea.Msg { return appmsg.InteractionMsg{Item: it, Interaction: in} }
		}
	}
	return m, nil
}

func copyIdentifier(id string) tea.Cmd {
	return func() tea.Msg {
		if err := writeClipboard(id); err != nil {
			return appmsg.StatusMsg{Text: "Copy failed: " + err.Error(), IsError: true}
		}
		return appmsg.StatusMsg{Text: "Copied " + id}
	}
}

func (m *Model) toggle() tea.Cmd {
	it := m.Selected()
	if it == nil || it.Leaf() {
		return nil
	}
	id := it.QualifiedIdentifier
	if m.expanded[id] {
		delete(m.expanded, id)
		m.flatten()
		return nil
	}
	m.expanded[id] = true
	m.flatten()
	if it.State == catalog.Unloaded {
		return m.requestChildren(it)
	}
	return nil
}

func (m *Model) requestChildren(it *catalog.Item) tea.Cmd {
	if m.loading[it.QualifiedIdentifier] {
		return nil
	}
	m.loading[it.QualifiedIdentifier] = true
	return func() tea.Msg { return appmsg.ExpandRequestMsg{Item: it} }
}

func (m *Model) collapseOrParent() {
	if m.cursor >= len(m.rows) {
		return
	}
	r := m.rows[m.cursor]
	if m.expanded[r.Item.QualifiedIdentifier] {
		delete(m.expanded, r.Item.QualifiedIdentifier)
		m.flatten()
		return
	}
	for i := m.cursor - 1; i >= 0; i-- {
		if m.rows[i].Depth < r.Depth {
			m.cursor = i
			return
		}
	}
}

func (m *Model) flatten() {
	m.rows = Flatten(m.catalog, m.expanded)
	m.cursor = max(min(m.cursor, len(m.rows)-1), 0)
}

func (m Model) contentHeight() int {
	return max(m.height-3, 1)
}

func (m *Model) ensureVisible() {
	h := m.contentHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+h {
		m.offset = m.cursor - h + 1
	}
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	th := theme.Current
	innerW := max(m.width-2, 1)
	innerH := max(m.height-2, 1)

	titleStyle := th.SidebarTitle
	if m.focused {
		titleStyle = titleStyle.Reverse(true)
	}
	title := " Data Catalog "
	switch {
	case m.refreshing:
		title += "(refreshing) "
	case m.stale:
		title += "(cached) "
	}
	lines := []string{titleStyle.Width(innerW).Render(title)}

	switch {
	case m.catalog == nil && m.refreshing:
		lines = append(lines, "", "  Loading catalog...")
	case len(m.rows) == 0:
		lines = append(lines, "", "  Nothing to show.")
	case m.menuOpen:
		lines = append(lines, m.renderMenu(th, innerW)...)
	default:
		end := min(m.offset+m.contentHeight(), len(m.rows))
		for i := m.offset; i < end; i++ {
			lines = append(lines, m.renderRow(m.rows[i], i == m.cursor, th, innerW))
		}
	}

	border := th.UnfocusedBorder
	if m.focused {
		border = th.FocusedBorder
	}
	return border.Width(innerW).Height(innerH).Render(strings.Join(lines, "\n"))
}

func (m Model) renderMenu(th *theme.Theme, width int) []string {
	it := m.Selected()
	lines := []string{th.MutedText.Render(fit(" "+it.Label+":", width))}
	for i, in := range it.Interactions {
		line := fit("  "+in.Label, width)
		if i == m.menuCursor {
			line = th.SidebarSelected.Render(line)
		}
		lines = append(lines, line)
	}
	return lines
}

func icon(k catalog.Kind) string {
	if useSimpleIcons {
		switch k {
		case catalog.Database:
			return "■ "
		case catalog.Schema:
			return "▪ "
		case catalog.Table:
			return "◆ "
		case catalog.TempTable:
			return "◈ "
		case catalog.View:
			return "◇ "
		}
		return ""
	}
	switch k {
	case catalog.Database:
		return "🗄 "
	case catalog.Schema:
		return "📁 "
	case catalog.Table:
		return "📊 "
	case catalog.TempTable:
		return "⏳ "
	case catalog.View:
		return "👁 "
	}
	return ""
}

func (m Model) renderRow(r Row, selected bool, th *theme.Theme, width int) string {
	it := r.Item
	marker := "  "
	switch {
	case it.Leaf():
	case m.loading[it.QualifiedIdentifier]:
		marker = "… "
	case m.expanded[it.QualifiedIdentifier]:
		marker = "▼ "
	default:
		marker = "▶ "
	}

	label := strings.Repeat("  ", r.Depth) + marker + icon(it.Kind) + it.Label
	typ := ""
	if it.TypeLabel != "" {
		typ = " " + it.TypeLabel
	}
	label = runewidth.Truncate(label, max(width-runewidth.StringWidth(typ), 1), "…")
	pad := max(width-runewidth.StringWidth(label)-runewidth.StringWidth(typ), 0)

	if selected {
		return th.SidebarSelected.Render(label + strings.Repeat(" ", pad) + typ)
	}
	return kindStyle(th, it.Kind).Render(label) + strings.Repeat(" ", pad) + th.SidebarColumnType.Render(typ)
}

func kindStyle(th *theme.Theme, k catalog.Kind) lipgloss.Style {
	switch k {
	case catalog.Database:
		return th.SidebarDatabase
	case catalog.Schema:
		return th.SidebarSchema
	case catalog.Table:
		return th.SidebarTable
	case catalog.TempTable:
		return th.SidebarTempTable
	case catalog.View:
		return th.SidebarView
	default:
		return th.SidebarColumn
	}
}

func fit(s string, width int) string {
	return runewidth.FillRight(runewidth.Truncate(s, width, "…"), width)
}

func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.ensureVisible()
}

func (m *Model) Focus() { m.focused = true }

func (m *Model) Blur() {
	m.focused = false
	m.menuOpen = false
}

func (m Model) Focused() bool { return m.focused }

// SetRefreshing marks a catalog refresh in flight.
func (m *Model) SetRefreshing(on bool) { m.refreshing = on }
