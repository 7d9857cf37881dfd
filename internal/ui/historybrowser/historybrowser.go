package historybrowser

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"

	"github.com/sadopc/sqlharbor/internal/history"
	"github.com/sadopc/sqlharbor/internal/theme"
	"github.com/sadopc/sqlharbor/internal/ui/results"
)

// loadLimit caps how many entries are pulled for filtering.
const loadLimit = 500

// SelectQueryMsg is sent when the user picks a history entry.
type SelectQueryMsg struct {
	Query string
}

// Source lists a connection's recent history.
type Source interface {
	Recent(connKey string, limit int) ([]history.Entry, error)
}

// Model is the history browser modal. Entries are loaded once when it
// opens and filtered in memory with fuzzy matching.
type Model struct {
	src     Source
	connKey string
	all     []history.Entry
	entries []history.Entry
	loadErr error
	cursor  int
	offset  int
	visible bool
	width   int
	height  int
	search  textinput.Model
}

// New creates a new history browser.
func New(src Source) Model {
	ti := textinput.New()
	ti.Placeholder = "Search queries..."
	ti.Prompt = "  > "
	ti.Width = 50
	return Model{
		src:    src,
		search: ti,
	}
}

// Show makes the history browser visible and loads connKey's entries.
func (m *Model) Show(connKey string) tea.Cmd {
	m.visible = true
	m.connKey = connKey
	m.cursor = 0
	m.offset = 0
	m.search.SetValue("")
	m.load()
	m.filter()
	return m.search.Focus()
}

// Hide hides the history browser.
func (m *Model) Hide() {
	m.visible = false
	m.search.Blur()
}

// Visible returns whether the history browser is shown.
func (m Model) Visible() bool { return m.visible }

// Entries returns the entries matching the current search.
func (m Model) Entries() []history.Entry { return m.entries }

// SetSize sets the available space.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// Update handles history browser messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.visible {
		return m, nil
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		return m, cmd
	}

	switch keyMsg.String() {
	case "esc", "ctrl+h":
		m.Hide()
		return m, nil
	case "up", "ctrl+p":
		m.move(-1)
		return m, nil
	case "down", "ctrl+n":
		m.move(1)
		return m, nil
	case "pgup":
		m.move(-m.visibleCount())
		return m, nil
	case "pgdown":
		m.move(m.visibleCount())
		return m, nil
	case "enter":
		if m.cursor >= len(m.entries) {
			return m, nil
		}
		query := m.entries[m.cursor].Query
		m.Hide()
		return m, func() tea.Msg { return SelectQueryMsg{Query: query} }
	}

	prev := m.search.Value()
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(keyMsg)
	if m.search.Value() != prev {
		m.cursor = 0
		m.offset = 0
		m.filter()
	}
	return m, cmd
}

func (m *Model) move(delta int) {
	m.cursor = max(min(m.cursor+delta, len(m.entries)-1), 0)
	visible := m.visibleCount()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+visible {
		m.offset = m.cursor - visible + 1
	}
}

func (m *Model) load() {
	m.all, m.loadErr = nil, nil
	if m.src == nil {
		return
	}
	m.all, m.loadErr = m.src.Recent(m.connKey, loadLimit)
}

// entrySource adapts entries to fuzzy.Source, matching on the query text
// with whitespace collapsed.
type entrySource []history.Entry

func (s entrySource) String(i int) string { return strings.Join(strings.Fields(s[i].Query), " ") }
func (s entrySource) Len() int            { return len(s) }

func (m *Model) filter() {
	pattern := strings.TrimSpace(m.search.Value())
	if pattern == "" {
		m.entries = m.all
		return
	}
	matches := fuzzy.FindFrom(pattern, entrySource(m.all))
	m.entries = make([]history.Entry, len(matches))
	for i, match := range matches {
		m.entries[i] = m.all[match.Index]
	}
}

// View renders the history browser.
func (m Model) View() string {
	if !m.visible {
		return ""
	}

	th := theme.Current
	w := m.dialogWidth()

	var lines []string
	end := min(m.offset+m.visibleCount(), len(m.entries))
	for i := m.offset; i < end; i++ {
		e := m.entries[i]
		line := formatEntry(e, w-8)
		switch {
		case i == m.cursor:
			lines = append(lines, th.SidebarSelected.Render("> "+line))
		case e.IsError:
			lines = append(lines, th.ErrorText.Render("  "+line))
		default:
			lines = append(lines, "  "+line)
		}
	}

	switch {
	case m.loadErr != nil:
		lines = append(lines, th.ErrorText.Render("  "+m.loadErr.Error()))
	case len(m.entries) == 0:
		lines = append(lines, th.MutedText.Render("  No history entries"))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		th.DialogTitle.Render("  Query History  "),
		"  "+m.search.View(),
		"",
		strings.Join(lines, "\n"),
		"",
		th.MutedText.Render(fmt.Sprintf("  %s of %s entries", humanize.Comma(int64(len(m.entries))), humanize.Comma(int64(len(m.all))))),
		th.MutedText.Render("  enter:insert  esc:close  up/down:navigate"),
	)

	return th.DialogBorder.Width(w).Render(content)
}

func (m Model) dialogWidth() int {
	w := 90
	if m.width > 0 && w > m.width-4 {
		w = m.width - 4
	}
	return w
}

// visibleCount returns how many entries fit between the dialog's chrome.
func (m Model) visibleCount() int {
	return max(m.height-10, 3)
}

func formatEntry(e history.Entry, width int) string {
	var meta []string
	if e.DurationMS > 0 {
		meta = append(meta, results.FormatDuration(msDuration(e.DurationMS)))
	}
	if !e.IsError {
		meta = append(meta, humanize.Comma(e.RowCount)+" rows")
	}
	if !e.ExecutedAt.IsZero() {
		meta = append(meta, humanize.Time(e.ExecutedAt))
	}
	metaText := strings.Join(meta, " · ")

	queryWidth := max(width-runewidth.StringWidth(metaText)-2, 10)
	query := strings.Join(strings.Fields(e.Query), " ")
	query = runewidth.FillRight(runewidth.Truncate(query, queryWidth, "…"), queryWidth)
	return query + "  " + metaText
}

func msDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
