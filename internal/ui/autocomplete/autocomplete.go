// Package autocomplete is the completion popup shown under the editor
// cursor.
package autocomplete

import (
	"strings"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	"github.com/sadopc/sqlharbor/internal/completion"
	"github.com/sadopc/sqlharbor/internal/theme"
)

const maxVisible = 8

// SelectedMsg asks the editor to replace the ReplaceLen runes before the
// cursor with Text.
type SelectedMsg struct {
	Text       string
	ReplaceLen int
}

// DismissMsg is sent when the popup is closed without a choice.
type DismissMsg struct{}

// Model is the completion popup.
type Model struct {
	engine   *completion.Engine
	matches  []completion.Match
	word     string
	selected int
	visible  bool
	width    int
}

func New(engine *completion.Engine) Model {
	return Model{engine: engine, width: 44}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// Trigger matches the word before the cursor. A blank word only opens the
// popup when forced, and nothing opens inside a string literal.
func (m *Model) Trigger(textBeforeCursor string, forced bool) {
	m.visible = false
	if m.engine == nil {
		return
	}
	word, ok := completion.WordBefore(textBeforeCursor, utf8.RuneCountInString(textBeforeCursor))
	if !ok || (word == "" && !forced) {
		return
	}
	matches := m.engine.Complete(word)
	if len(matches) == 0 {
		return
	}
	// A lone exact match is already typed.
	if !forced && len(matches) == 1 && matches[0].Value == word {
		return
	}
	m.matches = matches
	m.word = word
	m.selected = 0
	m.visible = true
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !m.visible || !ok {
		return m, nil
	}
	switch key.String() {
	case "up", "ctrl+p":
		if m.selected > 0 {
			m.selected--
		}
	case "down", "ctrl+n":
		if m.selected < len(m.matches)-1 {
			m.selected++
		}
	case "enter", "tab":
		m.visible = false
		sel := SelectedMsg{Text: m.matches[m.selected].Value, ReplaceLen: utf8.RuneCountInString(m.word)}
		return m, func() tea.Msg { return sel }
	case "esc":
		m.visible = false
		return m, func() tea.Msg { return DismissMsg{} }
	}
	return m, nil
}

// Handles reports whether the popup consumes key while visible.
func (m Model) Handles(key tea.KeyMsg) bool {
	if !m.visible {
		return false
	}
	switch key.String() {
	case "up", "down", "ctrl+p", "ctrl+n", "enter", "tab", "esc":
		return true
	}
	return false
}

func (m Model) View() string {
	if !m.visible || len(m.matches) == 0 {
		return ""
	}
	th := theme.Current

	offset := 0
	if m.selected >= maxVisible {
		offset = m.selected - maxVisible + 1
	}
	end := min(offset+maxVisible, len(m.matches))

	inner := m.width - 2
	lines := make([]string, 0, end-offset)
	for i := offset; i < end; i++ {
		match := m.matches[i]
		typ := " " + match.TypeLabel
		label := runewidth.Truncate(match.Label, max(inner-runewidth.StringWidth(typ)-2, 1), "…")
		label = runewidth.FillRight(label, inner-runewidth.StringWidth(typ)-2)
		if i == m.selected {
			lines = append(lines, th.AutocompleteSelected.Render(label+typ))
		} else {
			lines = append(lines, th.AutocompleteItem.Render(label)+th.AutocompleteType.Render(typ+"  "))
		}
	}
	return th.AutocompleteBorder.Render(strings.Join(lines, "\n"))
}

func (m *Model) Dismiss() { m.visible = false }

func (m Model) Visible() bool { return m.visible }

// Matches returns the current candidates.
func (m Model) Matches() []completion.Match { return m.matches }

func (m *Model) SetEngine(engine *completion.Engine) { m.engine = engine }
