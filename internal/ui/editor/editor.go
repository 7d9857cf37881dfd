package editor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/sqlharbor/internal/initscript"
	"github.com/sadopc/sqlharbor/internal/theme"
)

// Model wraps a textarea for one query buffer. While focused the textarea
// draws itself; while blurred the buffer is shown syntax highlighted.
type Model struct {
	textarea    textarea.Model
	highlighter *Highlighter
	width       int
	height      int
	focused     bool
	modified    bool
	id          int
}

// New creates an editor for the buffer with the given id.
func New(id int) Model {
	ta := textarea.New()
	ta.Placeholder = "Enter SQL query..."
	ta.ShowLineNumbers = true
	ta.CharLimit = 0

	th := theme.Current
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Prompt = th.EditorLineNumber
	ta.FocusedStyle.Text = lipgloss.NewStyle()
	ta.BlurredStyle.Prompt = th.EditorLineNumber
	ta.BlurredStyle.Text = lipgloss.NewStyle()

	ta.Blur()

	return Model{
		textarea:    ta,
		highlighter: NewHighlighter(""),
		id:          id,
	}
}

func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// Update forwards messages to the textarea while focused.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.focused {
		return m, nil
	}

	prev := m.textarea.Value()
	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	if m.textarea.Value() != prev {
		m.modified = true
	}
	return m, cmd
}

func (m Model) View() string {
	th := theme.Current

	border := th.UnfocusedBorder
	if m.focused {
		border = th.FocusedBorder
	}

	innerW := max(m.width-2, 1)
	innerH := max(m.height-2, 1)

	var content string
	if m.focused {
		m.textarea.SetWidth(innerW)
		m.textarea.SetHeight(innerH)
		content = m.textarea.View()
	} else {
		content = m.renderHighlighted(th, innerH)
	}

	return border.Width(innerW).Height(innerH).Render(content)
}

func (m Model) renderHighlighted(th *theme.Theme, height int) string {
	raw := m.textarea.Value()
	if raw == "" {
		return th.MutedText.Render(m.textarea.Placeholder)
	}

	lines := strings.Split(m.highlighter.Highlight(raw, th), "\n")
	if len(lines) > height {
		lines = lines[:height]
	}

	gutter := max(len(fmt.Sprint(strings.Count(raw, "\n")+1)), 2)
	var b strings.Builder
	for i, line := range lines {
		b.WriteString(th.EditorLineNumber.Render(fmt.Sprintf("%*d ", gutter, i+1)))
		b.WriteString(line)
		if i < len(lines)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Value returns the buffer text.
func (m Model) Value() string {
	return m.textarea.Value()
}

// SetValue replaces the buffer text and leaves the cursor at its end.
func (m *Model) SetValue(s string) {
	m.textarea.SetValue(s)
}

// SetDialect switches syntax highlighting to the adapter's SQL dialect.
func (m *Model) SetDialect(adapterName string) {
	m.highlighter = NewHighlighter(adapterName)
}

// SetShowLineNumbers toggles the line-number gutter.
func (m *Model) SetShowLineNumbers(on bool) {
	m.textarea.ShowLineNumbers = on
}

// SetSize sets the outer size, border included.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.textarea.SetWidth(max(w-2, 1))
	m.textarea.SetHeight(max(h-2, 1))
}

func (m *Model) Focus() {
	m.focused = true
	m.textarea.Focus()
}

func (m *Model) Blur() {
	m.focused = false
	m.textarea.Blur()
}

func (m Model) Focused() bool {
	return m.focused
}

// Modified reports whether the buffer changed since ResetModified.
func (m Model) Modified() bool {
	return m.modified
}

func (m *Model) ResetModified() {
	m.modified = false
}

func (m Model) ID() int {
	return m.id
}

// Cursor returns the cursor's row and rune column.
func (m Model) Cursor() (row, col int) {
	li := m.textarea.LineInfo()
	return m.textarea.Line(), li.StartColumn + li.ColumnOffset
}

// TextBeforeCursor returns the buffer text up to the cursor.
func (m Model) TextBeforeCursor() string {
	lines := strings.Split(m.textarea.Value(), "\n")
	row, col := m.Cursor()
	if row >= len(lines) {
		return m.textarea.Value()
	}
	cur := []rune(lines[row])
	col = min(col, len(cur))
	before := append(append([]string{}, lines[:row]...), string(cur[:col]))
	return strings.Join(before, "\n")
}

// InsertText inserts text at the cursor.
func (m *Model) InsertText(text string) {
	if text == "" {
		return
	}
	m.textarea.InsertString(text)
	m.modified = true
}

// ReplaceWord deletes the n runes before the cursor and inserts text in
// their place. A blurred editor rebuilds the buffer instead and leaves the
// cursor at its end.
func (m *Model) ReplaceWord(n int, text string) {
	if m.focused {
		for range n {
			m.textarea, _ = m.textarea.Update(tea.KeyMsg{Type: tea.KeyBackspace})
		}
		m.textarea.InsertString(text)
		m.modified = true
		return
	}
	before := []rune(m.TextBeforeCursor())
	after := []rune(m.textarea.Value())[len(before):]
	keep := before[:max(len(before)-n, 0)]
	m.textarea.SetValue(string(keep) + text + string(after))
	m.modified = true
}

// CurrentStatement returns the statement under the cursor. A cursor right
// after a terminating semicolon selects the statement it terminates.
func (m Model) CurrentStatement() string {
	all := initscript.Statements(m.textarea.Value())
	if len(all) == 0 {
		return ""
	}
	i := len(initscript.Statements(m.TextBeforeCursor())) - 1
	return all[min(max(i, 0), len(all)-1)]
}
