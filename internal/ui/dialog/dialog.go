package dialog

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/sadopc/sqlharbor/internal/theme"
)

// Kind selects the dialog's frame and input handling.
type Kind int

const (
	KindMessage Kind = iota
	KindError
	KindConfirm
	KindPrompt
)

// Button represents a dialog button. A nil Action just closes the dialog.
type Button struct {
	Label  string
	Action func() tea.Msg
}

// Model is a reusable modal dialog component.
type Model struct {
	kind     Kind
	title    string
	body     string
	buttons  []Button
	initial  int
	active   int
	visible  bool
	width    int
	height   int
	maxWidth int

	input    textinput.Model
	onSubmit func(string) tea.Msg
}

// New creates a new dialog.
func New(title, body string, buttons ...Button) Model {
	return Model{
		title:    title,
		body:     body,
		buttons:  buttons,
		maxWidth: 60,
	}
}

// NewError creates an error dialog with a single OK button.
func NewError(title, body string) Model {
	m := New(title, body, Button{Label: "OK"})
	m.kind = KindError
	m.maxWidth = 72
	return m
}

// NewConfirm creates a Yes/No dialog. No is selected initially; Yes runs
// onYes.
func NewConfirm(title, body string, onYes func() tea.Msg) Model {
	m := New(title, body, Button{Label: "Yes", Action: onYes}, Button{Label: "No"})
	m.kind = KindConfirm
	m.initial = 1
	return m
}

// NewPrompt creates a single-line input dialog. Enter passes the trimmed
// value to onSubmit; an empty value is ignored.
func NewPrompt(title, label, value string, onSubmit func(string) tea.Msg) Model {
	m := New(title, label)
	m.kind = KindPrompt
	m.onSubmit = onSubmit
	m.input = textinput.New()
	m.input.Prompt = "> "
	m.input.SetValue(value)
	m.input.CursorEnd()
	m.input.Width = m.maxWidth - 10
	return m
}

// Init returns no initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles dialog messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.visible {
		return m, nil
	}
	if m.kind == KindPrompt {
		return m.updatePrompt(msg)
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "left", "shift+tab", "h":
			if m.active > 0 {
				m.active--
			}
		case "right", "tab", "l":
			if m.active < len(m.buttons)-1 {
				m.active++
			}
		case "y":
			if m.kind == KindConfirm {
				m.visible = false
				return m, m.buttons[0].Action
			}
		case "n":
			if m.kind == KindConfirm {
				m.visible = false
			}
		case "enter":
			m.visible = false
			if m.active < len(m.buttons) {
				return m, m.buttons[m.active].Action
			}
		case "esc", "q":
			m.visible = false
		}
	}

	return m, nil
}

func (m Model) updatePrompt(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "enter":
			value := strings.TrimSpace(m.input.Value())
			if value == "" {
				return m, nil
			}
			m.visible = false
			m.input.Blur()
			if m.onSubmit == nil {
				return m, nil
			}
			submit := m.onSubmit
			return m, func() tea.Msg { return submit(value) }
		case "esc":
			m.visible = false
			m.input.Blur()
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the dialog box.
func (m Model) View() string {
	if !m.visible {
		return ""
	}

	th := theme.Current
	inner := max(m.maxWidth-6, 10)

	title := th.DialogTitle.Render(m.title)
	body := lipgloss.NewStyle().Width(inner).Render(m.body)

	var footer string
	if m.kind == KindPrompt {
		footer = m.input.View() + "\n\n" + th.StatusBar.Render("enter to confirm, esc to cancel")
	} else {
		btns := make([]string, 0, len(m.buttons))
		for i, btn := range m.buttons {
			style := th.DialogButton
			if i == m.active {
				style = th.DialogButtonActive
			}
			btns = append(btns, style.Render(btn.Label))
		}
		footer = lipgloss.NewStyle().Width(inner).Align(lipgloss.Center).
			Render(lipgloss.JoinHorizontal(lipgloss.Center, btns...))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", footer)

	border := th.DialogBorder
	if m.kind == KindError {
		border = th.DialogErrorBorder
	}
	return border.Render(content)
}

// Show makes the dialog visible.
func (m *Model) Show() tea.Cmd {
	m.visible = true
	m.active = m.initial
	if m.kind == KindPrompt {
		return m.input.Focus()
	}
	return nil
}

// Hide makes the dialog invisible.
func (m *Model) Hide() {
	m.visible = false
}

// Visible returns whether the dialog is shown.
func (m Model) Visible() bool {
	return m.visible
}

// Kind returns the dialog kind.
func (m Model) Kind() Kind {
	return m.kind
}

// Value returns the prompt's current input.
func (m Model) Value() string {
	return m.input.Value()
}

// SetSize sets the available space for centering.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	if m.maxWidth > width-4 {
		m.maxWidth = max(width-4, 20)
	}
	if m.kind == KindPrompt {
		m.input.Width = max(m.maxWidth-10, 10)
	}
}

// Overlay renders the dialog centered over background. Styled background
// lines are cut on cell boundaries so their escape sequences survive.
func (m Model) Overlay(background string) string {
	if !m.visible {
		return background
	}

	dialog := m.View()
	bgLines := strings.Split(background, "\n")
	dlgLines := strings.Split(dialog, "\n")
	dlgW := lipgloss.Width(dialog)

	startY := max((len(bgLines)-len(dlgLines))/2, 0)
	startX := max((m.width-dlgW)/2, 0)

	for i, dlgLine := range dlgLines {
		y := startY + i
		if y >= len(bgLines) {
			break
		}
		line := bgLines[y]
		prefix := ansi.Truncate(line, startX, "")
		if w := ansi.StringWidth(prefix); w < startX {
			prefix += strings.Repeat(" ", startX-w)
		}
		suffix := ansi.TruncateLeft(line, startX+ansi.StringWidth(dlgLine), "")
		bgLines[y] = prefix + dlgLine + suffix
	}

	return strings.Join(bgLines, "\n")
}
