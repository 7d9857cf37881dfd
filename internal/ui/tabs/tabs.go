package tabs

import (
	"fmt"
	"slices"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	appmsg "github.com/sadopc/sqlharbor/internal/msg"
	"github.com/sadopc/sqlharbor/internal/theme"
)

// Tab is one editor buffer.
type Tab struct {
	ID       int
	Title    string
	Modified bool
	// Running is set while the buffer's query executes.
	Running bool
}

// Model is the tab bar component.
type Model struct {
	tabs   []Tab
	active int
	nextID int
	width  int
}

// New creates a new tab bar with one default tab.
func New() Model {
	return Model{
		tabs:   []Tab{{ID: 0, Title: "Tab 1"}},
		nextID: 1,
	}
}

// Init returns no initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles tab bar messages. Opening a tab answers with a
// SwitchTabMsg carrying the new tab's ID and closing one with the tab
// that became active.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case appmsg.NewTabMsg:
		tab := Tab{
			ID:    m.nextID,
			Title: fmt.Sprintf("Tab %d", m.nextID+1),
		}
		m.nextID++
		m.tabs = append(m.tabs, tab)
		m.active = len(m.tabs) - 1
		return m, switchTo(tab.ID)

	case appmsg.CloseTabMsg:
		if len(m.tabs) <= 1 {
			return m, nil
		}
		idx := m.indexByID(msg.TabID)
		if idx < 0 {
			return m, nil
		}
		m.tabs = slices.Delete(slices.Clone(m.tabs), idx, idx+1)
		if m.active > idx || m.active >= len(m.tabs) {
			m.active--
		}
		m.active = max(m.active, 0)
		return m, switchTo(m.tabs[m.active].ID)

	case appmsg.SwitchTabMsg:
		if idx := m.indexByID(msg.TabID); idx >= 0 {
			m.active = idx
		}

	case appmsg.QueryStartedMsg:
		m.setRunning(msg.TabID, true)
	case appmsg.QueryResultMsg:
		m.setRunning(msg.TabID, false)
	case appmsg.QueryErrMsg:
		m.setRunning(msg.TabID, false)
	}

	return m, nil
}

func switchTo(id int) tea.Cmd {
	return func() tea.Msg { return appmsg.SwitchTabMsg{TabID: id} }
}

// View renders the tab bar.
func (m Model) View() string {
	if m.width == 0 {
		return ""
	}

	th := theme.Current

	tabs := make([]string, 0, len(m.tabs)+1)
	for i, tab := range m.tabs {
		title := tab.Title
		if tab.Modified {
			title += " *"
		}
		if tab.Running {
			title += " …"
		}

		style := th.TabInactive
		if i == m.active {
			style = th.TabActive
		}
		tabs = append(tabs, style.Render(title))
	}
	tabs = append(tabs, th.TabInactive.Render(" + "))

	bar := lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)
	return th.TabBar.Width(m.width).Render(bar)
}

// SetSize sets the tab bar width.
func (m *Model) SetSize(width int) {
	m.width = width
}

// ActiveTab returns the active tab.
func (m Model) ActiveTab() Tab {
	if m.active < len(m.tabs) {
		return m.tabs[m.active]
	}
	return Tab{}
}

// ActiveID returns the active tab ID.
func (m Model) ActiveID() int {
	return m.ActiveTab().ID
}

// SetModified marks a tab as modified.
func (m *Model) SetModified(tabID int, modified bool) {
	if idx := m.indexByID(tabID); idx >= 0 {
		m.tabs[idx].Modified = modified
	}
}

func (m *Model) setRunning(tabID int, running bool) {
	if idx := m.indexByID(tabID); idx >= 0 {
		m.tabs[idx].Running = running
	}
}

// NextTab switches to the next tab.
func (m *Model) NextTab() tea.Cmd {
	if len(m.tabs) == 0 {
		return nil
	}
	m.active = (m.active + 1) % len(m.tabs)
	return switchTo(m.tabs[m.active].ID)
}

// PrevTab switches to the previous tab.
func (m *Model) PrevTab() tea.Cmd {
	if len(m.tabs) == 0 {
		return nil
	}
	m.active = (m.active - 1 + len(m.tabs)) % len(m.tabs)
	return switchTo(m.tabs[m.active].ID)
}

// Tabs returns all tabs.
func (m Model) Tabs() []Tab {
	return m.tabs
}

// Count returns the number of tabs.
func (m Model) Count() int {
	return len(m.tabs)
}

func (m Model) indexByID(id int) int {
	return slices.IndexFunc(m.tabs, func(t Tab) bool { return t.ID == id })
}
