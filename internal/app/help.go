package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	appmsg "github.com/sadopc/sqlharbor/internal/msg"
	"github.com/sadopc/sqlharbor/internal/theme"
)

type helpSection struct {
	title    string
	bindings []key.Binding
}

// helpSections follows the active key map so vim bindings show up only in
// vim mode.
func (m Model) helpSections() []helpSection {
	k := m.keyMap
	sections := []helpSection{
		{"Query", []key.Binding{k.ExecuteQuery, k.ExecuteStatement, k.CancelQuery, k.Autocomplete, k.Export, k.ToggleTransaction}},
		{"Navigation", []key.Binding{k.FocusNext, k.FocusPrev, k.FocusSidebar, k.FocusEditor, k.FocusResults}},
		{"Tabs", []key.Binding{k.NewTab, k.CloseTab, k.NextTab, k.PrevTab}},
		{"Application", []key.Binding{k.OpenConnMgr, k.ToggleSidebar, k.RefreshCatalog, k.History, k.ToggleKeyMode, k.Quit}},
		{"Resize Panes", []key.Binding{k.ResizeLeft, k.ResizeRight, k.ResizeUp, k.ResizeDown}},
	}
	if m.keyMode == appmsg.KeyModeVim {
		sections = append(sections, helpSection{"Vim Normal Mode", []key.Binding{
			k.VimInsert, k.VimAppend, k.VimEscape, k.VimUp, k.VimDown, k.VimLeft, k.VimRight, k.VimTop, k.VimBottom,
		}})
	}
	return sections
}

func (m Model) renderHelp() string {
	th := theme.Current
	keyStyle := th.DialogTitle.UnsetBold()
	sectionStyle := th.DialogTitle.MarginTop(1)

	column := func(sections []helpSection) string {
		var b strings.Builder
		for _, s := range sections {
			b.WriteString(sectionStyle.Render(s.title))
			b.WriteString("\n")
			for _, kb := range s.bindings {
				h := kb.Help()
				if h.Key == "" {
					continue
				}
				fmt.Fprintf(&b, "  %s  %s\n", keyStyle.Render(fmt.Sprintf("%-12s", h.Key)), h.Desc)
			}
		}
		return strings.TrimRight(b.String(), "\n")
	}

	sections := m.helpSections()
	half := (len(sections) + 1) / 2
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		column(sections[:half]),
		"    ",
		column(sections[half:]),
	)

	content := lipgloss.JoinVertical(lipgloss.Left,
		th.DialogTitle.Render("sqlharbor - Keyboard Shortcuts"),
		body,
		"",
		m.help.ShortHelpView(m.keyMap.ShortHelp()),
		th.MutedText.Render("Press ? / F1 / Esc to close"),
	)
	return th.DialogBorder.Render(content)
}
