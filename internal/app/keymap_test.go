package app

import (
	"testing"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func TestStandardKeyMapKeys(t *testing.T) {
	km := StandardKeyMap()
	tests := []struct {
		name    string
		binding key.Binding
		want    []string
	}{
		{"ExecuteQuery", km.ExecuteQuery, []string{"ctrl+enter", "ctrl+j", "f5", "ctrl+g"}},
		{"ExecuteStatement", km.ExecuteStatement, []string{"alt+enter", "shift+f5"}},
		{"CancelQuery", km.CancelQuery, []string{"ctrl+c"}},
		{"Quit", km.Quit, []string{"ctrl+q"}},
		{"Help", km.Help, []string{"f1"}},
		{"ToggleKeyMode", km.ToggleKeyMode, []string{"f2"}},
		{"ToggleSidebar", km.ToggleSidebar, []string{"ctrl+b", "f10"}},
		{"RefreshCatalog", km.RefreshCatalog, []string{"ctrl+r"}},
		{"OpenConnMgr", km.OpenConnMgr, []string{"ctrl+o"}},
		{"History", km.History, []string{"f8", "ctrl+h"}},
		{"Export", km.Export, []string{"ctrl+e"}},
		{"ToggleTransaction", km.ToggleTransaction, []string{"f6"}},
		{"FocusNext", km.FocusNext, []string{"tab"}},
		{"FocusPrev", km.FocusPrev, []string{"shift+tab"}},
		{"FocusSidebar", km.FocusSidebar, []string{"alt+1", "f9"}},
		{"NewTab", km.NewTab, []string{"ctrl+t"}},
		{"CloseTab", km.CloseTab, []string{"ctrl+w"}},
		{"NextTab", km.NextTab, []string{"ctrl+pgdown", "ctrl+]"}},
		{"PrevTab", km.PrevTab, []string{"ctrl+pgup"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.binding.Keys())
		})
	}
}

func TestStandardKeyMapHasNoVimBindings(t *testing.T) {
	km := StandardKeyMap()
	for _, b := range []key.Binding{km.VimUp, km.VimDown, km.VimLeft, km.VimRight, km.VimInsert, km.VimAppend, km.VimEscape, km.VimTop, km.VimBottom} {
		assert.Empty(t, b.Keys())
	}
}

// Editor keys that the textarea already uses must not be taken by global
// bindings.
func TestGlobalBindingsLeaveEditingKeys(t *testing.T) {
	km := StandardKeyMap()
	editing := []string{"ctrl+n", "ctrl+p", "ctrl+k", "ctrl+u", "ctrl+a", "ctrl+d", "esc", "enter", "backspace"}
	for _, b := range km.FullHelp() {
		for _, binding := range b {
			for _, k := range editing {
				assert.NotContains(t, binding.Keys(), k, binding.Help().Desc)
			}
		}
	}
}

func TestVimKeyMap(t *testing.T) {
	km := VimKeyMap()
	assert.Equal(t, []string{"k"}, km.VimUp.Keys())
	assert.Equal(t, []string{"j"}, km.VimDown.Keys())
	assert.Equal(t, []string{"h"}, km.VimLeft.Keys())
	assert.Equal(t, []string{"l"}, km.VimRight.Keys())
	assert.Equal(t, []string{"i"}, km.VimInsert.Keys())
	assert.Equal(t, []string{"a"}, km.VimAppend.Keys())
	assert.Equal(t, []string{"esc"}, km.VimEscape.Keys())
	assert.Equal(t, []string{"g"}, km.VimTop.Keys())
	assert.Equal(t, []string{"G"}, km.VimBottom.Keys())

	// Standard bindings carry over.
	std := StandardKeyMap()
	assert.Equal(t, std.Quit.Keys(), km.Quit.Keys())
	assert.Equal(t, std.ExecuteQuery.Keys(), km.ExecuteQuery.Keys())
	assert.Equal(t, std.FocusSidebar.Keys(), km.FocusSidebar.Keys())
}

func TestKeyMatches(t *testing.T) {
	km := StandardKeyMap()
	assert.True(t, key.Matches(tea.KeyMsg{Type: tea.KeyF5}, km.ExecuteQuery))
	assert.True(t, key.Matches(tea.KeyMsg{Type: tea.KeyCtrlJ}, km.ExecuteQuery))
	assert.True(t, key.Matches(tea.KeyMsg{Type: tea.KeyCtrlC}, km.CancelQuery))
	assert.True(t, key.Matches(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("1"), Alt: true}, km.FocusSidebar))
	assert.False(t, key.Matches(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("1")}, km.FocusSidebar))
}

func TestHelp(t *testing.T) {
	km := StandardKeyMap()
	short := km.ShortHelp()
	assert.Len(t, short, 5)
	for _, b := range short {
		assert.NotEmpty(t, b.Help().Key)
	}

	groups := km.FullHelp()
	assert.Len(t, groups, 6)
	total := 0
	for _, g := range groups {
		assert.NotEmpty(t, g)
		total += len(g)
	}
	assert.Equal(t, 26, total)
}

func TestHelpSectionsFollowKeyMode(t *testing.T) {
	m := New(Options{})
	std := m.helpSections()
	m.toggleKeyMode()
	vim := m.helpSections()
	assert.Len(t, vim, len(std)+1)
	assert.Equal(t, "Vim Normal Mode", vim[len(vim)-1].title)
}
