package dialog

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/sqlharbor/internal/theme"
)

func init() {
	theme.Current = theme.Default()
}

type testActionMsg struct {
	label string
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func action(label string) func() tea.Msg {
	return func() tea.Msg { return testActionMsg{label: label} }
}

func TestHiddenIgnoresInput(t *testing.T) {
	d := New("Title", "Body", Button{Label: "OK", Action: action("ok")})
	assert.False(t, d.Visible())
	d, cmd := d.Update(key("enter"))
	assert.Nil(t, cmd)
	assert.False(t, d.Visible())
	assert.Empty(t, d.View())
}

func TestButtons(t *testing.T) {
	d := New("Title", "Body",
		Button{Label: "One", Action: action("one")},
		Button{Label: "Two", Action: action("two")},
	)
	d.Show()
	d, _ = d.Update(key("left"))
	assert.Equal(t, 0, d.active)
	d, _ = d.Update(key("tab"))
	d, _ = d.Update(key("right"))
	assert.Equal(t, 1, d.active)

	d, cmd := d.Update(key("enter"))
	require.NotNil(t, cmd)
	assert.Equal(t, testActionMsg{label: "two"}, cmd())
	assert.False(t, d.Visible())
}

func TestErrorDialog(t *testing.T) {
	d := NewError("Query Error", "no such table: t")
	d.SetSize(100, 30)
	d.Show()
	assert.Equal(t, KindError, d.Kind())
	v := d.View()
	assert.Contains(t, v, "Query Error")
	assert.Contains(t, v, "no such table: t")
	assert.Contains(t, v, "OK")

	d, cmd := d.Update(key("enter"))
	assert.Nil(t, cmd)
	assert.False(t, d.Visible())
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		name    string
		keys    []string
		want    tea.Msg
		visible bool
	}{
		{name: "enter defaults to no", keys: []string{"enter"}},
		{name: "y confirms", keys: []string{"y"}, want: testActionMsg{label: "drop"}},
		{name: "left then enter confirms", keys: []string{"left", "enter"}, want: testActionMsg{label: "drop"}},
		{name: "n cancels", keys: []string{"n"}},
		{name: "esc cancels", keys: []string{"esc"}},
		{name: "navigation keeps it open", keys: []string{"left"}, visible: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewConfirm("Drop table?", `drop table "main"."t"`, action("drop"))
			d.Show()
			var cmd tea.Cmd
			for _, k := range tt.keys {
				d, cmd = d.Update(key(k))
			}
			assert.Equal(t, tt.visible, d.Visible())
			if tt.want == nil {
				if cmd != nil {
					assert.Nil(t, cmd())
				}
				return
			}
			require.NotNil(t, cmd)
			assert.Equal(t, tt.want, cmd())
		})
	}
}

func TestPrompt(t *testing.T) {
	var submitted string
	d := NewPrompt("Export", "Write results to:", "out.csv", func(v string) tea.Msg {
		submitted = v
		return testActionMsg{label: v}
	})
	d.SetSize(80, 24)
	d.Show()
	assert.Equal(t, KindPrompt, d.Kind())
	assert.Equal(t, "out.csv", d.Value())

	d, _ = d.Update(key("x"))
	assert.Equal(t, "out.csvx", d.Value())
	assert.Contains(t, d.View(), "Write results to:")

	d, cmd := d.Update(key("enter"))
	require.NotNil(t, cmd)
	assert.Equal(t, testActionMsg{label: "out.csvx"}, cmd())
	assert.Equal(t, "out.csvx", submitted)
	assert.False(t, d.Visible())
}

func TestPromptIgnoresBlank(t *testing.T) {
	d := NewPrompt("Export", "Path", "   ", func(string) tea.Msg { return nil })
	d.Show()
	d, cmd := d.Update(key("enter"))
	assert.Nil(t, cmd)
	assert.True(t, d.Visible())

	d, _ = d.Update(key("esc"))
	assert.False(t, d.Visible())
}

func TestSetSize(t *testing.T) {
	d := New("T", "B")
	d.SetSize(200, 50)
	assert.Equal(t, 60, d.maxWidth)
	d.SetSize(40, 20)
	assert.Equal(t, 36, d.maxWidth)
}

func TestOverlay(t *testing.T) {
	bg := strings.Repeat(strings.Repeat(".", 80)+"\n", 23) + strings.Repeat(".", 80)

	d := New("Hi", "there", Button{Label: "OK"})
	d.SetSize(80, 24)
	assert.Equal(t, bg, d.Overlay(bg))

	d.Show()
	out := d.Overlay(bg)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 24)
	assert.Contains(t, out, "Hi")
	assert.True(t, strings.HasPrefix(lines[0], "...."), "rows above the dialog are untouched")
	for _, l := range lines {
		assert.Equal(t, 80, ansi.StringWidth(l))
	}
}
