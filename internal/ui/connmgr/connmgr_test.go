package connmgr

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/sqlharbor/internal/adapter"
	"github.com/sadopc/sqlharbor/internal/config"
	appmsg "github.com/sadopc/sqlharbor/internal/msg"
	"github.com/sadopc/sqlharbor/internal/theme"
)

func init() {
	theme.Current = theme.Default()
	adapter.Register("fake", func([]string, adapter.Options, *slog.Logger) (adapter.Adapter, error) {
		return nil, errors.New("fake adapters do not connect")
	}, nil)
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	case "ctrl+t":
		return tea.KeyMsg{Type: tea.KeyCtrlT}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func typeText(m Model, s string) Model {
	for _, r := range s {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func profiles() map[string]config.Profile {
	return map[string]config.Profile{
		"warehouse": {Adapter: "fake", ConnStr: []string{"postgres://bob:secret@db/prod"}, Options: map[string]any{"read_only": true}},
		"local":     {Adapter: "fake", ConnStr: []string{"a.db", "b.db"}},
	}
}

func TestHiddenIgnoresInput(t *testing.T) {
	m := New(profiles(), nil)
	m, cmd := m.Update(key("enter"))
	assert.Nil(t, cmd)
	assert.Empty(t, m.View())
}

func TestConnectToProfile(t *testing.T) {
	m := New(profiles(), nil)
	m.Show()
	m, _ = m.Update(key("j"))
	m, cmd := m.Update(key("enter"))
	require.NotNil(t, cmd)
	assert.False(t, m.Visible())
	assert.Equal(t, appmsg.ConnectRequestMsg{
		Adapter: "fake",
		ConnStr: []string{"postgres://bob:secret@db/prod"},
		Options: adapter.Options{"read-only": true},
		Profile: "warehouse",
	}, cmd())
}

func TestListView(t *testing.T) {
	m := New(profiles(), nil)
	m.SetSize(100, 30)
	m.Show()
	v := m.View()
	assert.Contains(t, v, "local  (fake://a.db,b.db)")
	assert.Contains(t, v, "bob:xxxxx@db/prod")
	assert.NotContains(t, v, "secret")
	assert.Contains(t, v, "+ New Profile")
}

func TestDelete(t *testing.T) {
	m := New(profiles(), nil)
	m.Show()
	m, cmd := m.Update(key("d"))
	require.NotNil(t, cmd)
	got := cmd().(ProfilesUpdatedMsg)
	assert.Contains(t, got.Profiles, "warehouse")
	assert.NotContains(t, got.Profiles, "local")
	assert.Equal(t, []string{"warehouse"}, m.names)
}

func TestCreateProfile(t *testing.T) {
	m := New(nil, nil)
	m.Show()
	m, _ = m.Update(key("enter"))
	require.Equal(t, StateForm, m.State())

	m = typeText(m, "dev")
	m, _ = m.Update(key("tab"))
	m = typeText(m, "fake")
	m, _ = m.Update(key("tab"))
	m = typeText(m, "one.db, two.db")
	m, _ = m.Update(key("tab"))
	m = typeText(m, "read_only, init_path=~/x.sql")

	m, cmd := m.Update(key("ctrl+s"))
	require.NotNil(t, cmd)
	assert.Equal(t, StateList, m.State())
	got := cmd().(ProfilesUpdatedMsg)
	assert.Equal(t, config.Profile{
		Adapter: "fake",
		ConnStr: []string{"one.db", "two.db"},
		Options: map[string]any{"read-only": true, "init-path": "~/x.sql"},
	}, got.Profiles["dev"])
}

func TestRenameProfile(t *testing.T) {
	m := New(profiles(), nil)
	m.Show()
	m, _ = m.Update(key("e"))
	require.Equal(t, StateForm, m.State())
	assert.Equal(t, "local", m.inputs[fieldName].Value())
	assert.Equal(t, "a.db, b.db", m.inputs[fieldConnStr].Value())

	m = typeText(m, "2")
	m, cmd := m.Update(key("ctrl+s"))
	require.NotNil(t, cmd)
	got := cmd().(ProfilesUpdatedMsg)
	assert.Contains(t, got.Profiles, "local2")
	assert.NotContains(t, got.Profiles, "local")
	assert.Equal(t, "local2", m.names[m.cursor])
}

func TestFormErrors(t *testing.T) {
	m := New(nil, nil)
	m.Show()
	m, _ = m.Update(key("n"))

	m, cmd := m.Update(key("ctrl+s"))
	assert.Nil(t, cmd)
	assert.Equal(t, StateForm, m.State())
	assert.Contains(t, m.View(), "a profile needs a name")

	m = typeText(m, "x")
	m, _ = m.Update(key("tab"))
	m = typeText(m, "oracle")
	m, _ = m.Update(key("ctrl+s"))
	assert.Contains(t, m.message, `unknown adapter "oracle"`)

	m, _ = m.Update(key("esc"))
	assert.Equal(t, StateList, m.State())
}

func TestTestConnection(t *testing.T) {
	orig := probe
	t.Cleanup(func() { probe = orig })
	var got config.Profile
	probe = func(_ context.Context, p config.Profile, _ *slog.Logger) error {
		got = p
		return errors.New("dial postgres://bob:secret@db/prod: refused")
	}

	m := New(profiles(), nil)
	m.Show()
	m, _ = m.Update(key("down"))
	m, _ = m.Update(key("e"))
	m, cmd := m.Update(key("ctrl+t"))
	require.NotNil(t, cmd)
	assert.Equal(t, StateTesting, m.State())
	assert.Contains(t, m.View(), "Testing connection")

	m, _ = m.Update(cmd())
	assert.Equal(t, StateForm, m.State())
	assert.Equal(t, []string{"postgres://bob:secret@db/prod"}, got.ConnStr)
	assert.True(t, m.isError)
	assert.Contains(t, m.message, "bob:xxxxx@db/prod")
	assert.NotContains(t, m.message, "secret")

	probe = func(context.Context, config.Profile, *slog.Logger) error { return nil }
	m, cmd = m.Update(key("ctrl+t"))
	m, _ = m.Update(cmd())
	assert.Equal(t, "Connection successful!", m.message)
}

func TestParseOptions(t *testing.T) {
	tests := []struct {
		in      string
		want    map[string]any
		wantErr bool
	}{
		{in: "", want: nil},
		{in: " , ", want: nil},
		{in: "read_only", want: map[string]any{"read-only": true}},
		{in: "sslmode = require, timeout=5", want: map[string]any{"sslmode": "require", "timeout": "5"}},
		{in: "=oops", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOptions(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatOptions(t *testing.T) {
	assert.Empty(t, FormatOptions(nil))
	assert.Equal(t, "init-path=x.sql, read-only, timeout=5",
		FormatOptions(map[string]any{"read-only": true, "timeout": 5, "init-path": "x.sql"}))
}
