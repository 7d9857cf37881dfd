package historybrowser

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/sqlharbor/internal/history"
	"github.com/sadopc/sqlharbor/internal/theme"
)

func init() {
	theme.Current = theme.Default()
}

type fakeSource struct {
	entries map[string][]history.Entry
	err     error
	gotKey  string
	gotN    int
}

func (s *fakeSource) Recent(connKey string, limit int) ([]history.Entry, error) {
	s.gotKey, s.gotN = connKey, limit
	return s.entries[connKey], s.err
}

func newSource() *fakeSource {
	now := time.Now()
	return &fakeSource{entries: map[string][]history.Entry{
		"k1": {
			{ID: 3, Query: "select *\nfrom drivers", ExecutedAt: now, DurationMS: 12, RowCount: 1200},
			{ID: 2, Query: "select count(*) from races", ExecutedAt: now.Add(-time.Hour)},
			{ID: 1, Query: "selec oops", ExecutedAt: now.Add(-48 * time.Hour), IsError: true},
		},
	}}
}

func typeText(m Model, s string) Model {
	for _, r := range s {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func TestShowLoadsConnectionEntries(t *testing.T) {
	src := newSource()
	m := New(src)
	assert.False(t, m.Visible())

	m.Show("k1")
	assert.True(t, m.Visible())
	assert.Equal(t, "k1", src.gotKey)
	assert.Equal(t, loadLimit, src.gotN)
	assert.Len(t, m.Entries(), 3)

	m.Show("other")
	assert.Empty(t, m.Entries())
}

func TestFuzzyFilter(t *testing.T) {
	m := New(newSource())
	m.Show("k1")

	m = typeText(m, "frdrv")
	require.Len(t, m.Entries(), 1)
	assert.Equal(t, int64(3), m.Entries()[0].ID)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	assert.Len(t, m.Entries(), 3)

	m = typeText(m, "zzzz")
	assert.Empty(t, m.Entries())
}

func TestSelect(t *testing.T) {
	m := New(newSource())
	m.Show("k1")

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 2, m.cursor, "cursor stops at the last entry")
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, SelectQueryMsg{Query: "select count(*) from races"}, cmd())
	assert.False(t, m.Visible())
}

func TestEnterWithoutEntries(t *testing.T) {
	m := New(nil)
	m.Show("k1")
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.True(t, m.Visible())

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.Visible())
}

func TestView(t *testing.T) {
	src := newSource()
	m := New(src)
	assert.Empty(t, m.View())

	m.SetSize(120, 30)
	m.Show("k1")
	v := m.View()
	assert.Contains(t, v, "Query History")
	assert.Contains(t, v, "select * from drivers")
	assert.Contains(t, v, "1,200 rows")
	assert.Contains(t, v, "12 ms")
	assert.Contains(t, v, "3 of 3 entries")

	src.err = errors.New("database is locked")
	m.Show("k1")
	assert.Contains(t, m.View(), "database is locked")
}

func TestFormatEntry(t *testing.T) {
	e := history.Entry{Query: "select   1", RowCount: 1}
	assert.Equal(t, "select 1    1 rows", formatEntry(e, 18))
}
