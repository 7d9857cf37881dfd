package statusbar

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/sqlharbor/internal/adapter"
	appmsg "github.com/sadopc/sqlharbor/internal/msg"
	"github.com/sadopc/sqlharbor/internal/theme"
)

func init() {
	theme.Current = theme.Default()
}

// fakeConn only answers TransactionMode.
type fakeConn struct {
	adapter.Connection
	mode string
}

func (c fakeConn) TransactionMode() string { return c.mode }

func TestNew(t *testing.T) {
	m := New()
	assert.Equal(t, -1, m.rowCount)
	assert.Equal(t, appmsg.KeyModeStandard, m.KeyMode())
	assert.False(t, m.connected)
	assert.Empty(t, m.View(), "zero width renders nothing")
}

func TestConnect(t *testing.T) {
	m := New()
	m.SetSize(120)
	m, _ = m.Update(appmsg.ConnectMsg{
		Conn:    fakeConn{mode: "Auto"},
		Adapter: "postgres",
		Display: "postgres://bob:xxxxx@db/prod",
	})
	assert.True(t, m.connected)
	assert.Equal(t, "Auto", m.TransactionMode())
	v := m.View()
	assert.Contains(t, v, "postgres://bob:xxxxx@db/prod")
	assert.Contains(t, v, "Auto")

	m, cmd := m.Update(appmsg.TransactionModeMsg{Mode: "Manual"})
	require.NotNil(t, cmd)
	assert.Equal(t, "Manual", m.TransactionMode())

	m, _ = m.Update(appmsg.TransactionModeMsg{Err: errors.New("not supported")})
	assert.Equal(t, "Manual", m.TransactionMode())
	text, isErr := m.Message()
	assert.Equal(t, "not supported", text)
	assert.True(t, isErr)
}

func TestDisconnected(t *testing.T) {
	m := New()
	m.SetSize(80)
	assert.Contains(t, m.View(), "disconnected")
	assert.Contains(t, m.View(), "Run")
}

func TestQueryResult(t *testing.T) {
	m := New()
	m.SetSize(120)

	rs := &adapter.ResultSet{Columns: []adapter.Column{{Name: "a"}}}
	for range 1234 {
		rs.Rows = append(rs.Rows, []any{1})
	}
	m, cmd := m.Update(appmsg.QueryResultMsg{Result: rs, Duration: 20 * time.Millisecond})
	require.NotNil(t, cmd)
	v := m.View()
	assert.Contains(t, v, "1,234 rows")
	assert.Contains(t, v, "20 ms")

	m, _ = m.Update(appmsg.QueryResultMsg{Cancelled: true})
	text, _ := m.Message()
	assert.Equal(t, "Query cancelled", text)
}

func TestQueryErr(t *testing.T) {
	m := New()
	m, _ = m.Update(appmsg.QueryErrMsg{Err: errors.New("syntax error")})
	text, isErr := m.Message()
	assert.Equal(t, "syntax error", text)
	assert.True(t, isErr)

	m, _ = m.Update(appmsg.QueryErrMsg{})
	text, _ = m.Message()
	assert.Equal(t, "unknown error", text)
}

func TestExportComplete(t *testing.T) {
	m := New()
	m, _ = m.Update(appmsg.ExportCompleteMsg{Path: "/tmp/out.csv", Bytes: 2048})
	text, isErr := m.Message()
	assert.Equal(t, "Exported 2.0 kB to /tmp/out.csv", text)
	assert.False(t, isErr)
}

func TestClearIgnoresStaleTicks(t *testing.T) {
	m := New()
	m, _ = m.Update(appmsg.StatusMsg{Text: "first"})
	m, _ = m.Update(appmsg.StatusMsg{Text: "second"})

	m, _ = m.Update(ClearStatusMsg{Seq: 1})
	text, _ := m.Message()
	assert.Equal(t, "second", text)

	m, _ = m.Update(ClearStatusMsg{Seq: 2})
	text, _ = m.Message()
	assert.Empty(t, text)
	assert.Equal(t, -1, m.rowCount)
}

func TestKeyMode(t *testing.T) {
	m := New()
	m.SetSize(80)
	m, _ = m.Update(appmsg.ToggleKeyModeMsg{})
	assert.Equal(t, appmsg.KeyModeVim, m.KeyMode())
	m.SetVimState(appmsg.VimInsert)
	m.SetCursor(3, 7)
	v := m.View()
	assert.Contains(t, v, "vim:INSERT")
	assert.Contains(t, v, "3:7")

	m, _ = m.Update(appmsg.ToggleKeyModeMsg{})
	assert.Equal(t, appmsg.KeyModeStandard, m.KeyMode())
	m.SetKeyMode(appmsg.KeyModeVim)
	assert.Equal(t, appmsg.KeyModeVim, m.KeyMode())
}
