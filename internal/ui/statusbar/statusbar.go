package statusbar

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"

	appmsg "github.com/sadopc/sqlharbor/internal/msg"
	"github.com/sadopc/sqlharbor/internal/theme"
	"github.com/sadopc/sqlharbor/internal/ui/results"
)

// clearDelay is how long a status message stays up.
const clearDelay = 5 * time.Second

// ClearStatusMsg is sent after a timeout to revert the status bar to key hints.
// Seq discards clears scheduled by an earlier message.
type ClearStatusMsg struct {
	Seq int
}

// Model is the status bar component.
type Model struct {
	width       int
	adapterName string
	display     string
	connected   bool
	txnMode     string
	queryTime   time.Duration
	rowCount    int
	keyMode     appmsg.KeyMode
	vimState    appmsg.VimState
	message     string
	isError     bool
	cursorLine  int
	cursorCol   int
	seq         int
}

// New creates a new status bar.
func New() Model {
	return Model{
		rowCount: -1,
		keyMode:  appmsg.KeyModeStandard,
	}
}

// Init returns no initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

func (m *Model) clearAfter() tea.Cmd {
	m.seq++
	seq := m.seq
	return tea.Tick(clearDelay, func(time.Time) tea.Msg {
		return ClearStatusMsg{Seq: seq}
	})
}

func (m *Model) setMessage(text string, isError bool) tea.Cmd {
	m.message = text
	m.isError = isError
	return m.clearAfter()
}

// Update handles status bar messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case appmsg.ConnectMsg:
		m.adapterName = msg.Adapter
		m.display = msg.Display
		m.connected = true
		m.txnMode = ""
		if msg.Conn != nil {
			m.txnMode = msg.Conn.TransactionMode()
		}
		m.message = ""
		m.isError = false

	case appmsg.ConnectErrMsg:
		m.connected = false
		return m, m.setMessage("connection failed", true)

	case appmsg.TransactionModeMsg:
		if msg.Err != nil {
			return m, m.setMessage(msg.Err.Error(), true)
		}
		m.txnMode = msg.Mode
		return m, m.setMessage("Transaction mode: "+msg.Mode, false)

	case appmsg.QueryResultMsg:
		m.queryTime = msg.Duration
		m.rowCount = -1
		switch {
		case msg.Cancelled:
			return m, m.setMessage("Query cancelled", false)
		case msg.Result != nil:
			m.rowCount = len(msg.Result.Rows)
		}
		return m, m.clearAfter()

	case appmsg.QueryErrMsg:
		text := "unknown error"
		if msg.Err != nil {
			text = msg.Err.Error()
		}
		return m, m.setMessage(text, true)

	case appmsg.ExportCompleteMsg:
		return m, m.setMessage(fmt.Sprintf("Exported %s to %s", humanize.Bytes(uint64(max(msg.Bytes, 0))), msg.Path), false)

	case appmsg.StatusMsg:
		if msg.Duration > 0 {
			m.queryTime = msg.Duration
		}
		return m, m.setMessage(msg.Text, msg.IsError)

	case ClearStatusMsg:
		if msg.Seq != m.seq {
			return m, nil
		}
		m.queryTime = 0
		m.rowCount = -1
		m.message = ""
		m.isError = false

	case appmsg.ToggleKeyModeMsg:
		if m.keyMode == appmsg.KeyModeStandard {
			m.keyMode = appmsg.KeyModeVim
		} else {
			m.keyMode = appmsg.KeyModeStandard
		}
	}

	return m, nil
}

// View renders the status bar.
func (m Model) View() string {
	if m.width == 0 {
		return ""
	}

	th := theme.Current

	var left string
	if m.connected {
		target := m.display
		if target == "" {
			target = m.adapterName
		}
		left = th.StatusBarKey.Render(" " + runewidth.Truncate(target, max(m.width/3, 10), "…") + " ")
		if m.txnMode != "" {
			left += th.StatusBarValue.Render(" " + m.txnMode + " ")
		}
	} else {
		left = th.StatusBarKey.Render(" disconnected ")
	}

	var center string
	switch {
	case m.message != "":
		text := runewidth.Truncate(m.message, max(m.width/2, 4), "…")
		if m.isError {
			center = th.StatusBarError.Render(" " + text + " ")
		} else {
			center = th.StatusBarSuccess.Render(" " + text + " ")
		}
	case m.queryTime > 0:
		center = th.StatusBarValue.Render(" " + results.FormatDuration(m.queryTime) + " ")
		if m.rowCount >= 0 {
			center += th.StatusBarValue.Render(" " + humanize.Comma(int64(m.rowCount)) + " rows ")
		}
	default:
		hintKey := th.StatusBarValue
		hintSep := th.StatusBar
		center = hintKey.Render("Ctrl+Enter") +
			hintSep.Render(" Run ") +
			hintKey.Render("Ctrl+Q") +
			hintSep.Render(" Quit ") +
			hintKey.Render("F1") +
			hintSep.Render(" Help ")
	}

	modeStr := fmt.Sprintf(" %s ", m.keyMode)
	if m.keyMode == appmsg.KeyModeVim {
		modeStr = fmt.Sprintf(" %s:%s ", m.keyMode, m.vimState)
	}
	right := th.StatusBarKey.Render(modeStr)
	if m.cursorLine > 0 {
		right += th.StatusBarValue.Render(fmt.Sprintf(" %d:%d ", m.cursorLine, m.cursorCol))
	}

	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(center)-lipgloss.Width(right), 0)
	leftGap := gap / 2

	bar := left +
		th.StatusBar.Render(strings.Repeat(" ", leftGap)) +
		center +
		th.StatusBar.Render(strings.Repeat(" ", gap-leftGap)) +
		right

	return th.StatusBar.Width(m.width).Render(bar)
}

// SetSize sets the status bar width.
func (m *Model) SetSize(width int) {
	m.width = width
}

// SetCursor updates the cursor position display.
func (m *Model) SetCursor(line, col int) {
	m.cursorLine = line
	m.cursorCol = col
}

// SetVimState updates the vim state display.
func (m *Model) SetVimState(state appmsg.VimState) {
	m.vimState = state
}

// KeyMode returns the current key mode.
func (m Model) KeyMode() appmsg.KeyMode {
	return m.keyMode
}

// SetKeyMode sets the key mode.
func (m *Model) SetKeyMode(mode appmsg.KeyMode) {
	m.keyMode = mode
}

// TransactionMode returns the displayed transaction mode.
func (m Model) TransactionMode() string {
	return m.txnMode
}

// Message returns the current status text.
func (m Model) Message() (string, bool) {
	return m.message, m.isError
}
