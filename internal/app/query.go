package app

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sadopc/sqlharbor/internal/adapter"
	"github.com/sadopc/sqlharbor/internal/export"
	"github.com/sadopc/sqlharbor/internal/history"
	"github.com/sadopc/sqlharbor/internal/initscript"
	appmsg "github.com/sadopc/sqlharbor/internal/msg"
	"github.com/sadopc/sqlharbor/internal/refresh"
	"github.com/sadopc/sqlharbor/internal/ui/dialog"
)

const (
	queryErrorTitle = "sqlharbor couldn't run your query."
	defaultExport   = "results.csv"
)

// queryKey is the coordinator key of a buffer's queries.
func queryKey(tabID int) string {
	return "query:" + strconv.Itoa(tabID)
}

// runBuffer runs the whole active buffer.
func (m *Model) runBuffer() tea.Cmd {
	ts := m.activeTab()
	if ts == nil || strings.TrimSpace(ts.editor.Value()) == "" {
		return nil
	}
	query, tabID := ts.editor.Value(), ts.editor.ID()
	return func() tea.Msg { return appmsg.ExecuteQueryMsg{Query: query, TabID: tabID} }
}

// runCurrentStatement runs the statement under the cursor when the backend
// can parse it on its own, and the whole buffer otherwise.
func (m *Model) runCurrentStatement() tea.Cmd {
	ts := m.activeTab()
	if ts == nil || m.conn == nil {
		return m.runBuffer()
	}
	stmt := ts.editor.CurrentStatement()
	if stmt == "" {
		return nil
	}
	conn, buffer, tabID := m.conn, ts.editor.Value(), ts.editor.ID()
	return func() tea.Msg {
		query := conn.ValidateSQL(context.Background(), stmt)
		if query == "" {
			query = buffer
		}
		return appmsg.ExecuteQueryMsg{Query: query, TabID: tabID}
	}
}

// executeQuery starts a run for a buffer. Begin cancels the context of the
// buffer's previous run. The loading state is set here rather than by a message so a fast
// result can never arrive before it.
func (m *Model) executeQuery(query string, tabID int) tea.Cmd {
	ts := m.tabStates[tabID]
	if ts == nil {
		return nil
	}
	stmts := initscript.Statements(query)
	if len(stmts) == 0 {
		return nil
	}
	if m.conn == nil {
		return m.showError(appmsg.ErrorMsg{Title: queryErrorTitle, Body: errNotConnected.Error()})
	}
	conn, limit := m.conn, m.cfg.Results.RowLimit
	ctx, tok := m.coord.Begin(context.Background(), queryKey(tabID))
	ts.query = query
	ts.results.SetLoading(true)
	m.tabs, _ = m.tabs.Update(appmsg.QueryStartedMsg{TabID: tabID, Token: tok})
	m.logger.Debug("running query", "tab", tabID, "statements", len(stmts))

	return func() tea.Msg {
		return runStatements(ctx, conn, stmts, limit, tabID, tok)
	}
}

// runStatements executes stmts in order and keeps the last result set.
// One row past limit is fetched to tell whether the result was cut.
func runStatements(ctx context.Context, conn adapter.Connection, stmts []string, limit, tabID int, tok refresh.Token) tea.Msg {
	start := time.Now()
	out := appmsg.QueryResultMsg{TabID: tabID, Token: tok}
	for _, stmt := range stmts {
		cur, err := conn.Execute(ctx, stmt)
		if err != nil {
			return appmsg.QueryErrMsg{Err: err, TabID: tabID, Token: tok}
		}
		if ctx.Err() != nil {
			out.Cancelled = true
			break
		}
		out.Statements++
		if cur == nil {
			continue
		}
		if limit > 0 {
			cur = cur.SetLimit(limit + 1)
		}
		rs, err := cur.FetchAll(ctx)
		if err != nil {
			return appmsg.QueryErrMsg{Err: err, TabID: tabID, Token: tok}
		}
		if rs == nil {
			out.Cancelled = true
			break
		}
		out.Truncated = limit > 0 && len(rs.Rows) > limit
		if out.Truncated {
			rs.Rows = rs.Rows[:limit]
		}
		out.Result = rs
	}
	out.Duration = time.Since(start)
	if out.Cancelled {
		out.Result = nil
	}
	return out
}

func (m *Model) handleQueryResult(msg appmsg.QueryResultMsg) tea.Cmd {
	if !m.coord.Current(msg.Token) {
		return nil
	}
	m.coord.Finish(msg.Token)
	ts := m.tabStates[msg.TabID]
	if ts == nil {
		return nil
	}

	if msg.Cancelled {
		ts.results.SetCancelled()
	} else {
		ts.results.SetResults(msg.Result, msg.Duration, msg.Truncated, msg.Statements)
	}
	m.tabs, _ = m.tabs.Update(msg)
	var cmd tea.Cmd
	m.statusbar, cmd = m.statusbar.Update(msg)

	var rows int64
	if msg.Result != nil {
		rows = int64(len(msg.Result.Rows))
	}
	return tea.Batch(cmd, m.recordHistory(ts.query, msg.Duration, rows, false))
}

func (m *Model) handleQueryErr(msg appmsg.QueryErrMsg) tea.Cmd {
	if !m.coord.Current(msg.Token) {
		return nil
	}
	m.coord.Finish(msg.Token)
	ts := m.tabStates[msg.TabID]
	if ts == nil {
		return nil
	}

	ts.results.SetError(msg.Err)
	m.tabs, _ = m.tabs.Update(msg)
	var cmd tea.Cmd
	m.statusbar, cmd = m.statusbar.Update(msg)
	return tea.Batch(
		cmd,
		m.showError(appmsg.ErrorFrom(msg.Err, queryErrorTitle)),
		m.recordHistory(ts.query, 0, 0, true),
	)
}

// cancelQuery stops the active buffer's run. The UI leaves the loading
// state at once; the run's own result is dropped when it arrives.
func (m *Model) cancelQuery() tea.Cmd {
	tabID := m.tabs.ActiveID()
	if !m.coord.Cancel(queryKey(tabID)) {
		return nil
	}
	if ts := m.tabStates[tabID]; ts != nil {
		ts.results.SetCancelled()
	}
	cancelled := appmsg.QueryResultMsg{TabID: tabID, Cancelled: true}
	m.tabs, _ = m.tabs.Update(cancelled)
	var cmd tea.Cmd
	m.statusbar, cmd = m.statusbar.Update(cancelled)
	return tea.Batch(cmd, m.cancelConn())
}

// cancelConn interrupts the statement running on the connection. Some
// backends cancel over the network, so it runs off the event loop.
func (m *Model) cancelConn() tea.Cmd {
	conn := m.conn
	if conn == nil {
		return nil
	}
	return func() tea.Msg {
		conn.Cancel()
		return nil
	}
}

func (m *Model) recordHistory(query string, d time.Duration, rows int64, isErr bool) tea.Cmd {
	if m.history == nil || m.connKey == "" || strings.TrimSpace(query) == "" {
		return nil
	}
	h := m.history
	e := history.Entry{
		ConnKey:    m.connKey,
		Query:      query,
		Adapter:    m.adapterName,
		ExecutedAt: time.Now(),
		DurationMS: d.Milliseconds(),
		RowCount:   rows,
		IsError:    isErr,
	}
	return func() tea.Msg {
		if err := h.Add(e); err != nil {
			return historySavedMsg{err: err}
		}
		return nil
	}
}

func (m *Model) toggleTransaction() tea.Cmd {
	conn := m.conn
	if conn == nil {
		return nil
	}
	return func() tea.Msg {
		mode, err := conn.ToggleTransactionMode(context.Background())
		if errors.Is(err, adapter.ErrNotSupported) {
			err = errors.New(conn.Name() + " has no transaction modes")
		}
		return appmsg.TransactionModeMsg{Mode: mode, Err: err}
	}
}

// exportQuery is the active buffer's last run, or its text if it has not
// run yet.
func (m Model) exportQuery() string {
	ts := m.activeTab()
	if ts == nil {
		return ""
	}
	if strings.TrimSpace(ts.query) != "" {
		return ts.query
	}
	return ts.editor.Value()
}

// promptExport asks where to write the active buffer's results.
func (m *Model) promptExport() tea.Cmd {
	if strings.TrimSpace(m.exportQuery()) == "" {
		return m.showError(appmsg.ErrorFrom(adapter.ErrEmptyCopy, adapter.CopyErrorTitle))
	}
	d := dialog.NewPrompt("Export Data", "Write the results to (.csv, .parquet, .json):", defaultExport,
		func(path string) tea.Msg { return appmsg.ExportRequestMsg{Path: path} })
	return m.showDialog(d)
}

// export copies the query's full result to a file with the backend's
// Copy, which streams past the display row limit.
func (m *Model) export(req appmsg.ExportRequestMsg) tea.Cmd {
	conn := m.conn
	query := m.exportQuery()
	path := initscript.ExpandHome(req.Path)
	return func() tea.Msg {
		if conn == nil {
			return appmsg.ExportErrMsg{Err: adapter.NewCopyError(adapter.CopyErrorTitle, errNotConnected)}
		}
		format := export.Format(req.Format)
		if format == "" {
			f, err := export.FormatFromPath(path)
			if err != nil {
				return appmsg.ExportErrMsg{Err: adapter.NewCopyError(adapter.CopyErrorTitle, err)}
			}
			format = f
		}
		opts, err := export.Defaults(string(format))
		if err != nil {
			return appmsg.ExportErrMsg{Err: adapter.NewCopyError(adapter.CopyErrorTitle, err)}
		}
		if err := conn.Copy(context.Background(), query, path, opts); err != nil {
			return appmsg.ExportErrMsg{Err: err}
		}
		var size int64
		if info, err := os.Stat(path); err == nil {
			size = info.Size()
		}
		return appmsg.ExportCompleteMsg{Path: path, Bytes: size}
	}
}
