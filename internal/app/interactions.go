package app

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sadopc/sqlharbor/internal/catalog"
	appmsg "github.com/sadopc/sqlharbor/internal/msg"
	"github.com/sadopc/sqlharbor/internal/ui/dialog"
)

const (
	interactionErrorTitle = "sqlharbor couldn't run this catalog action."
	fetchErrorTitle       = "sqlharbor couldn't fetch the object definition."
)

// runInteraction performs the action a catalog context-menu entry asks
// for.
func (m *Model) runInteraction(it *catalog.Item, in catalog.Interaction) tea.Cmd {
	if it == nil || in.Run == nil {
		return nil
	}
	act := in.Run(it)
	m.logger.Debug("catalog interaction", "label", in.Label, "item", it.QualifiedIdentifier)

	switch {
	case act.NeedsChildren:
		if it.State == catalog.Loaded {
			// The interaction asked again after its children arrived.
			return nil
		}
		return m.loadChildren(it, &in)

	case act.Execute != "" && act.Confirm:
		d := dialog.NewConfirm(in.Label, "This will run:\n\n"+act.Execute,
			func() tea.Msg { return actionConfirmedMsg{action: act} })
		return m.showDialog(d)

	case act.Execute != "":
		return m.runAction(act)

	case act.FetchText != "":
		return m.fetchText(act.FetchText, act.FetchColumn)

	case act.NewBuffer != "":
		text := act.NewBuffer
		return func() tea.Msg { return appmsg.NewTabMsg{Query: text} }

	case act.InsertText != "":
		text := act.InsertText
		return func() tea.Msg { return appmsg.InsertTextMsg{Text: text} }
	}
	return nil
}

// runAction executes an interaction statement and drains its result.
func (m *Model) runAction(act catalog.Action) tea.Cmd {
	if m.conn == nil {
		return m.showError(appmsg.ErrorMsg{Title: interactionErrorTitle, Body: errNotConnected.Error()})
	}
	conn, gen := m.conn, m.connGen
	return func() tea.Msg {
		ctx := context.Background()
		cur, err := conn.Execute(ctx, act.Execute)
		if err == nil && cur != nil {
			_, err = cur.FetchAll(ctx)
		}
		return actionDoneMsg{action: act, err: err, connGen: gen}
	}
}

func (m *Model) handleActionDone(msg actionDoneMsg) tea.Cmd {
	if msg.connGen != m.connGen {
		return nil
	}
	act := msg.action
	if msg.err != nil {
		title := act.Failure
		if title == "" {
			title = interactionErrorTitle
		}
		return m.showError(appmsg.ErrorFrom(msg.err, title))
	}

	var cmds []tea.Cmd
	if act.Notify != "" {
		cmds = append(cmds, m.statusCmd(act.Notify, false))
	}
	if act.RefreshCatalog {
		cmds = append(cmds, m.refreshCatalog())
	}
	return tea.Batch(cmds...)
}

// fetchText reads one cell of query's first row, such as a view's
// definition.
func (m *Model) fetchText(query string, column int) tea.Cmd {
	conn := m.conn
	if conn == nil {
		return m.showError(appmsg.ErrorMsg{Title: fetchErrorTitle, Body: errNotConnected.Error()})
	}
	return func() tea.Msg {
		ctx := context.Background()
		cur, err := conn.Execute(ctx, query)
		if err != nil {
			return appmsg.FetchTextMsg{Err: err}
		}
		if cur == nil {
			return appmsg.FetchTextMsg{}
		}
		rs, err := cur.SetLimit(1).FetchAll(ctx)
		if err != nil || rs == nil || len(rs.Rows) == 0 {
			return appmsg.FetchTextMsg{Err: err}
		}
		row := rs.Rows[0]
		if column < 0 || column >= len(row) {
			return appmsg.FetchTextMsg{Err: fmt.Errorf("result has no column %d", column)}
		}
		return appmsg.FetchTextMsg{Text: cellText(row[column])}
	}
}

func (m *Model) handleFetchedText(msg appmsg.FetchTextMsg) tea.Cmd {
	if msg.Err != nil {
		return m.showError(appmsg.ErrorFrom(msg.Err, fetchErrorTitle))
	}
	if strings.TrimSpace(msg.Text) == "" {
		return m.statusCmd("Nothing to show for this object", true)
	}
	return m.openTab(appmsg.NewTabMsg{Query: msg.Text})
}

func cellText(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}
