package app

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sadopc/sqlharbor/internal/adapter"
	"github.com/sadopc/sqlharbor/internal/catalog"
	"github.com/sadopc/sqlharbor/internal/completion"
	"github.com/sadopc/sqlharbor/internal/config"
	"github.com/sadopc/sqlharbor/internal/history"
	"github.com/sadopc/sqlharbor/internal/logging"
	appmsg "github.com/sadopc/sqlharbor/internal/msg"
	"github.com/sadopc/sqlharbor/internal/refresh"
	"github.com/sadopc/sqlharbor/internal/watch"
)

// catalogKey is the coordinator key of catalog refreshes. There is one
// connection at a time, so one key suffices.
const catalogKey = "catalog"

const (
	connectErrorTitle  = "sqlharbor couldn't connect to your database."
	catalogErrorTitle  = "sqlharbor couldn't load your data catalog."
	childrenErrorTitle = "sqlharbor couldn't expand this catalog item."
)

var errNotConnected = errors.New("not connected to a database")

// connect opens a connection off the event loop. The cached catalog
// snapshot, if any, is loaded alongside so it can be shown at once.
func (m *Model) connect(req appmsg.ConnectRequestMsg) tea.Cmd {
	logger := m.logger
	store := m.store
	return func() tea.Msg {
		logger.Info("connecting",
			"adapter", req.Adapter,
			"conn_str", logging.RedactAll(req.ConnStr),
			"profile", req.Profile)

		a, err := adapter.New(req.Adapter, req.ConnStr, req.Options, logger)
		if err != nil {
			return appmsg.ConnectErrMsg{Err: err}
		}
		conn, err := a.Connect(context.Background())
		if err != nil {
			return appmsg.ConnectErrMsg{Err: err}
		}

		out := appmsg.ConnectMsg{
			Conn:         conn,
			Adapter:      req.Adapter,
			ConnectionID: a.ConnectionID(),
			Display:      config.Profile{Adapter: req.Adapter, ConnStr: req.ConnStr}.DisplayString(),
			WatchPaths:   watch.FilePaths(req.ConnStr),
		}
		key, err := catalog.CacheKey(req.Adapter, req.ConnStr, req.Options)
		if err != nil {
			logger.Warn("catalog cache key", "error", err)
			return out
		}
		out.CacheKey = key
		if store == nil {
			return out
		}
		cached, ok, err := store.Load(key)
		switch {
		case err != nil:
			logger.Warn("load catalog snapshot", "error", err)
		case ok:
			cached.Decorate(conn.Interactions)
			out.Cached = cached
		}
		return out
	}
}

// handleConnect replaces the active connection. Work for the old one is
// cancelled and its late results are dropped by generation.
func (m *Model) handleConnect(msg appmsg.ConnectMsg) tea.Cmd {
	var cmds []tea.Cmd

	m.saveSnapshot()
	m.coord.CancelAll()
	m.stopWatcher()
	if old := m.conn; old != nil {
		name := old.Name()
		cmds = append(cmds, func() tea.Msg {
			return connClosedMsg{name: name, err: old.Close()}
		})
	}

	m.conn = msg.Conn
	m.adapterName = msg.Adapter
	m.connGen++
	m.connKey = history.Key(msg.Adapter, msg.ConnectionID)
	m.cacheKey = msg.CacheKey
	m.connMgr.Hide()
	m.histBrowser.Hide()
	m.logger.Info("connected", "adapter", msg.Adapter, "target", msg.Display, "cached_catalog", msg.Cached != nil)

	m.compEngine = completion.NewEngine(completion.Keywords(msg.Adapter), completion.Functions())
	m.compEngine.SetFuzzy(m.cfg.Completion.Fuzzy)
	m.autocomp.SetEngine(m.compEngine)
	for _, ts := range m.tabStates {
		ts.editor.SetDialect(msg.Adapter)
	}

	cat := msg.Cached
	if cat != nil {
		m.compEngine.UpdateCatalog(cat)
	} else {
		cat = &catalog.Catalog{}
	}
	cmds = append(cmds, m.sidebar.SetCatalog(cat, msg.Cached != nil))

	var cmd tea.Cmd
	m.statusbar, cmd = m.statusbar.Update(msg)
	cmds = append(cmds, cmd)
	if text := msg.Conn.InitMessage(); text != "" {
		cmds = append(cmds, m.statusCmd(text, false))
	}

	cmds = append(cmds, m.refreshCatalog(), m.startWatcher(msg.WatchPaths))
	return tea.Batch(cmds...)
}

// refreshCatalog harvests the catalog and backend completions in the
// background. A newer refresh supersedes a running one.
func (m *Model) refreshCatalog() tea.Cmd {
	if m.conn == nil {
		return nil
	}
	conn, gen := m.conn, m.connGen
	expanded := m.sidebar.Expanded()
	ctx, tok := m.coord.Begin(context.Background(), catalogKey)
	m.sidebar.SetRefreshing(true)
	return func() tea.Msg {
		res, err := refresh.Harvest(ctx, conn, expanded)
		if err != nil {
			return appmsg.CatalogErrMsg{Err: err, Token: tok, ConnGen: gen}
		}
		return appmsg.CatalogLoadedMsg{
			Catalog:       res.Catalog,
			Completions:   res.Completions,
			CompletionErr: res.CompletionErr,
			Token:         tok,
			ConnGen:       gen,
		}
	}
}

func (m *Model) handleCatalogLoaded(msg appmsg.CatalogLoadedMsg) tea.Cmd {
	if msg.ConnGen != m.connGen || !m.coord.Current(msg.Token) {
		return nil
	}
	m.coord.Finish(msg.Token)
	if msg.CompletionErr != nil {
		m.logger.Warn("harvest completions", "adapter", m.adapterName, "error", msg.CompletionErr)
	}
	m.compEngine.UpdateCatalog(msg.Catalog)
	m.compEngine.SetExtra(msg.Completions)
	return m.sidebar.SetCatalog(msg.Catalog, false)
}

func (m *Model) handleCatalogErr(msg appmsg.CatalogErrMsg) tea.Cmd {
	if msg.ConnGen != m.connGen || !m.coord.Current(msg.Token) {
		return nil
	}
	m.coord.Finish(msg.Token)
	m.sidebar.SetRefreshing(false)
	if errors.Is(msg.Err, context.Canceled) {
		return nil
	}
	return m.showError(appmsg.ErrorFrom(msg.Err, catalogErrorTitle))
}

// loadChildren fetches an item's children. then, when set, is run once
// they are stored.
func (m *Model) loadChildren(it *catalog.Item, then *catalog.Interaction) tea.Cmd {
	conn, gen := m.conn, m.connGen
	return func() tea.Msg {
		if conn == nil {
			return appmsg.ChildrenLoadedMsg{Item: it, Err: errNotConnected, ConnGen: gen}
		}
		children, err := conn.FetchChildren(context.Background(), it)
		return appmsg.ChildrenLoadedMsg{Item: it, Children: children, Err: err, ConnGen: gen, Then: then}
	}
}

// handleChildrenLoaded stores children on the displayed catalog's copy of
// the item, which may have been replaced by a refresh since the request.
func (m *Model) handleChildrenLoaded(msg appmsg.ChildrenLoadedMsg) tea.Cmd {
	if msg.ConnGen != m.connGen {
		return nil
	}
	target := m.sidebar.Catalog().Find(msg.Item.QualifiedIdentifier)
	if msg.Err == nil && target != nil && target.State == catalog.Unloaded {
		target.Children = msg.Children
		target.State = catalog.Loaded
		m.compEngine.ExtendCatalog(target, msg.Children)
	}
	m.sidebar.ChildrenLoaded(msg.Item, msg.Err)

	if msg.Err != nil {
		e := appmsg.ErrorFrom(msg.Err, childrenErrorTitle)
		if e.Title == childrenErrorTitle {
			e.Body = fmt.Sprintf("%s: %s", msg.Item.Label, e.Body)
		}
		return m.showError(e)
	}
	if msg.Then != nil && target != nil && target.State == catalog.Loaded {
		return m.runInteraction(target, *msg.Then)
	}
	return nil
}

func (m *Model) startWatcher(paths []string) tea.Cmd {
	if len(paths) == 0 {
		return nil
	}
	w, err := watch.New(paths, watch.DefaultDelay, m.logger)
	if err != nil {
		m.logger.Warn("watch database files", "error", err)
		return nil
	}
	m.watcher = w
	return waitForChange(w, m.connGen)
}

// waitForChange blocks on the watcher off the event loop. Each
// FileChangedMsg re-arms it; a closed watcher ends the chain.
func waitForChange(w *watch.Watcher, gen uint64) tea.Cmd {
	return func() tea.Msg {
		path, ok := w.Next()
		if !ok {
			return nil
		}
		return appmsg.FileChangedMsg{Path: path, ConnGen: gen}
	}
}

func (m *Model) stopWatcher() {
	if m.watcher == nil {
		return
	}
	if err := m.watcher.Close(); err != nil {
		m.logger.Debug("close watcher", "error", err)
	}
	m.watcher = nil
}

// saveSnapshot stores the displayed catalog for the next start.
func (m *Model) saveSnapshot() {
	if m.store == nil || m.cacheKey == "" {
		return
	}
	cat := m.sidebar.Catalog()
	if cat == nil || len(cat.Items) == 0 {
		return
	}
	if err := m.store.Save(m.cacheKey, cat); err != nil {
		m.logger.Warn("save catalog snapshot", "error", err)
	}
}
