// Package app is the root bubbletea model. It owns the active connection
// and routes work between the catalog, the editor buffers and their
// results.
package app

import (
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/sadopc/sqlharbor/internal/adapter"
	"github.com/sadopc/sqlharbor/internal/catalog"
	"github.com/sadopc/sqlharbor/internal/completion"
	"github.com/sadopc/sqlharbor/internal/config"
	"github.com/sadopc/sqlharbor/internal/history"
	"github.com/sadopc/sqlharbor/internal/logging"
	appmsg "github.com/sadopc/sqlharbor/internal/msg"
	"github.com/sadopc/sqlharbor/internal/refresh"
	"github.com/sadopc/sqlharbor/internal/theme"
	"github.com/sadopc/sqlharbor/internal/ui/autocomplete"
	"github.com/sadopc/sqlharbor/internal/ui/connmgr"
	"github.com/sadopc/sqlharbor/internal/ui/dialog"
	"github.com/sadopc/sqlharbor/internal/ui/editor"
	"github.com/sadopc/sqlharbor/internal/ui/historybrowser"
	"github.com/sadopc/sqlharbor/internal/ui/results"
	"github.com/sadopc/sqlharbor/internal/ui/sidebar"
	"github.com/sadopc/sqlharbor/internal/ui/statusbar"
	"github.com/sadopc/sqlharbor/internal/ui/tabs"
	"github.com/sadopc/sqlharbor/internal/watch"
)

const (
	defaultSidebarWidth = 30
	defaultEditorHeight = 50
	minSidebarWidth     = 15
)

// tabState holds per-buffer state.
type tabState struct {
	editor  editor.Model
	results results.Model
	// query is the text of the buffer's last run.
	query string
}

// Options configures New.
type Options struct {
	Config *config.Config
	// ConfigPath is where profile edits are saved. Empty disables saving.
	ConfigPath string
	History    *history.History
	// Store holds catalog snapshots. Nil disables the snapshot cache.
	Store  catalog.Store
	Logger *slog.Logger
	// Connect is opened when the program starts.
	Connect *appmsg.ConnectRequestMsg
}

// Model is the root application model.
type Model struct {
	// Layout
	width        int
	height       int
	sidebarWidth int
	editorHeight int // percentage of main area for editor (rest for results)
	showSidebar  bool

	focusedPane appmsg.Pane

	// Components
	sidebar     sidebar.Model
	tabs        tabs.Model
	statusbar   statusbar.Model
	connMgr     connmgr.Model
	histBrowser historybrowser.Model
	autocomp    autocomplete.Model
	dialog      dialog.Model
	help        help.Model
	spinner     spinner.Model

	tabStates map[int]*tabState

	// Connection
	conn        adapter.Connection
	adapterName string
	connGen     uint64
	connKey     string
	cacheKey    string
	watcher     *watch.Watcher
	coord       *refresh.Coordinator
	compEngine  *completion.Engine
	initial     *appmsg.ConnectRequestMsg

	cfg     *config.Config
	cfgPath string
	history *history.History
	store   catalog.Store
	logger  *slog.Logger

	keyMap   KeyMap
	keyMode  appmsg.KeyMode
	vimState appmsg.VimState

	showHelp bool
	quitting bool
}

// New creates the app model. Nothing connects until Init runs.
func New(opts Options) Model {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	keyMode := appmsg.ParseKeyMode(cfg.KeyMode)
	km := StandardKeyMap()
	if keyMode == appmsg.KeyModeVim {
		km = VimKeyMap()
	}

	theme.Current = theme.Get(cfg.Theme)

	s := spinner.New()
	s.Spinner = spinner.Dot

	engine := completion.NewEngine(completion.Keywords(""), completion.Functions())
	engine.SetFuzzy(cfg.Completion.Fuzzy)

	// A nil *History must not end up inside the interface.
	var src historybrowser.Source
	if opts.History != nil {
		src = opts.History
	}

	m := Model{
		sidebarWidth: defaultSidebarWidth,
		editorHeight: defaultEditorHeight,
		showSidebar:  true,
		focusedPane:  appmsg.PaneEditor,

		sidebar:     sidebar.New(),
		tabs:        tabs.New(),
		statusbar:   statusbar.New(),
		connMgr:     connmgr.New(cfg.Profiles, logger),
		histBrowser: historybrowser.New(src),
		autocomp:    autocomplete.New(engine),
		help:        help.New(),
		spinner:     s,

		tabStates:  make(map[int]*tabState),
		coord:      refresh.NewCoordinator(),
		compEngine: engine,
		initial:    opts.Connect,

		cfg:     cfg,
		cfgPath: opts.ConfigPath,
		history: opts.History,
		store:   opts.Store,
		logger:  logger,

		keyMap:  km,
		keyMode: keyMode,
	}

	m.tabStates[0] = m.newTabState(0, "")
	m.setFocus(appmsg.PaneEditor)
	m.statusbar.SetKeyMode(keyMode)
	if keyMode == appmsg.KeyModeVim {
		m.setVimState(appmsg.VimNormal)
	}
	return m
}

func (m *Model) newTabState(id int, query string) *tabState {
	ed := editor.New(id)
	ed.SetShowLineNumbers(m.cfg.Editor.ShowLineNumbers)
	ed.SetDialect(m.adapterName)
	if query != "" {
		ed.SetValue(query)
	}
	res := results.New()
	res.SetLimits(m.cfg.Results.PageSize, m.cfg.Results.MaxColumnWidth)
	return &tabState{editor: ed, results: res}
}

// Init starts the spinner and opens the initial connection.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick}
	if ts := m.activeTab(); ts != nil {
		cmds = append(cmds, ts.editor.Init())
	}
	if m.initial != nil {
		cmds = append(cmds, m.connect(*m.initial))
	}
	return tea.Batch(cmds...)
}

// Update handles all messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case appmsg.ConnectRequestMsg:
		cmds = append(cmds, m.statusCmd("Connecting to "+config.Profile{Adapter: msg.Adapter, ConnStr: msg.ConnStr}.DisplayString()+"...", false))
		cmds = append(cmds, m.connect(msg))

	case appmsg.ConnectMsg:
		cmds = append(cmds, m.handleConnect(msg))

	case appmsg.ConnectErrMsg:
		var cmd tea.Cmd
		m.statusbar, cmd = m.statusbar.Update(msg)
		cmds = append(cmds, cmd, m.showError(appmsg.ErrorFrom(msg.Err, connectErrorTitle)))

	case connClosedMsg:
		if msg.err != nil {
			m.logger.Warn("close connection", "adapter", msg.name, "error", msg.err)
		}

	case appmsg.RefreshCatalogMsg:
		cmds = append(cmds, m.refreshCatalog())

	case appmsg.CatalogLoadedMsg:
		cmds = append(cmds, m.handleCatalogLoaded(msg))

	case appmsg.CatalogErrMsg:
		cmds = append(cmds, m.handleCatalogErr(msg))

	case appmsg.ExpandRequestMsg:
		cmds = append(cmds, m.loadChildren(msg.Item, nil))

	case appmsg.ChildrenLoadedMsg:
		cmds = append(cmds, m.handleChildrenLoaded(msg))

	case appmsg.FileChangedMsg:
		if msg.ConnGen == m.connGen && m.watcher != nil {
			m.logger.Debug("database file changed", "path", msg.Path)
			cmds = append(cmds, m.refreshCatalog(), waitForChange(m.watcher, m.connGen))
		}

	case appmsg.InteractionMsg:
		cmds = append(cmds, m.runInteraction(msg.Item, msg.Interaction))

	case actionConfirmedMsg:
		cmds = append(cmds, m.runAction(msg.action))

	case actionDoneMsg:
		cmds = append(cmds, m.handleActionDone(msg))

	case appmsg.FetchTextMsg:
		cmds = append(cmds, m.handleFetchedText(msg))

	case appmsg.ExecuteQueryMsg:
		cmds = append(cmds, m.executeQuery(msg.Query, msg.TabID))

	case appmsg.QueryResultMsg:
		cmds = append(cmds, m.handleQueryResult(msg))

	case appmsg.QueryErrMsg:
		cmds = append(cmds, m.handleQueryErr(msg))

	case historySavedMsg:
		m.logger.Warn("save history", "error", msg.err)

	case appmsg.TransactionModeMsg:
		var cmd tea.Cmd
		m.statusbar, cmd = m.statusbar.Update(msg)
		cmds = append(cmds, cmd)

	case appmsg.ExportRequestMsg:
		cmds = append(cmds, m.export(msg))

	case appmsg.ExportCompleteMsg:
		m.logger.Info("exported results", "path", msg.Path, "bytes", msg.Bytes)
		var cmd tea.Cmd
		m.statusbar, cmd = m.statusbar.Update(msg)
		cmds = append(cmds, cmd)

	case appmsg.ExportErrMsg:
		cmds = append(cmds, m.showError(appmsg.ErrorFrom(msg.Err, adapter.CopyErrorTitle)))

	case appmsg.NewTabMsg:
		cmds = append(cmds, m.openTab(msg))

	case appmsg.CloseTabMsg:
		cmds = append(cmds, m.closeTab(msg))

	case appmsg.SwitchTabMsg:
		m.blurTabs()
		m.tabs, _ = m.tabs.Update(msg)
		m.autocomp.Dismiss()
		m.setFocus(m.focusedPane)
		m.updateLayout()

	case appmsg.FocusMsg:
		m.setFocus(msg.Pane)

	case appmsg.InsertTextMsg:
		if ts := m.activeTab(); ts != nil {
			ts.editor.InsertText(msg.Text)
			m.tabs.SetModified(ts.editor.ID(), true)
			m.setFocus(appmsg.PaneEditor)
		}

	case historybrowser.SelectQueryMsg:
		if ts := m.activeTab(); ts != nil {
			ts.editor.InsertText(msg.Query)
			m.tabs.SetModified(ts.editor.ID(), true)
			m.setFocus(appmsg.PaneEditor)
		}

	case appmsg.OpenHistoryMsg:
		cmds = append(cmds, m.openHistory())

	case autocomplete.SelectedMsg:
		if ts := m.activeTab(); ts != nil {
			ts.editor.ReplaceWord(msg.ReplaceLen, msg.Text)
		}

	case autocomplete.DismissMsg:

	case connmgr.ProfilesUpdatedMsg:
		cmds = append(cmds, m.saveProfiles(msg.Profiles))

	case appmsg.ToggleKeyModeMsg:
		m.toggleKeyMode()
		var cmd tea.Cmd
		m.statusbar, cmd = m.statusbar.Update(msg)
		cmds = append(cmds, cmd)

	case appmsg.StatusMsg, statusbar.ClearStatusMsg:
		var cmd tea.Cmd
		m.statusbar, cmd = m.statusbar.Update(msg)
		cmds = append(cmds, cmd)

	case appmsg.ErrorMsg:
		cmds = append(cmds, m.showError(msg))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	default:
		// Cursor blinks and other widget-internal messages.
		cmds = append(cmds, m.forward(msg))
	}

	return m, tea.Batch(cmds...)
}

// forward passes a message the app does not handle to whichever widgets
// may be waiting for it.
func (m *Model) forward(msg tea.Msg) tea.Cmd {
	var cmds []tea.Cmd
	var cmd tea.Cmd
	switch {
	case m.dialog.Visible():
		m.dialog, cmd = m.dialog.Update(msg)
		cmds = append(cmds, cmd)
	case m.connMgr.Visible():
		m.connMgr, cmd = m.connMgr.Update(msg)
		cmds = append(cmds, cmd)
	case m.histBrowser.Visible():
		m.histBrowser, cmd = m.histBrowser.Update(msg)
		cmds = append(cmds, cmd)
	default:
		if ts := m.activeTab(); ts != nil {
			ts.editor, cmd = ts.editor.Update(msg)
			cmds = append(cmds, cmd)
		}
	}
	return tea.Batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	var cmd tea.Cmd

	// Modal layers take every key while open.
	switch {
	case m.dialog.Visible():
		m.dialog, cmd = m.dialog.Update(msg)
		return cmd
	case m.connMgr.Visible():
		m.connMgr, cmd = m.connMgr.Update(msg)
		return cmd
	case m.histBrowser.Visible():
		m.histBrowser, cmd = m.histBrowser.Update(msg)
		return cmd
	case m.showHelp:
		switch msg.String() {
		case "f1", "?", "esc", "q":
			m.showHelp = false
		}
		return nil
	}

	if m.focusedPane == appmsg.PaneEditor && m.autocomp.Handles(msg) {
		m.autocomp, cmd = m.autocomp.Update(msg)
		return cmd
	}

	if cmd, ok := m.handleGlobalKeys(msg); ok {
		return cmd
	}
	return m.handleFocusedPaneKey(msg)
}

// handleGlobalKeys reports whether msg was a global binding.
func (m *Model) handleGlobalKeys(msg tea.KeyMsg) (tea.Cmd, bool) {
	km := m.keyMap
	switch {
	case key.Matches(msg, km.Quit):
		m.quitting = true
		return tea.Quit, true

	case key.Matches(msg, km.CancelQuery):
		return m.cancelQuery(), true

	case key.Matches(msg, km.Help):
		m.showHelp = !m.showHelp
		return nil, true

	case msg.String() == "?" && m.focusedPane != appmsg.PaneEditor:
		m.showHelp = !m.showHelp
		return nil, true

	case key.Matches(msg, km.ToggleKeyMode):
		return func() tea.Msg { return appmsg.ToggleKeyModeMsg{} }, true

	case key.Matches(msg, km.ToggleSidebar):
		m.showSidebar = !m.showSidebar
		if !m.showSidebar && m.focusedPane == appmsg.PaneSidebar {
			m.setFocus(appmsg.PaneEditor)
		}
		m.updateLayout()
		return nil, true

	case key.Matches(msg, km.RefreshCatalog):
		return m.refreshCatalog(), true

	case key.Matches(msg, km.OpenConnMgr):
		m.autocomp.Dismiss()
		m.connMgr.Show()
		return nil, true

	case key.Matches(msg, km.History):
		return m.openHistory(), true

	case key.Matches(msg, km.Export):
		return m.promptExport(), true

	case key.Matches(msg, km.ToggleTransaction):
		return m.toggleTransaction(), true

	case key.Matches(msg, km.ExecuteQuery):
		return m.runBuffer(), true

	case key.Matches(msg, km.ExecuteStatement):
		return m.runCurrentStatement(), true

	case key.Matches(msg, km.NewTab):
		return func() tea.Msg { return appmsg.NewTabMsg{} }, true

	case key.Matches(msg, km.CloseTab):
		tabID := m.tabs.ActiveID()
		return func() tea.Msg { return appmsg.CloseTabMsg{TabID: tabID} }, true

	case key.Matches(msg, km.NextTab):
		return m.tabs.NextTab(), true

	case key.Matches(msg, km.PrevTab):
		return m.tabs.PrevTab(), true

	case key.Matches(msg, km.FocusNext) && m.focusedPane != appmsg.PaneEditor:
		m.cycleFocus(1)
		return nil, true

	case key.Matches(msg, km.FocusPrev):
		m.cycleFocus(-1)
		return nil, true

	case key.Matches(msg, km.FocusSidebar):
		if !m.showSidebar {
			m.showSidebar = true
			m.updateLayout()
		}
		m.setFocus(appmsg.PaneSidebar)
		return nil, true

	case key.Matches(msg, km.FocusEditor):
		m.setFocus(appmsg.PaneEditor)
		return nil, true

	case key.Matches(msg, km.FocusResults):
		m.setFocus(appmsg.PaneResults)
		return nil, true

	case key.Matches(msg, km.ResizeLeft):
		if m.sidebarWidth > minSidebarWidth {
			m.sidebarWidth -= 2
			m.updateLayout()
		}
		return nil, true

	case key.Matches(msg, km.ResizeRight):
		if m.sidebarWidth < m.width/2 {
			m.sidebarWidth += 2
			m.updateLayout()
		}
		return nil, true

	case key.Matches(msg, km.ResizeUp):
		if m.editorHeight > 20 {
			m.editorHeight -= 5
			m.updateLayout()
		}
		return nil, true

	case key.Matches(msg, km.ResizeDown):
		if m.editorHeight < 80 {
			m.editorHeight += 5
			m.updateLayout()
		}
		return nil, true
	}
	return nil, false
}

func (m *Model) handleFocusedPaneKey(msg tea.KeyMsg) tea.Cmd {
	ts := m.activeTab()
	if ts == nil {
		return nil
	}

	var cmd tea.Cmd
	switch m.focusedPane {
	case appmsg.PaneSidebar:
		m.sidebar, cmd = m.sidebar.Update(msg)
		return cmd

	case appmsg.PaneResults:
		ts.results, cmd = ts.results.Update(msg)
		return cmd
	}

	if m.keyMode == appmsg.KeyModeVim {
		translated, ok := m.vimKey(msg, ts)
		if !ok {
			return nil
		}
		msg = translated
	}

	switch {
	case key.Matches(msg, m.keyMap.Autocomplete):
		m.autocomp.Trigger(ts.editor.TextBeforeCursor(), true)
		return nil
	case msg.Type == tea.KeyTab:
		ts.editor.InsertText(strings.Repeat(" ", max(m.cfg.Editor.TabSize, 1)))
		m.afterEdit(ts)
		return nil
	}

	ts.editor, cmd = ts.editor.Update(msg)
	if isTypingKey(msg) {
		m.autocomp.Trigger(ts.editor.TextBeforeCursor(), false)
	} else {
		m.autocomp.Dismiss()
	}
	m.afterEdit(ts)
	return cmd
}

// afterEdit syncs the tab's modified mark and the status bar cursor.
func (m *Model) afterEdit(ts *tabState) {
	m.tabs.SetModified(ts.editor.ID(), ts.editor.Modified())
	row, col := ts.editor.Cursor()
	m.statusbar.SetCursor(row+1, col+1)
}

// vimKey applies normal-mode bindings. It returns the key the editor
// should see, or false when the key was consumed.
func (m *Model) vimKey(msg tea.KeyMsg, ts *tabState) (tea.KeyMsg, bool) {
	km := m.keyMap
	if m.vimState == appmsg.VimInsert {
		if key.Matches(msg, km.VimEscape) {
			m.setVimState(appmsg.VimNormal)
			m.autocomp.Dismiss()
			return msg, false
		}
		return msg, true
	}

	switch {
	case key.Matches(msg, km.VimInsert):
		m.setVimState(appmsg.VimInsert)
		return msg, false
	case key.Matches(msg, km.VimAppend):
		m.setVimState(appmsg.VimInsert)
		ts.editor, _ = ts.editor.Update(tea.KeyMsg{Type: tea.KeyRight})
		m.afterEdit(ts)
		return msg, false
	case key.Matches(msg, km.VimUp):
		return tea.KeyMsg{Type: tea.KeyUp}, true
	case key.Matches(msg, km.VimDown), msg.Type == tea.KeyEnter:
		return tea.KeyMsg{Type: tea.KeyDown}, true
	case key.Matches(msg, km.VimLeft), msg.Type == tea.KeyBackspace:
		return tea.KeyMsg{Type: tea.KeyLeft}, true
	case key.Matches(msg, km.VimRight):
		return tea.KeyMsg{Type: tea.KeyRight}, true
	case key.Matches(msg, km.VimTop):
		return tea.KeyMsg{Type: tea.KeyCtrlHome}, true
	case key.Matches(msg, km.VimBottom):
		return tea.KeyMsg{Type: tea.KeyCtrlEnd}, true
	case msg.Type == tea.KeyRunes, msg.Type == tea.KeySpace, msg.Type == tea.KeyTab,
		msg.Type == tea.KeyDelete, msg.Type == tea.KeyEsc:
		return msg, false
	}
	// Arrows, home/end and the like move the cursor as usual.
	return msg, true
}

func (m *Model) setVimState(s appmsg.VimState) {
	m.vimState = s
	m.statusbar.SetVimState(s)
}

func (m *Model) toggleKeyMode() {
	if m.keyMode == appmsg.KeyModeStandard {
		m.keyMode = appmsg.KeyModeVim
		m.keyMap = VimKeyMap()
		m.setVimState(appmsg.VimNormal)
	} else {
		m.keyMode = appmsg.KeyModeStandard
		m.keyMap = StandardKeyMap()
	}
	m.statusbar.SetKeyMode(m.keyMode)
}

func isTypingKey(msg tea.KeyMsg) bool {
	switch msg.Type {
	case tea.KeyRunes:
		return !msg.Alt
	case tea.KeyBackspace, tea.KeyDelete:
		return true
	}
	return false
}

// View renders the entire application.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	tabBar := m.tabs.View()
	statusBar := m.statusbar.View()
	if m.busy() {
		statusBar = m.spinner.View() + ansi.Truncate(statusBar, max(m.width-lipgloss.Width(m.spinner.View()), 0), "")
	}

	var editorView, resultsView string
	if ts := m.activeTab(); ts != nil {
		editorView = ts.editor.View()
		resultsView = ts.results.View()

		// The popup replaces the editor's bottom lines so the layout keeps
		// its height.
		if m.autocomp.Visible() && m.focusedPane == appmsg.PaneEditor {
			acView := m.autocomp.View()
			acHeight := lipgloss.Height(acView)
			editorLines := strings.Split(editorView, "\n")
			if acHeight < len(editorLines) {
				editorLines = editorLines[:len(editorLines)-acHeight]
				editorView = strings.Join(editorLines, "\n") + "\n" + acView
			} else if len(editorLines) > 1 {
				editorView = editorLines[0] + "\n" + acView
			}
		}
	} else {
		editorView = "No active tab"
	}

	content := lipgloss.JoinVertical(lipgloss.Left, editorView, resultsView)
	if m.showSidebar {
		content = lipgloss.JoinHorizontal(lipgloss.Top, m.sidebar.View(), content)
	}

	view := lipgloss.JoinVertical(lipgloss.Left, tabBar, content, statusBar)

	switch {
	case m.connMgr.Visible():
		view = lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.connMgr.View())
	case m.histBrowser.Visible():
		view = lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.histBrowser.View())
	case m.showHelp:
		view = lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.renderHelp())
	}
	return m.dialog.Overlay(view)
}

// busy reports whether a catalog refresh or the active buffer's query is
// running.
func (m Model) busy() bool {
	if m.coord.Running(catalogKey) {
		return true
	}
	return m.coord.Running(queryKey(m.tabs.ActiveID()))
}

// layout splits the screen: the catalog width, the main column width and
// the editor and results heights.
func (m Model) layout() (sideW, mainW, editorH, resultsH int) {
	mainH := max(m.height-2, 2) // tab bar and status bar
	mainW = m.width
	if m.showSidebar {
		sideW = min(m.sidebarWidth, m.width/2)
		mainW = m.width - sideW
	}
	editorH = max(mainH*m.editorHeight/100, 3)
	resultsH = max(mainH-editorH, 3)
	return sideW, mainW, editorH, resultsH
}

func (m *Model) updateLayout() {
	m.tabs.SetSize(m.width)
	m.statusbar.SetSize(m.width)
	m.connMgr.SetSize(m.width, m.height)
	m.histBrowser.SetSize(m.width, m.height)
	m.dialog.SetSize(m.width, m.height)
	m.help.Width = max(m.width-8, 20)

	sideW, mainW, editorH, resultsH := m.layout()
	m.sidebar.SetSize(sideW, editorH+resultsH)
	for _, ts := range m.tabStates {
		ts.editor.SetSize(mainW, editorH)
		ts.results.SetSize(mainW, resultsH)
	}
}

func (m *Model) cycleFocus(direction int) {
	panes := []appmsg.Pane{appmsg.PaneEditor, appmsg.PaneResults}
	if m.showSidebar {
		panes = []appmsg.Pane{appmsg.PaneSidebar, appmsg.PaneEditor, appmsg.PaneResults}
	}

	current := 0
	for i, p := range panes {
		if p == m.focusedPane {
			current = i
			break
		}
	}

	next := (current + direction + len(panes)) % len(panes)
	m.setFocus(panes[next])
}

func (m *Model) setFocus(pane appmsg.Pane) {
	m.sidebar.Blur()
	m.blurTabs()
	m.autocomp.Dismiss()

	m.focusedPane = pane
	switch pane {
	case appmsg.PaneSidebar:
		m.sidebar.Focus()
	case appmsg.PaneEditor:
		if ts := m.activeTab(); ts != nil {
			ts.editor.Focus()
		}
	case appmsg.PaneResults:
		if ts := m.activeTab(); ts != nil {
			ts.results.Focus()
		}
	}
}

func (m *Model) blurTabs() {
	for _, ts := range m.tabStates {
		ts.editor.Blur()
		ts.results.Blur()
	}
}

func (m Model) activeTab() *tabState {
	return m.tabStates[m.tabs.ActiveID()]
}

func (m *Model) openTab(msg appmsg.NewTabMsg) tea.Cmd {
	var cmd tea.Cmd
	m.tabs, cmd = m.tabs.Update(msg)
	id := m.tabs.ActiveID()
	ts := m.newTabState(id, msg.Query)
	m.tabStates[id] = ts
	if msg.Query != "" {
		m.tabs.SetModified(id, true)
	}
	m.setFocus(appmsg.PaneEditor)
	m.updateLayout()
	return cmd
}

func (m *Model) closeTab(msg appmsg.CloseTabMsg) tea.Cmd {
	if m.tabs.Count() <= 1 {
		return nil
	}
	var stop tea.Cmd
	if m.coord.Cancel(queryKey(msg.TabID)) {
		stop = m.cancelConn()
	}
	delete(m.tabStates, msg.TabID)
	var cmd tea.Cmd
	m.tabs, cmd = m.tabs.Update(msg)
	return tea.Batch(cmd, stop)
}

func (m *Model) openHistory() tea.Cmd {
	if m.connKey == "" {
		return m.statusCmd("Connect to a database to see its history", true)
	}
	m.autocomp.Dismiss()
	return m.histBrowser.Show(m.connKey)
}

// saveProfiles stores edited profiles in the config file.
func (m *Model) saveProfiles(profiles map[string]config.Profile) tea.Cmd {
	m.cfg.Profiles = profiles
	if m.cfgPath == "" {
		return nil
	}
	if err := m.cfg.Save(m.cfgPath); err != nil {
		m.logger.Error("save profiles", "path", m.cfgPath, "error", err)
		return m.statusCmd("Could not save profiles: "+err.Error(), true)
	}
	return m.statusCmd("Profiles saved", false)
}

func (m *Model) showDialog(d dialog.Model) tea.Cmd {
	d.SetSize(m.width, m.height)
	m.dialog = d
	m.autocomp.Dismiss()
	return m.dialog.Show()
}

func (m *Model) showError(e appmsg.ErrorMsg) tea.Cmd {
	m.logger.Warn("error shown", "title", e.Title, "error", logging.Redact(e.Body))
	return m.showDialog(dialog.NewError(e.Title, e.Body))
}

func (m *Model) statusCmd(text string, isError bool) tea.Cmd {
	var cmd tea.Cmd
	m.statusbar, cmd = m.statusbar.Update(appmsg.StatusMsg{Text: text, IsError: isError})
	return cmd
}

// Close saves the catalog snapshot, stops background work and closes the
// connection. Call it after the program exits.
func (m *Model) Close() error {
	m.saveSnapshot()
	m.coord.CancelAll()
	m.stopWatcher()
	if m.conn == nil {
		return nil
	}
	err := m.conn.Close()
	m.conn = nil
	return err
}

// Connection returns the active connection, or nil.
func (m Model) Connection() adapter.Connection {
	return m.conn
}
