// Package msg holds the bubbletea messages shared by the app and its
// widgets.
package msg

import (
	"errors"
	"time"

	"github.com/sadopc/sqlharbor/internal/adapter"
	"github.com/sadopc/sqlharbor/internal/catalog"
	"github.com/sadopc/sqlharbor/internal/completion"
	"github.com/sadopc/sqlharbor/internal/refresh"
)

// Pane focus targets.
type Pane int

const (
	PaneSidebar Pane = iota
	PaneEditor
	PaneResults
)

// KeyMode represents the active keybinding mode.
type KeyMode int

const (
	KeyModeStandard KeyMode = iota
	KeyModeVim
)

func (m KeyMode) String() string {
	if m == KeyModeVim {
		return "vim"
	}
	return "standard"
}

// ParseKeyMode parses a string into a KeyMode.
func ParseKeyMode(s string) KeyMode {
	if s == "vim" {
		return KeyModeVim
	}
	return KeyModeStandard
}

// VimState tracks vim mode state.
type VimState int

const (
	VimNormal VimState = iota
	VimInsert
	VimVisual
)

func (s VimState) String() string {
	switch s {
	case VimInsert:
		return "INSERT"
	case VimVisual:
		return "VISUAL"
	default:
		return "NORMAL"
	}
}

// FocusMsg requests a pane focus change.
type FocusMsg struct {
	Pane Pane
}

// ConnectRequestMsg asks the app to connect with a resolved selection.
type ConnectRequestMsg struct {
	Adapter string
	ConnStr []string
	Options adapter.Options
	Profile string
}

// ConnectMsg is sent when a database connection is established.
type ConnectMsg struct {
	Conn         adapter.Connection
	Adapter      string
	ConnectionID string
	// Display is the redacted connection target shown in the status bar.
	Display string
	// CacheKey names the connection's catalog snapshot and history.
	CacheKey string
	// Cached is the snapshot saved by a previous run, if any.
	Cached *catalog.Catalog
	// WatchPaths are the local files behind the connection.
	WatchPaths []string
}

// ConnectErrMsg is sent when a connection attempt fails.
type ConnectErrMsg struct {
	Err error
}

// CatalogLoadedMsg carries a finished catalog refresh.
type CatalogLoadedMsg struct {
	Catalog       *catalog.Catalog
	Completions   []completion.Item
	CompletionErr error
	Token         refresh.Token
	ConnGen       uint64
}

// CatalogErrMsg is sent when a catalog refresh fails.
type CatalogErrMsg struct {
	Err     error
	Token   refresh.Token
	ConnGen uint64
}

// RefreshCatalogMsg triggers a catalog refresh.
type RefreshCatalogMsg struct{}

// ExpandRequestMsg asks the app to load the children of an Unloaded item.
type ExpandRequestMsg struct {
	Item *catalog.Item
}

// ChildrenLoadedMsg carries lazily loaded children of Item.
type ChildrenLoadedMsg struct {
	Item     *catalog.Item
	Children []*catalog.Item
	Err      error
	ConnGen  uint64
	// Then is an interaction to run once the children are loaded.
	Then *catalog.Interaction
}

// InteractionMsg asks the app to perform a catalog item's interaction.
type InteractionMsg struct {
	Item        *catalog.Item
	Interaction catalog.Interaction
}

// ExecuteQueryMsg requests query execution.
type ExecuteQueryMsg struct {
	Query string
	TabID int
}

// QueryStartedMsg is sent when a query begins executing.
type QueryStartedMsg struct {
	TabID int
	Token refresh.Token
}

// QueryResultMsg is sent when query execution completes. Result is the
// last row-returning statement's result and is nil when no statement
// returned rows or the run was cancelled.
type QueryResultMsg struct {
	Result     *adapter.ResultSet
	Statements int
	Cancelled  bool
	Duration   time.Duration
	Truncated  bool
	TabID      int
	Token      refresh.Token
}

// QueryErrMsg is sent when query execution fails.
type QueryErrMsg struct {
	Err   error
	TabID int
	Token refresh.Token
}

// FetchTextMsg carries the text fetched by an interaction.
type FetchTextMsg struct {
	Text string
	Err  error
}

// NewTabMsg requests creating a new query tab.
type NewTabMsg struct {
	Query string
}

// CloseTabMsg requests closing a tab.
type CloseTabMsg struct {
	TabID int
}

// SwitchTabMsg requests switching to a tab.
type SwitchTabMsg struct {
	TabID int
}

// StatusMsg updates the status bar text.
type StatusMsg struct {
	Text     string
	IsError  bool
	Duration time.Duration
}

// ToggleKeyModeMsg switches between vim and standard keybindings.
type ToggleKeyModeMsg struct{}

// TransactionModeMsg reports a changed transaction mode.
type TransactionModeMsg struct {
	Mode string
	Err  error
}

// ExportRequestMsg requests exporting the active tab's query.
type ExportRequestMsg struct {
	Path   string
	Format string
}

// ExportCompleteMsg is sent when export finishes.
type ExportCompleteMsg struct {
	Path  string
	Bytes int64
}

// ExportErrMsg is sent when export fails.
type ExportErrMsg struct {
	Err error
}

// InsertTextMsg inserts text into the active editor.
type InsertTextMsg struct {
	Text string
}

// OpenHistoryMsg opens the query history panel.
type OpenHistoryMsg struct{}

// FileChangedMsg reports that a database file changed on disk.
type FileChangedMsg struct {
	Path    string
	ConnGen uint64
}

// ErrorMsg opens the error dialog.
type ErrorMsg struct {
	Title string
	Body  string
}

// ErrorFrom builds an ErrorMsg from err, using the adapter error's own
// title when it has one and fallback otherwise.
func ErrorFrom(err error, fallback string) ErrorMsg {
	var ae *adapter.Error
	if errors.As(err, &ae) && ae.Title != "" {
		return ErrorMsg{Title: ae.Title, Body: ae.Msg}
	}
	return ErrorMsg{Title: fallback, Body: err.Error()}
}
