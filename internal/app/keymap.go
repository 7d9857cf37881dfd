package app

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all application keybindings.
type KeyMap struct {
	// Navigation
	FocusNext    key.Binding
	FocusPrev    key.Binding
	FocusSidebar key.Binding
	FocusEditor  key.Binding
	FocusResults key.Binding

	// Tabs
	NewTab   key.Binding
	CloseTab key.Binding
	NextTab  key.Binding
	PrevTab  key.Binding

	// Editor
	ExecuteQuery     key.Binding
	ExecuteStatement key.Binding
	CancelQuery      key.Binding
	Autocomplete     key.Binding

	// App
	Quit              key.Binding
	Help              key.Binding
	ToggleKeyMode     key.Binding
	ToggleSidebar     key.Binding
	RefreshCatalog    key.Binding
	OpenConnMgr       key.Binding
	History           key.Binding
	Export            key.Binding
	ToggleTransaction key.Binding

	// Pane resizing
	ResizeLeft  key.Binding
	ResizeRight key.Binding
	ResizeUp    key.Binding
	ResizeDown  key.Binding

	// Vim normal mode
	VimUp     key.Binding
	VimDown   key.Binding
	VimLeft   key.Binding
	VimRight  key.Binding
	VimInsert key.Binding
	VimAppend key.Binding
	VimEscape key.Binding
	VimTop    key.Binding
	VimBottom key.Binding
}

// bind builds a binding whose help shows its first key.
func bind(desc string, keys ...string) key.Binding {
	return bindAs(keys[0], desc, keys...)
}

func bindAs(helpKey, desc string, keys ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(helpKey, desc))
}

// StandardKeyMap returns the default bindings. Editing keys the textarea
// relies on stay free.
func StandardKeyMap() KeyMap {
	return KeyMap{
		FocusNext:         bind("next pane", "tab"),
		FocusPrev:         bind("prev pane", "shift+tab"),
		FocusSidebar:      bindAs("alt+1", "catalog", "alt+1", "f9"),
		FocusEditor:       bind("editor", "alt+2"),
		FocusResults:      bind("results", "alt+3"),
		NewTab:            bind("new tab", "ctrl+t"),
		CloseTab:          bind("close tab", "ctrl+w"),
		NextTab:           bindAs("ctrl+pgdn", "next tab", "ctrl+pgdown", "ctrl+]"),
		PrevTab:           bind("prev tab", "ctrl+pgup"),
		ExecuteQuery:      bindAs("ctrl+enter", "run buffer", "ctrl+enter", "ctrl+j", "f5", "ctrl+g"),
		ExecuteStatement:  bindAs("alt+enter", "run statement", "alt+enter", "shift+f5"),
		CancelQuery:       bind("cancel query", "ctrl+c"),
		Autocomplete:      bindAs("ctrl+space", "complete", "ctrl+@", "ctrl+ "),
		Quit:              bind("quit", "ctrl+q"),
		Help:              bind("help", "f1"),
		ToggleKeyMode:     bind("vim/standard", "f2"),
		ToggleSidebar:     bindAs("ctrl+b", "toggle catalog", "ctrl+b", "f10"),
		RefreshCatalog:    bind("refresh catalog", "ctrl+r"),
		OpenConnMgr:       bind("profiles", "ctrl+o"),
		History:           bindAs("f8", "history", "f8", "ctrl+h"),
		Export:            bind("export", "ctrl+e"),
		ToggleTransaction: bind("transaction mode", "f6"),
		ResizeLeft:        bindAs("ctrl+←", "shrink catalog", "ctrl+left"),
		ResizeRight:       bindAs("ctrl+→", "grow catalog", "ctrl+right"),
		ResizeUp:          bindAs("ctrl+↑", "shrink editor", "ctrl+up"),
		ResizeDown:        bindAs("ctrl+↓", "grow editor", "ctrl+down"),
	}
}

// VimKeyMap adds normal-mode motions on top of the standard bindings.
func VimKeyMap() KeyMap {
	km := StandardKeyMap()
	km.VimUp = bind("up", "k")
	km.VimDown = bind("down", "j")
	km.VimLeft = bind("left", "h")
	km.VimRight = bind("right", "l")
	km.VimInsert = bind("insert", "i")
	km.VimAppend = bind("append", "a")
	km.VimEscape = bind("normal mode", "esc")
	km.VimTop = bind("top", "g")
	km.VimBottom = bind("bottom", "G")
	return km
}

// ShortHelp returns a subset of keybindings for the short help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.ExecuteQuery, k.FocusNext, k.NewTab, k.Quit, k.Help,
	}
}

// FullHelp returns all keybindings grouped for the full help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.ExecuteQuery, k.ExecuteStatement, k.CancelQuery, k.Autocomplete, k.Export, k.ToggleTransaction},
		{k.FocusNext, k.FocusPrev, k.FocusSidebar, k.FocusEditor, k.FocusResults},
		{k.NewTab, k.CloseTab, k.NextTab, k.PrevTab},
		{k.ToggleKeyMode, k.ToggleSidebar, k.RefreshCatalog, k.OpenConnMgr, k.History},
		{k.ResizeLeft, k.ResizeRight, k.ResizeUp, k.ResizeDown},
		{k.Quit, k.Help},
	}
}
