// Package theme holds the lipgloss styles for every element of the
// sqlharbor UI. Themes are built from a small colour palette so new ones
// only need to pick colours.
package theme

import (
	"sort"

	"github.com/charmbracelet/lipgloss"
)

// Theme holds lipgloss.Style values for every UI element in the application.
type Theme struct {
	Name string

	AppBackground lipgloss.Style

	// Catalog tree
	SidebarBorder     lipgloss.Style
	SidebarTitle      lipgloss.Style
	SidebarDatabase   lipgloss.Style
	SidebarSchema     lipgloss.Style
	SidebarTable      lipgloss.Style
	SidebarView       lipgloss.Style
	SidebarTempTable  lipgloss.Style
	SidebarColumn     lipgloss.Style
	SidebarColumnType lipgloss.Style
	SidebarSelected   lipgloss.Style

	EditorLineNumber lipgloss.Style

	// SQL syntax highlighting
	SQLKeyword    lipgloss.Style
	SQLString     lipgloss.Style
	SQLNumber     lipgloss.Style
	SQLComment    lipgloss.Style
	SQLOperator   lipgloss.Style
	SQLFunction   lipgloss.Style
	SQLType       lipgloss.Style
	SQLIdentifier lipgloss.Style

	// Results table
	ResultsHeader      lipgloss.Style
	ResultsColumnType  lipgloss.Style
	ResultsCell        lipgloss.Style
	ResultsSelectedRow lipgloss.Style
	ResultsNull        lipgloss.Style

	TabActive   lipgloss.Style
	TabInactive lipgloss.Style
	TabBar      lipgloss.Style

	StatusBar        lipgloss.Style
	StatusBarKey     lipgloss.Style
	StatusBarValue   lipgloss.Style
	StatusBarError   lipgloss.Style
	StatusBarSuccess lipgloss.Style

	AutocompleteItem     lipgloss.Style
	AutocompleteSelected lipgloss.Style
	AutocompleteType     lipgloss.Style
	AutocompleteBorder   lipgloss.Style

	DialogBorder       lipgloss.Style
	DialogErrorBorder  lipgloss.Style
	DialogTitle        lipgloss.Style
	DialogButton       lipgloss.Style
	DialogButtonActive lipgloss.Style

	FocusedBorder   lipgloss.Style
	UnfocusedBorder lipgloss.Style
	ErrorText       lipgloss.Style
	SuccessText     lipgloss.Style
	WarningText     lipgloss.Style
	MutedText       lipgloss.Style
}

// Palette is the set of colours a Theme is built from.
type Palette struct {
	Background lipgloss.Color
	Panel      lipgloss.Color // header rows, tab bar, popups
	Raised     lipgloss.Color // inactive tabs, buttons
	Border     lipgloss.Color
	Accent     lipgloss.Color // focus, titles, active elements
	OnAccent   lipgloss.Color // text drawn on Accent
	Text       lipgloss.Color
	Bright     lipgloss.Color
	Muted      lipgloss.Color
	Selection  lipgloss.Color
	StatusBar  lipgloss.Color

	Keyword    lipgloss.Color
	String     lipgloss.Color
	Number     lipgloss.Color
	Comment    lipgloss.Color
	Function   lipgloss.Color
	Type       lipgloss.Color
	Identifier lipgloss.Color
	View       lipgloss.Color

	Error   lipgloss.Color
	Success lipgloss.Color
	Warning lipgloss.Color
}

// New builds a theme named name from p.
func New(name string, p Palette) *Theme {
	fg := func(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }
	box := func(c lipgloss.Color) lipgloss.Style {
		return lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(c)
	}
	pad := func(s lipgloss.Style, n int) lipgloss.Style { return s.PaddingLeft(n).PaddingRight(n) }
	selected := lipgloss.NewStyle().Foreground(p.Bright).Background(p.Selection)

	return &Theme{
		Name:          name,
		AppBackground: lipgloss.NewStyle().Background(p.Background),

		SidebarBorder:     box(p.Border),
		SidebarTitle:      fg(p.Accent).Bold(true).PaddingLeft(1),
		SidebarDatabase:   fg(p.Function).Bold(true),
		SidebarSchema:     fg(p.Identifier),
		SidebarTable:      fg(p.Type),
		SidebarView:       fg(p.View),
		SidebarTempTable:  fg(p.Type).Italic(true),
		SidebarColumn:     fg(p.Text),
		SidebarColumnType: fg(p.Muted).Italic(true),
		SidebarSelected:   selected.Bold(true),

		EditorLineNumber: fg(p.Muted),

		SQLKeyword:    fg(p.Keyword).Bold(true),
		SQLString:     fg(p.String),
		SQLNumber:     fg(p.Number),
		SQLComment:    fg(p.Comment).Italic(true),
		SQLOperator:   fg(p.Text),
		SQLFunction:   fg(p.Function),
		SQLType:       fg(p.Type),
		SQLIdentifier: fg(p.Identifier),

		ResultsHeader:      fg(p.Accent).Background(p.Panel).Bold(true),
		ResultsColumnType:  fg(p.Muted).Background(p.Panel),
		ResultsCell:        fg(p.Text),
		ResultsSelectedRow: selected,
		ResultsNull:        fg(p.Muted).Italic(true),

		TabActive: pad(fg(p.Bright).Background(p.Background).Bold(true).
			BorderStyle(lipgloss.NormalBorder()).BorderBottom(false).
			BorderForeground(p.Accent), 1),
		TabInactive: pad(fg(p.Muted).Background(p.Raised).
			BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).
			BorderForeground(p.Border), 1),
		TabBar: lipgloss.NewStyle().Background(p.Panel),

		StatusBar:        fg(p.OnAccent).Background(p.StatusBar),
		StatusBarKey:     pad(fg(p.OnAccent).Background(p.StatusBar).Bold(true), 1),
		StatusBarValue:   pad(fg(p.Text).Background(p.Background), 1),
		StatusBarError:   fg(p.Bright).Background(p.Error).Bold(true),
		StatusBarSuccess: fg(p.Bright).Background(p.Success).Bold(true),

		AutocompleteItem:     pad(fg(p.Text).Background(p.Panel), 1),
		AutocompleteSelected: pad(selected, 1),
		AutocompleteType:     fg(p.Muted).Background(p.Panel).Italic(true),
		AutocompleteBorder:   box(p.Accent),

		DialogBorder:       box(p.Accent).Padding(1, 2),
		DialogErrorBorder:  box(p.Error).Padding(1, 2),
		DialogTitle:        fg(p.Accent).Bold(true),
		DialogButton:       pad(fg(p.Text).Background(p.Raised), 2),
		DialogButtonActive: pad(fg(p.OnAccent).Background(p.Accent).Bold(true), 2),

		FocusedBorder:   box(p.Accent),
		UnfocusedBorder: box(p.Border),
		ErrorText:       fg(p.Error).Bold(true),
		SuccessText:     fg(p.Success),
		WarningText:     fg(p.Warning),
		MutedText:       fg(p.Muted),
	}
}

var (
	darkPalette = Palette{
		Background: "#1E1E1E", Panel: "#252526", Raised: "#2D2D2D", Border: "#3C3C3C",
		Accent: "#569CD6", OnAccent: "#FFFFFF", Text: "#D4D4D4", Bright: "#FFFFFF",
		Muted: "#808080", Selection: "#264F78", StatusBar: "#007ACC",
		Keyword: "#569CD6", String: "#CE9178", Number: "#B5CEA8", Comment: "#6A9955",
		Function: "#DCDCAA", Type: "#4EC9B0", Identifier: "#9CDCFE", View: "#C586C0",
		Error: "#F44747", Success: "#6A9955", Warning: "#CCA700",
	}
	lightPalette = Palette{
		Background: "#FFFFFF", Panel: "#F3F3F3", Raised: "#ECECEC", Border: "#D4D4D4",
		Accent: "#0451A5", OnAccent: "#FFFFFF", Text: "#1E1E1E", Bright: "#FFFFFF",
		Muted: "#A0A0A0", Selection: "#0060C0", StatusBar: "#0060C0",
		Keyword: "#0000FF", String: "#A31515", Number: "#098658", Comment: "#008000",
		Function: "#795E26", Type: "#267F99", Identifier: "#001080", View: "#AF00DB",
		Error: "#E51400", Success: "#16825D", Warning: "#BF8803",
	}
	monokaiPalette = Palette{
		Background: "#272822", Panel: "#3E3D32", Raised: "#3E3D32", Border: "#49483E",
		Accent: "#F92672", OnAccent: "#272822", Text: "#F8F8F2", Bright: "#F8F8F2",
		Muted: "#75715E", Selection: "#49483E", StatusBar: "#A6E22E",
		Keyword: "#F92672", String: "#E6DB74", Number: "#AE81FF", Comment: "#75715E",
		Function: "#A6E22E", Type: "#66D9EF", Identifier: "#F8F8F2", View: "#AE81FF",
		Error: "#F92672", Success: "#A6E22E", Warning: "#E6DB74",
	}
)

// Themes maps theme names to their Theme definitions.
var Themes = map[string]*Theme{
	"default": New("default", darkPalette),
	"light":   New("light", lightPalette),
	"monokai": New("monokai", monokaiPalette),
}

// Current is the active theme.
var Current = Themes["default"]

// Default returns the default dark theme.
func Default() *Theme {
	return Themes["default"]
}

// Get returns the named theme, falling back to the default theme.
func Get(name string) *Theme {
	if t, ok := Themes[name]; ok {
		return t
	}
	return Default()
}

// Names returns the registered theme names, sorted.
func Names() []string {
	names := make([]string, 0, len(Themes))
	for n := range Themes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
