package catalog

import (
	"fmt"
	"strings"
)

// Action describes what the UI should do when an interaction is chosen.
// Items never hold a connection; the UI runs statements on the active one.
type Action struct {
	// Execute is a statement to run on the active connection.
	Execute string
	// FetchText is a query whose first row is fetched; the cell at
	// FetchColumn is opened in a new buffer.
	FetchText   string
	FetchColumn int
	// NewBuffer is text opened in a new editor buffer.
	NewBuffer string
	// InsertText is inserted at the editor cursor.
	InsertText string
	// NeedsChildren asks the UI to load the item's children and run the
	// interaction again.
	NeedsChildren bool
	// Confirm asks the user before Execute runs.
	Confirm bool
	// RefreshCatalog refreshes the catalog after Execute succeeds.
	RefreshCatalog bool
	// Notify is shown after the action succeeds.
	Notify string
	// Failure is shown if Execute fails.
	Failure string
}

// Interaction is one context-menu entry for a catalog item.
type Interaction struct {
	Label string
	Run   func(it *Item) Action
}

// Lookup returns the interaction with the given label.
func (it *Item) Lookup(label string) (Interaction, bool) {
	for _, in := range it.Interactions {
		if in.Label == label {
			return in, true
		}
	}
	return Interaction{}, false
}

// UseContext switches the editor context to the item with stmt.
func UseContext(stmt func(it *Item) string) Interaction {
	return Interaction{
		Label: "Switch Editor Context (USE)",
		Run: func(it *Item) Action {
			return Action{
				Execute: stmt(it),
				Notify:  "Editor context switched to " + it.Label,
				Failure: "Could not switch context",
			}
		},
	}
}

// Drop removes the object after confirmation and refreshes the catalog.
// objectType is the SQL keyword: database, schema, table or view.
func Drop(objectType string) Interaction {
	title := strings.ToUpper(objectType[:1]) + objectType[1:]
	return Interaction{
		Label: "Drop " + title,
		Run: func(it *Item) Action {
			return Action{
				Execute:        fmt.Sprintf("drop %s %s", objectType, it.QualifiedIdentifier),
				Confirm:        true,
				RefreshCatalog: true,
				Notify:         fmt.Sprintf("Dropped %s %s", objectType, it.Label),
				Failure:        fmt.Sprintf("Could not drop %s %s", objectType, it.Label),
			}
		},
	}
}

// InsertColumns inserts the relation's column names at the cursor, one per
// line.
func InsertColumns() Interaction {
	return Interaction{
		Label: "Insert Columns at Cursor",
		Run: func(it *Item) Action {
			if it.State != Loaded {
				return Action{NeedsChildren: true}
			}
			names := make([]string, 0, len(it.Children))
			for _, c := range it.Children {
				names = append(names, c.QueryName)
			}
			return Action{InsertText: strings.Join(names, ",\n")}
		},
	}
}

// PreviewData opens a select-star query in a new buffer.
func PreviewData(limit int) Interaction {
	return Interaction{
		Label: "Preview Data",
		Run: func(it *Item) Action {
			return Action{NewBuffer: fmt.Sprintf("select *\nfrom %s\nlimit %d", it.QualifiedIdentifier, limit)}
		},
	}
}

// Describe opens a describe statement for the relation in a new buffer.
func Describe(stmt func(it *Item) string) Interaction {
	return Interaction{
		Label: "Describe",
		Run: func(it *Item) Action {
			return Action{NewBuffer: stmt(it)}
		},
	}
}

// ShowDDL fetches the relation's DDL with query and opens it in a new
// buffer.
func ShowDDL(query func(it *Item) string) Interaction {
	return Interaction{
		Label: "Show DDL",
		Run: func(it *Item) Action {
			return Action{FetchText: query(it)}
		},
	}
}
