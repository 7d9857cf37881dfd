// Package catalog models the browsable tree of database objects exposed by
// a connection: databases, schemas, relations and columns.
package catalog

import (
	"context"
	"fmt"

	"github.com/sadopc/sqlharbor/internal/quote"
)

// Kind tags the variant of a catalog item.
type Kind int

const (
	Database Kind = iota
	Schema
	Table
	View
	TempTable
	Column
)

func (k Kind) String() string {
	switch k {
	case Database:
		return "database"
	case Schema:
		return "schema"
	case Table:
		return "table"
	case View:
		return "view"
	case TempTable:
		return "temp table"
	case Column:
		return "column"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// IsRelation reports whether k is a table, view or temp table.
func (k Kind) IsRelation() bool {
	return k == Table || k == View || k == TempTable
}

// State says whether an item's children have been fetched.
type State int

const (
	Unloaded State = iota
	Loaded
)

// Item is one node of the catalog tree.
//
// QualifiedIdentifier is the stable identity of the node: a fully quoted
// path that stays the same across rebuilds for the same database object.
// QueryName is the text inserted into the editor for the node.
type Item struct {
	Kind                Kind          `json:"kind"`
	QualifiedIdentifier string        `json:"qualified_identifier"`
	QueryName           string        `json:"query_name"`
	Label               string        `json:"label"`
	TypeLabel           string        `json:"type_label"`
	State               State         `json:"state"`
	Children            []*Item       `json:"children,omitempty"`
	Interactions        []Interaction `json:"-"`

	// Path holds the unquoted labels from the root down to this item, so
	// backends can fetch children without parsing identifiers.
	Path []string `json:"path"`
}

// Catalog is the list of top-level items for one connection.
type Catalog struct {
	Items []*Item `json:"items"`
}

// Loader fetches the direct children of an item. Connections implement it.
type Loader interface {
	FetchChildren(ctx context.Context, item *Item) ([]*Item, error)
}

// Expand loads the children of an Unloaded item through l and marks it
// Loaded. Loaded items are returned unchanged. On error the item stays
// Unloaded so a later expansion can retry.
func Expand(ctx context.Context, item *Item, l Loader) ([]*Item, error) {
	if item.State == Loaded {
		return item.Children, nil
	}
	children, err := l.FetchChildren(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("expand %s: %w", item.QualifiedIdentifier, err)
	}
	item.Children = children
	item.State = Loaded
	return children, nil
}

// NewDatabase builds a top-level database item.
func NewDatabase(label string) *Item {
	id := quote.Ident(label)
	return &Item{
		Kind:                Database,
		QualifiedIdentifier: id,
		QueryName:           id,
		Label:               label,
		TypeLabel:           "db",
		Path:                []string{label},
	}
}

// NewSchema builds a schema item under a database.
func NewSchema(parent *Item, label string) *Item {
	id := parent.QualifiedIdentifier + "." + quote.Ident(label)
	return &Item{
		Kind:                Schema,
		QualifiedIdentifier: id,
		QueryName:           id,
		Label:               label,
		TypeLabel:           "sch",
		Path:                childPath(parent, label),
	}
}

// NewRelation builds a table, view or temp table under parent. Its query
// name is the parent's label and its own, both quoted.
func NewRelation(parent *Item, kind Kind, label, typeLabel string) *Item {
	return &Item{
		Kind:                kind,
		QualifiedIdentifier: parent.QualifiedIdentifier + "." + quote.Ident(label),
		QueryName:           quote.Ident(parent.Label) + "." + quote.Ident(label),
		Label:               label,
		TypeLabel:           typeLabel,
		Path:                childPath(parent, label),
	}
}

// NewColumn builds a column under a relation. Columns insert only their
// own quoted name and have no children.
func NewColumn(parent *Item, label, typeLabel string) *Item {
	return &Item{
		Kind:                Column,
		QualifiedIdentifier: parent.QualifiedIdentifier + "." + quote.Ident(label),
		QueryName:           quote.Ident(label),
		Label:               label,
		TypeLabel:           typeLabel,
		State:               Loaded,
		Path:                childPath(parent, label),
	}
}

func childPath(parent *Item, label string) []string {
	p := make([]string, 0, len(parent.Path)+1)
	p = append(p, parent.Path...)
	return append(p, label)
}

// Leaf reports whether the item can never have children.
func (it *Item) Leaf() bool {
	return it.Kind == Column
}

// Walk visits every loaded item depth-first in tree order. Returning false
// from fn stops the walk.
func (c *Catalog) Walk(fn func(it *Item, depth int) bool) {
	if c == nil {
		return
	}
	var walk func(items []*Item, depth int) bool
	walk = func(items []*Item, depth int) bool {
		for _, it := range items {
			if !fn(it, depth) {
				return false
			}
			if !walk(it.Children, depth+1) {
				return false
			}
		}
		return true
	}
	walk(c.Items, 0)
}

// Find returns the item with the given qualified identifier, or nil.
func (c *Catalog) Find(qid string) *Item {
	var found *Item
	c.Walk(func(it *Item, _ int) bool {
		if it.QualifiedIdentifier == qid {
			found = it
			return false
		}
		return true
	})
	return found
}

// Identifiers returns the qualified identifiers of all loaded items.
func (c *Catalog) Identifiers() []string {
	var ids []string
	c.Walk(func(it *Item, _ int) bool {
		ids = append(ids, it.QualifiedIdentifier)
		return true
	})
	return ids
}

// Decorate sets the interactions of every loaded item from fn. Snapshots
// do not carry interactions, so restored catalogs are decorated before use.
func (c *Catalog) Decorate(fn func(it *Item) []Interaction) {
	c.Walk(func(it *Item, _ int) bool {
		it.Interactions = fn(it)
		return true
	})
}
