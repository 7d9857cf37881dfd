package adapter

import (
	"context"
	"errors"

	"github.com/sadopc/sqlharbor/internal/catalog"
	"github.com/sadopc/sqlharbor/internal/completion"
	"github.com/sadopc/sqlharbor/internal/export"
)

// ErrNotSupported is returned by connections for operations their backend
// cannot perform.
var ErrNotSupported = errors.New("not supported by this adapter")

// MemoryConnStr is the connection string used by embedded engines when
// none is given.
const MemoryConnStr = ":memory:"

// Adapter holds validated backend configuration and opens connections.
type Adapter interface {
	Connect(ctx context.Context) (Connection, error)

	// ConnectionID identifies the database(s) the adapter points at. It is
	// stable across runs and empty for purely in-memory connections.
	ConnectionID() string
}

// Connection wraps one native database handle.
type Connection interface {
	// Execute runs a single statement. Statements that return no rows
	// yield a nil Cursor. A cancelled statement yields (nil, nil).
	Execute(ctx context.Context, query string) (Cursor, error)
	// Cancel interrupts the statement currently running, if any.
	Cancel()

	Catalog(ctx context.Context) (*catalog.Catalog, error)
	FetchChildren(ctx context.Context, item *catalog.Item) ([]*catalog.Item, error)
	// Interactions returns the context-menu entries for item. Catalogs
	// restored from a snapshot are decorated with it.
	Interactions(item *catalog.Item) []catalog.Interaction
	Completions(ctx context.Context) ([]completion.Item, error)

	// ValidateSQL returns text if the backend can parse it without
	// running it, and "" otherwise.
	ValidateSQL(ctx context.Context, text string) string

	// Copy writes the result of query to path.
	Copy(ctx context.Context, query, path string, opts export.Options) error

	// InitMessage reports what the init script did, or "".
	InitMessage() string

	// TransactionMode returns the label of the current transaction mode, or
	// "" when the backend has no switchable modes.
	TransactionMode() string
	ToggleTransactionMode(ctx context.Context) (string, error)

	Name() string
	Close() error
}

// Cursor is the result of one executed statement.
type Cursor interface {
	Columns() []Column
	// SetLimit caps the rows returned by FetchAll. Backends that cannot
	// apply a limit ignore it.
	SetLimit(n int) Cursor
	// FetchAll drains the cursor. A cancelled fetch yields (nil, nil).
	FetchAll(ctx context.Context) (*ResultSet, error)
}

// Column is a result column and its short type glyph.
type Column struct {
	Name string
	Type string
}

// ResultSet is a fully materialized result.
type ResultSet struct {
	Columns []Column
	Rows    [][]any
}

// ColumnNames returns the names of the result's columns.
func (r *ResultSet) ColumnNames() []string {
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}
	return names
}

// ConnStrings returns connStr, or the in-memory placeholder when it holds
// no usable value.
func ConnStrings(connStr []string) []string {
	var out []string
	for _, s := range connStr {
		if s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return []string{MemoryConnStr}
	}
	return out
}
