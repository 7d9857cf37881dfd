package sqlite

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sadopc/sqlharbor/internal/adapter"
	"github.com/sadopc/sqlharbor/internal/catalog"
	"github.com/sadopc/sqlharbor/internal/completion"
	"github.com/sadopc/sqlharbor/internal/quote"
)

// Catalog lists the attached databases. Relations and columns load on
// expansion.
func (c *sqliteConn) Catalog(ctx context.Context) (*catalog.Catalog, error) {
	rows, err := adapter.QueryStrings(ctx, c.conn, "pragma database_list")
	if err != nil {
		return nil, fmt.Errorf("sqlite databases: %w", err)
	}
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		names = append(names, r[1])
	}
	sort.Strings(names)

	cat := &catalog.Catalog{}
	for _, name := range names {
		cat.Items = append(cat.Items, catalog.NewDatabase(name))
	}
	return cat, nil
}

func (c *sqliteConn) FetchChildren(ctx context.Context, item *catalog.Item) ([]*catalog.Item, error) {
	switch item.Kind {
	case catalog.Database:
		return c.relations(ctx, item)
	case catalog.Table, catalog.View:
		return c.columns(ctx, item)
	default:
		return nil, nil
	}
}

func (c *sqliteConn) relations(ctx context.Context, db *catalog.Item) ([]*catalog.Item, error) {
	query := fmt.Sprintf(
		"select type, name from %s.sqlite_schema where type in ('table', 'view') order by name",
		quote.Ident(db.Label))
	rows, err := adapter.QueryStrings(ctx, c.conn, query)
	if err != nil {
		return nil, fmt.Errorf("sqlite relations: %w", err)
	}
	items := make([]*catalog.Item, 0, len(rows))
	for _, r := range rows {
		kind, glyph := catalog.Table, "t"
		if r[0] == "view" {
			kind, glyph = catalog.View, "v"
		}
		rel := catalog.NewRelation(db, kind, r[1], glyph)
		rel.Interactions = c.Interactions(rel)
		items = append(items, rel)
	}
	return items, nil
}

func (c *sqliteConn) columns(ctx context.Context, rel *catalog.Item) ([]*catalog.Item, error) {
	query := fmt.Sprintf("pragma %s.table_info(%s)", quote.Ident(rel.Path[0]), quote.Literal(rel.Label))
	rows, err := adapter.QueryStrings(ctx, c.conn, query)
	if err != nil {
		return nil, fmt.Errorf("sqlite columns: %w", err)
	}
	items := make([]*catalog.Item, 0, len(rows))
	for _, r := range rows {
		// cid, name, type, notnull, dflt_value, pk
		items = append(items, catalog.NewColumn(rel, r[1], affinity.Short(r[2])))
	}
	return items, nil
}

// Interactions returns the context-menu entries for tables and views.
func (c *sqliteConn) Interactions(it *catalog.Item) []catalog.Interaction {
	if !it.Kind.IsRelation() || len(it.Path) < 2 {
		return nil
	}
	out := []catalog.Interaction{
		catalog.InsertColumns(),
		catalog.PreviewData(100),
		catalog.Describe(func(it *catalog.Item) string {
			return fmt.Sprintf("pragma %s.table_info(%s)", quote.Ident(it.Path[0]), quote.Literal(it.Label))
		}),
		catalog.ShowDDL(func(it *catalog.Item) string {
			return fmt.Sprintf("select sql\nfrom %s.sqlite_schema\nwhere tbl_name = %s\nlimit 1",
				quote.Ident(it.Path[0]), quote.Literal(it.Label))
		}),
	}
	if it.Kind == catalog.View {
		return append(out, catalog.Drop("view"))
	}
	return append(out, catalog.Drop("table"))
}

var functionTypes = map[string]string{
	"s": "fn",
	"a": "agg",
	"w": "win",
}

// Completions harvests functions, pragmas and collations. Sources the
// build does not expose are skipped.
func (c *sqliteConn) Completions(ctx context.Context) ([]completion.Item, error) {
	var items []completion.Item

	add := func(query string, build func(r []string) completion.Item) error {
		rows, err := adapter.QueryStrings(ctx, c.conn, query)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Debug("skipping completion source", "query", query, "error", err)
			return nil
		}
		for _, r := range rows {
			items = append(items, build(r))
		}
		return nil
	}

	err := add("select distinct name, type from pragma_function_list order by name", func(r []string) completion.Item {
		typ, ok := functionTypes[r[1]]
		if !ok {
			typ = "fn"
		}
		name := strings.ToLower(r[0])
		return completion.Item{Label: name, TypeLabel: typ, Value: name, Priority: completion.PriorityBackend}
	})
	if err != nil {
		return nil, err
	}
	err = add("select name from pragma_pragma_list order by name", func(r []string) completion.Item {
		return completion.Item{Label: r[0], TypeLabel: "pragma", Value: r[0], Priority: completion.PrioritySetting}
	})
	if err != nil {
		return nil, err
	}
	err = add("select name from pragma_collation_list order by name", func(r []string) completion.Item {
		name := strings.ToLower(r[0])
		return completion.Item{Label: name, TypeLabel: "coll", Value: name, Priority: completion.PriorityBackend}
	})
	if err != nil {
		return nil, err
	}
	return completion.Dedupe(items), nil
}
