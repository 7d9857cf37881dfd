package mysql

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sadopc/sqlharbor/internal/adapter"
	"github.com/sadopc/sqlharbor/internal/catalog"
	"github.com/sadopc/sqlharbor/internal/completion"
	"github.com/sadopc/sqlharbor/internal/quote"
)

// backticked rewrites an item's identifiers from its path with MySQL's
// backtick quoting.
func backticked(it *catalog.Item) *catalog.Item {
	parts := make([]string, len(it.Path))
	for i, p := range it.Path {
		parts[i] = quote.Backtick(p)
	}
	it.QualifiedIdentifier = strings.Join(parts, ".")
	switch it.Kind {
	case catalog.Column:
		it.QueryName = quote.Backtick(it.Label)
	default:
		it.QueryName = it.QualifiedIdentifier
	}
	return it
}

// Catalog lists user databases. MySQL has no schema level, so relations
// sit directly under their database.
func (c *mysqlConn) Catalog(ctx context.Context) (*catalog.Catalog, error) {
	rows, err := adapter.QueryStrings(ctx, c.db, `
		select schema_name
		from information_schema.schemata
		where schema_name not in ('information_schema', 'mysql', 'performance_schema', 'sys')
		order by schema_name`)
	if err != nil {
		return nil, fmt.Errorf("mysql databases: %w", err)
	}
	cat := &catalog.Catalog{}
	for _, r := range rows {
		db := backticked(catalog.NewDatabase(r[0]))
		db.Interactions = c.Interactions(db)
		cat.Items = append(cat.Items, db)
	}
	return cat, nil
}

func (c *mysqlConn) FetchChildren(ctx context.Context, item *catalog.Item) ([]*catalog.Item, error) {
	switch item.Kind {
	case catalog.Database:
		return c.relations(ctx, item)
	case catalog.Table, catalog.View:
		return c.columns(ctx, item)
	default:
		return nil, nil
	}
}

func (c *mysqlConn) relations(ctx context.Context, db *catalog.Item) ([]*catalog.Item, error) {
	rows, err := adapter.QueryStrings(ctx, c.db, `
		select table_name, table_type
		from information_schema.tables
		where table_schema = ?
		order by table_name`, db.Label)
	if err != nil {
		return nil, fmt.Errorf("mysql relations: %w", err)
	}
	items := make([]*catalog.Item, 0, len(rows))
	for _, r := range rows {
		kind, typ := catalog.Table, "t"
		if strings.Contains(r[1], "VIEW") {
			kind, typ = catalog.View, "v"
		}
		rel := backticked(catalog.NewRelation(db, kind, r[0], typ))
		rel.Interactions = c.Interactions(rel)
		items = append(items, rel)
	}
	return items, nil
}

func (c *mysqlConn) columns(ctx context.Context, rel *catalog.Item) ([]*catalog.Item, error) {
	rows, err := adapter.QueryStrings(ctx, c.db, `
		select column_name, data_type, column_type
		from information_schema.columns
		where table_schema = ?
			and table_name = ?
		order by ordinal_position`, rel.Path[0], rel.Label)
	if err != nil {
		return nil, fmt.Errorf("mysql columns: %w", err)
	}
	items := make([]*catalog.Item, 0, len(rows))
	for _, r := range rows {
		items = append(items, backticked(catalog.NewColumn(rel, r[0], glyph(r[1], r[2]))))
	}
	return items, nil
}

// Interactions returns the context-menu entries for databases and
// relations.
func (c *mysqlConn) Interactions(it *catalog.Item) []catalog.Interaction {
	switch it.Kind {
	case catalog.Database:
		return []catalog.Interaction{
			catalog.UseContext(func(it *catalog.Item) string { return "use " + it.QualifiedIdentifier }),
			catalog.Drop("database"),
		}
	case catalog.Table, catalog.View:
	default:
		return nil
	}
	drop := "table"
	if it.Kind == catalog.View {
		drop = "view"
	}
	return []catalog.Interaction{
		catalog.InsertColumns(),
		catalog.PreviewData(100),
		catalog.Describe(func(it *catalog.Item) string { return "describe " + it.QualifiedIdentifier }),
		{
			// Both forms return the DDL in the second column.
			Label: "Show DDL",
			Run: func(it *catalog.Item) catalog.Action {
				return catalog.Action{FetchText: "show create " + drop + " " + it.QualifiedIdentifier, FetchColumn: 1}
			},
		},
		catalog.Drop(drop),
	}
}

var completionSources = []struct {
	name      string
	query     string
	typeLabel string
	priority  int
}{
	{
		name: "keywords",
		query: `
			select word, 'kw', case when reserved = 1 then '100' else '1000' end, ''
			from information_schema.keywords`,
	},
	{
		name: "routines",
		query: `
			select routine_name, case routine_type when 'PROCEDURE' then 'proc' else 'fn' end, '1000', routine_schema
			from information_schema.routines
			where routine_schema not in ('mysql', 'sys', 'performance_schema')`,
	},
	{
		name:      "settings",
		query:     `show global variables`,
		typeLabel: "set",
		priority:  completion.PrioritySetting,
	},
}

// Completions harvests keywords, stored routines and system variables.
// Sources the user cannot read are skipped.
func (c *mysqlConn) Completions(ctx context.Context) ([]completion.Item, error) {
	var items []completion.Item
	for _, src := range completionSources {
		rows, err := adapter.QueryStrings(ctx, c.db, src.query)
		if err != nil {
			c.logger.Debug("completion source failed", "source", src.name, "error", err)
			continue
		}
		for _, r := range rows {
			items = append(items, completionItem(r, src.typeLabel, src.priority))
		}
	}
	return completion.Dedupe(items), nil
}

// completionItem reads (label, type, priority, context) rows; two-column
// rows like SHOW output take the source's type and priority.
func completionItem(r []string, typeLabel string, priority int) completion.Item {
	it := completion.Item{Label: r[0], Value: r[0], TypeLabel: typeLabel, Priority: priority}
	if len(r) < 4 {
		return it
	}
	it.TypeLabel, it.Context = r[1], r[3]
	prio, err := strconv.Atoi(r[2])
	if err != nil {
		prio = completion.PriorityBackend
	}
	it.Priority = prio
	if strings.EqualFold(it.TypeLabel, "kw") {
		it.Label = strings.ToLower(it.Label)
		it.Value = it.Label
	}
	return it
}
