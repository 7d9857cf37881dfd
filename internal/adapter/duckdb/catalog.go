package duckdb

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/sadopc/sqlharbor/internal/adapter"
	"github.com/sadopc/sqlharbor/internal/catalog"
	"github.com/sadopc/sqlharbor/internal/completion"
	"github.com/sadopc/sqlharbor/internal/quote"
)

// Catalog lists databases. Schemas, relations and columns load on
// expansion.
func (c *duckdbConn) Catalog(ctx context.Context) (*catalog.Catalog, error) {
	rows, err := adapter.QueryStrings(ctx, c.db, "pragma show_databases")
	if err != nil {
		return nil, fmt.Errorf("duckdb databases: %w", err)
	}
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		names = append(names, r[0])
	}
	sort.Strings(names)

	cat := &catalog.Catalog{}
	for _, name := range names {
		db := catalog.NewDatabase(name)
		db.Interactions = c.Interactions(db)
		cat.Items = append(cat.Items, db)
	}
	return cat, nil
}

func (c *duckdbConn) FetchChildren(ctx context.Context, item *catalog.Item) ([]*catalog.Item, error) {
	switch item.Kind {
	case catalog.Database:
		return c.schemas(ctx, item)
	case catalog.Schema:
		return c.relations(ctx, item)
	case catalog.Table, catalog.View, catalog.TempTable:
		return c.columns(ctx, item)
	default:
		return nil, nil
	}
}

func (c *duckdbConn) schemas(ctx context.Context, db *catalog.Item) ([]*catalog.Item, error) {
	rows, err := adapter.QueryStrings(ctx, c.db, `
		select schema_name
		from information_schema.schemata
		where catalog_name = ?
			and schema_name not in ('pg_catalog', 'information_schema')
		order by 1`, db.Label)
	if err != nil {
		return nil, fmt.Errorf("duckdb schemas: %w", err)
	}
	items := make([]*catalog.Item, 0, len(rows))
	for _, r := range rows {
		s := catalog.NewSchema(db, r[0])
		s.Interactions = c.Interactions(s)
		items = append(items, s)
	}
	return items, nil
}

func (c *duckdbConn) relations(ctx context.Context, schema *catalog.Item) ([]*catalog.Item, error) {
	rows, err := adapter.QueryStrings(ctx, c.db, `
		select table_name, table_type
		from information_schema.tables
		where table_catalog = ?
			and table_schema = ?
		order by 1`, schema.Path[0], schema.Label)
	if err != nil {
		return nil, fmt.Errorf("duckdb relations: %w", err)
	}
	items := make([]*catalog.Item, 0, len(rows))
	for _, r := range rows {
		kind := catalog.Table
		switch r[1] {
		case "VIEW":
			kind = catalog.View
		case "LOCAL TEMPORARY":
			kind = catalog.TempTable
		}
		glyph, ok := relationTypes[r[1]]
		if !ok {
			glyph = "?"
		}
		rel := catalog.NewRelation(schema, kind, r[0], glyph)
		rel.Interactions = c.Interactions(rel)
		items = append(items, rel)
	}
	return items, nil
}

func (c *duckdbConn) columns(ctx context.Context, rel *catalog.Item) ([]*catalog.Item, error) {
	rows, err := adapter.QueryStrings(ctx, c.db, `
		select column_name, data_type
		from information_schema.columns
		where table_catalog = ?
			and table_schema = ?
			and table_name = ?
		order by ordinal_position`, rel.Path[0], rel.Path[1], rel.Label)
	if err != nil {
		return nil, fmt.Errorf("duckdb columns: %w", err)
	}
	items := make([]*catalog.Item, 0, len(rows))
	for _, r := range rows {
		items = append(items, catalog.NewColumn(rel, r[0], columnTypes.Short(r[1])))
	}
	return items, nil
}

func useStatement(it *catalog.Item) string {
	return "use " + it.QualifiedIdentifier
}

// Interactions returns the context-menu entries for databases, schemas
// and relations.
func (c *duckdbConn) Interactions(it *catalog.Item) []catalog.Interaction {
	switch it.Kind {
	case catalog.Database:
		return []catalog.Interaction{catalog.UseContext(useStatement), catalog.Drop("database")}
	case catalog.Schema:
		return []catalog.Interaction{catalog.UseContext(useStatement), catalog.Drop("schema")}
	case catalog.Table, catalog.View, catalog.TempTable:
		if len(it.Path) < 3 {
			return nil
		}
	default:
		return nil
	}

	out := []catalog.Interaction{
		catalog.InsertColumns(),
		catalog.PreviewData(100),
		catalog.Describe(func(it *catalog.Item) string {
			return "describe " + it.QualifiedIdentifier
		}),
		catalog.ShowDDL(ddlQuery),
	}
	if it.Kind == catalog.View {
		return append(out, catalog.Drop("view"))
	}
	return append(out, catalog.Drop("table"))
}

func ddlQuery(it *catalog.Item) string {
	fn, col := "duckdb_tables()", "table_name"
	if it.Kind == catalog.View {
		fn, col = "duckdb_views()", "view_name"
	}
	return fmt.Sprintf("select sql\nfrom %s\nwhere database_name = %s\n    and schema_name = %s\n    and %s = %s",
		fn, quote.Literal(it.Path[0]), quote.Literal(it.Path[1]), col, quote.Literal(it.Label))
}

const completionQuery = `
select distinct
    keyword_name as label,
    'kw' as type_label,
    case when keyword_category = 'reserved' then 100 else 1000 end as priority,
    null as context
from duckdb_keywords()
union all
select distinct
    function_name,
    case function_type
        when 'pragma' then 'pragma'
        when 'macro' then 'macro'
        when 'aggregate' then 'agg'
        when 'scalar' then 'fn'
        when 'table' then 'fn->T'
        else 'fn' end,
    1000,
    case when database_name = 'system' then null else schema_name end
from duckdb_functions()
where database_name != 'temp'
union all
select distinct name, 'set', 2000, null
from duckdb_settings()
union all
select distinct type_name, 'type', 1000, null
from duckdb_types()
where database_name = 'system'
union all
select distinct type_name, 'type', 1000, schema_name
from duckdb_types()
where database_name not in ('system', 'temp')
    and type_name not in (select type_name from duckdb_types() where database_name = 'system')
`

// Completions harvests keywords, functions, settings and types from the
// DuckDB system catalog.
func (c *duckdbConn) Completions(ctx context.Context) ([]completion.Item, error) {
	rows, err := adapter.QueryStrings(ctx, c.db, completionQuery)
	if err != nil {
		return nil, fmt.Errorf("duckdb completions: %w", err)
	}
	return completionItems(rows), nil
}

// completionItems converts (label, type, priority, context) rows.
func completionItems(rows [][]string) []completion.Item {
	items := make([]completion.Item, 0, len(rows))
	for _, r := range rows {
		prio, err := strconv.Atoi(r[2])
		if err != nil {
			prio = completion.PriorityBackend
		}
		items = append(items, completion.Item{
			Label:     r[0],
			TypeLabel: r[1],
			Value:     r[0],
			Priority:  prio,
			Context:   r[3],
		})
	}
	return completion.Dedupe(items)
}
