package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/sadopc/sqlharbor/internal/catalog"
	"github.com/sadopc/sqlharbor/internal/completion"
	"github.com/sadopc/sqlharbor/internal/quote"
)

// querier is satisfied by *pgxpool.Pool and *pgxpool.Conn.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// queryStrings runs an introspection query whose columns are all text and
// returns its rows with NULLs as "".
func queryStrings(ctx context.Context, q querier, sql string, args ...any) ([][]string, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) ([]string, error) {
		vals := make([]pgtype.Text, len(row.FieldDescriptions()))
		dest := make([]any, len(vals))
		for i := range vals {
			dest[i] = &vals[i]
		}
		if err := row.Scan(dest...); err != nil {
			return nil, err
		}
		out := make([]string, len(vals))
		for i, v := range vals {
			out[i] = v.String
		}
		return out, nil
	})
}

// relationKinds maps pg_class.relkind to the item kind and glyph.
var relationKinds = map[string]struct {
	kind  catalog.Kind
	glyph string
}{
	"r": {catalog.Table, "t"},
	"p": {catalog.Table, "t"},
	"f": {catalog.Table, "ft"},
	"v": {catalog.View, "v"},
	"m": {catalog.View, "mv"},
}

// Catalog lists the connected database. Postgres cannot introspect other
// databases over this connection.
func (c *pgConn) Catalog(ctx context.Context) (*catalog.Catalog, error) {
	db := catalog.NewDatabase(c.dbName)
	db.Interactions = c.Interactions(db)
	return &catalog.Catalog{Items: []*catalog.Item{db}}, nil
}

func (c *pgConn) FetchChildren(ctx context.Context, item *catalog.Item) ([]*catalog.Item, error) {
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

func (c *pgConn) schemas(ctx context.Context, db *catalog.Item) ([]*catalog.Item, error) {
	rows, err := queryStrings(ctx, c.pool, `
		select nspname::text
		from pg_namespace
		where nspname not in ('pg_catalog', 'information_schema', 'pg_toast')
			and nspname not like 'pg\_temp\_%'
			and nspname not like 'pg\_toast\_temp\_%'
		order by 1`)
	if err != nil {
		return nil, fmt.Errorf("postgres schemas: %w", err)
	}
	items := make([]*catalog.Item, 0, len(rows))
	for _, r := range rows {
		s := catalog.NewSchema(db, r[0])
		s.Interactions = c.Interactions(s)
		items = append(items, s)
	}
	return items, nil
}

func (c *pgConn) relations(ctx context.Context, schema *catalog.Item) ([]*catalog.Item, error) {
	rows, err := queryStrings(ctx, c.pool, `
		select c.relname::text, c.relkind::text
		from pg_class c
		join pg_namespace n on n.oid = c.relnamespace
		where n.nspname = $1
			and c.relkind in ('r', 'p', 'f', 'v', 'm')
			and not c.relispartition
		order by 1`, schema.Label)
	if err != nil {
		return nil, fmt.Errorf("postgres relations: %w", err)
	}
	items := make([]*catalog.Item, 0, len(rows))
	for _, r := range rows {
		rk, ok := relationKinds[r[1]]
		if !ok {
			continue
		}
		rel := catalog.NewRelation(schema, rk.kind, r[0], rk.glyph)
		rel.Interactions = c.Interactions(rel)
		items = append(items, rel)
	}
	return items, nil
}

func (c *pgConn) columns(ctx context.Context, rel *catalog.Item) ([]*catalog.Item, error) {
	rows, err := queryStrings(ctx, c.pool, `
		select a.attname::text, t.typname::text
		from pg_attribute a
		join pg_class c on c.oid = a.attrelid
		join pg_namespace n on n.oid = c.relnamespace
		join pg_type t on t.oid = a.atttypid
		where n.nspname = $1
			and c.relname = $2
			and a.attnum > 0
			and not a.attisdropped
		order by a.attnum`, rel.Path[1], rel.Label)
	if err != nil {
		return nil, fmt.Errorf("postgres columns: %w", err)
	}
	items := make([]*catalog.Item, 0, len(rows))
	for _, r := range rows {
		items = append(items, catalog.NewColumn(rel, r[0], glyph(r[1])))
	}
	return items, nil
}

// Interactions returns the context-menu entries for schemas and relations.
// Postgres has no USE, so schemas switch the search path instead.
func (c *pgConn) Interactions(it *catalog.Item) []catalog.Interaction {
	switch it.Kind {
	case catalog.Schema:
		return []catalog.Interaction{
			catalog.UseContext(func(it *catalog.Item) string {
				return "set search_path to " + quote.Ident(it.Label)
			}),
			catalog.Drop("schema"),
		}
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
		catalog.Describe(describeQuery),
	}
	switch {
	case it.Kind == catalog.View && it.TypeLabel == "mv":
		out = append(out, catalog.ShowDDL(viewDefinition), catalog.Drop("materialized view"))
	case it.Kind == catalog.View:
		out = append(out, catalog.ShowDDL(viewDefinition), catalog.Drop("view"))
	default:
		out = append(out, catalog.Drop("table"))
	}
	return out
}

func describeQuery(it *catalog.Item) string {
	return fmt.Sprintf("select column_name, data_type, is_nullable, column_default\n"+
		"from information_schema.columns\nwhere table_schema = %s\n    and table_name = %s\norder by ordinal_position",
		quote.Literal(it.Path[1]), quote.Literal(it.Label))
}

func viewDefinition(it *catalog.Item) string {
	return fmt.Sprintf("select pg_get_viewdef(%s::regclass, true)", quote.Literal(it.QueryName))
}

var completionSources = []struct {
	name      string
	query     string
	typeLabel string
	priority  int
}{
	{
		name: "functions",
		query: `
			select distinct p.proname::text,
				case p.prokind when 'a' then 'agg' when 'w' then 'win' when 'p' then 'proc' else 'fn' end,
				case when n.nspname = 'pg_catalog' then '' else n.nspname::text end
			from pg_proc p
			join pg_namespace n on n.oid = p.pronamespace
			where n.nspname not in ('information_schema', 'pg_toast')
				and p.proname not like '\_%'`,
		priority: completion.PriorityBackend,
	},
	{
		name:      "settings",
		query:     `select name::text, '', '' from pg_settings`,
		typeLabel: "set",
		priority:  completion.PrioritySetting,
	},
	{
		name: "types",
		query: `
			select distinct t.typname::text, '',
				case when n.nspname = 'pg_catalog' then '' else n.nspname::text end
			from pg_type t
			join pg_namespace n on n.oid = t.typnamespace
			where t.typtype in ('b', 'e', 'd', 'r')
				and t.typname not like '\_%'
				and n.nspname not in ('information_schema', 'pg_toast')`,
		typeLabel: "type",
		priority:  completion.PriorityBackend,
	},
}

// Completions harvests functions, settings and types from the system
// catalogs. Rows are (label, type label, context); an empty type label
// takes the source's default.
func (c *pgConn) Completions(ctx context.Context) ([]completion.Item, error) {
	var items []completion.Item
	for _, src := range completionSources {
		rows, err := queryStrings(ctx, c.pool, src.query)
		if err != nil {
			c.logger.Debug("completion source failed", "source", src.name, "error", err)
			continue
		}
		for _, r := range rows {
			typ := r[1]
			if typ == "" {
				typ = src.typeLabel
			}
			items = append(items, completion.Item{
				Label:     r[0],
				TypeLabel: typ,
				Value:     r[0],
				Priority:  src.priority,
				Context:   r[2],
			})
		}
	}
	return completion.Dedupe(items), nil
}
