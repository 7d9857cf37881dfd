package duckdb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/sqlharbor/internal/adapter"
	"github.com/sadopc/sqlharbor/internal/catalog"
	"github.com/sadopc/sqlharbor/internal/completion"
)

func newTestAdapter(t *testing.T, connStr []string, opts adapter.Options) *duckdbAdapter {
	t.Helper()
	a, err := newAdapter(connStr, opts, nil)
	require.NoError(t, err)
	return a.(*duckdbAdapter)
}

func TestRegistration(t *testing.T) {
	assert.Contains(t, adapter.Names(), "duckdb")
	assert.NotEmpty(t, adapter.Declarations("duckdb"))
}

func TestColumnTypes(t *testing.T) {
	tests := []struct {
		native string
		want   string
	}{
		{"INTEGER", "#"},
		{"BIGINT", "##"},
		{"DECIMAL(10,2)", "#.#"},
		{"VARCHAR", "s"},
		{"INTEGER[]", "[#]"},
		{"VARCHAR[3]", "[s]"},
		{"STRUCT(a INTEGER, b VARCHAR)", "{}"},
		{"MAP(VARCHAR, INTEGER)", "{m}"},
		{"TIMESTAMP WITH TIME ZONE", "ttz"},
		{"GEOMETRY", "?"},
	}
	for _, tt := range tests {
		t.Run(tt.native, func(t *testing.T) {
			assert.Equal(t, tt.want, columnTypes.Short(tt.native))
		})
	}
}

func TestConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		opts adapter.Options
	}{
		{"empty extension", adapter.Options{"extension": []string{""}}},
		{"bad flag", adapter.Options{"read-only": "sometimes"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newAdapter(nil, tt.opts, nil)
			require.Error(t, err)
			kind, ok := adapter.KindOf(err)
			require.True(t, ok)
			assert.Equal(t, adapter.KindConfig, kind)
		})
	}
}

func TestPrimaryDSN(t *testing.T) {
	tests := []struct {
		name    string
		connStr []string
		opts    adapter.Options
		want    string
	}{
		{"memory", nil, nil, ""},
		{"file", []string{"duckdb://f1.db"}, nil, "f1.db"},
		{"read only", []string{"f1.db"}, adapter.Options{"read-only": true}, "f1.db?access_mode=read_only"},
		{
			"motherduck",
			[]string{"md:"},
			adapter.Options{"md_token": "abc", "md_saas": true},
			"md:?motherduck_token=abc&saas_mode=true",
		},
		{"unsigned", nil, adapter.Options{"allow_unsigned_extensions": true}, "?allow_unsigned_extensions=true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAdapter(t, tt.connStr, tt.opts)
			assert.Equal(t, tt.want, a.primaryDSN())
		})
	}
}

func TestConnectionID(t *testing.T) {
	assert.Empty(t, newTestAdapter(t, nil, nil).ConnectionID())

	dir := t.TempDir()
	a := newTestAdapter(t, []string{filepath.Join(dir, "b.db"), filepath.Join(dir, "a.db")}, nil)
	b := newTestAdapter(t, []string{filepath.Join(dir, "a.db"), filepath.Join(dir, "b.db")}, nil)
	assert.Equal(t, a.ConnectionID(), b.ConnectionID())
	assert.Contains(t, a.ConnectionID(), "a.db,")

	md := newTestAdapter(t, []string{"md:my_db"}, nil)
	assert.Equal(t, "md:my_db", md.ConnectionID())
}

func TestAttachStatements(t *testing.T) {
	a := newTestAdapter(t, []string{"a.db", "b.db", "it's.db"}, nil)
	assert.Equal(t, []string{"attach 'b.db'", "attach 'it''s.db'"}, a.attachStatements())

	ro := newTestAdapter(t, []string{"a.db", "b.db"}, adapter.Options{"read-only": true})
	assert.Equal(t, []string{"attach 'b.db' (READ_ONLY)"}, ro.attachStatements())

	assert.Empty(t, newTestAdapter(t, nil, nil).attachStatements())
}

func TestExtensionStatements(t *testing.T) {
	a := newTestAdapter(t, nil, adapter.Options{
		"extension":             []string{"httpfs", "spatial"},
		"custom-extension-repo": "http://example.com/ext",
	})
	assert.Equal(t, []string{
		"set custom_extension_repository = 'http://example.com/ext'",
		"install 'httpfs'",
		"load 'httpfs'",
		"install 'spatial'",
		"load 'spatial'",
	}, a.extensionStatements())

	forced := newTestAdapter(t, nil, adapter.Options{"extension": "httpfs", "force-install-extensions": true})
	assert.Equal(t, []string{"force install 'httpfs'", "load 'httpfs'"}, forced.extensionStatements())
}

func TestOpenErrorHint(t *testing.T) {
	a := newTestAdapter(t, []string{"foo.sqlite"}, nil)
	err := a.openError(assert.AnError)
	assert.Equal(t, assert.AnError.Error(), err.Error())

	err = a.openError(errString("IO Error: the file is a SQLite database; install sqlite_scanner"))
	assert.Contains(t, err.Error(), "sqlharbor -a sqlite foo.sqlite")
	kind, _ := adapter.KindOf(err)
	assert.Equal(t, adapter.KindConnection, kind)
}

type errString string

func (e errString) Error() string { return string(e) }

func TestInteractions(t *testing.T) {
	c := &duckdbConn{}
	db := catalog.NewDatabase("small")
	schema := catalog.NewSchema(db, "main")
	table := catalog.NewRelation(schema, catalog.Table, "drivers", "t")
	view := catalog.NewRelation(schema, catalog.View, "recent", "v")

	labels := func(ins []catalog.Interaction) []string {
		var out []string
		for _, in := range ins {
			out = append(out, in.Label)
		}
		return out
	}
	assert.Equal(t, []string{"Switch Editor Context (USE)", "Drop Database"}, labels(c.Interactions(db)))
	assert.Equal(t, []string{"Switch Editor Context (USE)", "Drop Schema"}, labels(c.Interactions(schema)))
	assert.Equal(t, []string{"Insert Columns at Cursor", "Preview Data", "Describe", "Show DDL", "Drop Table"},
		labels(c.Interactions(table)))
	assert.Contains(t, labels(c.Interactions(view)), "Drop View")
	assert.Nil(t, c.Interactions(catalog.NewColumn(table, "id", "#")))

	table.Interactions = c.Interactions(table)
	describe, ok := table.Lookup("Describe")
	require.True(t, ok)
	assert.Equal(t, `describe "small"."main"."drivers"`, describe.Run(table).NewBuffer)

	ddl, ok := table.Lookup("Show DDL")
	require.True(t, ok)
	assert.Equal(t,
		"select sql\nfrom duckdb_tables()\nwhere database_name = 'small'\n    and schema_name = 'main'\n    and table_name = 'drivers'",
		ddl.Run(table).FetchText)
	assert.Contains(t, ddlQuery(view), "from duckdb_views()")
	assert.Contains(t, ddlQuery(view), "view_name = 'recent'")
}

func TestCompletionItems(t *testing.T) {
	items := completionItems([][]string{
		{"select", "kw", "100", ""},
		{"sum", "agg", "1000", ""},
		{"sum", "agg", "1000", ""},
		{"threads", "set", "2000", ""},
		{"my_macro", "macro", "1000", "main"},
		{"odd", "fn", "not-a-number", ""},
	})
	require.Len(t, items, 5)

	byLabel := map[string]completion.Item{}
	for _, it := range items {
		byLabel[it.Label] = it
	}
	assert.Equal(t, 100, byLabel["select"].Priority)
	assert.Equal(t, completion.PriorityBackend, byLabel["odd"].Priority)
	assert.Equal(t, "main", byLabel["my_macro"].Context)
	assert.Equal(t, "threads", byLabel["threads"].Value)
}
