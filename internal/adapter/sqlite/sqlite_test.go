package sqlite

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/sqlharbor/internal/adapter"
	"github.com/sadopc/sqlharbor/internal/catalog"
	"github.com/sadopc/sqlharbor/internal/export"
)

func connect(t *testing.T, connStr []string, opts adapter.Options) adapter.Connection {
	t.Helper()
	if opts == nil {
		opts = adapter.Options{}
	}
	if _, ok := opts["no-init"]; !ok {
		opts["no-init"] = true
	}
	a, err := adapter.New("sqlite", connStr, opts, nil)
	require.NoError(t, err)
	conn, err := a.Connect(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func exec(t *testing.T, conn adapter.Connection, query string) *adapter.ResultSet {
	t.Helper()
	cur, err := conn.Execute(context.Background(), query)
	require.NoError(t, err)
	if cur == nil {
		return nil
	}
	rs, err := cur.FetchAll(context.Background())
	require.NoError(t, err)
	return rs
}

func TestRegistration(t *testing.T) {
	assert.Contains(t, adapter.Names(), "sqlite")
	assert.NotEmpty(t, adapter.Declarations("sqlite"))
}

func TestConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		opts adapter.Options
	}{
		{"extension", adapter.Options{"extension": []string{"spatialite"}}},
		{"bad mode", adapter.Options{"connection-mode": "append"}},
		{"bad timeout", adapter.Options{"timeout": "forever"}},
		{"bad isolation", adapter.Options{"isolation-level": "SERIALIZABLE"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := adapter.New("sqlite", nil, tt.opts, nil)
			require.Error(t, err)
			kind, ok := adapter.KindOf(err)
			require.True(t, ok)
			assert.Equal(t, adapter.KindConfig, kind)
		})
	}
}

func TestUnknownOptionsIgnored(t *testing.T) {
	_, err := adapter.New("sqlite", nil, adapter.Options{"locale": "en_US", "no-init": "true"}, nil)
	assert.NoError(t, err)
}

func TestConnectionID(t *testing.T) {
	a, err := adapter.New("sqlite", nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "", a.ConnectionID())

	dir := t.TempDir()
	b, err := adapter.New("sqlite", []string{filepath.Join(dir, "z.db"), filepath.Join(dir, "a.db")}, nil, nil)
	require.NoError(t, err)
	want := filepath.ToSlash(filepath.Join(dir, "a.db")) + "," + filepath.ToSlash(filepath.Join(dir, "z.db"))
	assert.Equal(t, want, b.ConnectionID())

	m, err := adapter.New("sqlite", []string{"x.db"}, adapter.Options{"connection-mode": "memory"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "", m.ConnectionID())
}

func TestReadOnlyWithModeConflict(t *testing.T) {
	a, err := adapter.New("sqlite", nil, adapter.Options{"read-only": true, "connection-mode": "rw", "no-init": true}, nil)
	require.NoError(t, err)
	_, err = a.Connect(context.Background())
	require.Error(t, err)
	kind, _ := adapter.KindOf(err)
	assert.Equal(t, adapter.KindConnection, kind)
	assert.Equal(t, "Cannot specify readonly flag and a connection mode.", err.Error())
}

func TestNotADatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.duckdb")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("definitely not sqlite ", 100)), 0o644))

	a, err := adapter.New("sqlite", []string{path}, adapter.Options{"no-init": true}, nil)
	require.NoError(t, err)
	_, err = a.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, connectTitle, adapter.Title(err, ""))
	assert.Contains(t, err.Error(), "sqlharbor -a duckdb")
}

func TestExecute(t *testing.T) {
	conn := connect(t, nil, nil)

	assert.Nil(t, exec(t, conn, "create table drivers (driverId integer, driverRef text, dob date, weight real, photo blob)"))
	assert.Nil(t, exec(t, conn, "insert into drivers values (1, 'hamilton', '1985-01-07', 73.5, x'00'), (2, 'alonso', '1981-07-29', null, null)"))

	cur, err := conn.Execute(context.Background(), "select * from drivers order by driverId")
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, []adapter.Column{
		{Name: "driverId", Type: "##"},
		{Name: "driverRef", Type: "s"},
		{Name: "dob", Type: "#.#"},
		{Name: "weight", Type: "#.#"},
		{Name: "photo", Type: "b"},
	}, cur.Columns())

	rs, err := cur.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, rs.Rows, 2)
	assert.Equal(t, int64(1), rs.Rows[0][0])
	assert.Equal(t, "hamilton", rs.Rows[0][1])
	assert.Nil(t, rs.Rows[1][3])

	expr := exec(t, conn, "select 1 as n, 'x' as s, 2.5 as f")
	assert.Equal(t, []adapter.Column{{Name: "n", Type: "##"}, {Name: "s", Type: "s"}, {Name: "f", Type: "#.#"}}, expr.Columns)
}

func TestExecuteQueryError(t *testing.T) {
	conn := connect(t, nil, nil)
	_, err := conn.Execute(context.Background(), "select * from nowhere")
	require.Error(t, err)
	kind, _ := adapter.KindOf(err)
	assert.Equal(t, adapter.KindQuery, kind)
	assert.Equal(t, queryTitle, adapter.Title(err, ""))
	assert.Contains(t, err.Error(), "nowhere")

	// the connection stays usable
	rs := exec(t, conn, "select 1")
	require.NotNil(t, rs)
	assert.Len(t, rs.Rows, 1)
}

const series = "with recursive s(n) as (select 1 union all select n + 1 from s where n < %d) select n from s"

func TestSetLimit(t *testing.T) {
	conn := connect(t, nil, nil)

	cur, err := conn.Execute(context.Background(), strings.Replace(series, "%d", "857", 1))
	require.NoError(t, err)
	rs, err := cur.SetLimit(100).FetchAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, rs.Rows, 100)

	cur, err = conn.Execute(context.Background(), strings.Replace(series, "%d", "857", 1))
	require.NoError(t, err)
	rs, err = cur.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, rs.Rows, 857)
}

func TestCancel(t *testing.T) {
	conn := connect(t, nil, nil)

	cur, err := conn.Execute(context.Background(), strings.Replace(series, "%d", "100000000", 1))
	require.NoError(t, err)
	require.NotNil(t, cur)
	conn.Cancel()

	rs, err := cur.FetchAll(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, rs)

	after := exec(t, conn, "select 42")
	require.NotNil(t, after)
	assert.Equal(t, int64(42), after.Rows[0][0])
}

func TestCancelWithoutQuery(t *testing.T) {
	conn := connect(t, nil, nil)
	conn.Cancel()
	assert.NotNil(t, exec(t, conn, "select 1"))
}

func makeDB(t *testing.T, path string, stmts ...string) {
	t.Helper()
	conn := connect(t, []string{path}, nil)
	for _, s := range stmts {
		exec(t, conn, s)
	}
	require.NoError(t, conn.Close())
}

func TestCatalog(t *testing.T) {
	dir := t.TempDir()
	small := filepath.Join(dir, "small.db")
	tiny := filepath.Join(dir, "tiny.db")
	makeDB(t, small,
		`create table drivers (driverId integer, driverRef text, number integer, code text,
			forename text, surname text, dob date, nationality text, url text)`,
		"create view v_drivers as select * from drivers",
	)
	makeDB(t, tiny, "create table t (x int)")

	conn := connect(t, []string{small, tiny}, nil)
	cat, err := conn.Catalog(context.Background())
	require.NoError(t, err)
	require.Len(t, cat.Items, 2)
	assert.Equal(t, "main", cat.Items[0].Label)
	assert.Equal(t, "tiny", cat.Items[1].Label)
	assert.Equal(t, catalog.Unloaded, cat.Items[0].State)

	rels, err := catalog.Expand(context.Background(), cat.Items[0], conn)
	require.NoError(t, err)
	require.Len(t, rels, 2)
	drivers := rels[0]
	assert.Equal(t, "drivers", drivers.Label)
	assert.Equal(t, catalog.Table, drivers.Kind)
	assert.Equal(t, `"main"."drivers"`, drivers.QualifiedIdentifier)
	assert.Equal(t, catalog.View, rels[1].Kind)
	assert.Equal(t, "v", rels[1].TypeLabel)

	cols, err := catalog.Expand(context.Background(), drivers, conn)
	require.NoError(t, err)
	require.Len(t, cols, 9)
	assert.Equal(t, `"driverId"`, cols[0].QueryName)
	assert.Equal(t, "##", cols[0].TypeLabel)
	assert.Equal(t, "s", cols[1].TypeLabel)

	ids := map[string]bool{}
	cat.Walk(func(it *catalog.Item, _ int) bool {
		assert.False(t, ids[it.QualifiedIdentifier], it.QualifiedIdentifier)
		ids[it.QualifiedIdentifier] = true
		return true
	})

	insert, ok := drivers.Lookup("Insert Columns at Cursor")
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(insert.Run(drivers).InsertText, "\"driverId\",\n\"driverRef\""))

	ddl, ok := drivers.Lookup("Show DDL")
	require.True(t, ok)
	rs := exec(t, conn, ddl.Run(drivers).FetchText)
	require.Len(t, rs.Rows, 1)
	assert.Contains(t, rs.Rows[0][0], "create table drivers")

	describe, _ := drivers.Lookup("Describe")
	assert.Len(t, exec(t, conn, describe.Run(drivers).NewBuffer).Rows, 9)

	drop, ok := rels[1].Lookup("Drop View")
	require.True(t, ok)
	action := drop.Run(rels[1])
	assert.True(t, action.Confirm)
	exec(t, conn, action.Execute)

	cat, err = conn.Catalog(context.Background())
	require.NoError(t, err)
	rels, err = conn.FetchChildren(context.Background(), cat.Items[0])
	require.NoError(t, err)
	assert.Len(t, rels, 1)
}

func TestAttachMemory(t *testing.T) {
	conn := connect(t, []string{":memory:", ":memory:"}, nil)
	cat, err := conn.Catalog(context.Background())
	require.NoError(t, err)
	labels := []string{cat.Items[0].Label, cat.Items[1].Label}
	assert.Equal(t, []string{"main", "memory"}, labels)
}

func TestInitScript(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, ".sqliterc")
	require.NoError(t, os.WriteFile(script, []byte(
		".mode box\ncreate table t (x int);\ninsert into t values (1);\n.headers on\n"), 0o644))

	conn := connect(t, nil, adapter.Options{"init-path": script, "no-init": false})
	assert.Equal(t, "Executed 2 commands from "+script, conn.InitMessage())
	rs := exec(t, conn, "select x from t")
	assert.Len(t, rs.Rows, 1)

	quiet := connect(t, nil, adapter.Options{"init-path": script, "no-init": true})
	assert.Equal(t, "", quiet.InitMessage())

	missing := connect(t, nil, adapter.Options{"init-path": filepath.Join(dir, "nope"), "no-init": false})
	assert.Equal(t, "", missing.InitMessage())
}

func TestInitScriptError(t *testing.T) {
	script := filepath.Join(t.TempDir(), "init.sql")
	require.NoError(t, os.WriteFile(script, []byte("select * from missing_table;"), 0o644))

	a, err := adapter.New("sqlite", nil, adapter.Options{"init-path": script}, nil)
	require.NoError(t, err)
	_, err = a.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, initTitle, adapter.Title(err, ""))
	assert.Contains(t, err.Error(), "Attempted to execute script at "+script)
	assert.Contains(t, err.Error(), "missing_table")
}

func TestTransactionModes(t *testing.T) {
	conn := connect(t, nil, nil)
	ctx := context.Background()
	exec(t, conn, "create table t (x int)")
	assert.Equal(t, "Auto", conn.TransactionMode())

	mode, err := conn.ToggleTransactionMode(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Manual", mode)

	exec(t, conn, "insert into t values (1)")
	exec(t, conn, "rollback")
	assert.Empty(t, exec(t, conn, "select x from t").Rows)

	exec(t, conn, "insert into t values (2)")
	_, err = conn.Execute(ctx, "begin")
	assert.NoError(t, err)

	mode, err = conn.ToggleTransactionMode(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Auto", mode)
	assert.Len(t, exec(t, conn, "select x from t").Rows, 1)
}

func TestValidateSQL(t *testing.T) {
	conn := connect(t, nil, nil)
	ctx := context.Background()
	assert.Equal(t, "select 1", conn.ValidateSQL(ctx, "select 1"))
	assert.Equal(t, "", conn.ValidateSQL(ctx, "selec 1"))
	assert.Equal(t, "", conn.ValidateSQL(ctx, "   "))

	exec(t, conn, "create table t (x int)")
	assert.NotEmpty(t, conn.ValidateSQL(ctx, "drop table t"))
	assert.NotNil(t, exec(t, conn, "select * from t"), "validation must not run the statement")
}

func TestCompletions(t *testing.T) {
	conn := connect(t, nil, nil)
	items, err := conn.Completions(context.Background())
	require.NoError(t, err)
	for _, it := range items {
		assert.GreaterOrEqual(t, it.Priority, 1000)
		assert.NotEmpty(t, it.Label)
	}
}

func TestCopy(t *testing.T) {
	conn := connect(t, nil, nil)
	ctx := context.Background()
	exec(t, conn, "create table t (id int, name text)")
	exec(t, conn, "insert into t values (1, 'a'), (2, null)")

	path := filepath.Join(t.TempDir(), "out.csv")
	opts := export.DefaultCSV()
	opts.Header = true
	require.NoError(t, conn.Copy(ctx, "select * from t order by id", path, opts))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"id", "name"}, {"1", "a"}, {"2", ""}}, records)

	assert.ErrorIs(t, conn.Copy(ctx, "  ", path, opts), adapter.ErrEmptyCopy)
	assert.ErrorIs(t, conn.Copy(ctx, "create table u (x int)", path, opts), adapter.ErrNoRowsCopy)
}

func TestCopyLeavesDataAloneWithoutRows(t *testing.T) {
	conn := connect(t, nil, nil)
	ctx := context.Background()
	exec(t, conn, "create table keep (id int)")
	exec(t, conn, "insert into keep values (1), (2), (3)")

	path := filepath.Join(t.TempDir(), "out.csv")
	opts := export.DefaultCSV()
	for _, q := range []string{
		"delete from keep",
		"update keep set id = 0",
		"drop table keep",
		"select 1; delete from keep",
	} {
		assert.ErrorIs(t, conn.Copy(ctx, q, path, opts), adapter.ErrNoRowsCopy, q)
	}
	assert.NoFileExists(t, path)

	rs := exec(t, conn, "select count(*), sum(id) from keep")
	require.NotNil(t, rs)
	assert.Equal(t, int64(3), rs.Rows[0][0])
	assert.Equal(t, int64(6), rs.Rows[0][1])

	require.NoError(t, conn.Copy(ctx, "delete from keep where id = 9; select id from keep", path, opts))
	assert.FileExists(t, path)
}

func TestAffinity(t *testing.T) {
	tests := map[string]string{
		"INTEGER":      "##",
		"BIGINT":       "##",
		"VARCHAR(255)": "s",
		"CLOB":         "s",
		"TEXT":         "s",
		"BLOB":         "b",
		"":             "b",
		"REAL":         "#.#",
		"DOUBLE":       "#.#",
		"FLOAT":        "#.#",
		"NUMERIC":      "#.#",
		"DATE":         "#.#",
	}
	for decl, want := range tests {
		assert.Equal(t, want, affinity.Short(decl), decl)
	}
}
