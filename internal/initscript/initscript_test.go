package initscript

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bailScript = ".bail on\nselect\n1;\n.bail off\n.open foo.db\ncreate table t as select 2;"

func TestSplitScenario(t *testing.T) {
	got := Split(bailScript, DuckDB)
	want := []Command{
		{Text: ".bail on", Directive: true},
		{Text: "select\n1;"},
		{Text: ".bail off", Directive: true},
		{Text: ".open foo.db", Directive: true},
		{Text: "create table t as select 2;"},
	}
	assert.Equal(t, want, got)

	var rewritten []string
	for _, cmd := range got {
		r, err := Rewrite(cmd, DuckDB)
		require.NoError(t, err)
		rewritten = append(rewritten, r)
	}
	assert.Equal(t, []string{
		"",
		"select\n1;",
		"",
		"attach 'foo.db' as foo; use foo;",
		"create table t as select 2;",
	}, rewritten)
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name    string
		script  string
		dialect Dialect
		want    []Command
	}{
		{"empty", "", DuckDB, nil},
		{"only whitespace", "\n  \n\t\n", DuckDB, nil},
		{"sql with blank lines", "select 1;\n\nselect 2;\n", DuckDB, []Command{{Text: "select 1;\n\nselect 2;"}}},
		{"leading directive", ".mode box\nselect 1;", DuckDB, []Command{{Text: ".mode box", Directive: true}, {Text: "select 1;"}}},
		{"adjacent directives", ".a\n.b\n", DuckDB, []Command{{Text: ".a", Directive: true}, {Text: ".b", Directive: true}}},
		{"crlf", ".a\r\nselect 1;\r\n", DuckDB, []Command{{Text: ".a", Directive: true}, {Text: "select 1;"}}},
		{"indented dot is sql", "  .notdirective", DuckDB, []Command{{Text: ".notdirective"}}},
		{"indented dot after blank line", ".timer on\n\n  .5 as x;", DuckDB, []Command{{Text: ".timer on", Directive: true}, {Text: ".5 as x;"}}},
		{"sqlite go terminator", "select 1\ngo\nselect 2\n/\nselect 3", SQLite, []Command{{Text: "select 1"}, {Text: "select 2"}, {Text: "select 3"}}},
		{"duckdb ignores go", "select 1\ngo", DuckDB, []Command{{Text: "select 1\ngo"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Split(tt.script, tt.dialect))
		})
	}
}

func TestSplitIdempotent(t *testing.T) {
	scripts := []string{
		bailScript,
		"select 1;\n\n\nselect 2;\n.timer on\n\n.open --readonly x.db\n",
		".a\n.b\nselect\n  1\n",
	}
	for _, s := range scripts {
		first := Split(s, DuckDB)
		texts := make([]string, len(first))
		for i, c := range first {
			texts[i] = c.Text
		}
		assert.Equal(t, first, Split(strings.Join(texts, "\n"), DuckDB))
	}
}

func TestRewriteIdentityForSQL(t *testing.T) {
	for _, d := range []Dialect{DuckDB, SQLite} {
		for _, cmd := range []string{"select 1;", "create table t(a int);\ninsert into t values (1);", ".5 as x;", ""} {
			got, err := Rewrite(Command{Text: cmd}, d)
			require.NoError(t, err)
			assert.Equal(t, cmd, got)
		}
	}
}

func TestRewriteDuckDB(t *testing.T) {
	tests := []struct {
		cmd  string
		want string
	}{
		{".open", "attach ':memory:'; use memory;"},
		{".open foo.db", "attach 'foo.db' as foo; use foo;"},
		{".open --readonly /data/bar.duckdb", "attach '/data/bar.duckdb' (READ_ONLY) as bar; use bar;"},
		{".open My-File.db", `attach 'My-File.db' as "My-File"; use "My-File";`},
		{".open it's.db", `attach 'it''s.db' as "it's"; use "it's";`},
		{".mode box", ""},
		{".load x", ""},
	}
	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			got, err := Rewrite(Command{Text: tt.cmd, Directive: true}, DuckDB)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRewriteSQLite(t *testing.T) {
	tests := []struct {
		cmd     string
		want    string
		wantErr bool
	}{
		{".open", "attach ':memory:' as memory;", false},
		{".open :memory:", "attach ':memory:' as memory;", false},
		{".open --new other.sqlite", "attach 'other.sqlite' as other;", false},
		{".load ./ext.so", "select load_extension('./ext.so');", false},
		{".load ./ext.so init_ext", "select load_extension('./ext.so', 'init_ext');", false},
		{".load", "", true},
		{".load a b c", "", true},
		{".headers on", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			got, err := Rewrite(Command{Text: tt.cmd, Directive: true}, SQLite)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatements(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want []string
	}{
		{"empty", "", nil},
		{"single no semicolon", "select 1", []string{"select 1"}},
		{"two", "attach 'a.db' as a; use a;", []string{"attach 'a.db' as a", "use a"}},
		{"semicolon in string", "select 'a;b'; select 2", []string{"select 'a;b'", "select 2"}},
		{"escaped quote", "select 'it''s;'; select 2", []string{"select 'it''s;'", "select 2"}},
		{"quoted ident", `select 1 as "x;y";`, []string{`select 1 as "x;y"`}},
		{"line comment", "select 1; -- a;b\nselect 2;", []string{"select 1", "-- a;b\nselect 2"}},
		{"block comment", "select /* ; */ 1;", []string{"select /* ; */ 1"}},
		{"only semicolons", " ; ;; ", nil},
		{"multi-line", "select\n1;", []string{"select\n1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Statements(tt.sql))
		})
	}
}

func TestRunCountsStatements(t *testing.T) {
	var executed []string
	exec := func(_ context.Context, stmt string) error {
		executed = append(executed, stmt)
		return nil
	}
	n, err := Run(context.Background(), exec, "/home/u/.duckdbrc", bailScript, DuckDB)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []string{"select\n1", "attach 'foo.db' as foo", "use foo", "create table t as select 2"}, executed)
	assert.Equal(t, "Executed 4 commands from /home/u/.duckdbrc", Message(n, "/home/u/.duckdbrc"))
}

func TestRunKeepsIndentedDotSQL(t *testing.T) {
	var executed []string
	exec := func(_ context.Context, stmt string) error {
		executed = append(executed, stmt)
		return nil
	}
	n, err := Run(context.Background(), exec, "rc", ".mode box\n\n  .5 as x;", DuckDB)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{".5 as x"}, executed)
}

func TestRunStopsOnError(t *testing.T) {
	boom := errors.New("Catalog Error: Table with name nope does not exist!")
	exec := func(_ context.Context, stmt string) error {
		if strings.Contains(stmt, "nope") {
			return boom
		}
		return nil
	}
	n, err := Run(context.Background(), exec, "rc", "select 1;\nselect * from nope;\nselect 3;", DuckDB)
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.ErrorIs(t, err, boom)
	assert.True(t, IsExecError(err))
	assert.Contains(t, err.Error(), "Attempted to execute script at rc")
	assert.Contains(t, err.Error(), "select * from nope")
}

func TestRunBadLoad(t *testing.T) {
	n, err := Run(context.Background(), func(context.Context, string) error { return nil }, "rc", ".load", SQLite)
	require.Error(t, err)
	assert.Zero(t, n)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, func(context.Context, string) error { return nil }, "rc", "select 1;", DuckDB)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "", Message(0, "x"))
	assert.Equal(t, "Executed 1 command from x", Message(1, "x"))
	assert.Equal(t, "Executed 2 commands from x", Message(2, "x"))
}

func TestReadMissingIsEmpty(t *testing.T) {
	assert.Equal(t, "", Read(filepath.Join(t.TempDir(), "nope")))

	p := filepath.Join(t.TempDir(), "rc")
	require.NoError(t, os.WriteFile(p, []byte("select 1;"), 0o644))
	assert.Equal(t, "select 1;", Read(p))
}

func TestDefaultPath(t *testing.T) {
	assert.Equal(t, ".duckdbrc", filepath.Base(DefaultPath(DuckDB)))
	assert.Equal(t, ".sqliterc", filepath.Base(DefaultPath(SQLite)))
}
