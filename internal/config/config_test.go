package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "default", cfg.Theme)
	assert.Equal(t, "standard", cfg.KeyMode)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 4, cfg.Editor.TabSize)
	assert.True(t, cfg.Editor.ShowLineNumbers)
	assert.Equal(t, 10000, cfg.Results.RowLimit)
	assert.Equal(t, 1000, cfg.Results.PageSize)
	assert.Equal(t, 50, cfg.Results.MaxColumnWidth)
	assert.False(t, cfg.Completion.Fuzzy)
	assert.Equal(t, 1000, cfg.History.Size)
	assert.True(t, cfg.Catalog.Cache)
	assert.Empty(t, cfg.Profiles)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadValidYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", `theme: monokai
keymode: vim
default_profile: warehouse
editor:
  tab_size: 2
  show_line_numbers: false
results:
  row_limit: 500
completion:
  fuzzy: true
catalog:
  cache: false
profiles:
  warehouse:
    adapter: postgres
    conn_str: ["postgres://admin@db.example.com/prod"]
    options:
      sslmode: require
  local:
    adapter: sqlite
    conn_str: [/tmp/test.db]
    options:
      read_only: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "monokai", cfg.Theme)
	assert.Equal(t, "vim", cfg.KeyMode)
	assert.Equal(t, "warehouse", cfg.DefaultProfile)
	assert.Equal(t, 2, cfg.Editor.TabSize)
	assert.False(t, cfg.Editor.ShowLineNumbers)
	assert.Equal(t, 500, cfg.Results.RowLimit)
	assert.Equal(t, 50, cfg.Results.MaxColumnWidth, "unset keys keep their defaults")
	assert.True(t, cfg.Completion.Fuzzy)
	assert.False(t, cfg.Catalog.Cache)
	assert.Equal(t, []string{"local", "warehouse"}, cfg.ProfileNames())

	local := cfg.Profiles["local"]
	assert.Equal(t, "sqlite", local.Adapter)
	assert.Equal(t, []string{"/tmp/test.db"}, local.ConnStr)
	assert.Equal(t, true, local.Options["read_only"])
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "invalid yaml", content: "theme: [unclosed", want: "parse config"},
		{name: "profile without adapter", content: "profiles:\n  x:\n    conn_str: [a.db]\n", want: `profile "x" has no adapter`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "config.yaml", tt.content)
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Theme = "dracula"
	cfg.Profiles = map[string]Profile{
		"dev": {Adapter: "mysql", ConnStr: []string{"root@tcp(localhost:3306)/dev"}},
	}
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestDirs(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-config")
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg-cache")
	t.Setenv("HOME", "/tmp/home")

	dir, err := Dir()
	require.NoError(t, err)
	assert.Equal(t, "sqlharbor", filepath.Base(dir))

	cache, err := CacheDir()
	require.NoError(t, err)
	assert.Equal(t, "sqlharbor", filepath.Base(cache))

	path, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.yaml"), path)
}

func TestProfileDisplayString(t *testing.T) {
	tests := []struct {
		name string
		p    Profile
		want string
	}{
		{name: "memory", p: Profile{Adapter: "duckdb"}, want: "duckdb://:memory:"},
		{name: "files", p: Profile{Adapter: "sqlite", ConnStr: []string{"a.db", "b.db"}}, want: "sqlite://a.db,b.db"},
		{
			name: "url password masked",
			p:    Profile{Adapter: "postgres", ConnStr: []string{"postgres://bob:hunter2@db/prod"}},
			want: "postgres://bob:xxxxx@db/prod",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.DisplayString())
		})
	}
}

func newFlags(t *testing.T) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.StringP("adapter", "a", "", "")
	fs.String("log-level", "", "")
	fs.Bool("read-only", false, "")
	fs.String("sslmode", "", "")
	fs.StringSlice("extension", nil, "")
	for _, name := range []string{"read-only", "sslmode", "extension"} {
		require.NoError(t, MarkOption(fs, name))
	}
	return fs
}

func TestResolveDefaults(t *testing.T) {
	sel, err := DefaultConfig().Resolve(ResolveInput{Flags: newFlags(t)})
	require.NoError(t, err)
	assert.Equal(t, DefaultAdapter, sel.Adapter)
	assert.Empty(t, sel.ConnStr)
	assert.Empty(t, sel.Options)
	assert.Empty(t, sel.Profile)
}

func TestResolveLayers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DefaultProfile = "pg"
	cfg.Profiles = map[string]Profile{
		"pg": {
			Adapter: "postgres",
			ConnStr: []string{"postgres://localhost/app"},
			Options: map[string]any{"sslmode": "disable", "application_name": "from-profile"},
		},
		"lite": {Adapter: "sqlite", ConnStr: []string{"lite.db"}},
	}

	t.Run("profile only", func(t *testing.T) {
		sel, err := cfg.Resolve(ResolveInput{})
		require.NoError(t, err)
		assert.Equal(t, "pg", sel.Profile)
		assert.Equal(t, "postgres", sel.Adapter)
		assert.Equal(t, []string{"postgres://localhost/app"}, sel.ConnStr)
		assert.Equal(t, "disable", sel.Options["sslmode"])
		assert.Equal(t, "from-profile", sel.Options["application-name"])
	})

	t.Run("env over profile", func(t *testing.T) {
		t.Setenv("SQLHARBOR_OPT_SSLMODE", "require")
		t.Setenv("SQLHARBOR_OPT_CONNECT_TIMEOUT", "3")
		t.Setenv("SQLHARBOR_UNRELATED", "x")
		sel, err := cfg.Resolve(ResolveInput{})
		require.NoError(t, err)
		assert.Equal(t, "require", sel.Options["sslmode"])
		assert.Equal(t, "3", sel.Options["connect-timeout"])
		assert.NotContains(t, sel.Options, "unrelated")
	})

	t.Run("flags over env", func(t *testing.T) {
		t.Setenv("SQLHARBOR_OPT_SSLMODE", "require")
		fs := newFlags(t)
		require.NoError(t, fs.Parse([]string{"--sslmode", "verify-full", "--log-level", "debug"}))
		sel, err := cfg.Resolve(ResolveInput{Flags: fs})
		require.NoError(t, err)
		assert.Equal(t, "verify-full", sel.Options["sslmode"])
		assert.NotContains(t, sel.Options, "log-level")
		assert.NotContains(t, sel.Options, "read-only", "unchanged flags are not applied")
	})

	t.Run("explicit profile and positional conn strings", func(t *testing.T) {
		fs := newFlags(t)
		require.NoError(t, fs.Parse([]string{"--read-only", "--extension", "httpfs,json"}))
		sel, err := cfg.Resolve(ResolveInput{Profile: "lite", Flags: fs, ConnStr: []string{"other.db"}})
		require.NoError(t, err)
		assert.Equal(t, "sqlite", sel.Adapter)
		assert.Equal(t, []string{"other.db"}, sel.ConnStr)
		assert.Equal(t, true, sel.Options["read-only"])
		assert.Equal(t, []string{"httpfs", "json"}, sel.Options["extension"])
	})

	t.Run("adapter env and flag", func(t *testing.T) {
		t.Setenv("SQLHARBOR_ADAPTER", "mysql")
		sel, err := cfg.Resolve(ResolveInput{})
		require.NoError(t, err)
		assert.Equal(t, "mysql", sel.Adapter)

		fs := newFlags(t)
		require.NoError(t, fs.Parse([]string{"-a", "duckdb"}))
		sel, err = cfg.Resolve(ResolveInput{Flags: fs})
		require.NoError(t, err)
		assert.Equal(t, "duckdb", sel.Adapter)
	})

	t.Run("unknown profile", func(t *testing.T) {
		_, err := cfg.Resolve(ResolveInput{Profile: "missing"})
		require.ErrorIs(t, err, ErrUnknownProfile)
	})
}

func TestResolveProjectFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ProjectFile, `adapter: sqlite
conn_str: [project.db]
options:
  timeout: 10
`)
	cfg := DefaultConfig()
	cfg.Profiles = map[string]Profile{"pg": {Adapter: "postgres"}}

	sel, err := cfg.Resolve(ResolveInput{Profile: "pg", ProjectDir: dir})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", sel.Adapter)
	assert.Equal(t, []string{"project.db"}, sel.ConnStr)
	assert.EqualValues(t, 10, sel.Options["timeout"])
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"SQLHARBOR_ADAPTER":        "adapter",
		"SQLHARBOR_CONN_STR":       "conn_str",
		"SQLHARBOR_OPT_READ_ONLY":  "options.read-only",
		"SQLHARBOR_OPT_MD_TOKEN":   "options.md-token",
		"SQLHARBOR_LOG_LEVEL":      "",
		"SQLHARBOR_SOMETHING_ELSE": "",
	}
	for in, want := range tests {
		assert.Equal(t, want, envKey(in), in)
	}
}
