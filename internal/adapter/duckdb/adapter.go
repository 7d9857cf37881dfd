// Package duckdb implements the DuckDB backend on marcboeker/go-duckdb.
//
// The driver needs cgo and is only linked with the duckdb build tag.
// Without it the adapter is still registered so its options show up in the
// CLI, but Connect reports that support is missing.
package duckdb

import (
	"log/slog"
	"net/url"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sadopc/sqlharbor/internal/adapter"
	"github.com/sadopc/sqlharbor/internal/initscript"
)

const (
	connectTitle   = "DuckDB couldn't connect to your database."
	extensionTitle = "DuckDB couldn't install or load your extension."
	initTitle      = "DuckDB could not execute your initialization script."
	queryTitle     = "DuckDB raised an error when compiling or running your query:"
	fetchTitle     = "DuckDB raised an error when running your query:"
)

var options = []adapter.Option{
	{
		Name:        "init-path",
		Short:       []string{"-i", "-init"},
		Kind:        adapter.Path,
		Description: "The path to an initialization script. Defaults to ~/.duckdbrc.",
	},
	{
		Name:        "no-init",
		Kind:        adapter.Flag,
		Description: "Start without executing the initialization script.",
		Default:     false,
	},
	{
		Name:        "read-only",
		Short:       []string{"-readonly", "-r"},
		Kind:        adapter.Flag,
		Description: "Open the database file in read-only mode.",
		Default:     false,
	},
	{
		Name:        "allow-unsigned-extensions",
		Short:       []string{"-u", "-unsigned"},
		Kind:        adapter.Flag,
		Description: "Allow loading unsigned extensions.",
		Default:     false,
	},
	{
		Name:        "extension",
		Short:       []string{"-e"},
		Kind:        adapter.List,
		Description: "Install and load the named DuckDB extension when starting.",
	},
	{
		Name:        "force-install-extensions",
		Kind:        adapter.Flag,
		Description: "Force-install all extensions passed with -e.",
		Default:     false,
	},
	{
		Name:        "custom-extension-repo",
		Kind:        adapter.Text,
		Description: "A value to pass to DuckDB's custom_extension_repository setting.",
	},
	{
		Name:        "md_token",
		Kind:        adapter.Text,
		Description: "MotherDuck token to pass to DuckDB.",
	},
	{
		Name:        "md_saas",
		Kind:        adapter.Flag,
		Description: "Run MotherDuck in SaaS mode (no local privileges).",
		Default:     false,
	},
}

type config struct {
	InitPath                string   `option:"init-path"`
	NoInit                  bool     `option:"no-init"`
	ReadOnly                bool     `option:"read-only"`
	AllowUnsignedExtensions bool     `option:"allow-unsigned-extensions"`
	Extensions              []string `option:"extension" validate:"dive,required"`
	ForceInstall            bool     `option:"force-install-extensions"`
	CustomExtensionRepo     string   `option:"custom-extension-repo"`
	MDToken                 string   `option:"md-token"`
	MDSaaS                  bool     `option:"md-saas"`
}

func init() {
	adapter.Register("duckdb", newAdapter, options)
}

// duckdbAdapter implements adapter.Adapter for DuckDB databases.
type duckdbAdapter struct {
	connStr []string
	cfg     config
	logger  *slog.Logger
}

func newAdapter(connStr []string, opts adapter.Options, logger *slog.Logger) (adapter.Adapter, error) {
	var cfg config
	if err := adapter.Decode(opts, options, &cfg); err != nil {
		return nil, err
	}
	if cfg.InitPath == "" {
		cfg.InitPath = initscript.DefaultPath(initscript.DuckDB)
	}
	cfg.InitPath = initscript.ExpandHome(cfg.InitPath)
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	conns := adapter.ConnStrings(connStr)
	for i, s := range conns {
		conns[i] = strings.TrimPrefix(s, "duckdb://")
	}
	return &duckdbAdapter{connStr: conns, cfg: cfg, logger: logger}, nil
}

func (a *duckdbAdapter) ConnectionID() string {
	if len(a.connStr) == 1 && a.connStr[0] == adapter.MemoryConnStr {
		return ""
	}
	paths := make([]string, 0, len(a.connStr))
	for _, s := range a.connStr {
		if abs, err := filepath.Abs(s); err == nil && !isRemote(s) && s != adapter.MemoryConnStr {
			s = filepath.ToSlash(abs)
		}
		paths = append(paths, s)
	}
	sort.Strings(paths)
	return strings.Join(paths, ",")
}

// isRemote reports whether s names a database DuckDB resolves itself,
// such as md:my_db or s3://bucket/file.duckdb.
func isRemote(s string) bool {
	return strings.HasPrefix(s, "md:") || strings.HasPrefix(s, "motherduck:") || strings.Contains(s, "://")
}

// primaryDSN builds the driver DSN for the first connection string: the
// database path followed by its config parameters.
func (a *duckdbAdapter) primaryDSN() string {
	q := url.Values{}
	if a.cfg.ReadOnly {
		q.Set("access_mode", "read_only")
	}
	if a.cfg.AllowUnsignedExtensions {
		q.Set("allow_unsigned_extensions", "true")
	}
	if a.cfg.MDToken != "" {
		q.Set("motherduck_token", a.cfg.MDToken)
	}
	if a.cfg.MDSaaS {
		q.Set("saas_mode", "true")
	}
	primary := a.connStr[0]
	if primary == adapter.MemoryConnStr {
		primary = ""
	}
	if len(q) == 0 {
		return primary
	}
	return primary + "?" + q.Encode()
}
