// Package sqlite implements the SQLite backend on the pure-Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sadopc/sqlharbor/internal/adapter"
	"github.com/sadopc/sqlharbor/internal/initscript"
	"github.com/sadopc/sqlharbor/internal/quote"

	_ "modernc.org/sqlite"
)

const (
	connectTitle = "SQLite couldn't connect to your database."
	initTitle    = "SQLite could not execute your initialization script."
	queryTitle   = "SQLite raised an error when compiling or running your query:"
	fetchTitle   = "SQLite raised an error when fetching results for your query:"
)

var options = []adapter.Option{
	{
		Name:        "init-path",
		Short:       []string{"-i", "-init"},
		Kind:        adapter.Path,
		Description: "The path to an initialization script. Defaults to ~/.sqliterc.",
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
		Name:        "connection-mode",
		Kind:        adapter.Select,
		Description: "ro (read-only), rw (read-write), rwc (read-write-create) or memory.",
		Choices:     []string{"ro", "rw", "rwc", "memory"},
	},
	{
		Name:        "timeout",
		Kind:        adapter.Text,
		Description: "Seconds to wait for a locked database before raising an error.",
		Default:     5.0,
	},
	{
		Name:        "cached-statements",
		Kind:        adapter.Text,
		Description: "Number of prepared statements to cache.",
		Default:     128,
	},
	{
		Name:        "isolation-level",
		Kind:        adapter.Select,
		Description: "Locking behavior of transactions: DEFERRED, IMMEDIATE or EXCLUSIVE.",
		Choices:     []string{"DEFERRED", "IMMEDIATE", "EXCLUSIVE"},
		Default:     "DEFERRED",
	},
	{
		Name:        "extension",
		Short:       []string{"-e"},
		Kind:        adapter.List,
		Description: "Extensions to load when connecting.",
	},
}

type config struct {
	InitPath         string   `option:"init-path"`
	NoInit           bool     `option:"no-init"`
	ReadOnly         bool     `option:"read-only"`
	Mode             string   `option:"connection-mode" validate:"omitempty,oneof=ro rw rwc memory"`
	Timeout          float64  `option:"timeout" validate:"gte=0"`
	CachedStatements int      `option:"cached-statements" validate:"gte=0"`
	IsolationLevel   string   `option:"isolation-level" validate:"oneof=DEFERRED IMMEDIATE EXCLUSIVE deferred immediate exclusive"`
	Extensions       []string `option:"extension"`
}

func init() {
	adapter.Register("sqlite", newAdapter, options)
}

// sqliteAdapter implements adapter.Adapter for SQLite databases.
type sqliteAdapter struct {
	connStr []string
	cfg     config
	logger  *slog.Logger
}

func newAdapter(connStr []string, opts adapter.Options, logger *slog.Logger) (adapter.Adapter, error) {
	var cfg config
	if err := adapter.Decode(opts, options, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Extensions) > 0 {
		return nil, adapter.Errorf(adapter.KindConfig, adapter.ConfigErrorTitle,
			"SQLite adapter received --extension option, but extensions are disabled on this SQLite distribution.")
	}
	if cfg.InitPath == "" {
		cfg.InitPath = initscript.DefaultPath(initscript.SQLite)
	}
	cfg.InitPath = initscript.ExpandHome(cfg.InitPath)

	conns := adapter.ConnStrings(connStr)
	if cfg.Mode == "memory" {
		conns = []string{adapter.MemoryConnStr}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &sqliteAdapter{connStr: conns, cfg: cfg, logger: logger}, nil
}

func (a *sqliteAdapter) ConnectionID() string {
	if len(a.connStr) == 1 && a.connStr[0] == adapter.MemoryConnStr {
		return ""
	}
	paths := make([]string, 0, len(a.connStr))
	for _, s := range a.connStr {
		s = normalizeDSN(s)
		if abs, err := filepath.Abs(s); err == nil && !strings.HasPrefix(s, "file:") && s != adapter.MemoryConnStr {
			s = filepath.ToSlash(abs)
		}
		paths = append(paths, s)
	}
	sort.Strings(paths)
	return strings.Join(paths, ",")
}

// normalizeDSN strips the sqlite:// scheme some tools put in front of paths.
func normalizeDSN(dsn string) string {
	return strings.TrimPrefix(dsn, "sqlite://")
}

// database is one connection string resolved to a URI and a schema name.
type database struct {
	uri  string
	name string
}

func (a *sqliteAdapter) databases() ([]database, error) {
	mode := ""
	switch {
	case a.cfg.ReadOnly:
		mode = "ro"
	case a.cfg.Mode != "":
		mode = a.cfg.Mode
	}

	dbs := make([]database, 0, len(a.connStr))
	for _, s := range a.connStr {
		s = normalizeDSN(s)
		switch {
		case s == adapter.MemoryConnStr:
			dbs = append(dbs, database{uri: s, name: "memory"})
		case strings.HasPrefix(s, "file:"):
			u, err := url.Parse(s)
			if err != nil {
				return nil, adapter.NewConnectionError(connectTitle, err)
			}
			p := u.Path
			if p == "" {
				p = u.Opaque
			}
			dbs = append(dbs, database{uri: s, name: stem(p)})
		default:
			abs, err := filepath.Abs(s)
			if err != nil {
				return nil, adapter.NewConnectionError(connectTitle,
					fmt.Errorf("Cannot build URI from connection string %s: %w", s, err))
			}
			u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
			if mode != "" {
				u.RawQuery = url.Values{"mode": {mode}}.Encode()
			}
			dbs = append(dbs, database{uri: u.String(), name: stem(abs)})
		}
	}
	return dbs, nil
}

func stem(p string) string {
	base := filepath.Base(p)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// primaryDSN adds the driver parameters to the primary database URI.
func (a *sqliteAdapter) primaryDSN(uri string) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", int(a.cfg.Timeout*1000)))
	q.Add("_pragma", "foreign_keys(1)")
	q.Set("_txlock", strings.ToLower(a.cfg.IsolationLevel))
	sep := "?"
	if strings.Contains(uri, "?") {
		sep = "&"
	}
	return uri + sep + q.Encode()
}

func (a *sqliteAdapter) Connect(ctx context.Context) (adapter.Connection, error) {
	if a.cfg.ReadOnly && a.cfg.Mode != "" && a.cfg.Mode != "ro" {
		return nil, adapter.Errorf(adapter.KindConnection, connectTitle,
			"Cannot specify readonly flag and a connection mode.")
	}
	dbs, err := a.databases()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", a.primaryDSN(dbs[0].uri))
	if err != nil {
		return nil, adapter.NewConnectionError(connectTitle, fmt.Errorf("sqlite open: %w", err))
	}
	// Attachments and temp objects live on one native connection.
	db.SetMaxOpenConns(1)
	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, adapter.NewConnectionError(connectTitle, err)
	}
	closeAll := func() {
		conn.Close()
		db.Close()
	}

	// Opening a file that is not a database succeeds; reading it does not.
	if _, err := conn.ExecContext(ctx, "pragma schema_version"); err != nil {
		closeAll()
		return nil, a.openError(dbs[0].uri, err)
	}
	for _, d := range dbs[1:] {
		stmt := fmt.Sprintf("attach database %s as %s", quote.Literal(d.uri), quote.Ident(d.name))
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			closeAll()
			return nil, a.openError(d.uri, err)
		}
	}
	if a.cfg.CachedStatements != 128 {
		a.logger.Debug("cached-statements has no effect with this driver", "value", a.cfg.CachedStatements)
	}

	c := &sqliteConn{db: db, conn: conn, logger: a.logger}
	if !a.cfg.NoInit {
		msg, err := a.runInit(ctx, conn)
		if err != nil {
			closeAll()
			return nil, err
		}
		c.initMsg = msg
	}
	a.logger.Info("connected", "databases", len(dbs), "read_only", a.cfg.ReadOnly)
	return c, nil
}

func (a *sqliteAdapter) openError(uri string, err error) error {
	msg := err.Error()
	if strings.Contains(msg, "file is not a database") {
		msg = fmt.Sprintf("sqlite raised the following error when trying to open %s:\n---\n%s\n---\n\n"+
			"Did you mean to use the DuckDB adapter instead? Maybe try:\nsqlharbor -a duckdb %s",
			uri, msg, strings.Join(a.connStr, " "))
	}
	return &adapter.Error{Kind: adapter.KindConnection, Title: connectTitle, Msg: msg, Err: err}
}

func (a *sqliteAdapter) runInit(ctx context.Context, conn *sql.Conn) (string, error) {
	script := initscript.Read(a.cfg.InitPath)
	exec := func(ctx context.Context, stmt string) error {
		_, err := conn.ExecContext(ctx, stmt)
		return err
	}
	count, err := initscript.Run(ctx, exec, a.cfg.InitPath, script, initscript.SQLite)
	if err != nil {
		msg := err.Error()
		if strings.HasPrefix(strings.TrimSpace(execCommand(err)), ".load") {
			msg += "\nWarning: Cannot load extensions with this SQLite distribution."
		}
		return "", &adapter.Error{Kind: adapter.KindConnection, Title: initTitle, Msg: msg, Err: err}
	}
	a.logger.Debug("init script executed", "path", a.cfg.InitPath, "statements", count)
	return initscript.Message(count, a.cfg.InitPath), nil
}

func execCommand(err error) string {
	var e *initscript.ExecError
	if errors.As(err, &e) {
		return e.Command
	}
	return ""
}
