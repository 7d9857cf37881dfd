package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgconn/ctxwatch"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sadopc/sqlharbor/internal/adapter"
)

const (
	connectTitle = "Postgres couldn't connect to your database."
	queryTitle   = "Postgres raised an error when compiling or running your query:"
	fetchTitle   = "Postgres raised an error when fetching results for your query:"
)

var options = []adapter.Option{
	{Name: "host", Short: []string{"-h"}, Kind: adapter.Text, Description: "The database server host."},
	{Name: "port", Short: []string{"-p"}, Kind: adapter.Text, Description: "The database server port. Defaults to 5432."},
	{Name: "user", Short: []string{"-U"}, Kind: adapter.Text, Description: "The user to connect as."},
	{Name: "password", Kind: adapter.Text, Description: "The user's password."},
	{Name: "database", Short: []string{"-d"}, Kind: adapter.Text, Description: "The database to connect to."},
	{
		Name:        "sslmode",
		Kind:        adapter.Select,
		Description: "How to negotiate SSL with the server.",
		Choices:     []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"},
	},
	{
		Name:        "application-name",
		Kind:        adapter.Text,
		Description: "The application_name reported to the server.",
		Default:     "sqlharbor",
	},
	{
		Name:        "connect-timeout",
		Kind:        adapter.Text,
		Description: "Seconds to wait for a connection. Zero waits forever.",
		Default:     10,
	},
}

type config struct {
	Host           string `option:"host"`
	Port           uint16 `option:"port"`
	User           string `option:"user"`
	Password       string `option:"password"`
	Database       string `option:"database"`
	SSLMode        string `option:"sslmode" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
	AppName        string `option:"application-name"`
	ConnectTimeout int    `option:"connect-timeout" validate:"min=0"`
}

func init() {
	adapter.Register("postgres", newAdapter, options)
}

// postgresAdapter implements adapter.Adapter for PostgreSQL.
type postgresAdapter struct {
	pool   *pgxpool.Config
	logger *slog.Logger
}

func newAdapter(connStr []string, opts adapter.Options, logger *slog.Logger) (adapter.Adapter, error) {
	var cfg config
	if err := adapter.Decode(opts, options, &cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	dsn := ""
	for _, s := range connStr {
		if s != "" && s != adapter.MemoryConnStr {
			dsn = s
			break
		}
	}
	if cfg.SSLMode != "" {
		dsn = withParam(dsn, "sslmode", cfg.SSLMode)
	}
	pool, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, adapter.NewConfigError(adapter.ConfigErrorTitle, err)
	}
	applyOverrides(pool, cfg)
	return &postgresAdapter{pool: pool, logger: logger}, nil
}

// withParam adds key=value to a URL or keyword/value connection string.
func withParam(dsn, key, value string) string {
	if u, err := url.Parse(dsn); err == nil && (u.Scheme == "postgres" || u.Scheme == "postgresql") {
		q := u.Query()
		q.Set(key, value)
		u.RawQuery = q.Encode()
		return u.String()
	}
	return strings.TrimSpace(dsn + " " + key + "=" + value)
}

// applyOverrides lets explicit options win over the connection string.
func applyOverrides(pool *pgxpool.Config, cfg config) {
	cc := pool.ConnConfig
	if cfg.Host != "" {
		cc.Host = cfg.Host
	}
	if cfg.Port != 0 {
		cc.Port = cfg.Port
	}
	if cfg.User != "" {
		cc.User = cfg.User
	}
	if cfg.Password != "" {
		cc.Password = cfg.Password
	}
	if cfg.Database != "" {
		cc.Database = cfg.Database
	}
	if cfg.AppName != "" {
		cc.RuntimeParams["application_name"] = cfg.AppName
	}
	if cfg.ConnectTimeout > 0 {
		cc.ConnectTimeout = time.Duration(cfg.ConnectTimeout) * time.Second
	}
	// Cancel the statement server-side instead of closing the connection,
	// so session state on the pinned connection survives a cancel.
	cc.BuildContextWatcherHandler = func(pc *pgconn.PgConn) ctxwatch.Handler {
		return &pgconn.CancelRequestContextWatcherHandler{
			Conn:          pc,
			DeadlineDelay: 5 * time.Second,
		}
	}
}

// ConnectionID identifies the server and database, never the password.
func (a *postgresAdapter) ConnectionID() string {
	cc := a.pool.ConnConfig
	return fmt.Sprintf("%s@%s:%d/%s", cc.User, cc.Host, cc.Port, cc.Database)
}

func (a *postgresAdapter) Connect(ctx context.Context) (adapter.Connection, error) {
	pool, err := pgxpool.NewWithConfig(ctx, a.pool)
	if err != nil {
		return nil, adapter.NewConnectionError(connectTitle, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, adapter.NewConnectionError(connectTitle, err)
	}
	pinned, err := pool.Acquire(ctx)
	if err != nil {
		pool.Close()
		return nil, adapter.NewConnectionError(connectTitle, err)
	}

	var dbName string
	if err := pinned.QueryRow(ctx, "select current_database()").Scan(&dbName); err != nil {
		pinned.Release()
		pool.Close()
		return nil, adapter.NewConnectionError(connectTitle, err)
	}

	a.logger.Info("connected", "connection", a.ConnectionID())
	return &pgConn{pool: pool, conn: pinned, dbName: dbName, logger: a.logger}, nil
}
