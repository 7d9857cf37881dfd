package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/sadopc/sqlharbor/internal/adapter"
	"github.com/sadopc/sqlharbor/internal/initscript"
	"github.com/sadopc/sqlharbor/internal/quote"
)

var errDisabled = errors.New("DuckDB support not compiled in. Rebuild with -tags duckdb")

func (a *duckdbAdapter) Connect(ctx context.Context) (adapter.Connection, error) {
	if !driverAvailable {
		return nil, adapter.NewConnectionError(connectTitle, errDisabled)
	}

	db, err := sql.Open("duckdb", a.primaryDSN())
	if err != nil {
		return nil, a.openError(err)
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, a.openError(err)
	}
	closeAll := func() {
		conn.Close()
		db.Close()
	}

	for _, stmt := range a.attachStatements() {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			closeAll()
			return nil, a.openError(err)
		}
	}
	if err := a.loadExtensions(ctx, conn); err != nil {
		closeAll()
		return nil, err
	}

	c := &duckdbConn{db: db, conn: conn, logger: a.logger}
	if !a.cfg.NoInit {
		msg, err := a.runInit(ctx, conn)
		if err != nil {
			closeAll()
			return nil, err
		}
		c.initMsg = msg
	}
	a.logger.Info("connected", "databases", len(a.connStr), "read_only", a.cfg.ReadOnly,
		"extensions", len(a.cfg.Extensions))
	return c, nil
}

func (a *duckdbAdapter) attachStatements() []string {
	var out []string
	for _, db := range a.connStr[1:] {
		stmt := "attach " + quote.Literal(db)
		if a.cfg.ReadOnly {
			stmt += " (READ_ONLY)"
		}
		out = append(out, stmt)
	}
	return out
}

func (a *duckdbAdapter) openError(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "sqlite_scanner") {
		msg = fmt.Sprintf("DuckDB raised the following error when trying to open one or more database files:\n---\n%s\n---\n\n"+
			"Did you mean to use the sqlite adapter instead? Maybe try:\nsqlharbor -a sqlite %s",
			msg, strings.Join(a.connStr, " "))
	}
	return &adapter.Error{Kind: adapter.KindConnection, Title: connectTitle, Msg: msg, Err: err}
}

// extensionStatements returns the statements that install and load the
// configured extensions, in order.
func (a *duckdbAdapter) extensionStatements() []string {
	var out []string
	if a.cfg.CustomExtensionRepo != "" {
		out = append(out, "set custom_extension_repository = "+quote.Literal(a.cfg.CustomExtensionRepo))
	}
	install := "install "
	if a.cfg.ForceInstall {
		install = "force install "
	}
	for _, ext := range a.cfg.Extensions {
		out = append(out, install+quote.Literal(ext), "load "+quote.Literal(ext))
	}
	return out
}

func (a *duckdbAdapter) loadExtensions(ctx context.Context, conn *sql.Conn) error {
	for _, stmt := range a.extensionStatements() {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return adapter.NewConnectionError(extensionTitle, err)
		}
		a.logger.Debug("extension statement executed", "statement", stmt)
	}
	return nil
}

func (a *duckdbAdapter) runInit(ctx context.Context, conn *sql.Conn) (string, error) {
	script := initscript.Read(a.cfg.InitPath)
	exec := func(ctx context.Context, stmt string) error {
		_, err := conn.ExecContext(ctx, stmt)
		return err
	}
	count, err := initscript.Run(ctx, exec, a.cfg.InitPath, script, initscript.DuckDB)
	if err != nil {
		return "", adapter.NewConnectionError(initTitle, err)
	}
	a.logger.Debug("init script executed", "path", a.cfg.InitPath, "statements", count)
	return initscript.Message(count, a.cfg.InitPath), nil
}
