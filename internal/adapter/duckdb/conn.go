package duckdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sadopc/sqlharbor/internal/adapter"
	"github.com/sadopc/sqlharbor/internal/export"
	"github.com/sadopc/sqlharbor/internal/initscript"
	"github.com/sadopc/sqlharbor/internal/quote"
	"github.com/sadopc/sqlharbor/internal/typemap"
)

// columnTypes maps DuckDB type names to glyphs.
var columnTypes = typemap.Table{
	"SQLNULL":                  `\n`,
	"BOOLEAN":                  "t/f",
	"TINYINT":                  "#",
	"UTINYINT":                 "u#",
	"SMALLINT":                 "#",
	"USMALLINT":                "u#",
	"INTEGER":                  "#",
	"UINTEGER":                 "u#",
	"BIGINT":                   "##",
	"UBIGINT":                  "u##",
	"HUGEINT":                  "###",
	"UHUGEINT":                 "u###",
	"UUID":                     "uid",
	"FLOAT":                    "#.#",
	"DOUBLE":                   "#.#",
	"DECIMAL":                  "#.#",
	"REAL":                     "#.#",
	"DATE":                     "d",
	"TIMESTAMP":                "ts",
	"TIMESTAMP_MS":             "ts",
	"TIMESTAMP_NS":             "ts",
	"TIMESTAMP_S":              "ts",
	"TIME":                     "t",
	"TIME_TZ":                  "ttz",
	"TIMESTAMP_TZ":             "ttz",
	"TIMESTAMP WITH TIME ZONE": "ttz",
	"VARCHAR":                  "s",
	"BLOB":                     "0b",
	"BIT":                      "010",
	"INTERVAL":                 "|-|",
	"STRUCT":                   "{}",
	"MAP":                      "{m}",
	"UNION":                    "|",
	"ENUM":                     "enum",
}

var relationTypes = map[string]string{
	"BASE TABLE":      "t",
	"LOCAL TEMPORARY": "tmp",
	"VIEW":            "v",
}

// duckdbConn implements adapter.Connection. User statements run on a
// pinned connection; introspection uses other connections from the pool so
// it never waits on a running query.
type duckdbConn struct {
	db      *sql.DB
	conn    *sql.Conn
	logger  *slog.Logger
	initMsg string
	runner  adapter.Runner
}

func (c *duckdbConn) Name() string            { return "duckdb" }
func (c *duckdbConn) InitMessage() string     { return c.initMsg }
func (c *duckdbConn) TransactionMode() string { return "" }
func (c *duckdbConn) Cancel()                 { c.runner.Cancel() }

func (c *duckdbConn) ToggleTransactionMode(context.Context) (string, error) {
	return "", adapter.ErrNotSupported
}

func (c *duckdbConn) Close() error {
	c.runner.Cancel()
	c.conn.Close()
	return c.db.Close()
}

func (c *duckdbConn) Execute(ctx context.Context, query string) (adapter.Cursor, error) {
	qctx, done := c.runner.Start(ctx)
	rows, err := c.conn.QueryContext(qctx, query)
	if err != nil {
		done()
		if qctx.Err() != nil || isInterrupt(err) {
			return nil, nil
		}
		return nil, adapter.NewQueryError(queryTitle, err)
	}
	return adapter.NewRowsCursor(qctx, done, rows, adapter.RowsOptions{
		TypeOf: func(ct *sql.ColumnType, _ any) string {
			return columnTypes.Short(ct.DatabaseTypeName())
		},
		QueryTitle: queryTitle,
		FetchTitle: fetchTitle,
	})
}

func isInterrupt(err error) bool {
	return strings.Contains(err.Error(), "INTERRUPT Error")
}

// serializedSQL is the part of json_serialize_sql's output we inspect.
type serializedSQL struct {
	Error     bool   `json:"error"`
	ErrorType string `json:"error_type"`
}

// parse asks DuckDB to parse text without binding or running it.
func (c *duckdbConn) parse(ctx context.Context, text string) (serializedSQL, error) {
	var raw string
	var out serializedSQL
	if err := c.db.QueryRowContext(ctx, "select json_serialize_sql(?)", text).Scan(&raw); err != nil {
		return out, err
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return out, fmt.Errorf("decode serialized sql: %w", err)
	}
	return out, nil
}

// ValidateSQL returns text unless DuckDB's parser rejects it. Statements
// the serializer does not support, like DDL, still validate.
func (c *duckdbConn) ValidateSQL(ctx context.Context, text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	res, err := c.parse(ctx, text)
	if err != nil {
		return ""
	}
	if res.Error && res.ErrorType == "parser" {
		return ""
	}
	return text
}

// Copy exports with DuckDB's own COPY statement.
func (c *duckdbConn) Copy(ctx context.Context, query, path string, opts export.Options) error {
	stmts := initscript.Statements(query)
	if len(stmts) == 0 {
		return adapter.ErrEmptyCopy
	}
	if err := opts.Validate(); err != nil {
		return adapter.NewCopyError(adapter.CopyErrorTitle, err)
	}
	// The serializer only accepts select statements.
	if res, err := c.parse(ctx, stmts[len(stmts)-1]); err != nil || res.Error {
		return adapter.ErrNoRowsCopy
	}
	copyStmt := fmt.Sprintf("copy (%s) to %s %s", stmts[len(stmts)-1], quote.Literal(path), export.CopyClause(opts))
	for _, s := range stmts[:len(stmts)-1] {
		if _, err := c.conn.ExecContext(ctx, s); err != nil {
			return adapter.NewCopyError(adapter.CopyErrorTitle, err)
		}
	}
	if _, err := c.conn.ExecContext(ctx, copyStmt); err != nil {
		return adapter.NewCopyError(adapter.CopyErrorTitle, err)
	}
	c.logger.Info("exported query", "path", path, "format", opts.Format())
	return nil
}
