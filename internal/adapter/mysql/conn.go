package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/sadopc/sqlharbor/internal/adapter"
	"github.com/sadopc/sqlharbor/internal/export"
	"github.com/sadopc/sqlharbor/internal/initscript"
	"github.com/sadopc/sqlharbor/internal/typemap"
)

// columnTypes is keyed by upper-case type name, with an UNSIGNED prefix
// for unsigned integers as the driver reports them.
var columnTypes = typemap.Table{
	"NULL":               `\n`,
	"TINYINT":            "#",
	"SMALLINT":           "#",
	"MEDIUMINT":          "#",
	"INT":                "#",
	"INTEGER":            "#",
	"BIGINT":             "##",
	"UNSIGNED TINYINT":   "u#",
	"UNSIGNED SMALLINT":  "u#",
	"UNSIGNED MEDIUMINT": "u#",
	"UNSIGNED INT":       "u#",
	"UNSIGNED BIGINT":    "u##",
	"DECIMAL":            "#.#",
	"FLOAT":              "#.#",
	"DOUBLE":             "#.#",
	"BIT":                "010",
	"BOOL":               "t/f",
	"BOOLEAN":            "t/f",
	"CHAR":               "s",
	"VARCHAR":            "s",
	"TINYTEXT":           "s",
	"TEXT":               "s",
	"MEDIUMTEXT":         "s",
	"LONGTEXT":           "s",
	"ENUM":               "enum",
	"SET":                "set",
	"JSON":               "{j}",
	"BINARY":             "b",
	"VARBINARY":          "b",
	"TINYBLOB":           "b",
	"BLOB":               "b",
	"MEDIUMBLOB":         "b",
	"LONGBLOB":           "b",
	"DATE":               "d",
	"DATETIME":           "ts",
	"TIMESTAMP":          "ts",
	"TIME":               "t",
	"YEAR":               "y",
	"GEOMETRY":           "geo",
}

// glyph maps an information_schema DATA_TYPE and COLUMN_TYPE pair.
func glyph(dataType, columnType string) string {
	name := strings.ToUpper(dataType)
	if strings.Contains(strings.ToLower(columnType), "unsigned") {
		name = "UNSIGNED " + name
	}
	return columnTypes.Short(name)
}

func isBinary(ct *sql.ColumnType) bool {
	return columnTypes.Short(ct.DatabaseTypeName()) == "b"
}

// mysqlConn implements adapter.Connection. User statements run on a
// pinned connection whose server-side id is kept for KILL QUERY.
type mysqlConn struct {
	db     *sql.DB
	logger *slog.Logger
	runner adapter.Runner

	mu     sync.Mutex
	conn   *sql.Conn
	connID int64
}

func (c *mysqlConn) Name() string            { return "mysql" }
func (c *mysqlConn) InitMessage() string     { return "" }
func (c *mysqlConn) TransactionMode() string { return "" }

func (c *mysqlConn) ToggleTransactionMode(context.Context) (string, error) {
	return "", adapter.ErrNotSupported
}

func (c *mysqlConn) Close() error {
	c.runner.Cancel()
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()
	return c.db.Close()
}

// session returns the pinned connection. The driver drops a connection
// whose context is cancelled mid-query, so a dead one is replaced.
func (c *mysqlConn) session(ctx context.Context) (*sql.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		if err := c.conn.PingContext(ctx); err == nil {
			return c.conn, nil
		}
		c.conn.Close()
		c.conn = nil
		c.logger.Warn("session connection lost, reconnecting")
	}
	conn, err := c.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	var id int64
	if err := conn.QueryRowContext(ctx, "select connection_id()").Scan(&id); err != nil {
		conn.Close()
		return nil, fmt.Errorf("mysql connection id: %w", err)
	}
	c.conn, c.connID = conn, id
	return conn, nil
}

func (c *mysqlConn) Execute(ctx context.Context, query string) (adapter.Cursor, error) {
	conn, err := c.session(ctx)
	if err != nil {
		return nil, adapter.NewConnectionError(connectTitle, err)
	}
	qctx, done := c.runner.Start(ctx)
	rows, err := conn.QueryContext(qctx, query)
	if err != nil {
		done()
		if qctx.Err() != nil || isInterrupted(err) {
			return nil, nil
		}
		return nil, adapter.NewQueryError(queryTitle, err)
	}
	return adapter.NewRowsCursor(qctx, done, rows, adapter.RowsOptions{
		TypeOf: func(ct *sql.ColumnType, _ any) string {
			return columnTypes.Short(ct.DatabaseTypeName())
		},
		Value:      value,
		QueryTitle: queryTitle,
		FetchTitle: fetchTitle,
	})
}

// value turns the text protocol's byte slices into strings, except for
// binary columns.
func value(v any, ct *sql.ColumnType) any {
	if b, ok := v.([]byte); ok && !isBinary(ct) {
		return string(b)
	}
	return v
}

// isInterrupted reports a statement stopped by KILL QUERY.
func isInterrupted(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == 1317
}

// Cancel stops the server-side statement with KILL QUERY from another
// connection, then cancels the local context.
func (c *mysqlConn) Cancel() {
	c.mu.Lock()
	id := c.connID
	c.mu.Unlock()
	if id != 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if _, err := c.db.ExecContext(ctx, fmt.Sprintf("kill query %d", id)); err != nil {
			c.logger.Debug("kill query failed", "connection_id", id, "error", err)
		}
		cancel()
	}
	c.runner.Cancel()
}

// ValidateSQL prepares text server-side, which parses it without running
// it. Only syntax errors make it invalid.
func (c *mysqlConn) ValidateSQL(ctx context.Context, text string) string {
	if len(initscript.Statements(text)) != 1 {
		return ""
	}
	stmt, err := c.db.PrepareContext(ctx, text)
	if err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == 1064 {
			return ""
		}
		return text
	}
	stmt.Close()
	return text
}

func (c *mysqlConn) Copy(ctx context.Context, query, path string, opts export.Options) error {
	return adapter.CopyRows(ctx, c, query, path, opts, func(_ context.Context, stmt string) (bool, error) {
		return returnsRows(stmt), nil
	})
}

// rowKeywords start statements that produce a result set.
var rowKeywords = map[string]bool{
	"select": true, "show": true, "describe": true, "desc": true,
	"explain": true, "table": true, "values": true, "with": true,
}

// returnsRows classifies stmt by its leading keyword. The driver does not
// report the column count of a prepared statement. A with clause returns
// rows unless its main statement modifies data.
func returnsRows(stmt string) bool {
	words := keywords(stmt)
	if len(words) == 0 || !rowKeywords[words[0]] {
		return false
	}
	if words[0] != "with" {
		return true
	}
	for _, w := range words[1:] {
		switch w {
		case "select", "table", "values":
			return true
		case "insert", "update", "delete", "replace":
			return false
		}
	}
	return false
}

// keywords returns the lower-cased bare words of stmt that sit outside
// comments, quotes and parentheses.
func keywords(stmt string) []string {
	var words []string
	depth := 0
	for i := 0; i < len(stmt); {
		ch := stmt[i]
		switch {
		case ch == '-' && strings.HasPrefix(stmt[i:], "-- "), ch == '#':
			end := strings.IndexByte(stmt[i:], '\n')
			if end < 0 {
				return words
			}
			i += end + 1
		case ch == '/' && strings.HasPrefix(stmt[i:], "/*"):
			end := strings.Index(stmt[i+2:], "*/")
			if end < 0 {
				return words
			}
			i += end + 4
		case ch == '\'' || ch == '"' || ch == '`':
			i++
			for i < len(stmt) && stmt[i] != ch {
				if stmt[i] == '\\' && ch != '`' {
					i++
				}
				i++
			}
			i++
		case ch == '(':
			depth++
			i++
		case ch == ')':
			depth--
			i++
		case isWordByte(ch):
			j := i
			for j < len(stmt) && isWordByte(stmt[j]) {
				j++
			}
			if depth <= 0 || len(words) == 0 {
				words = append(words, strings.ToLower(stmt[i:j]))
			}
			i = j
		default:
			i++
		}
	}
	return words
}

func isWordByte(ch byte) bool {
	return ch == '_' || ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch >= '0' && ch <= '9'
}
