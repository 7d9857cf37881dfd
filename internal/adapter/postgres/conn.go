package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sadopc/sqlharbor/internal/adapter"
	"github.com/sadopc/sqlharbor/internal/export"
	"github.com/sadopc/sqlharbor/internal/initscript"
	"github.com/sadopc/sqlharbor/internal/typemap"
)

// columnTypes is keyed by pg_type.typname.
var columnTypes = typemap.Table{
	"bool":        "t/f",
	"bytea":       "b",
	"char":        "s",
	"bpchar":      "s",
	"varchar":     "s",
	"text":        "s",
	"name":        "s",
	"citext":      "s",
	"int2":        "#",
	"int4":        "#",
	"int8":        "##",
	"oid":         "#",
	"float4":      "#.#",
	"float8":      "#.#",
	"numeric":     "#.#",
	"money":       "$",
	"date":        "d",
	"time":        "t",
	"timetz":      "ttz",
	"timestamp":   "ts",
	"timestamptz": "ttz",
	"interval":    "|-|",
	"uuid":        "uid",
	"json":        "{j}",
	"jsonb":       "{j}",
	"xml":         "xml",
	"inet":        "ip",
	"cidr":        "ip",
	"macaddr":     "mac",
	"bit":         "010",
	"varbit":      "010",
	"tsvector":    "ts/v",
	"record":      "{}",
	"void":        "-",
}

// glyph maps a typname to its glyph. Array types are named after their
// element with a leading underscore.
func glyph(typname string) string {
	if elem, ok := strings.CutPrefix(typname, "_"); ok {
		return "[" + columnTypes.Short(elem) + "]"
	}
	return columnTypes.Short(typname)
}

// pgConn implements adapter.Connection. User statements run on a pinned
// pool connection so session settings persist; introspection uses the
// rest of the pool.
type pgConn struct {
	pool   *pgxpool.Pool
	dbName string
	logger *slog.Logger
	runner adapter.Runner

	mu   sync.Mutex
	conn *pgxpool.Conn
}

func (c *pgConn) Name() string            { return "postgres" }
func (c *pgConn) InitMessage() string     { return "" }
func (c *pgConn) TransactionMode() string { return "" }
func (c *pgConn) Cancel()                 { c.runner.Cancel() }

func (c *pgConn) ToggleTransactionMode(context.Context) (string, error) {
	return "", adapter.ErrNotSupported
}

func (c *pgConn) Close() error {
	c.runner.Cancel()
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Release()
		c.conn = nil
	}
	c.mu.Unlock()
	c.pool.Close()
	return nil
}

// session returns the pinned connection, replacing it if the server
// closed it.
func (c *pgConn) session(ctx context.Context) (*pgxpool.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil && !c.conn.Conn().IsClosed() {
		return c.conn, nil
	}
	if c.conn != nil {
		c.conn.Release()
		c.conn = nil
		c.logger.Warn("session connection lost, reconnecting")
	}
	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return conn, nil
}

func (c *pgConn) Execute(ctx context.Context, query string) (adapter.Cursor, error) {
	conn, err := c.session(ctx)
	if err != nil {
		return nil, adapter.NewConnectionError(connectTitle, err)
	}
	qctx, done := c.runner.Start(ctx)
	rows, err := conn.Query(qctx, query)
	if err != nil {
		done()
		if qctx.Err() != nil {
			return nil, nil
		}
		return nil, adapter.NewQueryError(queryTitle, err)
	}
	return newCursor(qctx, done, rows)
}

// isSyntaxError reports whether err is a Postgres parse failure, as
// opposed to a binding error like a missing table.
func isSyntaxError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42601"
}

// ValidateSQL prepares text as an unnamed statement on a spare connection.
func (c *pgConn) ValidateSQL(ctx context.Context, text string) string {
	if len(initscript.Statements(text)) != 1 {
		return ""
	}
	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return ""
	}
	defer conn.Release()
	if _, err := conn.Conn().PgConn().Prepare(ctx, "", text, nil); err != nil && isSyntaxError(err) {
		return ""
	}
	return text
}

func (c *pgConn) Copy(ctx context.Context, query, path string, opts export.Options) error {
	return adapter.CopyRows(ctx, c, query, path, opts, c.returnsRows)
}

// returnsRows prepares stmt on the session connection, which sees its temp
// tables, and reports whether the description carries any fields.
func (c *pgConn) returnsRows(ctx context.Context, stmt string) (bool, error) {
	conn, err := c.session(ctx)
	if err != nil {
		return false, err
	}
	sd, err := conn.Conn().PgConn().Prepare(ctx, "", stmt, nil)
	if err != nil {
		return false, adapter.NewQueryError(queryTitle, err)
	}
	return len(sd.Fields) > 0, nil
}

// cursor reads pgx rows. Like the database/sql cursor it peeks the first
// row before handing itself out.
type cursor struct {
	ctx   context.Context
	done  func()
	rows  pgx.Rows
	cols  []adapter.Column
	first []any
	limit int
}

func newCursor(ctx context.Context, done func(), rows pgx.Rows) (adapter.Cursor, error) {
	c := &cursor{ctx: ctx, done: done, rows: rows}
	if rows.Next() {
		row, err := c.values()
		if err != nil {
			c.close()
			return nil, adapter.NewQueryError(fetchTitle, err)
		}
		c.first = row
	}
	if err := rows.Err(); err != nil {
		c.close()
		if ctx.Err() != nil {
			return nil, nil
		}
		return nil, adapter.NewQueryError(queryTitle, err)
	}

	fds := rows.FieldDescriptions()
	if len(fds) == 0 {
		c.close()
		return nil, nil
	}
	c.cols = columns(rows.Conn().TypeMap(), fds)
	return c, nil
}

// columns converts field descriptions, resolving type OIDs through the
// connection's type map.
func columns(tm *pgtype.Map, fds []pgconn.FieldDescription) []adapter.Column {
	cols := make([]adapter.Column, len(fds))
	for i, fd := range fds {
		typ := typemap.Unknown
		if t, ok := tm.TypeForOID(fd.DataTypeOID); ok {
			typ = glyph(t.Name)
		}
		cols[i] = adapter.Column{Name: fd.Name, Type: typ}
	}
	return cols
}

func (c *cursor) Columns() []adapter.Column { return c.cols }

func (c *cursor) SetLimit(n int) adapter.Cursor {
	c.limit = n
	return c
}

func (c *cursor) FetchAll(ctx context.Context) (*adapter.ResultSet, error) {
	defer c.close()
	stop := context.AfterFunc(ctx, c.done)
	defer stop()

	rs := &adapter.ResultSet{Columns: c.cols}
	if c.first != nil && c.room(0) {
		rs.Rows = append(rs.Rows, c.first)
	}
	for c.room(len(rs.Rows)) && c.rows.Next() {
		row, err := c.values()
		if err != nil {
			return nil, adapter.NewQueryError(fetchTitle, err)
		}
		rs.Rows = append(rs.Rows, row)
	}
	c.rows.Close()
	if err := c.rows.Err(); err != nil {
		if c.ctx.Err() != nil {
			return nil, nil
		}
		return nil, adapter.NewQueryError(fetchTitle, err)
	}
	if c.ctx.Err() != nil {
		return nil, nil
	}
	return rs, nil
}

func (c *cursor) room(have int) bool {
	return c.limit <= 0 || have < c.limit
}

func (c *cursor) values() ([]any, error) {
	vals, err := c.rows.Values()
	if err != nil {
		return nil, fmt.Errorf("row values: %w", err)
	}
	for i, v := range vals {
		vals[i] = normalize(v)
	}
	return vals, nil
}

func (c *cursor) close() {
	c.rows.Close()
	c.done()
}

// normalize turns pgx's decoded values into plain Go values the results
// table and exporters know how to print.
func normalize(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		return append([]byte(nil), val...)
	case [16]byte:
		return fmt.Sprintf("%x-%x-%x-%x-%x", val[0:4], val[4:6], val[6:8], val[8:10], val[10:16])
	case pgtype.Numeric:
		if !val.Valid {
			return nil
		}
		dv, err := val.Value()
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return dv
	case pgtype.Interval:
		if !val.Valid {
			return nil
		}
		dv, err := val.Value()
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return dv
	case pgtype.Time:
		if !val.Valid {
			return nil
		}
		dv, err := val.Value()
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return dv
	case netip.Prefix:
		if val.IsSingleIP() {
			return val.Addr().String()
		}
		return val.String()
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = normalize(e)
		}
		return out
	default:
		return v
	}
}
