package sqlite

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sadopc/sqlharbor/internal/adapter"
	"github.com/sadopc/sqlharbor/internal/export"
	"github.com/sadopc/sqlharbor/internal/initscript"
	"github.com/sadopc/sqlharbor/internal/typemap"
)

const (
	modeAuto   = "Auto"
	modeManual = "Manual"
)

// sqliteConn implements adapter.Connection on one pinned native
// connection.
type sqliteConn struct {
	db      *sql.DB
	conn    *sql.Conn
	logger  *slog.Logger
	initMsg string
	runner  adapter.Runner

	mu     sync.Mutex
	manual bool
}

func (c *sqliteConn) Name() string        { return "sqlite" }
func (c *sqliteConn) InitMessage() string { return c.initMsg }

func (c *sqliteConn) Close() error {
	c.runner.Cancel()
	c.conn.Close()
	return c.db.Close()
}

func (c *sqliteConn) isManual() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.manual
}

// Execute runs query. In Manual mode a transaction is opened first so that
// changes wait for an explicit commit.
func (c *sqliteConn) Execute(ctx context.Context, query string) (adapter.Cursor, error) {
	manual := c.isManual()
	if manual {
		// Fails harmlessly when a transaction is already open.
		c.conn.ExecContext(ctx, "begin")
	}

	qctx, done := c.runner.Start(ctx)
	rows, err := c.conn.QueryContext(qctx, query)
	if err != nil {
		done()
		if qctx.Err() != nil {
			return nil, nil
		}
		if manual && isNestedBegin(err) {
			return nil, nil
		}
		return nil, adapter.NewQueryError(queryTitle, err)
	}
	cur, err := adapter.NewRowsCursor(qctx, done, rows, adapter.RowsOptions{
		TypeOf:     columnGlyph,
		QueryTitle: queryTitle,
		FetchTitle: fetchTitle,
	})
	if err != nil && manual && isNestedBegin(err) {
		return nil, nil
	}
	return cur, err
}

func isNestedBegin(err error) bool {
	return strings.Contains(err.Error(), "cannot start a transaction within a transaction")
}

// Cancel interrupts the running statement.
func (c *sqliteConn) Cancel() {
	c.runner.Cancel()
}

// ValidateSQL compiles a single statement with explain, which never runs
// it.
func (c *sqliteConn) ValidateSQL(ctx context.Context, text string) string {
	if len(initscript.Statements(text)) != 1 {
		return ""
	}
	rows, err := c.conn.QueryContext(ctx, "explain "+text)
	if err != nil {
		return ""
	}
	defer rows.Close()
	rows.Next()
	if rows.Err() != nil {
		return ""
	}
	return text
}

func (c *sqliteConn) Copy(ctx context.Context, query, path string, opts export.Options) error {
	return adapter.CopyRows(ctx, c, query, path, opts, c.returnsRows)
}

// returnsRows compiles stmt with explain and looks for a ResultRow opcode,
// which only statements that produce rows contain.
func (c *sqliteConn) returnsRows(ctx context.Context, stmt string) (bool, error) {
	rows, err := c.conn.QueryContext(ctx, "explain "+stmt)
	if err != nil {
		return false, adapter.NewQueryError(queryTitle, err)
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return false, adapter.NewQueryError(queryTitle, err)
	}
	// addr, opcode, p1, p2, p3, p4, p5, comment
	dest := make([]any, len(cols))
	for i := range dest {
		dest[i] = new(sql.RawBytes)
	}
	found := false
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return false, adapter.NewQueryError(queryTitle, err)
		}
		if len(dest) > 1 && string(*dest[1].(*sql.RawBytes)) == "ResultRow" {
			found = true
		}
	}
	if err := rows.Err(); err != nil {
		return false, adapter.NewQueryError(queryTitle, err)
	}
	return found, nil
}

func (c *sqliteConn) TransactionMode() string {
	if c.isManual() {
		return modeManual
	}
	return modeAuto
}

// ToggleTransactionMode switches between Auto and Manual. Any open
// transaction is committed first.
func (c *sqliteConn) ToggleTransactionMode(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.conn.ExecContext(ctx, "commit"); err != nil && !strings.Contains(err.Error(), "no transaction is active") {
		return "", adapter.NewQueryError(queryTitle, err)
	}
	c.manual = !c.manual
	if c.manual {
		return modeManual, nil
	}
	return modeAuto, nil
}

// affinity maps a declared column type to the glyph of its storage
// affinity, following SQLite's type affinity rules.
var affinity = typemap.MapperFunc(func(decl string) string {
	typ := strings.ToLower(decl)
	switch {
	case strings.Contains(typ, "int"):
		return "##"
	case strings.Contains(typ, "char"), strings.Contains(typ, "clob"), strings.Contains(typ, "text"):
		return "s"
	case strings.Contains(typ, "blob"), strings.TrimSpace(typ) == "":
		return "b"
	case strings.Contains(typ, "real"), strings.Contains(typ, "floa"), strings.Contains(typ, "doub"):
		return "#.#"
	default:
		return "#.#"
	}
})

// columnGlyph uses the declared type when the column has one and falls
// back to the type of the first value.
func columnGlyph(ct *sql.ColumnType, sample any) string {
	if decl := ct.DatabaseTypeName(); decl != "" {
		return affinity.Short(decl)
	}
	return valueGlyph(sample)
}

func valueGlyph(v any) string {
	switch v.(type) {
	case int64, int:
		return "##"
	case float64:
		return "#.#"
	case string:
		return "s"
	case []byte:
		return "b"
	case bool:
		return "t/f"
	case time.Time:
		return "ts"
	default:
		return typemap.Unknown
	}
}
