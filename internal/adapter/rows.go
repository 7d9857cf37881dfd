package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// Runner tracks the statement currently running on a connection so Cancel
// can interrupt it from another goroutine.
type Runner struct {
	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

// Start derives the context for one statement. The returned func releases
// it and must be called once the statement's rows are closed.
func (r *Runner) Start(ctx context.Context) (context.Context, func()) {
	qctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.gen++
	gen := r.gen
	r.cancel = cancel
	r.mu.Unlock()
	return qctx, func() {
		r.mu.Lock()
		if r.gen == gen {
			r.cancel = nil
		}
		r.mu.Unlock()
		cancel()
	}
}

// Cancel interrupts the running statement, if any.
func (r *Runner) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
}

// RowsOptions configures a cursor over *sql.Rows.
type RowsOptions struct {
	// TypeOf returns the glyph for a column. sample is the column's value
	// in the first row, or nil when there are no rows.
	TypeOf func(ct *sql.ColumnType, sample any) string
	// Value converts a scanned value. Byte slices are already copied.
	Value func(v any, ct *sql.ColumnType) any
	// QueryTitle and FetchTitle title errors raised while running the
	// statement and while reading its rows.
	QueryTitle string
	FetchTitle string
}

type rowsCursor struct {
	ctx   context.Context
	done  func()
	rows  *sql.Rows
	types []*sql.ColumnType
	cols  []Column
	first []any
	limit int
	o     RowsOptions
}

// NewRowsCursor wraps rows opened under ctx. The first row is read up
// front so that glyphs can be derived from values. Statements without
// result columns are drained and yield a nil Cursor, as do cancelled ones.
// done is called once the rows are closed.
func NewRowsCursor(ctx context.Context, done func(), rows *sql.Rows, o RowsOptions) (Cursor, error) {
	c := &rowsCursor{ctx: ctx, done: done, rows: rows, o: o}
	types, err := rows.ColumnTypes()
	if err != nil {
		c.close()
		if ctx.Err() != nil {
			return nil, nil
		}
		return nil, NewQueryError(o.QueryTitle, err)
	}
	c.types = types

	if rows.Next() {
		row, err := c.scan()
		if err != nil {
			c.close()
			return nil, NewQueryError(o.FetchTitle, err)
		}
		c.first = row
	}
	if err := rows.Err(); err != nil {
		c.close()
		if ctx.Err() != nil {
			return nil, nil
		}
		return nil, NewQueryError(o.QueryTitle, err)
	}
	if len(types) == 0 {
		c.close()
		return nil, nil
	}

	c.cols = make([]Column, len(types))
	for i, ct := range types {
		var sample any
		if c.first != nil {
			sample = c.first[i]
		}
		glyph := ""
		if o.TypeOf != nil {
			glyph = o.TypeOf(ct, sample)
		}
		c.cols[i] = Column{Name: ct.Name(), Type: glyph}
	}
	return c, nil
}

func (c *rowsCursor) Columns() []Column { return c.cols }

func (c *rowsCursor) SetLimit(n int) Cursor {
	c.limit = n
	return c
}

func (c *rowsCursor) FetchAll(ctx context.Context) (*ResultSet, error) {
	defer c.close()
	stop := context.AfterFunc(ctx, c.done)
	defer stop()

	rs := &ResultSet{Columns: c.cols}
	if c.first != nil && c.room(0) {
		rs.Rows = append(rs.Rows, c.first)
	}
	for c.room(len(rs.Rows)) && c.rows.Next() {
		row, err := c.scan()
		if err != nil {
			return nil, NewQueryError(c.o.FetchTitle, err)
		}
		rs.Rows = append(rs.Rows, row)
	}
	if err := c.rows.Err(); err != nil {
		if c.ctx.Err() != nil {
			return nil, nil
		}
		return nil, NewQueryError(c.o.FetchTitle, err)
	}
	if c.ctx.Err() != nil {
		return nil, nil
	}
	return rs, nil
}

func (c *rowsCursor) room(have int) bool {
	return c.limit <= 0 || have < c.limit
}

func (c *rowsCursor) scan() ([]any, error) {
	vals := make([]any, len(c.types))
	dest := make([]any, len(c.types))
	for i := range vals {
		dest[i] = &vals[i]
	}
	if err := c.rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("scan row: %w", err)
	}
	for i, v := range vals {
		if b, ok := v.([]byte); ok {
			v = append([]byte(nil), b...)
		}
		if c.o.Value != nil {
			v = c.o.Value(v, c.types[i])
		}
		vals[i] = v
	}
	return vals, nil
}

func (c *rowsCursor) close() {
	c.rows.Close()
	if c.done != nil {
		c.done()
	}
}

// Querier is satisfied by *sql.DB and *sql.Conn.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// QueryStrings runs an introspection query and returns every row with NULLs
// as "".
func QueryStrings(ctx context.Context, q Querier, query string, args ...any) ([][]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	dest := make([]any, len(cols))
	for i := range dest {
		dest[i] = new(sql.NullString)
	}
	var out [][]string
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		row := make([]string, len(cols))
		for i, d := range dest {
			row[i] = d.(*sql.NullString).String
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
