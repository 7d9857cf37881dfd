package adapter

import (
	"context"

	"github.com/sadopc/sqlharbor/internal/export"
	"github.com/sadopc/sqlharbor/internal/initscript"
)

// RowsCheck reports whether a single statement returns rows, without
// running it.
type RowsCheck func(ctx context.Context, stmt string) (bool, error)

// CopyRows writes the rows of the last statement in query to path with the
// export package. Backends without a native export path use it for Copy.
// The statement only runs after returnsRows accepts it, so DML and DDL are
// rejected before they reach the database.
func CopyRows(ctx context.Context, conn Connection, query, path string, opts export.Options, returnsRows RowsCheck) error {
	stmts := initscript.Statements(query)
	if len(stmts) == 0 {
		return ErrEmptyCopy
	}
	if err := opts.Validate(); err != nil {
		return NewCopyError(CopyErrorTitle, err)
	}
	stmt := stmts[len(stmts)-1]
	ok, err := returnsRows(ctx, stmt)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoRowsCopy
	}
	cur, err := conn.Execute(ctx, stmt)
	if err != nil {
		return err
	}
	if cur == nil {
		return ErrNoRowsCopy
	}
	rs, err := cur.FetchAll(ctx)
	if err != nil {
		return err
	}
	if rs == nil {
		return nil
	}
	if _, err := export.Write(path, rs.ColumnNames(), rs.Rows, opts); err != nil {
		return NewCopyError(CopyErrorTitle, err)
	}
	return nil
}
