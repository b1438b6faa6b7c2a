package sqlx

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	sqlshadow "github.com/kroma-labs/sqlshadow/sql"
)

// NamedStmt wraps *sqlx.NamedStmt. Each execution is recorded once, with
// the named template interpolated from the execution's argument. Like
// sqlshadow.Stmt it is meant for one caller at a time.
type NamedStmt struct {
	*sqlx.NamedStmt
	rec       *sqlshadow.Recorder
	query     string
	createdBy sqlshadow.Frames
	last      sqlshadow.Record
}

func newNamedStmt(stmt *sqlx.NamedStmt, rec *sqlshadow.Recorder, query string, createdBy sqlshadow.Frames) *NamedStmt {
	return &NamedStmt{
		NamedStmt: stmt,
		rec:       rec,
		query:     query,
		createdBy: createdBy,
	}
}

// Query returns the named template the statement was prepared from.
func (ns *NamedStmt) Query() string {
	return ns.query
}

// InterpolatedQuery returns the interpolated query of the last execution,
// or "" before the first one.
func (ns *NamedStmt) InterpolatedQuery() string {
	return ns.last.Query
}

// LastRecord returns the record of the last execution.
func (ns *NamedStmt) LastRecord() (sqlshadow.Record, bool) {
	return ns.last, ns.last.Query != ""
}

// ExecContext executes the named statement.
func (ns *NamedStmt) ExecContext(ctx context.Context, arg any) (sql.Result, error) {
	ctx, exec := ns.start(ctx, arg)

	res, err := ns.NamedStmt.ExecContext(ctx, arg)
	ns.end(exec, resultRows(res), err)

	return res, err
}

// MustExecContext executes the named statement and panics on error.
func (ns *NamedStmt) MustExecContext(ctx context.Context, arg any) sql.Result {
	res, err := ns.ExecContext(ctx, arg)
	if err != nil {
		panic(err)
	}
	return res
}

// QueryContext executes the named statement and returns its rows.
func (ns *NamedStmt) QueryContext(ctx context.Context, arg any) (*sql.Rows, error) {
	ctx, exec := ns.start(ctx, arg)

	rows, err := ns.NamedStmt.QueryContext(ctx, arg)
	ns.end(exec, -1, err)

	return rows, err
}

// QueryxContext executes the named statement and returns sqlx.Rows.
func (ns *NamedStmt) QueryxContext(ctx context.Context, arg any) (*sqlx.Rows, error) {
	ctx, exec := ns.start(ctx, arg)

	rows, err := ns.NamedStmt.QueryxContext(ctx, arg)
	ns.end(exec, -1, err)

	return rows, err
}

// QueryRowxContext executes the named statement and returns one row.
func (ns *NamedStmt) QueryRowxContext(ctx context.Context, arg any) *sqlx.Row {
	ctx, exec := ns.start(ctx, arg)

	row := ns.NamedStmt.QueryRowxContext(ctx, arg)
	ns.end(exec, -1, row.Err())

	return row
}

// GetContext executes the named statement and scans one row into dest. An
// empty result is recorded as a successful execution.
func (ns *NamedStmt) GetContext(ctx context.Context, dest, arg any) error {
	ctx, exec := ns.start(ctx, arg)

	err := ns.NamedStmt.GetContext(ctx, dest, arg)
	ns.end(exec, -1, scanErr(err))

	return err
}

// SelectContext executes the named statement and scans every row into dest.
func (ns *NamedStmt) SelectContext(ctx context.Context, dest, arg any) error {
	ctx, exec := ns.start(ctx, arg)

	err := ns.NamedStmt.SelectContext(ctx, dest, arg)
	ns.end(exec, -1, err)

	return err
}

// Unsafe returns a version of NamedStmt that silently ignores missing
// destination fields.
func (ns *NamedStmt) Unsafe() *NamedStmt {
	return newNamedStmt(ns.NamedStmt.Unsafe(), ns.rec, ns.query, ns.createdBy)
}

func (ns *NamedStmt) start(ctx context.Context, arg any) (context.Context, *sqlshadow.Execution) {
	return start(ctx, ns.rec, ns.NamedStmt.Stmt.Mapper, ns.query, arg, ns.createdBy)
}

func (ns *NamedStmt) end(exec *sqlshadow.Execution, rows int64, err error) {
	if rec, ok := exec.End(rows, err); ok {
		ns.last = rec
	}
}
