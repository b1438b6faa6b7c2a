package sql

import (
	"context"
	"database/sql/driver"
)

// Compile-time interface checks.
var (
	_ driver.Stmt              = (*otelStmt)(nil)
	_ driver.StmtExecContext   = (*otelStmt)(nil)
	_ driver.StmtQueryContext  = (*otelStmt)(nil)
	_ driver.NamedValueChecker = (*otelStmt)(nil)
)

// otelStmt wraps a prepared driver.Stmt. Every execution is recorded with
// the arguments it was given and the stack of the prepare call.
type otelStmt struct {
	stmt      driver.Stmt
	conn      *otelConn
	cfg       *config
	query     string
	createdBy Frames
}

func newOtelStmt(stmt driver.Stmt, conn *otelConn, query string) *otelStmt {
	return &otelStmt{
		stmt:      stmt,
		conn:      conn,
		cfg:       conn.cfg,
		query:     query,
		createdBy: conn.cfg.Telemetry.captureCallSite(0),
	}
}

// Close implements driver.Stmt.
func (s *otelStmt) Close() error {
	return s.stmt.Close()
}

// NumInput implements driver.Stmt.
func (s *otelStmt) NumInput() int {
	return s.stmt.NumInput()
}

// Exec implements driver.Stmt.
//
// Deprecated: Use ExecContext instead. This exists for driver.Stmt interface compatibility.
func (s *otelStmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.ExecContext(context.Background(), valueToNamedValue(args))
}

// Query implements driver.Stmt.
//
// Deprecated: Use QueryContext instead. This exists for driver.Stmt interface compatibility.
func (s *otelStmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.QueryContext(context.Background(), valueToNamedValue(args))
}

// ExecContext implements driver.StmtExecContext.
func (s *otelStmt) ExecContext(
	ctx context.Context,
	args []driver.NamedValue,
) (driver.Result, error) {
	if skipped(ctx) {
		return s.runExec(ctx, args)
	}

	ctx, exec := s.cfg.start(ctx, s.query)
	exec.Bindings = bindingsOf(args)
	exec.Quoter = s.cfg.quoterFor(s.conn.conn)
	exec.CreatedBy = s.createdBy

	result, err := s.runExec(ctx, args)
	exec.End(rowsAffected(result), err)

	return result, err
}

// QueryContext implements driver.StmtQueryContext.
func (s *otelStmt) QueryContext(
	ctx context.Context,
	args []driver.NamedValue,
) (driver.Rows, error) {
	if skipped(ctx) {
		return s.runQuery(ctx, args)
	}

	ctx, exec := s.cfg.start(ctx, s.query)
	exec.Bindings = bindingsOf(args)
	exec.Quoter = s.cfg.quoterFor(s.conn.conn)
	exec.CreatedBy = s.createdBy

	rows, err := s.runQuery(ctx, args)
	exec.End(-1, err)

	return rows, err
}

// CheckNamedValue implements driver.NamedValueChecker. The statement's own
// checker wins over the connection's.
func (s *otelStmt) CheckNamedValue(nv *driver.NamedValue) error {
	if checker, ok := s.stmt.(driver.NamedValueChecker); ok {
		return checker.CheckNamedValue(nv)
	}
	return s.conn.CheckNamedValue(nv)
}

func (s *otelStmt) runExec(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	if execer, ok := s.stmt.(driver.StmtExecContext); ok {
		return execer.ExecContext(ctx, args)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.stmt.Exec(namedValueToValue(args)) //nolint:staticcheck // Fallback for older drivers
}

func (s *otelStmt) runQuery(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	if queryer, ok := s.stmt.(driver.StmtQueryContext); ok {
		return queryer.QueryContext(ctx, args)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.stmt.Query(namedValueToValue(args)) //nolint:staticcheck // Fallback for older drivers
}

// namedValueToValue converts NamedValue slice to Value slice.
func namedValueToValue(named []driver.NamedValue) []driver.Value {
	values := make([]driver.Value, len(named))
	for i, nv := range named {
		values[i] = nv.Value
	}
	return values
}

// valueToNamedValue converts Value slice to NamedValue slice with 1-based
// ordinals.
func valueToNamedValue(values []driver.Value) []driver.NamedValue {
	named := make([]driver.NamedValue, len(values))
	for i, v := range values {
		named[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return named
}
