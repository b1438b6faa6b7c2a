package sql

import (
	"context"
	"database/sql"
	"slices"
	"strconv"

	"github.com/kroma-labs/sqlshadow/interpolate"
)

// Preparer is implemented by *sql.DB, *sql.Conn and *sql.Tx.
type Preparer interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Stmt is a prepared statement that tracks its bound parameters and
// records every execution, with the parameters interpolated into the
// query, into a Telemetry.
//
// Stmt decorates *sql.Stmt and never changes what is sent to the
// database. Like a cursor it is meant for one caller at a time.
//
// Literals are rendered with the quoter configured by WithQuoter or
// WithDBSystem, then interpolate.Fallback. A Stmt sits above the pool and
// never sees the driver connection, so a driver.Conn implementing
// interpolate.Quoter is only consulted for driver-level records.
type Stmt struct {
	stmt      *sql.Stmt
	rec       *Recorder
	query     string
	bindings  interpolate.Bindings
	createdBy Frames

	sent         string
	err          error
	errInfo      ErrorInfo
	rowsAffected int64
}

// Prepare prepares query on p and returns a Stmt recording into the
// telemetry configured by opts. Pass WithTelemetry to share a log; use
// Recorder.Prepare to record into an instrumented pool's telemetry.
func Prepare(ctx context.Context, p Preparer, query string, opts ...Option) (*Stmt, error) {
	return NewRecorder(opts...).Prepare(ctx, p, query)
}

// Prepare prepares query on p and returns a Stmt recording into r.
func (r *Recorder) Prepare(ctx context.Context, p Preparer, query string) (*Stmt, error) {
	createdBy := r.cfg.Telemetry.captureCallSite(0)

	stmt, err := p.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}

	return &Stmt{
		stmt:         stmt,
		rec:          r,
		query:        query,
		bindings:     make(interpolate.Bindings),
		createdBy:    createdBy,
		errInfo:      ErrorInfo{SQLState: sqlStateOK},
		rowsAffected: -1,
	}, nil
}

// BindValue binds value to placeholder, replacing any earlier binding.
// Positional placeholders are addressed by their index as a decimal
// string ("1", "2", ...), named ones by name with or without the leading
// ':' or '@'; "id", ":id" and "@id" are the same placeholder. Positional
// bindings are sent in ascending index order, so '$N' receives the N-th of
// them. The declared type only affects the interpolated query.
func (s *Stmt) BindValue(placeholder string, value any, t interpolate.ParamType) {
	s.bindings.Set(placeholder, value, t)
}

// BindParam binds a reference to placeholder. The value it points to is
// read at each execution, so changes between executions are picked up.
func (s *Stmt) BindParam(placeholder string, ref any, t interpolate.ParamType) {
	s.bindings.Set(placeholder, ref, t)
}

// Bindings returns a copy of the current bindings.
func (s *Stmt) Bindings() interpolate.Bindings {
	return s.bindings.Clone()
}

// ExecContext executes the statement. Without args the bound parameters
// are sent; with args exactly args are sent and bindings are left as they
// are.
func (s *Stmt) ExecContext(ctx context.Context, args ...any) (sql.Result, error) {
	bindings, args := s.arguments(args)

	ctx, exec := s.start(ctx, bindings)
	res, err := s.stmt.ExecContext(ctx, args...)

	rows := int64(-1)
	if res != nil {
		if n, nerr := res.RowsAffected(); nerr == nil {
			rows = n
		}
	}
	s.finish(exec, rows, err)

	return res, err
}

// QueryContext executes the statement and returns its rows. The recorded
// elapsed time ends when the first result is available.
func (s *Stmt) QueryContext(ctx context.Context, args ...any) (*sql.Rows, error) {
	bindings, args := s.arguments(args)

	ctx, exec := s.start(ctx, bindings)
	rows, err := s.stmt.QueryContext(ctx, args...)
	s.finish(exec, -1, err)

	return rows, err
}

// QueryRowContext executes the statement and returns at most one row.
func (s *Stmt) QueryRowContext(ctx context.Context, args ...any) *sql.Row {
	bindings, args := s.arguments(args)

	ctx, exec := s.start(ctx, bindings)
	row := s.stmt.QueryRowContext(ctx, args...)
	s.finish(exec, -1, row.Err())

	return row
}

// InterpolatedQuery returns the interpolated query of the last execution,
// or "" before the first one.
func (s *Stmt) InterpolatedQuery() string {
	return s.sent
}

// Query returns the query template.
func (s *Stmt) Query() string {
	return s.query
}

// Err returns the error of the last execution.
func (s *Stmt) Err() error {
	return s.err
}

// ErrorInfo returns the structured error of the last execution.
func (s *Stmt) ErrorInfo() ErrorInfo {
	return s.errInfo
}

// RowsAffected returns the affected row count of the last execution, or
// -1 when it is unknown.
func (s *Stmt) RowsAffected() int64 {
	return s.rowsAffected
}

// Close closes the underlying statement.
func (s *Stmt) Close() error {
	return s.stmt.Close()
}

func (s *Stmt) start(ctx context.Context, bindings interpolate.Bindings) (context.Context, *Execution) {
	ctx, exec := s.rec.Start(ctx, s.query)
	exec.Bindings = bindings
	exec.CreatedBy = s.createdBy
	return SkipInstrumentation(ctx), exec
}

func (s *Stmt) finish(exec *Execution, rows int64, err error) {
	rec, ok := exec.End(rows, err)
	if !ok {
		return
	}

	s.sent = rec.Query
	s.err = err
	s.errInfo = rec.ErrorInfo
	s.rowsAffected = rows
}

// arguments returns the bindings to interpolate and the arguments to send.
func (s *Stmt) arguments(args []any) (interpolate.Bindings, []any) {
	if len(args) > 0 {
		return argBindings(args), args
	}
	return s.bindings.Clone(), bindingArgs(s.bindings)
}

// argBindings tracks explicit arguments by sql.NamedArg name or 1-based
// position.
func argBindings(args []any) interpolate.Bindings {
	b := make(interpolate.Bindings, len(args))
	for i, a := range args {
		if named, ok := a.(sql.NamedArg); ok {
			b.Set(named.Name, named.Value, interpolate.TypeAuto)
			continue
		}
		b.Set(strconv.Itoa(i+1), a, interpolate.TypeAuto)
	}
	return b
}

// bindingArgs turns bindings into driver arguments: positional values in
// ascending index order followed by named values as sql.NamedArg.
func bindingArgs(b interpolate.Bindings) []any {
	type positional struct {
		idx   int
		value any
	}

	var (
		pos   []positional
		names []string
	)
	for k, v := range b {
		if interpolate.IsPositional(k) {
			idx, err := strconv.Atoi(k)
			if err == nil {
				pos = append(pos, positional{idx: idx, value: v.Value})
				continue
			}
		}
		names = append(names, k)
	}

	slices.SortFunc(pos, func(a, b positional) int { return a.idx - b.idx })
	// Marker-less keys sort after ":id" and "@id" and win, as in
	// interpolate.Interpolate.
	slices.Sort(names)

	values := make(map[string]any, len(names))
	var order []string
	for _, k := range names {
		name := interpolate.Name(k)
		if _, ok := values[name]; !ok {
			order = append(order, name)
		}
		values[name] = b[k].Value
	}

	args := make([]any, 0, len(pos)+len(order))
	for _, p := range pos {
		args = append(args, p.value)
	}
	for _, name := range order {
		args = append(args, sql.Named(name, values[name]))
	}
	return args
}
