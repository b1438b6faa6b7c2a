package sqlx

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	sqlshadow "github.com/kroma-labs/sqlshadow/sql"
)

// DB wraps *sqlx.DB. Every statement it runs is recorded by the
// instrumented driver underneath; named operations are recorded here
// instead, with the ":name" template and the values taken from their
// argument.
type DB struct {
	*sqlx.DB
	rec *sqlshadow.Recorder
}

// Open opens an instrumented pool and wraps it with sqlx.
//
// Example:
//
//	tel := sqlshadow.NewTelemetry()
//	db, err := shadowsqlx.Open("postgres", dsn,
//	    shadowsqlx.WithDBSystem("postgresql"),
//	    shadowsqlx.WithTelemetry(tel),
//	)
func Open(driverName, dsn string, opts ...Option) (*DB, error) {
	db, err := sqlshadow.Open(driverName, dsn, opts...)
	if err != nil {
		return nil, err
	}

	return NewDB(db, driverName, opts...), nil
}

// Connect opens an instrumented pool and verifies it with a ping.
func Connect(ctx context.Context, driverName, dsn string, opts ...Option) (*DB, error) {
	db, err := Open(driverName, dsn, opts...)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driverName, err)
	}

	return db, nil
}

// NewDB wraps an existing pool. When db was opened with sqlshadow.Open it
// keeps recording into that pool's telemetry and opts are ignored;
// otherwise only named operations are recorded, as configured by opts.
//
// Example:
//
//	sqlDB, _ := sqlshadow.Open("postgres", dsn, sqlshadow.WithTelemetry(tel))
//	db := shadowsqlx.NewDB(sqlDB, "postgres")
func NewDB(db *sql.DB, driverName string, opts ...Option) *DB {
	rec, ok := sqlshadow.Instrumentation(db)
	if !ok {
		rec = sqlshadow.NewRecorder(opts...)
	}

	return &DB{DB: sqlx.NewDb(db, driverName), rec: rec}
}

// MustOpen is like Open but panics on error.
func MustOpen(driverName, dsn string, opts ...Option) *DB {
	db, err := Open(driverName, dsn, opts...)
	if err != nil {
		panic(err)
	}
	return db
}

// MustConnect is like Connect but panics on error.
func MustConnect(ctx context.Context, driverName, dsn string, opts ...Option) *DB {
	db, err := Connect(ctx, driverName, dsn, opts...)
	if err != nil {
		panic(err)
	}
	return db
}

// Telemetry returns the telemetry context executions are recorded into.
func (db *DB) Telemetry() *sqlshadow.Telemetry {
	return db.rec.Telemetry()
}

// NamedExecContext executes a named query.
func (db *DB) NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error) {
	ctx, exec := start(ctx, db.rec, db.Mapper, query, arg, nil)

	res, err := db.DB.NamedExecContext(ctx, query, arg)
	exec.End(resultRows(res), err)

	return res, err
}

// NamedQueryContext executes a named query and returns its rows.
func (db *DB) NamedQueryContext(ctx context.Context, query string, arg any) (*sqlx.Rows, error) {
	ctx, exec := start(ctx, db.rec, db.Mapper, query, arg, nil)

	rows, err := db.DB.NamedQueryContext(ctx, query, arg)
	exec.End(-1, err)

	return rows, err
}

// PrepareNamedContext prepares a named statement that records each of its
// executions.
func (db *DB) PrepareNamedContext(ctx context.Context, query string) (*NamedStmt, error) {
	createdBy := db.rec.Stack()

	stmt, err := db.DB.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, err
	}

	return newNamedStmt(stmt, db.rec, query, createdBy), nil
}

// PrepareNamed prepares a named statement without context.
func (db *DB) PrepareNamed(query string) (*NamedStmt, error) {
	return db.PrepareNamedContext(context.Background(), query)
}

// BeginTxx starts a transaction whose named operations are recorded.
func (db *DB) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*Tx, error) {
	tx, err := db.DB.BeginTxx(ctx, opts)
	if err != nil {
		return nil, err
	}

	return &Tx{Tx: tx, rec: db.rec}, nil
}

// Beginx starts a transaction with default options.
func (db *DB) Beginx() (*Tx, error) {
	return db.BeginTxx(context.Background(), nil)
}

// MustBeginTx starts a transaction and panics on error.
func (db *DB) MustBeginTx(ctx context.Context, opts *sql.TxOptions) *Tx {
	tx, err := db.BeginTxx(ctx, opts)
	if err != nil {
		panic(err)
	}
	return tx
}

// Unsafe returns a version of DB that silently ignores missing destination
// fields.
func (db *DB) Unsafe() *DB {
	return &DB{DB: db.DB.Unsafe(), rec: db.rec}
}
