package sql

import (
	"database/sql/driver"
)

// The interfaces below describe the driver surface the wrappers depend on.
// They exist so that mocks can be generated for them.

// DriverConn is a connection with every optional capability.
type DriverConn interface {
	driver.Conn
	driver.ConnPrepareContext
	driver.ConnBeginTx
	driver.ExecerContext
	driver.QueryerContext
	driver.Pinger
}

// DriverTx is a transaction.
type DriverTx interface {
	Commit() error
	Rollback() error
}

// DriverStmt is a prepared statement with context support.
type DriverStmt interface {
	driver.Stmt
	driver.StmtExecContext
	driver.StmtQueryContext
}

// DriverResult is the result of an Exec.
type DriverResult interface {
	LastInsertId() (int64, error)
	RowsAffected() (int64, error)
}

// DriverRows is a result set.
type DriverRows interface {
	Columns() []string
	Close() error
	Next(dest []driver.Value) error
}
