package sqlx

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	sqlshadow "github.com/kroma-labs/sqlshadow/sql"
)

// Tx wraps *sqlx.Tx. Commit and Rollback are traced by the instrumented
// driver; named operations are recorded like on DB.
type Tx struct {
	*sqlx.Tx
	rec *sqlshadow.Recorder
}

// NamedExecContext executes a named query within the transaction.
func (tx *Tx) NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error) {
	ctx, exec := start(ctx, tx.rec, tx.Mapper, query, arg, nil)

	res, err := tx.Tx.NamedExecContext(ctx, query, arg)
	exec.End(resultRows(res), err)

	return res, err
}

// NamedQueryContext executes a named query within the transaction and
// returns its rows.
func (tx *Tx) NamedQueryContext(ctx context.Context, query string, arg any) (*sqlx.Rows, error) {
	ctx, exec := start(ctx, tx.rec, tx.Mapper, query, arg, nil)

	rows, err := sqlx.NamedQueryContext(ctx, tx.Tx, query, arg)
	exec.End(-1, err)

	return rows, err
}

// PrepareNamedContext prepares a named statement within the transaction.
func (tx *Tx) PrepareNamedContext(ctx context.Context, query string) (*NamedStmt, error) {
	createdBy := tx.rec.Stack()

	stmt, err := tx.Tx.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, err
	}

	return newNamedStmt(stmt, tx.rec, query, createdBy), nil
}

// NamedStmtContext returns a version of stmt that runs within the
// transaction. It keeps the statement's creation stack.
func (tx *Tx) NamedStmtContext(ctx context.Context, stmt *NamedStmt) *NamedStmt {
	return newNamedStmt(tx.Tx.NamedStmtContext(ctx, stmt.NamedStmt), tx.rec, stmt.query, stmt.createdBy)
}

// Unsafe returns a version of Tx that silently ignores missing destination
// fields.
func (tx *Tx) Unsafe() *Tx {
	return &Tx{Tx: tx.Tx.Unsafe(), rec: tx.rec}
}
