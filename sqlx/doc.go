// Package sqlx wraps github.com/jmoiron/sqlx so that named queries are
// recorded with their ":name" template and the values of their argument.
//
// The pool underneath is opened with the sql package of this module, so
// Get, Select, Queryx and every other inherited sqlx method is recorded by
// the instrumented driver with its positional arguments. Named operations
// (NamedExecContext, NamedQueryContext and prepared NamedStmt) are
// recorded here instead, exactly once each.
//
// # Quick Start
//
//	import (
//	    sqlshadow "github.com/kroma-labs/sqlshadow/sql"
//	    shadowsqlx "github.com/kroma-labs/sqlshadow/sqlx"
//	)
//
//	tel := sqlshadow.NewTelemetry(sqlshadow.WithSlowQueryThreshold(200 * time.Millisecond))
//	db, err := shadowsqlx.Open("postgres", dsn,
//	    shadowsqlx.WithDBSystem("postgresql"),
//	    shadowsqlx.WithTelemetry(tel),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	_, err = db.NamedExecContext(ctx,
//	    `UPDATE users SET name = :name WHERE id = :id`,
//	    User{ID: 7, Name: "O'Brien"},
//	)
//	// Recorded as: UPDATE users SET name = 'O''Brien' WHERE id = 7
//
// # Named Arguments
//
// Values are read from maps with string keys and from structs, using the
// handle's field mapper (the "db" tag by default). Names the argument does
// not provide stay verbatim in the recorded query. Slice arguments used for
// batch inserts are executed normally but recorded without values.
package sqlx
