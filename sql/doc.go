// Package sql records every statement executed through database/sql
// together with a "shadow" copy of the query in which each bound
// parameter has been replaced by its SQL literal.
//
// # Features
//
//   - Execution log with interpolated query, timing, error and row count
//   - Slow-query threshold with ordered callbacks
//   - Call stacks of the execution and of the prepare call
//   - OpenTelemetry spans and the db.client.operation.duration histogram
//   - Prometheus collector and NDJSON export of the log
//   - Full compatibility with database/sql; nothing sent to the database changes
//
// # Quick Start
//
//	import sqlshadow "github.com/kroma-labs/sqlshadow/sql"
//
//	tel := sqlshadow.NewTelemetry(
//	    sqlshadow.WithSlowQueryThreshold(250 * time.Millisecond),
//	)
//	tel.OnSlowQuery(sqlshadow.LogSlowQueries(logger, nil))
//
//	db, err := sqlshadow.Open("postgres", dsn,
//	    sqlshadow.WithDBSystem("postgresql"),
//	    sqlshadow.WithTelemetry(tel),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	db.ExecContext(ctx, "UPDATE users SET name = $1 WHERE id = $2", "O'Brien", 7)
//
//	for _, r := range tel.Executions() {
//	    fmt.Println(r.Query) // UPDATE users SET name = 'O''Brien' WHERE id = 7
//	}
//
// # Explicit bindings
//
// Stmt tracks parameters bound by placeholder, including references that
// are read at execution time:
//
//	rec, _ := sqlshadow.Instrumentation(db)
//	stmt, _ := rec.Prepare(ctx, db, "SELECT * FROM users WHERE name = $1")
//	stmt.BindParam("1", &name, interpolate.TypeStr)
//
//	name = "alice"
//	rows, _ := stmt.QueryContext(ctx)
//	fmt.Println(stmt.InterpolatedQuery()) // SELECT * FROM users WHERE name = 'alice'
//
// # Quoting
//
// Literals are rendered by the connection when its driver.Conn implements
// interpolate.Quoter, otherwise by WithQuoter, otherwise by the dialect
// named by WithDBSystem, and finally by interpolate.Fallback.
//
// # Observability
//
// Traces:
//   - Span per execution named after the operation
//   - Attributes: db.system, db.name, db.instance, db.statement, db.operation
//
// Metrics:
//   - db.client.operation.duration (histogram by operation and status)
//   - db.client.slow_queries (counter by operation)
//   - db.client.connections.* via RecordPoolMetrics
package sql
