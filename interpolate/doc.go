// Package interpolate rebuilds a fully literal SQL statement from a
// parameterized query and its bound parameters.
//
// The result is meant for logs and diagnostics only. It is never sent to a
// database: the quoting rules used here are best-effort and must not be
// relied on for security.
//
// # Placeholders
//
// The scanner understands the placeholder styles used by Go database drivers:
//
//	?        positional, bound by ascending numeric key
//	$1, $2   ordinal (PostgreSQL), $N takes the N-th positional binding
//	:name    named (sqlx, Oracle), bound by key "name" or ":name"
//	@name    named (SQL Server, SQLite), bound by key "name" or "@name"
//
// Placeholders inside quoted strings, quoted identifiers, dollar-quoted
// bodies and comments are ignored, as are PostgreSQL casts (::int) and
// MySQL system variables (@@version). Names are matched as whole words, so
// binding :id never touches :identifier.
// With a quoter that escapes with backslashes, such as MySQL, \' does
// not end a string literal.
//
// # Quoting
//
// Values are rendered by a Quoter. Dialect quoters are available through
// QuoterFor; when none is supplied Literal falls back to wrapping the value
// in single quotes with backslash escaping.
//
//	b := interpolate.Bindings{}
//	b.Set(":id", 5, interpolate.TypeInt)
//	b.Set(":name", "O'Brien", interpolate.TypeStr)
//
//	interpolate.Interpolate(
//	    "SELECT * FROM t WHERE id = :id AND name = :name",
//	    b, interpolate.QuoterFor("postgresql"),
//	)
//	// SELECT * FROM t WHERE id = 5 AND name = 'O''Brien'
package interpolate
