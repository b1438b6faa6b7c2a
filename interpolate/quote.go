package interpolate

import (
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
)

// Quoter renders a value as a dialect-correct SQL literal for the declared
// type. Drivers that can quote per connection may implement it on their
// driver.Conn.
type Quoter interface {
	Quote(value any, t ParamType) (string, error)
}

// QuoterFunc adapts a function to the Quoter interface.
type QuoterFunc func(value any, t ParamType) (string, error)

// Quote implements Quoter.
func (f QuoterFunc) Quote(value any, t ParamType) (string, error) {
	return f(value, t)
}

// Dialect quoters.
var (
	// Postgres quotes strings with lib/pq and renders booleans as TRUE/FALSE
	// and byte slices as bytea hex literals.
	Postgres Quoter = &dialect{
		quoteString: func(s string) string { return strings.TrimSpace(pq.QuoteLiteral(s)) },
		trueLit:     "TRUE",
		falseLit:    "FALSE",
		bytes:       func(b []byte) string { return `'\x` + hex.EncodeToString(b) + `'::bytea` },
		timeLayout:  "2006-01-02 15:04:05.999999-07:00",
	}

	// MySQL escapes strings with backslashes and renders byte slices as
	// X'..' hex literals.
	MySQL Quoter = &dialect{
		backslash:   true,
		quoteString: func(s string) string { return "'" + mysqlEscaper.Replace(s) + "'" },
		trueLit:     "1",
		falseLit:    "0",
		bytes:       hexLiteral,
		timeLayout:  timeLayout,
	}

	// ANSI doubles embedded single quotes. Used for SQLite, SQL Server,
	// Oracle and unknown standard-conforming databases.
	ANSI Quoter = &dialect{
		quoteString: func(s string) string { return "'" + strings.ReplaceAll(s, "'", "''") + "'" },
		trueLit:     "1",
		falseLit:    "0",
		bytes:       hexLiteral,
		timeLayout:  timeLayout,
	}

	// Fallback wraps the textual value in single quotes and backslash-escapes
	// quotes, backslashes and NUL bytes. It is not correct for every dialect
	// and only suits diagnostics.
	Fallback Quoter = fallback{}
)

// BackslashEscapes reports whether string literals in q's dialect use
// backslash escapes. Quoters opt in with a BackslashEscapes() bool method;
// a nil q means Fallback, which does.
func BackslashEscapes(q Quoter) bool {
	if q == nil {
		return true
	}
	e, ok := q.(interface{ BackslashEscapes() bool })
	return ok && e.BackslashEscapes()
}

type fallback struct{}

func (fallback) Quote(value any, _ ParamType) (string, error) {
	return "'" + slashEscaper.Replace(stringify(value)) + "'", nil
}

func (fallback) BackslashEscapes() bool { return true }

var (
	mysqlEscaper = strings.NewReplacer(
		"\x00", `\0`,
		"\n", `\n`,
		"\r", `\r`,
		`\`, `\\`,
		`'`, `\'`,
		`"`, `\"`,
		"\x1a", `\Z`,
	)

	slashEscaper = strings.NewReplacer(
		"\x00", `\0`,
		`\`, `\\`,
		`'`, `\'`,
		`"`, `\"`,
	)
)

func hexLiteral(b []byte) string {
	return "X'" + hex.EncodeToString(b) + "'"
}

// QuoterFor returns the quoter for a database system name as used with
// WithDBSystem ("postgresql", "mysql", "sqlite", ...). It returns nil for
// unknown systems so callers fall back to naive quoting.
func QuoterFor(system string) Quoter {
	switch strings.ToLower(strings.TrimSpace(system)) {
	case "postgresql", "postgres", "pgx", "pq", "cockroachdb", "redshift":
		return Postgres
	case "mysql", "mariadb", "tidb":
		return MySQL
	case "sqlite", "sqlite3", "mssql", "sqlserver", "oracle", "db2", "h2", "ansi":
		return ANSI
	default:
		return nil
	}
}

// dialect is a table-driven Quoter.
type dialect struct {
	backslash   bool
	quoteString func(string) string
	trueLit     string
	falseLit    string
	bytes       func([]byte) string
	timeLayout  string
}

// BackslashEscapes reports whether the dialect escapes with backslashes.
func (d *dialect) BackslashEscapes() bool {
	return d.backslash
}

// Quote implements Quoter.
func (d *dialect) Quote(v any, t ParamType) (string, error) {
	switch t {
	case TypeBool:
		if truthy(v) {
			return d.trueLit, nil
		}
		return d.falseLit, nil

	case TypeFloat:
		if f, ok := asFloat(v); ok {
			return strconv.FormatFloat(f, 'g', -1, 64), nil
		}

	case TypeLOB:
		switch x := v.(type) {
		case []byte:
			return d.bytes(x), nil
		case string:
			return d.bytes([]byte(x)), nil
		}

	case TypeTime:
		if tm, ok := v.(time.Time); ok {
			return d.quoteString(tm.Format(d.timeLayout)), nil
		}
	}

	return d.quoteString(stringify(v)), nil
}
