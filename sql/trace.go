package sql

import (
	"regexp"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

var (
	// stringLiteralRegex matches single-quoted strings, including E'' escape
	// strings and doubled or backslash-escaped quotes.
	stringLiteralRegex = regexp.MustCompile(`[eE]?'(?:[^'\\]|\\.|'')*'`)

	// hexLiteralRegex matches 0x... and X'...' hex literals.
	hexLiteralRegex = regexp.MustCompile(`0[xX][0-9a-fA-F]+|[xX]'[0-9a-fA-F]*'`)

	// numericLiteralRegex matches integer and decimal literals.
	numericLiteralRegex = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)
)

// spanName returns the SQL operation of query, or "SQL" when it has none.
// Span names must not be empty.
func spanName(query string) string {
	if op := extractOperation(query); op != "" {
		return op
	}
	return "SQL"
}

// extractOperation returns the leading keyword of query in upper case.
// Leading whitespace, comments and opening parentheses are skipped.
//
//	extractOperation("-- list\nselect * from users") // "SELECT"
//	extractOperation("(SELECT 1) UNION (SELECT 2)")  // "SELECT"
//	extractOperation("")                             // ""
func extractOperation(query string) string {
	q := skipPreamble(query)

	end := strings.IndexFunc(q, func(r rune) bool {
		return !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
	})
	if end == -1 {
		end = len(q)
	}

	return strings.ToUpper(q[:end])
}

func skipPreamble(q string) string {
	for {
		q = strings.TrimLeft(q, " \t\r\n(")
		switch {
		case strings.HasPrefix(q, "--"):
			i := strings.IndexByte(q, '\n')
			if i == -1 {
				return ""
			}
			q = q[i+1:]
		case strings.HasPrefix(q, "/*"):
			i := strings.Index(q[2:], "*/")
			if i == -1 {
				return ""
			}
			q = q[i+4:]
		default:
			return q
		}
	}
}

// DefaultQuerySanitizer replaces literal values in a query with '?' so
// that they do not reach traces.
//
//	DefaultQuerySanitizer("SELECT * FROM users WHERE id = 123 AND name = 'john'")
//	// "SELECT * FROM users WHERE id = ? AND name = '?'"
//
// It is regular expression based and does not understand every dialect.
func DefaultQuerySanitizer(query string) string {
	query = hexLiteralRegex.ReplaceAllLiteralString(query, "?")
	query = stringLiteralRegex.ReplaceAllLiteralString(query, "'?'")
	query = numericLiteralRegex.ReplaceAllLiteralString(query, "?")
	return query
}

// baseAttributes returns the attributes shared by every span and metric.
func (cfg *config) baseAttributes() []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if cfg.DBSystem != "" {
		attrs = append(attrs, attribute.String("db.system", cfg.DBSystem))
	}
	if cfg.DBName != "" {
		attrs = append(attrs, attribute.String("db.name", cfg.DBName))
	}
	if cfg.InstanceName != "" {
		attrs = append(attrs, attribute.String("db.instance", cfg.InstanceName))
	}
	return attrs
}

// queryAttributes returns the attributes of a query span.
func (cfg *config) queryAttributes(query string) []attribute.KeyValue {
	attrs := cfg.baseAttributes()

	if !cfg.DisableQuery && query != "" {
		stmt := query
		if cfg.QuerySanitizer != nil {
			stmt = cfg.QuerySanitizer(query)
		}
		attrs = append(attrs, attribute.String("db.statement", stmt))
	}

	if op := extractOperation(query); op != "" {
		attrs = append(attrs, attribute.String("db.operation", op))
	}

	return attrs
}
