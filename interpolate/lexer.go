package interpolate

import (
	"strconv"
	"strings"
)

// Kind classifies a placeholder token.
type Kind int

const (
	// Positional is a bare '?' marker.
	Positional Kind = iota
	// Ordinal is a '$N' marker.
	Ordinal
	// Named is a ':name' or '@name' marker.
	Named
)

// Placeholder is a placeholder token found in a query template.
// Start and End are byte offsets of the whole token, marker included.
type Placeholder struct {
	Kind  Kind
	Name  string // name without marker for Named, digits for Ordinal
	Index int    // ordinal value for Ordinal tokens
	Start int
	End   int
}

// Placeholders scans query and returns its placeholder tokens in template
// order. Quoted strings, quoted identifiers, dollar-quoted bodies and
// comments are skipped. Inside quotes only a doubled quote is an escape.
func Placeholders(query string) []Placeholder {
	return scan(query, false)
}

// PlaceholdersFor is Placeholders for the dialect of q. When q escapes
// with backslashes (see BackslashEscapes), "\'" inside a '...' or "..."
// string does not end it.
func PlaceholdersFor(query string, q Quoter) []Placeholder {
	return scan(query, BackslashEscapes(q))
}

func scan(query string, backslash bool) []Placeholder {
	var out []Placeholder
	n := len(query)

	for i := 0; i < n; {
		c := query[i]
		switch {
		case c == '\'' || c == '"':
			i = skipQuoted(query, i, c, backslash)

		case c == '`':
			i = skipQuoted(query, i, c, false)

		case c == '-' && i+1 < n && query[i+1] == '-':
			i = skipLineComment(query, i)

		case c == '/' && i+1 < n && query[i+1] == '*':
			i = skipBlockComment(query, i)

		case c == '?':
			out = append(out, Placeholder{Kind: Positional, Start: i, End: i + 1})
			i++

		case c == '$':
			if j := scanDigits(query, i+1); j > i+1 {
				idx, err := strconv.Atoi(query[i+1 : j])
				if err == nil {
					out = append(out, Placeholder{
						Kind:  Ordinal,
						Name:  query[i+1 : j],
						Index: idx,
						Start: i,
						End:   j,
					})
				}
				i = j
				continue
			}
			i = skipDollarQuoted(query, i)

		case c == ':' || c == '@':
			// "::type" casts and "@@system" variables.
			if i+1 < n && query[i+1] == c {
				i += 2
				continue
			}
			j := scanName(query, i+1)
			if j == i+1 {
				i++
				continue
			}
			out = append(out, Placeholder{
				Kind:  Named,
				Name:  query[i+1 : j],
				Start: i,
				End:   j,
			})
			i = j

		default:
			i++
		}
	}

	return out
}

func isWordStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isWord(c byte) bool {
	return isWordStart(c) || (c >= '0' && c <= '9')
}

// scanName returns the end of a placeholder name starting at i, or i when
// there is none. Dotted paths (":user.name") are accepted.
func scanName(s string, i int) int {
	if i >= len(s) || !isWordStart(s[i]) {
		return i
	}
	j := i + 1
	for j < len(s) {
		switch {
		case isWord(s[j]):
			j++
		case s[j] == '.' && j+1 < len(s) && isWordStart(s[j+1]):
			j += 2
		default:
			return j
		}
	}
	return j
}

func scanDigits(s string, i int) int {
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return i
}

// skipQuoted returns the offset just past the quoted run opened at i.
// A doubled quote character is an escaped quote, and so is a backslash
// followed by any character when backslash is set.
func skipQuoted(s string, i int, quote byte, backslash bool) int {
	j := i + 1
	for j < len(s) {
		if backslash && s[j] == '\\' {
			j += 2
			continue
		}
		if s[j] == quote {
			if j+1 < len(s) && s[j+1] == quote {
				j += 2
				continue
			}
			return j + 1
		}
		j++
	}
	return len(s)
}

func skipLineComment(s string, i int) int {
	if k := strings.IndexByte(s[i:], '\n'); k >= 0 {
		return i + k + 1
	}
	return len(s)
}

func skipBlockComment(s string, i int) int {
	if k := strings.Index(s[i+2:], "*/"); k >= 0 {
		return i + 2 + k + 2
	}
	return len(s)
}

// skipDollarQuoted skips a PostgreSQL $tag$...$tag$ body opened at i.
// A lone '$' is consumed as an ordinary character.
func skipDollarQuoted(s string, i int) int {
	j := i + 1
	for j < len(s) && isWord(s[j]) {
		j++
	}
	if j >= len(s) || s[j] != '$' {
		return i + 1
	}

	tag := s[i : j+1]
	if k := strings.Index(s[j+1:], tag); k >= 0 {
		return j + 1 + k + len(tag)
	}
	return len(s)
}
