package interpolate

import (
	"slices"
	"strconv"
	"strings"
)

// Interpolate returns query with every bound placeholder replaced by the
// literal form of its binding.
//
// Positional '?' markers take the positional bindings in ascending key
// order, one per marker, in template order. '$N' markers take the N-th of
// those positional bindings, which is the argument a driver receives at
// position N. Named markers take the binding of their name; every occurrence
// of a name is replaced with the same value. Placeholders without a binding
// are left verbatim.
//
// Literals are spliced between slices of the template, so characters such
// as '$', '%' or '\' in a value are copied as-is.
func Interpolate(query string, params Bindings, q Quoter) string {
	if len(params) == 0 {
		return query
	}

	tokens := PlaceholdersFor(query, q)
	if len(tokens) == 0 {
		return query
	}

	positional, named := split(params)

	var b strings.Builder
	b.Grow(len(query) + 16*len(tokens))

	last, next := 0, 0
	for _, tok := range tokens {
		var (
			bind Binding
			ok   bool
		)

		switch tok.Kind {
		case Positional:
			if next < len(positional) {
				bind, ok = positional[next], true
				next++
			}
		case Ordinal:
			if tok.Index >= 1 && tok.Index <= len(positional) {
				bind, ok = positional[tok.Index-1], true
			}
		case Named:
			bind, ok = named[tok.Name]
		}

		if !ok {
			continue
		}

		b.WriteString(query[last:tok.Start])
		b.WriteString(Literal(bind, q))
		last = tok.End
	}
	b.WriteString(query[last:])

	return b.String()
}

// split partitions params into positional bindings ordered by index and a
// name lookup for named markers.
func split(params Bindings) ([]Binding, map[string]Binding) {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	// Deterministic precedence when both ":id" and "id" are bound: the
	// marker-less key sorts last and wins.
	slices.Sort(keys)

	type indexed struct {
		idx  int
		bind Binding
	}
	var pos []indexed
	named := make(map[string]Binding)

	for _, k := range keys {
		if IsPositional(k) {
			idx, err := strconv.Atoi(k)
			if err != nil {
				continue
			}
			pos = append(pos, indexed{idx: idx, bind: params[k]})
			continue
		}
		named[Name(k)] = params[k]
	}

	slices.SortFunc(pos, func(a, b indexed) int { return a.idx - b.idx })

	positional := make([]Binding, len(pos))
	for i, p := range pos {
		positional[i] = p.bind
	}

	return positional, named
}
