package sqlx

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"strings"

	"github.com/jmoiron/sqlx/reflectx"

	"github.com/kroma-labs/sqlshadow/interpolate"
	sqlshadow "github.com/kroma-labs/sqlshadow/sql"
)

// defaultMapper matches the mapper sqlx installs on new handles.
var defaultMapper = reflectx.NewMapperFunc("db", strings.ToLower)

// start begins recording a named execution of query with the values arg
// provides. The returned context suppresses the driver-level record of the
// same execution.
func start(
	ctx context.Context,
	rec *sqlshadow.Recorder,
	m *reflectx.Mapper,
	query string,
	arg any,
	createdBy sqlshadow.Frames,
) (context.Context, *sqlshadow.Execution) {
	ctx, exec := rec.Start(ctx, query)
	exec.Bindings = namedBindings(m, query, arg)
	exec.CreatedBy = createdBy
	return sqlshadow.SkipInstrumentation(ctx), exec
}

// namedParams returns the distinct named placeholders of query in template
// order.
func namedParams(query string) []string {
	var names []string
	seen := make(map[string]struct{})
	for _, p := range interpolate.Placeholders(query) {
		if p.Kind != interpolate.Named {
			continue
		}
		if _, ok := seen[p.Name]; ok {
			continue
		}
		seen[p.Name] = struct{}{}
		names = append(names, p.Name)
	}
	return names
}

// namedBindings reads the value of every named placeholder of query from
// arg, which is a map with string keys or a struct mapped by m. Names arg
// does not provide stay unbound. Other argument kinds, such as the slices
// used for batch inserts, bind nothing.
func namedBindings(m *reflectx.Mapper, query string, arg any) interpolate.Bindings {
	names := namedParams(query)
	b := make(interpolate.Bindings, len(names))
	if arg == nil || len(names) == 0 {
		return b
	}

	v := reflect.Indirect(reflect.ValueOf(arg))
	if !v.IsValid() {
		return b
	}

	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return b
		}
		for _, name := range names {
			mv := v.MapIndex(reflect.ValueOf(name).Convert(v.Type().Key()))
			if mv.IsValid() {
				b.Set(name, mv.Interface(), interpolate.TypeAuto)
			}
		}

	case reflect.Struct:
		if m == nil {
			m = defaultMapper
		}
		for i, traversal := range m.TraversalsByName(v.Type(), names) {
			if len(traversal) == 0 {
				continue
			}
			fv := reflectx.FieldByIndexesReadOnly(v, traversal)
			if fv.IsValid() && fv.CanInterface() {
				b.Set(names[i], fv.Interface(), interpolate.TypeAuto)
			}
		}
	}

	return b
}

// resultRows returns the affected row count of res, or -1 when unknown.
func resultRows(res sql.Result) int64 {
	if res == nil {
		return -1
	}
	n, err := res.RowsAffected()
	if err != nil {
		return -1
	}
	return n
}

// scanErr drops sql.ErrNoRows, which reports an empty result rather than a
// failed execution.
func scanErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	return err
}
