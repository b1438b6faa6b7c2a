package interpolate

import (
	"database/sql/driver"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// ParamType is the declared type of a bound parameter. It only affects how
// the value is rendered in the interpolated query.
type ParamType int

const (
	// TypeAuto infers the type from the Go value at render time.
	TypeAuto ParamType = iota
	TypeNull
	TypeBool
	TypeInt
	TypeStr
	TypeLOB
	TypeFloat
	TypeTime
)

// String implements fmt.Stringer.
func (t ParamType) String() string {
	switch t {
	case TypeAuto:
		return "auto"
	case TypeNull:
		return "null"
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeStr:
		return "str"
	case TypeLOB:
		return "lob"
	case TypeFloat:
		return "float"
	case TypeTime:
		return "time"
	default:
		return "ParamType(" + strconv.Itoa(int(t)) + ")"
	}
}

// TypeOf infers the ParamType of a Go value.
func TypeOf(v any) ParamType {
	switch v.(type) {
	case nil:
		return TypeNull
	case bool:
		return TypeBool
	case string:
		return TypeStr
	case []byte:
		return TypeLOB
	case time.Time:
		return TypeTime
	}

	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return TypeInt
	case reflect.Float32, reflect.Float64:
		return TypeFloat
	case reflect.Bool:
		return TypeBool
	case reflect.String:
		return TypeStr
	default:
		return TypeStr
	}
}

// maxDeref bounds pointer and driver.Valuer chains.
const maxDeref = 8

// Binding is one bound parameter. Value may be a pointer, in which case the
// pointee is read when the query is interpolated (reference binding).
type Binding struct {
	Value any
	Type  ParamType
}

// Resolved returns the value to render. Pointers are dereferenced and
// driver.Valuer implementations are evaluated; nil pointers resolve to nil.
func (b Binding) Resolved() any {
	v := b.Value
	for range maxDeref {
		if v == nil {
			return nil
		}

		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Pointer && rv.IsNil() {
			return nil
		}

		if valuer, ok := v.(driver.Valuer); ok {
			val, err := valuer.Value()
			if err != nil {
				return v
			}
			v = val
			continue
		}

		if rv.Kind() != reflect.Pointer {
			return v
		}
		v = rv.Elem().Interface()
	}
	return v
}

// Bindings maps placeholders to their current binding. Positional
// placeholders use their decimal index as key; named placeholders use the
// name without its leading marker.
type Bindings map[string]Binding

// Set records or overwrites the binding for placeholder. Named
// placeholders are stored by bare name, so "id", ":id" and "@id" share one
// entry and the latest Set wins.
func (b Bindings) Set(placeholder string, value any, t ParamType) {
	if !IsPositional(placeholder) {
		name := Name(placeholder)
		delete(b, ":"+name)
		delete(b, "@"+name)
		placeholder = name
	}
	b[placeholder] = Binding{Value: value, Type: t}
}

// Clone returns a shallow copy of b.
func (b Bindings) Clone() Bindings {
	out := make(Bindings, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// IsPositional reports whether key names a positional placeholder, that is,
// whether it consists only of decimal digits.
func IsPositional(key string) bool {
	if key == "" {
		return false
	}
	for i := 0; i < len(key); i++ {
		if key[i] < '0' || key[i] > '9' {
			return false
		}
	}
	return true
}

// Name strips a leading ':' or '@' marker from a named placeholder key.
func Name(key string) string {
	if strings.HasPrefix(key, ":") || strings.HasPrefix(key, "@") {
		return key[1:]
	}
	return key
}
