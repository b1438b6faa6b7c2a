package interpolate

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// timeLayout is used when a time.Time is rendered as a string.
const timeLayout = "2006-01-02 15:04:05.999999"

// Literal renders a single binding as an SQL literal.
//
//   - a nil value (after dereferencing) renders as NULL
//   - TypeNull renders as NULL
//   - TypeInt renders as an unquoted integer cast of the value
//   - anything else is quoted by q, or by Fallback when q is nil or fails
func Literal(b Binding, q Quoter) string {
	v := b.Resolved()
	if v == nil {
		return "NULL"
	}

	t := b.Type
	if t == TypeAuto {
		t = TypeOf(v)
	}

	switch t {
	case TypeNull:
		return "NULL"
	case TypeInt:
		return strconv.FormatInt(toInt64(v), 10)
	}

	if q != nil {
		if s, err := q.Quote(v, t); err == nil {
			return s
		}
	}

	s, _ := Fallback.Quote(v, t)
	return s
}

// toInt64 casts v to an integer the way a loosely typed host would: floats
// truncate, booleans become 0 or 1 and strings contribute their leading
// integer digits.
func toInt64(v any) int64 {
	switch x := v.(type) {
	case bool:
		if x {
			return 1
		}
		return 0
	case string:
		return leadingInt(x)
	case []byte:
		return leadingInt(string(x))
	case time.Time:
		return x.Unix()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return math.MaxInt64
		}
		return int64(u)
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		switch {
		case math.IsNaN(f):
			return 0
		case f >= math.MaxInt64:
			return math.MaxInt64
		case f <= math.MinInt64:
			return math.MinInt64
		}
		return int64(f)
	case reflect.Bool:
		if rv.Bool() {
			return 1
		}
		return 0
	case reflect.String:
		return leadingInt(rv.String())
	}

	return leadingInt(fmt.Sprint(v))
}

// leadingInt parses the optional sign and digits at the start of s,
// ignoring leading whitespace. It saturates instead of overflowing.
func leadingInt(s string) int64 {
	s = strings.TrimLeft(s, " \t\n\r\v\f")

	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0
	}

	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		if s[0] == '-' {
			return math.MinInt64
		}
		return math.MaxInt64
	}
	return n
}

// stringify returns the textual form of v used inside a quoted literal.
func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		if x {
			return "1"
		}
		return "0"
	case time.Time:
		return x.Format(timeLayout)
	case fmt.Stringer:
		return x.String()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, rv.Type().Bits())
	case reflect.String:
		return rv.String()
	}

	return fmt.Sprint(v)
}

// truthy reports the boolean meaning of v.
func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return x != "" && x != "0"
	case []byte:
		return len(x) > 0 && string(x) != "0"
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Bool:
		return rv.Bool()
	}
	return true
}

// asFloat returns v as a finite float64 when it is numeric.
func asFloat(v any) (float64, bool) {
	var f float64

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		f = rv.Float()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		f = float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		f = float64(rv.Uint())
	case reflect.String:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(rv.String()), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
