package interpolate

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLiteral(t *testing.T) {
	type args struct {
		binding Binding
		quoter  Quoter
	}

	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	str := "ref"
	var nilPtr *string

	tests := []struct {
		name string
		args args
		want string
	}{
		{
			name: "given nil value, then returns NULL",
			args: args{binding: Binding{Value: nil, Type: TypeInt}, quoter: ANSI},
			want: "NULL",
		},
		{
			name: "given nil pointer, then returns NULL",
			args: args{binding: Binding{Value: nilPtr, Type: TypeStr}, quoter: ANSI},
			want: "NULL",
		},
		{
			name: "given TypeNull with a value, then returns NULL",
			args: args{binding: Binding{Value: "x", Type: TypeNull}, quoter: ANSI},
			want: "NULL",
		},
		{
			name: "given zero integer, then renders 0 instead of NULL",
			args: args{binding: Binding{Value: 0, Type: TypeInt}, quoter: ANSI},
			want: "0",
		},
		{
			name: "given TypeInt with numeric prefix string, then casts leading digits",
			args: args{binding: Binding{Value: "12abc", Type: TypeInt}, quoter: ANSI},
			want: "12",
		},
		{
			name: "given TypeInt with float, then truncates",
			args: args{binding: Binding{Value: 3.9, Type: TypeInt}, quoter: ANSI},
			want: "3",
		},
		{
			name: "given TypeInt with bool, then renders 1",
			args: args{binding: Binding{Value: true, Type: TypeInt}, quoter: ANSI},
			want: "1",
		},
		{
			name: "given TypeInt with non-numeric string, then renders 0",
			args: args{binding: Binding{Value: "abc", Type: TypeInt}, quoter: nil},
			want: "0",
		},
		{
			name: "given TypeStr with integer value, then quotes it",
			args: args{binding: Binding{Value: 42, Type: TypeStr}, quoter: ANSI},
			want: "'42'",
		},
		{
			name: "given pointer value, then renders the pointee",
			args: args{binding: Binding{Value: &str, Type: TypeStr}, quoter: ANSI},
			want: "'ref'",
		},
		{
			name: "given postgres bool, then renders TRUE",
			args: args{binding: Binding{Value: true, Type: TypeBool}, quoter: Postgres},
			want: "TRUE",
		},
		{
			name: "given ANSI bool from string 0, then renders 0",
			args: args{binding: Binding{Value: "0", Type: TypeBool}, quoter: ANSI},
			want: "0",
		},
		{
			name: "given postgres bytes, then renders bytea hex literal",
			args: args{binding: Binding{Value: []byte{0xde, 0xad}, Type: TypeLOB}, quoter: Postgres},
			want: `'\xdead'::bytea`,
		},
		{
			name: "given mysql bytes, then renders X'' literal",
			args: args{binding: Binding{Value: []byte{0x01, 0xff}}, quoter: MySQL},
			want: "X'01ff'",
		},
		{
			name: "given postgres string with backslash, then uses escape string syntax",
			args: args{binding: Binding{Value: `a\b`, Type: TypeStr}, quoter: Postgres},
			want: `E'a\\b'`,
		},
		{
			name: "given mysql string with quote and backslash, then backslash escapes",
			args: args{binding: Binding{Value: `a'b\c`, Type: TypeStr}, quoter: MySQL},
			want: `'a\'b\\c'`,
		},
		{
			name: "given postgres time, then quotes with zone offset",
			args: args{binding: Binding{Value: ts}, quoter: Postgres},
			want: "'2024-01-02 03:04:05+00:00'",
		},
		{
			name: "given ANSI time, then quotes without zone",
			args: args{binding: Binding{Value: ts}, quoter: ANSI},
			want: "'2024-01-02 03:04:05'",
		},
		{
			name: "given float, then renders unquoted",
			args: args{binding: Binding{Value: 1.5}, quoter: ANSI},
			want: "1.5",
		},
		{
			name: "given NaN float, then quotes it",
			args: args{binding: Binding{Value: math.NaN()}, quoter: ANSI},
			want: "'NaN'",
		},
		{
			name: "given failing quoter, then uses fallback",
			args: args{
				binding: Binding{Value: `x"y`, Type: TypeStr},
				quoter: QuoterFunc(func(any, ParamType) (string, error) {
					return "", errors.New("no connection")
				}),
			},
			want: `'x\"y'`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Literal(tt.args.binding, tt.args.quoter)

			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQuoterFor(t *testing.T) {
	tests := []struct {
		system string
		want   Quoter
	}{
		{system: "postgresql", want: Postgres},
		{system: "PGX", want: Postgres},
		{system: "mysql", want: MySQL},
		{system: "mariadb", want: MySQL},
		{system: "sqlite", want: ANSI},
		{system: "mssql", want: ANSI},
		{system: "", want: nil},
		{system: "unknown", want: nil},
	}

	for _, tt := range tests {
		t.Run("given "+tt.system+", then returns matching quoter", func(t *testing.T) {
			assert.Equal(t, tt.want, QuoterFor(tt.system))
		})
	}
}

func TestTypeOf(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  ParamType
	}{
		{name: "nil", value: nil, want: TypeNull},
		{name: "bool", value: true, want: TypeBool},
		{name: "int64", value: int64(1), want: TypeInt},
		{name: "uint8", value: uint8(1), want: TypeInt},
		{name: "float32", value: float32(1), want: TypeFloat},
		{name: "string", value: "s", want: TypeStr},
		{name: "bytes", value: []byte("b"), want: TypeLOB},
		{name: "time", value: time.Now(), want: TypeTime},
		{name: "struct", value: struct{}{}, want: TypeStr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TypeOf(tt.value))
		})
	}
}
