package sqlx

import (
	"database/sql"
	"testing"

	"github.com/jmoiron/sqlx/reflectx"
	"github.com/stretchr/testify/assert"

	"github.com/kroma-labs/sqlshadow/interpolate"
)

type Audit struct {
	By string `db:"by"`
}

type account struct {
	Audit
	ID     int64          `db:"id"`
	Email  sql.NullString `db:"email"`
	Secret string         `db:"-"`
}

type label string

func TestNamedParams(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{
			name:  "given repeated names, then returns each once in order",
			query: "SELECT :b, :a, :b",
			want:  []string{"b", "a"},
		},
		{
			name:  "given names in strings and casts, then skips them",
			query: "SELECT ':x', id::text FROM t WHERE a = :a",
			want:  []string{"a"},
		},
		{
			name:  "given positional placeholders only, then returns nothing",
			query: "SELECT ? , $1",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, namedParams(tt.query))
		})
	}
}

func TestNamedBindings(t *testing.T) {
	mapper := reflectx.NewMapperFunc("db", func(s string) string { return s })
	query := "UPDATE accounts SET email = :email, by = :by WHERE id = :id AND secret = :Secret"

	tests := []struct {
		name string
		arg  any
		want interpolate.Bindings
	}{
		{
			name: "given struct with embedded fields, then reads every mapped name",
			arg: account{
				Audit: Audit{By: "ops"},
				ID:    5,
				Email: sql.NullString{String: "a@b.c", Valid: true},
			},
			want: interpolate.Bindings{
				"email": {Value: sql.NullString{String: "a@b.c", Valid: true}},
				"by":    {Value: "ops"},
				"id":    {Value: int64(5)},
			},
		},
		{
			name: "given pointer to struct, then dereferences it",
			arg:  &account{ID: 6},
			want: interpolate.Bindings{
				"email": {Value: sql.NullString{}},
				"by":    {Value: ""},
				"id":    {Value: int64(6)},
			},
		},
		{
			name: "given map, then reads present keys only",
			arg:  map[string]any{"id": 7, "email": nil},
			want: interpolate.Bindings{
				"id":    {Value: 7},
				"email": {Value: nil},
			},
		},
		{
			name: "given map with named string keys, then converts the keys",
			arg:  map[label]string{"by": "cron"},
			want: interpolate.Bindings{"by": {Value: "cron"}},
		},
		{
			name: "given slice, then binds nothing",
			arg:  []account{{ID: 1}},
			want: interpolate.Bindings{},
		},
		{
			name: "given nil, then binds nothing",
			arg:  nil,
			want: interpolate.Bindings{},
		},
		{
			name: "given nil pointer, then binds nothing",
			arg:  (*account)(nil),
			want: interpolate.Bindings{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, namedBindings(mapper, query, tt.arg))
		})
	}
}

func TestNamedBindings_Interpolated(t *testing.T) {
	b := namedBindings(nil, "SELECT * FROM t WHERE email = :email", account{
		Email: sql.NullString{String: "x@y.z", Valid: true},
	})

	got := interpolate.Interpolate("SELECT * FROM t WHERE email = :email", b, interpolate.Postgres)

	assert.Equal(t, "SELECT * FROM t WHERE email = 'x@y.z'", got)
}
