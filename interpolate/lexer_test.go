package interpolate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceholders(t *testing.T) {
	type token struct {
		kind Kind
		name string
	}

	tests := []struct {
		name  string
		query string
		want  []token
	}{
		{
			name:  "given all marker styles, then returns them in template order",
			query: "SELECT ?, $1, :a, @b FROM t",
			want: []token{
				{kind: Positional},
				{kind: Ordinal, name: "1"},
				{kind: Named, name: "a"},
				{kind: Named, name: "b"},
			},
		},
		{
			name:  "given markers in strings and comments, then skips them",
			query: "SELECT 'x?', \"c:d\", `e@f` /* :y */ -- @z\n FROM t WHERE a = :a",
			want:  []token{{kind: Named, name: "a"}},
		},
		{
			name:  "given doubled quote inside literal, then stays inside the literal",
			query: "SELECT 'it''s :not' , :yes",
			want:  []token{{kind: Named, name: "yes"}},
		},
		{
			name:  "given casts, assignments and system variables, then ignores them",
			query: "SELECT a::int, @@version, @x := 1, :p",
			want: []token{
				{kind: Named, name: "x"},
				{kind: Named, name: "p"},
			},
		},
		{
			name:  "given dollar-quoted body, then skips it",
			query: "DO $body$ SELECT :inner $body$; SELECT $$ ? $$, $2",
			want:  []token{{kind: Ordinal, name: "2"}},
		},
		{
			name:  "given dotted name, then keeps the full path",
			query: "INSERT INTO t VALUES (:user.name, :user_id.)",
			want: []token{
				{kind: Named, name: "user.name"},
				{kind: Named, name: "user_id"},
			},
		},
		{
			name:  "given colon followed by digit, then it is not a placeholder",
			query: "SELECT arr[1:2]",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Placeholders(tt.query)

			require.Len(t, got, len(tt.want))
			for i, w := range tt.want {
				assert.Equal(t, w.kind, got[i].Kind)
				assert.Equal(t, w.name, got[i].Name)
			}
		})
	}
}

func TestPlaceholders_Offsets(t *testing.T) {
	query := "WHERE id = :identifier AND x = $12"

	got := Placeholders(query)

	require.Len(t, got, 2)
	assert.Equal(t, ":identifier", query[got[0].Start:got[0].End])
	assert.Equal(t, "$12", query[got[1].Start:got[1].End])
	assert.Equal(t, 12, got[1].Index)
}

func TestPlaceholdersFor(t *testing.T) {
	const query = `SELECT 'it\'s', ?`

	tests := []struct {
		name   string
		quoter Quoter
		want   int
	}{
		{
			name:   "given mysql, then a backslash-escaped quote stays inside the string",
			quoter: MySQL,
			want:   1,
		},
		{
			name:   "given no quoter, then uses backslash escapes like the fallback",
			quoter: nil,
			want:   1,
		},
		{
			name:   "given postgres, then a backslash is an ordinary character",
			quoter: Postgres,
			want:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PlaceholdersFor(query, tt.quoter)

			assert.Len(t, got, tt.want)
		})
	}

	t.Run("given backslash before a backtick, then it does not escape", func(t *testing.T) {
		got := PlaceholdersFor("SELECT `a\\`, ?", MySQL)

		assert.Len(t, got, 1)
	})
}
