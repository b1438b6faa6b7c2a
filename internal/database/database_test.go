package database

import (
	"context"
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sqlshadow "github.com/kroma-labs/sqlshadow/sql"
)

func newTestDB(t *testing.T) (*DB, *sqlshadow.Telemetry) {
	t.Helper()

	tel := sqlshadow.NewTelemetry()
	db, err := New(context.Background(), ":memory:", zerolog.Nop(), sqlshadow.WithTelemetry(tel))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.CreateTable(context.Background()))
	tel.Reset()
	return db, tel
}

func queries(tel *sqlshadow.Telemetry) []string {
	var out []string
	for _, r := range tel.Executions() {
		out = append(out, r.Query)
	}
	return out
}

func TestDB_InsertUsers(t *testing.T) {
	db, tel := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.InsertUsers(ctx))
	require.NoError(t, db.InsertUsers(ctx))

	users, err := db.QueryUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 3)

	assert.Contains(t, queries(tel),
		"INSERT INTO users (name, email) VALUES ('O''Brien', 'obrien@example.com') ON CONFLICT (email) DO NOTHING")
	assert.Contains(t, queries(tel), "SELECT id, name, email FROM users ORDER BY id LIMIT 10")
}

func TestDB_GetUser(t *testing.T) {
	db, tel := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.InsertUsers(ctx))
	tel.Reset()

	t.Run("given existing user, then returns it", func(t *testing.T) {
		u, err := db.GetUser(ctx, "Bob")

		require.NoError(t, err)
		assert.Equal(t, "bob@example.com", u.Email)
		assert.Equal(t, []string{"SELECT id, name, email FROM users WHERE name = 'Bob'"}, queries(tel))
	})

	t.Run("given missing user, then returns ErrNoRows", func(t *testing.T) {
		_, err := db.GetUser(ctx, "Nobody")

		assert.ErrorIs(t, err, sql.ErrNoRows)
	})
}

func TestDB_InsertWithTransaction(t *testing.T) {
	db, tel := newTestDB(t)

	require.NoError(t, db.InsertWithTransaction(context.Background()))

	assert.Contains(t, queries(tel), "SELECT id, name, email FROM users WHERE email = 'tx@example.com'")
}

func TestDB_SlowScan(t *testing.T) {
	db, _ := newTestDB(t)

	sum, err := db.SlowScan(context.Background(), 100)

	require.NoError(t, err)
	assert.Equal(t, int64(5050), sum)
}

func TestDB_FailingQuery(t *testing.T) {
	db, tel := newTestDB(t)

	err := db.FailingQuery(context.Background())

	require.Error(t, err)
	records := tel.Executions()
	require.Len(t, records, 1)
	assert.Equal(t, "DELETE FROM missing_table WHERE id = 42", records[0].Query)
	assert.Equal(t, "HY000", records[0].ErrorInfo.SQLState)
}
