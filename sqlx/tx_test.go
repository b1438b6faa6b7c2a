package sqlx

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTx_NamedExecContext(t *testing.T) {
	tests := []struct {
		name     string
		mockFn   func(sqlmock.Sqlmock)
		finish   func(*Tx) error
		wantErr  assert.ErrorAssertionFunc
		wantRows int64
	}{
		{
			name: "given committed transaction, then records the named statement only",
			mockFn: func(m sqlmock.Sqlmock) {
				m.ExpectBegin()
				m.ExpectExec("DELETE FROM users WHERE id = ?").WithArgs(3).WillReturnResult(sqlmock.NewResult(0, 1))
				m.ExpectCommit()
			},
			finish:   func(tx *Tx) error { return tx.Commit() },
			wantErr:  assert.NoError,
			wantRows: 1,
		},
		{
			name: "given failed statement, then records the failure and rolls back",
			mockFn: func(m sqlmock.Sqlmock) {
				m.ExpectBegin()
				m.ExpectExec("DELETE FROM users WHERE id = ?").WithArgs(3).WillReturnError(assert.AnError)
				m.ExpectRollback()
			},
			finish:   func(tx *Tx) error { return tx.Rollback() },
			wantErr:  assert.Error,
			wantRows: -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, tel := newTestDB(t)
			tt.mockFn(mock)

			tx, err := db.BeginTxx(context.Background(), nil)
			require.NoError(t, err)

			_, err = tx.NamedExecContext(context.Background(), "DELETE FROM users WHERE id = :id", map[string]any{"id": 3})
			tt.wantErr(t, err)
			require.NoError(t, tt.finish(tx))
			require.NoError(t, mock.ExpectationsWereMet())

			records := tel.Executions()
			require.Len(t, records, 1)
			assert.Equal(t, "DELETE FROM users WHERE id = 3", records[0].Query)
			assert.Equal(t, tt.wantRows, records[0].RowsAffected)
		})
	}
}

func TestTx_NamedQueryContext(t *testing.T) {
	t.Run("given named query in transaction, then records interpolated query", func(t *testing.T) {
		db, mock, tel := newTestDB(t)
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id FROM users WHERE name = ? FOR UPDATE").
			WithArgs("ann").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectCommit()

		tx, err := db.BeginTxx(context.Background(), nil)
		require.NoError(t, err)

		rows, err := tx.NamedQueryContext(context.Background(),
			"SELECT id FROM users WHERE name = :name FOR UPDATE", user{Name: "ann"})
		require.NoError(t, err)
		require.NoError(t, rows.Close())
		require.NoError(t, tx.Commit())

		records := tel.Executions()
		require.Len(t, records, 1)
		assert.Equal(t, "SELECT id FROM users WHERE name = 'ann' FOR UPDATE", records[0].Query)
	})
}

func TestTx_PrepareNamedContext(t *testing.T) {
	t.Run("given statement prepared in transaction, then records its executions", func(t *testing.T) {
		db, mock, tel := newTestDB(t)
		mock.ExpectBegin()
		mock.ExpectPrepare("INSERT INTO users (id, name) VALUES (?, ?)").
			ExpectExec().
			WithArgs(8, "ivy").
			WillReturnResult(sqlmock.NewResult(8, 1))
		mock.ExpectCommit()

		tx, err := db.BeginTxx(context.Background(), nil)
		require.NoError(t, err)

		stmt, err := tx.PrepareNamedContext(context.Background(), "INSERT INTO users (id, name) VALUES (:id, :name)")
		require.NoError(t, err)

		_, err = stmt.ExecContext(context.Background(), user{ID: 8, Name: "ivy"})
		require.NoError(t, err)
		require.NoError(t, tx.Commit())
		require.NoError(t, mock.ExpectationsWereMet())

		records := tel.Executions()
		require.Len(t, records, 1)
		assert.Equal(t, "INSERT INTO users (id, name) VALUES (8, 'ivy')", records[0].Query)
		assert.Equal(t, int64(1), records[0].RowsAffected)
	})
}
