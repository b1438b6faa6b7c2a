package database

import (
	"context"
	"errors"
	"fmt"
)

// User represents a user in the database
type User struct {
	ID    int    `db:"id"`
	Name  string `db:"name"`
	Email string `db:"email"`
}

// CreateTable creates the users table if it doesn't exist
func (db *DB) CreateTable(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id    INTEGER PRIMARY KEY AUTOINCREMENT,
			name  TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE
		)
	`)
	return err
}

// InsertUsers inserts sample users with a named statement, one execution
// and one record per user.
func (db *DB) InsertUsers(ctx context.Context) error {
	users := []User{
		{Name: "Alice", Email: "alice@example.com"},
		{Name: "Bob", Email: "bob@example.com"},
		{Name: "O'Brien", Email: "obrien@example.com"},
	}

	stmt, err := db.PrepareNamedContext(ctx,
		"INSERT INTO users (name, email) VALUES (:name, :email) ON CONFLICT (email) DO NOTHING")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, user := range users {
		if _, err := stmt.ExecContext(ctx, user); err != nil {
			return err
		}
	}
	db.logger.Debug().Str("query", stmt.InterpolatedQuery()).Msg("inserted users")
	return nil
}

// QueryUsers queries users using sqlx's SelectContext (scans into slice)
func (db *DB) QueryUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := db.SelectContext(ctx, &users, "SELECT id, name, email FROM users ORDER BY id LIMIT ?", 10); err != nil {
		return nil, err
	}
	return users, nil
}

// GetUser returns the user with the given name.
func (db *DB) GetUser(ctx context.Context, name string) (*User, error) {
	stmt, err := db.PrepareNamedContext(ctx, "SELECT id, name, email FROM users WHERE name = :name")
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	var user User
	if err := stmt.GetContext(ctx, &user, map[string]any{"name": name}); err != nil {
		return nil, err
	}
	return &user, nil
}

// InsertWithTransaction inserts and reads back a user inside a transaction.
func (db *DB) InsertWithTransaction(ctx context.Context) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	u := User{Name: "Transaction User", Email: "tx@example.com"}
	if _, err = tx.NamedExecContext(ctx,
		"INSERT INTO users (name, email) VALUES (:name, :email) ON CONFLICT (email) DO NOTHING", u); err != nil {
		return err
	}

	var got User
	if err = tx.GetContext(ctx, &got, "SELECT id, name, email FROM users WHERE email = ?", u.Email); err != nil {
		return err
	}

	return tx.Commit()
}

// SlowScan runs a recursive query sized to take noticeable time, so that
// the slow-query path has something to report.
func (db *DB) SlowScan(ctx context.Context, n int) (int64, error) {
	var sum int64
	err := db.GetContext(ctx, &sum, `
		WITH RECURSIVE seq(x) AS (SELECT 1 UNION ALL SELECT x + 1 FROM seq WHERE x < ?)
		SELECT SUM(x) FROM seq`, n)
	if err != nil {
		return 0, fmt.Errorf("slow scan: %w", err)
	}
	return sum, nil
}

// FailingQuery runs a statement against a missing table. Failures are
// recorded like any other execution.
func (db *DB) FailingQuery(ctx context.Context) error {
	_, err := db.ExecContext(ctx, "DELETE FROM missing_table WHERE id = ?", 42)
	return err
}
