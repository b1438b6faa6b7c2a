// Package database is the demo workload: a users table driven through the
// instrumented sqlx wrapper.
package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // registers "sqlite"

	sqlshadow "github.com/kroma-labs/sqlshadow/sql"
	shadowsqlx "github.com/kroma-labs/sqlshadow/sqlx"
)

// DriverName is the database/sql driver the demo runs on.
const DriverName = "sqlite"

func init() {
	sqlx.BindDriver(DriverName, sqlx.QUESTION)
}

// DB is the demo store.
type DB struct {
	*shadowsqlx.DB
	logger zerolog.Logger
}

// New opens dsn with modernc SQLite. In-memory databases are limited to one
// connection so that every statement sees the same data.
func New(ctx context.Context, dsn string, logger zerolog.Logger, opts ...sqlshadow.Option) (*DB, error) {
	opts = append([]sqlshadow.Option{sqlshadow.WithDBSystem("sqlite")}, opts...)

	db, err := shadowsqlx.Open(DriverName, dsn, opts...)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", DriverName, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", DriverName, err)
	}

	return &DB{DB: db, logger: logger}, nil
}
