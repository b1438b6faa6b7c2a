package sql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kroma-labs/sqlshadow/sql/mocks"
)

// testDriver is a simple driver that returns a mock connection.
type testDriver struct {
	conn    driver.Conn
	openErr error
}

func (d *testDriver) Open(_ string) (driver.Conn, error) {
	if d.openErr != nil {
		return nil, d.openErr
	}
	return d.conn, nil
}

// testConnector is a connector that records whether it was closed.
type testConnector struct {
	driver *testDriver
	closed bool
}

func (c *testConnector) Connect(context.Context) (driver.Conn, error) { return c.driver.Open("") }
func (c *testConnector) Driver() driver.Driver                        { return c.driver }
func (c *testConnector) Close() error {
	c.closed = true
	return nil
}

func TestWrapDriver(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{
			name: "given driver with options, then returns wrapped driver",
			opts: []Option{WithDBSystem("postgresql")},
		},
		{
			name: "given driver without options, then returns wrapped driver",
			opts: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := WrapDriver(&testDriver{conn: mocks.NewDriverConn(t)}, tt.opts...)

			require.NotNil(t, wrapped)
			assert.Implements(t, (*driver.DriverContext)(nil), wrapped)
		})
	}
}

func TestOtelDriver_Open(t *testing.T) {
	tests := []struct {
		name    string
		openErr error
		wantErr assert.ErrorAssertionFunc
	}{
		{
			name:    "given successful open, then returns wrapped connection",
			wantErr: assert.NoError,
		},
		{
			name:    "given error on open, then returns error",
			openErr: assert.AnError,
			wantErr: assert.Error,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mockConn driver.Conn
			if tt.openErr == nil {
				mockConn = mocks.NewDriverConn(t)
			}
			drv := newOtelDriver(&testDriver{conn: mockConn, openErr: tt.openErr}, newConfig())

			conn, err := drv.Open("test-dsn")

			tt.wantErr(t, err)
			if err == nil {
				assert.IsType(t, &otelConn{}, conn)
			}
		})
	}
}

func TestOtelDriver_OpenConnector(t *testing.T) {
	t.Run("given driver without DriverContext, then returns dsnConnector", func(t *testing.T) {
		drv := newOtelDriver(&testDriver{conn: mocks.NewDriverConn(t)}, newConfig())

		connector, err := drv.OpenConnector("test-dsn")

		require.NoError(t, err)
		assert.IsType(t, &dsnConnector{}, connector)
		assert.Equal(t, drv, connector.Driver())
	})
}

func TestDsnConnector_Connect(t *testing.T) {
	tests := []struct {
		name    string
		openErr error
		wantErr assert.ErrorAssertionFunc
	}{
		{
			name:    "given valid dsn, then returns wrapped connection",
			wantErr: assert.NoError,
		},
		{
			name:    "given error on connect, then returns error",
			openErr: assert.AnError,
			wantErr: assert.Error,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mockConn driver.Conn
			if tt.openErr == nil {
				mockConn = mocks.NewDriverConn(t)
			}
			drv := newOtelDriver(&testDriver{conn: mockConn, openErr: tt.openErr}, newConfig())
			connector := &dsnConnector{dsn: "test-dsn", driver: drv}

			conn, err := connector.Connect(context.TODO())

			tt.wantErr(t, err)
			if err == nil {
				assert.IsType(t, &otelConn{}, conn)
			} else {
				assert.Nil(t, conn)
			}
		})
	}
}

func TestWrapConnector(t *testing.T) {
	t.Run("given connector, then wraps connections and forwards Close", func(t *testing.T) {
		inner := &testConnector{driver: &testDriver{conn: mocks.NewDriverConn(t)}}
		tel := NewTelemetry()

		wrapped := WrapConnector(inner, WithTelemetry(tel))

		conn, err := wrapped.Connect(context.Background())
		require.NoError(t, err)
		assert.IsType(t, &otelConn{}, conn)

		drv, ok := wrapped.Driver().(*otelDriver)
		require.True(t, ok)
		assert.Same(t, tel, drv.cfg.Telemetry)

		closer, ok := wrapped.(interface{ Close() error })
		require.True(t, ok)
		require.NoError(t, closer.Close())
		assert.True(t, inner.closed)
	})
}

func TestOpen(t *testing.T) {
	t.Run("given unknown driver, then returns error", func(t *testing.T) {
		db, err := Open("no-such-driver", "dsn")

		assert.Error(t, err)
		assert.Nil(t, db)
	})

	t.Run("given registered driver, then records executions into the pool telemetry", func(t *testing.T) {
		_, mock, err := sqlmock.NewWithDSN("open-records", sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
		require.NoError(t, err)

		mock.ExpectExec("UPDATE users SET name = ? WHERE id = ?").
			WithArgs("O'Brien", 5).
			WillReturnResult(sqlmock.NewResult(0, 1))

		tel := NewTelemetry()
		db, err := Open("sqlmock", "open-records", WithDBSystem("mysql"), WithTelemetry(tel))
		require.NoError(t, err)
		defer db.Close()

		_, err = db.ExecContext(context.Background(), "UPDATE users SET name = ? WHERE id = ?", "O'Brien", 5)
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())

		records := tel.Executions()
		require.Len(t, records, 1)
		assert.Equal(t, `UPDATE users SET name = 'O\'Brien' WHERE id = 5`, records[0].Query)
		assert.Equal(t, int64(1), records[0].RowsAffected)
	})
}

func TestInstrumentation(t *testing.T) {
	t.Run("given instrumented pool, then returns its recorder", func(t *testing.T) {
		tel := NewTelemetry()
		db := OpenDB(&testConnector{driver: &testDriver{}}, WithTelemetry(tel))
		defer db.Close()

		rec, ok := Instrumentation(db)

		require.True(t, ok)
		assert.Same(t, tel, rec.Telemetry())
	})

	t.Run("given plain pool, then reports false", func(t *testing.T) {
		db := sql.OpenDB(&testConnector{driver: &testDriver{}})
		defer db.Close()

		rec, ok := Instrumentation(db)

		assert.False(t, ok)
		assert.Nil(t, rec)
	})
}
