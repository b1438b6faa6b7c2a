package sql

import (
	"database/sql/driver"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/kroma-labs/sqlshadow/interpolate"
)

const (
	// scope is the instrumentation scope name for OpenTelemetry.
	scope = "github.com/kroma-labs/sqlshadow/sql"
)

// config holds the configuration of an instrumented pool or statement.
type config struct {
	// TracerProvider is the tracer provider to use.
	// If not set, uses the global provider via otel.GetTracerProvider().
	TracerProvider trace.TracerProvider

	// MeterProvider is the meter provider to use.
	// If not set, uses the global provider via otel.GetMeterProvider().
	MeterProvider metric.MeterProvider

	Tracer  trace.Tracer
	Meter   metric.Meter
	Metrics *metrics

	// Telemetry receives one Record per execution.
	// If not set, every config gets its own context.
	Telemetry *Telemetry

	// Quoter renders literals in interpolated queries. A driver connection
	// that implements interpolate.Quoter takes precedence.
	// If not set, the quoter is derived from DBSystem.
	Quoter interpolate.Quoter

	// DBSystem identifies the database management system (DBMS) product.
	// Examples: "postgresql", "mysql", "sqlite", "mssql", "oracle"
	// See: https://opentelemetry.io/docs/specs/semconv/database/database-spans/
	DBSystem string

	// DBName is the name of the database being accessed.
	DBName string

	// InstanceName identifies a specific pool, such as "primary" or "replica".
	// It is added as the "db.instance" attribute.
	InstanceName string

	// QuerySanitizer sanitizes the query template before it is added to
	// spans. Records always keep the full interpolated query.
	QuerySanitizer func(query string) string

	// DisableQuery omits "db.statement" from spans.
	DisableQuery bool
}

// newConfig creates a new config with defaults and applies options.
func newConfig(opts ...Option) *config {
	cfg := &config{
		TracerProvider: otel.GetTracerProvider(),
		MeterProvider:  otel.GetMeterProvider(),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	cfg.Tracer = cfg.TracerProvider.Tracer(scope)
	cfg.Meter = cfg.MeterProvider.Meter(scope)

	// A failing meter leaves Metrics nil; recording is then a no-op.
	cfg.Metrics, _ = newMetrics(cfg.Meter)

	if cfg.Telemetry == nil {
		cfg.Telemetry = NewTelemetry()
	}
	if cfg.Quoter == nil {
		cfg.Quoter = interpolate.QuoterFor(cfg.DBSystem)
	}

	return cfg
}

// quoterFor picks the quoter for executions on conn.
func (cfg *config) quoterFor(conn driver.Conn) interpolate.Quoter {
	if q, ok := conn.(interpolate.Quoter); ok {
		return q
	}
	return cfg.Quoter
}

// Option configures the instrumentation.
type Option func(*config)

// WithTracerProvider sets a custom tracer provider.
// If not called, the global provider from otel.GetTracerProvider() is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cfg *config) {
		cfg.TracerProvider = tp
	}
}

// WithMeterProvider sets a custom meter provider.
// If not called, the global provider from otel.GetMeterProvider() is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(cfg *config) {
		cfg.MeterProvider = mp
	}
}

// WithTelemetry records executions into t. Share one Telemetry between
// pools to get a single execution log and callback registry.
//
// Example:
//
//	tel := sqlshadow.NewTelemetry(sqlshadow.WithSlowQueryThreshold(200 * time.Millisecond))
//	tel.OnSlowQuery(sqlshadow.LogSlowQueries(logger, nil))
//
//	db, _ := sqlshadow.Open("postgres", dsn,
//	    sqlshadow.WithDBSystem("postgresql"),
//	    sqlshadow.WithTelemetry(tel),
//	)
func WithTelemetry(t *Telemetry) Option {
	return func(cfg *config) {
		cfg.Telemetry = t
	}
}

// WithQuoter sets the quoter used to render literals in interpolated
// queries, overriding the one derived from WithDBSystem.
func WithQuoter(q interpolate.Quoter) Option {
	return func(cfg *config) {
		cfg.Quoter = q
	}
}

// WithDBSystem sets the database system identifier (DBMS product).
// This is added as the "db.system" attribute on all spans and selects the
// literal quoting dialect of interpolated queries.
//
// Common values:
//   - "postgresql" - PostgreSQL
//   - "mysql" - MySQL
//   - "sqlite" - SQLite
//   - "mssql" - Microsoft SQL Server
func WithDBSystem(system string) Option {
	return func(cfg *config) {
		cfg.DBSystem = system
	}
}

// WithDBName sets the database name being accessed.
// This is added as the "db.name" attribute on all spans.
func WithDBName(name string) Option {
	return func(cfg *config) {
		cfg.DBName = name
	}
}

// WithInstanceName sets an identifier for this pool, added as the
// "db.instance" attribute.
//
// Example:
//
//	writerDB, _ := sqlshadow.Open("postgres", primaryDSN,
//	    sqlshadow.WithDBSystem("postgresql"),
//	    sqlshadow.WithInstanceName("primary"),
//	)
//	readerDB, _ := sqlshadow.Open("postgres", replicaDSN,
//	    sqlshadow.WithDBSystem("postgresql"),
//	    sqlshadow.WithInstanceName("replica"),
//	)
func WithInstanceName(name string) Option {
	return func(cfg *config) {
		cfg.InstanceName = name
	}
}

// WithQuerySanitizer sets a function applied to the query template before
// it is added to spans as "db.statement".
//
// Example:
//
//	db, _ := sqlshadow.Open("postgres", dsn,
//	    sqlshadow.WithQuerySanitizer(sqlshadow.DefaultQuerySanitizer),
//	)
func WithQuerySanitizer(fn func(string) string) Option {
	return func(cfg *config) {
		cfg.QuerySanitizer = fn
	}
}

// WithDisableQuery omits "db.statement" from spans. "db.operation" is still
// recorded, and so is the execution log.
func WithDisableQuery() Option {
	return func(cfg *config) {
		cfg.DisableQuery = true
	}
}
