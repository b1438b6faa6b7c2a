package sql

import (
	"context"
	"database/sql"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// metrics holds the metric instruments for database operations.
type metrics struct {
	queryDuration metric.Float64Histogram
	slowQueries   metric.Int64Counter

	// Pool instruments, set by registerPoolMetrics.
	openConnections metric.Int64ObservableGauge
	idleConnections metric.Int64ObservableGauge
	maxConnections  metric.Int64ObservableGauge
	usedConnections metric.Int64ObservableGauge
	waitCount       metric.Int64ObservableCounter
	waitDuration    metric.Float64ObservableCounter
}

// newMetrics creates the per-execution instruments.
func newMetrics(meter metric.Meter) (*metrics, error) {
	m := &metrics{}
	var err error

	m.queryDuration, err = meter.Float64Histogram(
		"db.client.operation.duration",
		metric.WithDescription("Duration of database client operations in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(
			0.001, 0.005, 0.01, 0.025, 0.05, 0.075, 0.1, 0.25, 0.5, 0.75, 1, 2.5, 5, 10,
		),
	)
	if err != nil {
		return nil, err
	}

	m.slowQueries, err = meter.Int64Counter(
		"db.client.slow_queries",
		metric.WithDescription("Number of executions that met the slow-query threshold"),
		metric.WithUnit("{execution}"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// registerPoolMetrics registers observable pool gauges read from db.Stats
// on every collection. Pool statistics only exist on *sql.DB, so they
// cannot be recorded from the driver wrappers.
func (m *metrics) registerPoolMetrics(
	meter metric.Meter,
	db *sql.DB,
	attrs []attribute.KeyValue,
) error {
	var err error

	m.openConnections, err = meter.Int64ObservableGauge(
		"db.client.connections.open",
		metric.WithDescription("Number of open connections in the pool"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return err
	}

	m.idleConnections, err = meter.Int64ObservableGauge(
		"db.client.connections.idle",
		metric.WithDescription("Number of idle connections in the pool"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return err
	}

	m.maxConnections, err = meter.Int64ObservableGauge(
		"db.client.connections.max",
		metric.WithDescription("Maximum number of connections allowed in the pool"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return err
	}

	m.usedConnections, err = meter.Int64ObservableGauge(
		"db.client.connections.used",
		metric.WithDescription("Number of connections currently in use"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return err
	}

	m.waitCount, err = meter.Int64ObservableCounter(
		"db.client.connections.wait_count",
		metric.WithDescription("Total number of times waited for a connection"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return err
	}

	m.waitDuration, err = meter.Float64ObservableCounter(
		"db.client.connections.wait_duration",
		metric.WithDescription("Total time waited for connections in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	opt := metric.WithAttributes(attrs...)
	_, err = meter.RegisterCallback(
		func(_ context.Context, o metric.Observer) error {
			stats := db.Stats()

			o.ObserveInt64(m.openConnections, int64(stats.OpenConnections), opt)
			o.ObserveInt64(m.idleConnections, int64(stats.Idle), opt)
			o.ObserveInt64(m.maxConnections, int64(stats.MaxOpenConnections), opt)
			o.ObserveInt64(m.usedConnections, int64(stats.InUse), opt)
			o.ObserveInt64(m.waitCount, stats.WaitCount, opt)
			o.ObserveFloat64(m.waitDuration, stats.WaitDuration.Seconds(), opt)

			return nil
		},
		m.openConnections,
		m.idleConnections,
		m.maxConnections,
		m.usedConnections,
		m.waitCount,
		m.waitDuration,
	)

	return err
}

// recordQueryDuration records the duration of one operation.
func (m *metrics) recordQueryDuration(
	ctx context.Context,
	duration time.Duration,
	operation string,
	attrs []attribute.KeyValue,
	err error,
) {
	if m == nil || m.queryDuration == nil {
		return
	}

	status := "ok"
	if err != nil {
		status = "error"
	}

	m.queryDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(withOperation(attrs, operation, attribute.String("status", status))...))
}

// recordSlowQuery counts one execution that met the slow-query threshold.
func (m *metrics) recordSlowQuery(ctx context.Context, operation string, attrs []attribute.KeyValue) {
	if m == nil || m.slowQueries == nil {
		return
	}

	m.slowQueries.Add(ctx, 1, metric.WithAttributes(withOperation(attrs, operation)...))
}

func withOperation(attrs []attribute.KeyValue, operation string, extra ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs)+1+len(extra))
	out = append(out, attrs...)
	if operation != "" {
		out = append(out, attribute.String("db.operation", operation))
	}
	return append(out, extra...)
}

// RecordPoolMetrics registers connection pool metrics for db.
//
// When db was opened by this package, its db.system, db.name and
// db.instance attributes are added to attrs.
//
// Example:
//
//	db, _ := sqlshadow.Open("postgres", dsn, sqlshadow.WithDBSystem("postgresql"))
//	err := sqlshadow.RecordPoolMetrics(db, otel.GetMeterProvider().Meter("myapp"))
func RecordPoolMetrics(db *sql.DB, meter metric.Meter, attrs ...attribute.KeyValue) error {
	if drv, ok := db.Driver().(*otelDriver); ok && drv.cfg != nil {
		attrs = append(drv.cfg.baseAttributes(), attrs...)
	}

	m := &metrics{}
	return m.registerPoolMetrics(meter, db, attrs)
}
