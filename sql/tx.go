package sql

import (
	"context"
	"database/sql/driver"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Compile-time interface check.
var _ driver.Tx = (*otelTx)(nil)

// otelTx wraps a driver.Tx. Transactions are not part of the execution
// log; only their spans and durations are recorded.
type otelTx struct {
	tx  driver.Tx
	cfg *config
}

func newOtelTx(tx driver.Tx, cfg *config) *otelTx {
	return &otelTx{
		tx:  tx,
		cfg: cfg,
	}
}

// Commit implements driver.Tx.
func (t *otelTx) Commit() error {
	return t.end("COMMIT", t.tx.Commit)
}

// Rollback implements driver.Tx.
func (t *otelTx) Rollback() error {
	return t.end("ROLLBACK", t.tx.Rollback)
}

// end runs fn inside a span named op. driver.Tx carries no context, so the
// span is a root span.
func (t *otelTx) end(op string, fn func() error) error {
	start := time.Now()
	ctx, span := t.cfg.Tracer.Start(context.Background(), op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(t.cfg.baseAttributes()...),
	)
	defer span.End()

	err := fn()

	t.cfg.Metrics.recordQueryDuration(ctx, time.Since(start), op, t.cfg.baseAttributes(), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
