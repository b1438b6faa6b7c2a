package sql

import (
	"context"
	"database/sql/driver"
	"errors"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kroma-labs/sqlshadow/interpolate"
)

type skipKey struct{}

// SkipInstrumentation marks ctx so that driver-level instrumentation below
// it neither records nor traces. Wrappers that record an execution
// themselves use it to avoid a duplicate record.
func SkipInstrumentation(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipKey{}, true)
}

func skipped(ctx context.Context) bool {
	v, _ := ctx.Value(skipKey{}).(bool)
	return v
}

// Recorder times executions, emits spans and metrics for them and appends
// a Record to its Telemetry.
type Recorder struct {
	cfg *config
}

// NewRecorder returns a Recorder configured by opts.
func NewRecorder(opts ...Option) *Recorder {
	return &Recorder{cfg: newConfig(opts...)}
}

// Telemetry returns the telemetry context records are appended to.
func (r *Recorder) Telemetry() *Telemetry {
	return r.cfg.Telemetry
}

// Quoter returns the configured quoter. It may be nil, in which case
// literals are rendered with interpolate.Fallback.
func (r *Recorder) Quoter() interpolate.Quoter {
	return r.cfg.Quoter
}

// Stack returns the caller's stack, or nil when stack capture is disabled.
// Wrappers use it to fill Execution.CreatedBy at prepare time.
func (r *Recorder) Stack() Frames {
	return r.cfg.Telemetry.captureCallSite(1)
}

// Start begins timing an execution of query. The returned context carries
// the execution span and must be passed to the driver call.
func (r *Recorder) Start(ctx context.Context, query string) (context.Context, *Execution) {
	return r.cfg.start(ctx, query)
}

// Execution is an in-flight execution started by Recorder.Start.
type Execution struct {
	// Bindings are interpolated into the recorded query.
	Bindings interpolate.Bindings

	// Quoter renders the bindings. Nil uses the recorder's quoter.
	Quoter interpolate.Quoter

	// CreatedBy is the stack captured when the statement was prepared.
	CreatedBy Frames

	cfg      *config
	ctx      context.Context
	span     trace.Span
	query    string
	start    time.Time
	callSite Frames
}

func (cfg *config) start(ctx context.Context, query string) (context.Context, *Execution) {
	ctx, span := cfg.Tracer.Start(ctx, spanName(query),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(cfg.queryAttributes(query)...),
	)

	e := &Execution{
		cfg:      cfg,
		ctx:      ctx,
		span:     span,
		query:    query,
		callSite: cfg.Telemetry.captureCallSite(0),
	}
	e.start = time.Now()
	return ctx, e
}

// End stops the timer, finishes the span, records metrics and appends the
// execution to the telemetry log. It returns false without recording when
// err is driver.ErrSkip, which means the driver did not execute anything.
func (e *Execution) End(rowsAffected int64, err error) (Record, bool) {
	elapsed := time.Since(e.start)
	defer e.span.End()

	if errors.Is(err, driver.ErrSkip) {
		return Record{}, false
	}

	if err != nil {
		e.span.RecordError(err)
		e.span.SetStatus(codes.Error, err.Error())
	}

	op := extractOperation(e.query)
	attrs := e.cfg.baseAttributes()
	e.cfg.Metrics.recordQueryDuration(e.ctx, elapsed, op, attrs, err)

	q := e.Quoter
	if q == nil {
		q = e.cfg.Quoter
	}

	rec := e.cfg.Telemetry.Observe(Observation{
		Query:        e.query,
		Bindings:     e.Bindings,
		Quoter:       q,
		Elapsed:      elapsed,
		Err:          err,
		RowsAffected: rowsAffected,
		CallSite:     e.callSite,
		CreatedBy:    e.CreatedBy,
	})

	if rec.Slow {
		e.cfg.Metrics.recordSlowQuery(e.ctx, op, attrs)
	}

	return rec, true
}

// bindingsOf tracks the arguments passed to the driver, keyed by name or by
// their 1-based ordinal.
func bindingsOf(args []driver.NamedValue) interpolate.Bindings {
	if len(args) == 0 {
		return nil
	}

	b := make(interpolate.Bindings, len(args))
	for _, a := range args {
		key := a.Name
		if key == "" {
			key = strconv.Itoa(a.Ordinal)
		}
		b.Set(key, a.Value, interpolate.TypeAuto)
	}
	return b
}

// rowsAffected reads the affected row count of a result, or -1 when it is
// not available.
func rowsAffected(res driver.Result) int64 {
	if res == nil {
		return -1
	}
	n, err := res.RowsAffected()
	if err != nil {
		return -1
	}
	return n
}
