package sql

import (
	"math"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kroma-labs/sqlshadow/interpolate"
)

// DisabledThreshold is the default slow-query threshold. No execution can
// reach it, so callbacks never run until a threshold is set.
const DisabledThreshold = time.Duration(math.MaxInt64)

// SlowQueryFunc is called with every record whose elapsed time meets the
// slow-query threshold. A panic in a callback propagates to the caller of
// the execution that triggered it.
type SlowQueryFunc func(Record)

// Stats are running counters of a Telemetry.
type Stats struct {
	Executions   uint64
	Failures     uint64
	SlowQueries  uint64
	Dropped      uint64
	Buffered     int
	TotalElapsed time.Duration
}

// Telemetry is the shared telemetry context of one or more instrumented
// pools: the execution log, the slow-query threshold and the ordered
// callback registry.
//
// Create one at application start and pass it to every Open with
// WithTelemetry. The log grows without bound unless WithMaxRecords is set
// or it is periodically emptied with Drain.
type Telemetry struct {
	mu         sync.RWMutex
	records    []Record
	threshold  time.Duration
	callbacks  []SlowQueryFunc
	stats      Stats
	maxRecords int

	logger        zerolog.Logger
	captureStacks bool
}

// TelemetryOption configures a Telemetry.
type TelemetryOption func(*Telemetry)

// WithSlowQueryThreshold sets the initial slow-query threshold.
func WithSlowQueryThreshold(d time.Duration) TelemetryOption {
	return func(t *Telemetry) {
		t.threshold = clampThreshold(d)
	}
}

// WithMaxRecords caps the execution log. When the cap is reached the oldest
// record is dropped. Zero or less means unbounded.
func WithMaxRecords(n int) TelemetryOption {
	return func(t *Telemetry) {
		t.maxRecords = max(n, 0)
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(l zerolog.Logger) TelemetryOption {
	return func(t *Telemetry) {
		t.logger = l
	}
}

// WithStackCapture enables or disables call stack capture. It is enabled
// by default.
func WithStackCapture(enabled bool) TelemetryOption {
	return func(t *Telemetry) {
		t.captureStacks = enabled
	}
}

// NewTelemetry creates an empty telemetry context.
func NewTelemetry(opts ...TelemetryOption) *Telemetry {
	t := &Telemetry{
		threshold:     DisabledThreshold,
		logger:        zerolog.Nop(),
		captureStacks: true,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Observation describes one finished execution.
type Observation struct {
	Query        string
	Bindings     interpolate.Bindings
	Quoter       interpolate.Quoter
	Elapsed      time.Duration
	Err          error
	RowsAffected int64
	CallSite     Frames
	CreatedBy    Frames
}

// Observe interpolates the observed query, appends the resulting record to
// the log and, if the execution was slow, runs every registered callback in
// registration order. Callbacks run after the log lock is released.
func (t *Telemetry) Observe(obs Observation) Record {
	rec := Record{
		ID:            uuid.New(),
		CreatedAt:     time.Now(),
		Query:         interpolate.Interpolate(obs.Query, obs.Bindings, obs.Quoter),
		OriginalQuery: obs.Query,
		Operation:     extractOperation(obs.Query),
		Elapsed:       obs.Elapsed,
		Err:           obs.Err,
		ErrorInfo:     errorInfoOf(obs.Err),
		RowsAffected:  obs.RowsAffected,
		CallSite:      obs.CallSite,
		CreatedBy:     obs.CreatedBy,
	}

	var callbacks []SlowQueryFunc

	t.mu.Lock()
	rec.Slow = rec.Elapsed >= t.threshold
	t.append(rec)
	if rec.Slow {
		callbacks = slices.Clone(t.callbacks)
	}
	t.mu.Unlock()

	if rec.Slow {
		t.logger.Debug().
			Str("operation", rec.Operation).
			Dur("elapsed", rec.Elapsed).
			Int("callbacks", len(callbacks)).
			Msg("slow query")
	}

	for _, fn := range callbacks {
		fn(rec)
	}

	return rec
}

// append adds rec to the log and updates counters. t.mu must be held.
func (t *Telemetry) append(rec Record) {
	if t.maxRecords > 0 && len(t.records) >= t.maxRecords {
		drop := len(t.records) - t.maxRecords + 1
		clear(t.records[:drop])
		t.records = t.records[drop:]
		t.stats.Dropped += uint64(drop)
	}
	t.records = append(t.records, rec)

	t.stats.Executions++
	t.stats.TotalElapsed += rec.Elapsed
	if rec.Err != nil {
		t.stats.Failures++
	}
	if rec.Slow {
		t.stats.SlowQueries++
	}
}

// Executions returns a snapshot of the log in append order.
func (t *Telemetry) Executions() []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return slices.Clone(t.records)
}

// Execution returns the record with the given id.
func (t *Telemetry) Execution(id uuid.UUID) (Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for i := len(t.records) - 1; i >= 0; i-- {
		if t.records[i].ID == id {
			return t.records[i], true
		}
	}
	return Record{}, false
}

// Drain returns the log and empties it. Counters are kept.
func (t *Telemetry) Drain() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := t.records
	t.records = nil
	return out
}

// Reset empties the log and zeroes every counter. Threshold and callbacks
// are kept.
func (t *Telemetry) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.records = nil
	t.stats = Stats{}
}

// Stats returns the current counters.
func (t *Telemetry) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := t.stats
	s.Buffered = len(t.records)
	return s
}

// SlowQueryThreshold returns the current threshold.
func (t *Telemetry) SlowQueryThreshold() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.threshold
}

// SetSlowQueryThreshold changes the threshold for subsequent executions.
// Zero makes every execution slow, DisabledThreshold makes none slow, and
// negative values are treated as zero.
func (t *Telemetry) SetSlowQueryThreshold(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.threshold = clampThreshold(d)
}

// SlowQueryThresholdSeconds returns the threshold in seconds, or +Inf when
// it is disabled.
func (t *Telemetry) SlowQueryThresholdSeconds() float64 {
	d := t.SlowQueryThreshold()
	if d == DisabledThreshold {
		return math.Inf(1)
	}
	return d.Seconds()
}

// SetSlowQueryThresholdSeconds sets the threshold from fractional seconds.
// +Inf, NaN and values too large for a time.Duration disable it.
func (t *Telemetry) SetSlowQueryThresholdSeconds(s float64) {
	t.SetSlowQueryThreshold(secondsToThreshold(s))
}

// OnSlowQuery registers fn. Callbacks run in registration order and cannot
// be removed.
func (t *Telemetry) OnSlowQuery(fn SlowQueryFunc) {
	if fn == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.callbacks = append(t.callbacks, fn)
}

// captureCallSite returns the current stack if stack capture is enabled.
func (t *Telemetry) captureCallSite(skip int) Frames {
	if !t.captureStacks {
		return nil
	}
	return CaptureFrames(skip + 1)
}

func clampThreshold(d time.Duration) time.Duration {
	return max(d, 0)
}

func secondsToThreshold(s float64) time.Duration {
	if math.IsNaN(s) || s >= float64(DisabledThreshold)/float64(time.Second) {
		return DisabledThreshold
	}
	return time.Duration(s * float64(time.Second))
}
