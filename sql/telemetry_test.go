package sql

import (
	"context"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/kroma-labs/sqlshadow/interpolate"
)

func observe(tel *Telemetry, elapsed time.Duration, err error) Record {
	return tel.Observe(Observation{
		Query:        "SELECT * FROM t WHERE id = ?",
		Bindings:     interpolate.Bindings{"1": {Value: 1}},
		Quoter:       interpolate.MySQL,
		Elapsed:      elapsed,
		Err:          err,
		RowsAffected: -1,
	})
}

func TestTelemetry_Threshold(t *testing.T) {
	tests := []struct {
		name      string
		threshold time.Duration
		elapsed   time.Duration
		wantSlow  bool
	}{
		{
			name:      "given default threshold, then nothing is slow",
			threshold: DisabledThreshold,
			elapsed:   time.Hour,
			wantSlow:  false,
		},
		{
			name:      "given zero threshold, then every execution is slow",
			threshold: 0,
			elapsed:   0,
			wantSlow:  true,
		},
		{
			name:      "given negative threshold, then it is treated as zero",
			threshold: -time.Second,
			elapsed:   0,
			wantSlow:  true,
		},
		{
			name:      "given elapsed equal to threshold, then it is slow",
			threshold: 10 * time.Millisecond,
			elapsed:   10 * time.Millisecond,
			wantSlow:  true,
		},
		{
			name:      "given elapsed below threshold, then it is not slow",
			threshold: 10 * time.Millisecond,
			elapsed:   9 * time.Millisecond,
			wantSlow:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tel := NewTelemetry()
			tel.SetSlowQueryThreshold(tt.threshold)

			var calls int
			tel.OnSlowQuery(func(Record) { calls++ })

			rec := observe(tel, tt.elapsed, nil)

			assert.Equal(t, tt.wantSlow, rec.Slow)
			assert.Equal(t, tt.wantSlow, calls == 1)
			assert.GreaterOrEqual(t, tel.SlowQueryThreshold(), time.Duration(0))
		})
	}
}

func TestTelemetry_ThresholdSeconds(t *testing.T) {
	tests := []struct {
		name    string
		seconds float64
		want    time.Duration
		wantSec float64
	}{
		{
			name:    "given fractional seconds, then converts to duration",
			seconds: 0.25,
			want:    250 * time.Millisecond,
			wantSec: 0.25,
		},
		{
			name:    "given +Inf, then disables the threshold",
			seconds: math.Inf(1),
			want:    DisabledThreshold,
			wantSec: math.Inf(1),
		},
		{
			name:    "given NaN, then disables the threshold",
			seconds: math.NaN(),
			want:    DisabledThreshold,
			wantSec: math.Inf(1),
		},
		{
			name:    "given negative seconds, then clamps to zero",
			seconds: -3,
			want:    0,
			wantSec: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tel := NewTelemetry()

			tel.SetSlowQueryThresholdSeconds(tt.seconds)

			assert.Equal(t, tt.want, tel.SlowQueryThreshold())
			assert.Equal(t, tt.wantSec, tel.SlowQueryThresholdSeconds())
		})
	}
}

func TestTelemetry_Callbacks(t *testing.T) {
	t.Run("given several callbacks, then they run in registration order", func(t *testing.T) {
		tel := NewTelemetry(WithSlowQueryThreshold(0))

		var order []int
		tel.OnSlowQuery(func(Record) { order = append(order, 1) })
		tel.OnSlowQuery(nil)
		tel.OnSlowQuery(func(Record) { order = append(order, 2) })
		tel.OnSlowQuery(func(Record) { order = append(order, 3) })

		observe(tel, time.Millisecond, nil)

		assert.Equal(t, []int{1, 2, 3}, order)
	})

	t.Run("given callback reading the log, then it does not deadlock", func(t *testing.T) {
		tel := NewTelemetry(WithSlowQueryThreshold(0))

		var seen int
		tel.OnSlowQuery(func(Record) {
			seen = len(tel.Executions())
			tel.SetSlowQueryThreshold(DisabledThreshold)
		})

		observe(tel, time.Millisecond, nil)
		observe(tel, time.Millisecond, nil)

		assert.Equal(t, 1, seen)
		assert.Len(t, tel.Executions(), 2)
	})

	t.Run("given panicking callback, then panic propagates after the record is stored", func(t *testing.T) {
		tel := NewTelemetry(WithSlowQueryThreshold(0))
		tel.OnSlowQuery(func(Record) { panic("boom") })

		assert.PanicsWithValue(t, "boom", func() { observe(tel, time.Millisecond, nil) })
		assert.Len(t, tel.Executions(), 1)
	})
}

func TestTelemetry_Observe(t *testing.T) {
	t.Run("given observation, then record carries interpolated query and error info", func(t *testing.T) {
		tel := NewTelemetry()

		rec := observe(tel, 5*time.Millisecond, context.Canceled)

		assert.NotEqual(t, uuid.Nil, rec.ID)
		assert.Equal(t, "SELECT * FROM t WHERE id = 1", rec.Query)
		assert.Equal(t, "SELECT * FROM t WHERE id = ?", rec.OriginalQuery)
		assert.Equal(t, "SELECT", rec.Operation)
		assert.Equal(t, "HY008", rec.ErrorInfo.SQLState)
		assert.InDelta(t, 0.005, rec.ElapsedSeconds(), 1e-9)
		assert.False(t, rec.CreatedAt.IsZero())

		got, ok := tel.Execution(rec.ID)
		require.True(t, ok)
		assert.Equal(t, rec.Query, got.Query)

		_, ok = tel.Execution(uuid.New())
		assert.False(t, ok)
	})
}

func TestTelemetry_Stats(t *testing.T) {
	tel := NewTelemetry(WithSlowQueryThreshold(10 * time.Millisecond))

	observe(tel, time.Millisecond, nil)
	observe(tel, 20*time.Millisecond, nil)
	observe(tel, 30*time.Millisecond, assert.AnError)

	s := tel.Stats()
	assert.Equal(t, uint64(3), s.Executions)
	assert.Equal(t, uint64(1), s.Failures)
	assert.Equal(t, uint64(2), s.SlowQueries)
	assert.Equal(t, 3, s.Buffered)
	assert.Equal(t, 51*time.Millisecond, s.TotalElapsed)

	drained := tel.Drain()
	assert.Len(t, drained, 3)
	assert.Empty(t, tel.Executions())
	assert.Equal(t, uint64(3), tel.Stats().Executions)
	assert.Zero(t, tel.Stats().Buffered)

	observe(tel, time.Millisecond, nil)
	tel.Reset()
	assert.Equal(t, Stats{}, tel.Stats())
	assert.Equal(t, 10*time.Millisecond, tel.SlowQueryThreshold())
}

func TestTelemetry_MaxRecords(t *testing.T) {
	tel := NewTelemetry(WithMaxRecords(2))

	first := observe(tel, time.Millisecond, nil)
	second := observe(tel, 2*time.Millisecond, nil)
	third := observe(tel, 3*time.Millisecond, nil)

	records := tel.Executions()
	require.Len(t, records, 2)
	assert.Equal(t, second.ID, records[0].ID)
	assert.Equal(t, third.ID, records[1].ID)

	_, ok := tel.Execution(first.ID)
	assert.False(t, ok)
	assert.Equal(t, uint64(1), tel.Stats().Dropped)
	assert.Equal(t, uint64(3), tel.Stats().Executions)
}

func TestTelemetry_StackCapture(t *testing.T) {
	t.Run("given stack capture disabled, then no frames are captured", func(t *testing.T) {
		tel := NewTelemetry(WithStackCapture(false))

		assert.Nil(t, tel.captureCallSite(0))
	})

	t.Run("given stack capture enabled, then the first frame is the caller", func(t *testing.T) {
		tel := NewTelemetry()

		frames := tel.captureCallSite(0)

		require.NotEmpty(t, frames)
		assert.Contains(t, frames[0].Function, "TestTelemetry_StackCapture")
	})
}

func TestTelemetry_Concurrent(t *testing.T) {
	t.Run("given concurrent executions and threshold changes, then every record is kept", func(t *testing.T) {
		tel := NewTelemetry(WithSlowQueryThreshold(0))

		var calls atomic.Int64
		tel.OnSlowQuery(func(Record) { calls.Add(1) })

		const workers, perWorker = 8, 50

		var g errgroup.Group
		for range workers {
			g.Go(func() error {
				for range perWorker {
					observe(tel, time.Millisecond, nil)
				}
				return nil
			})
		}
		g.Go(func() error {
			for range perWorker {
				_ = tel.Executions()
				_ = tel.Stats()
				tel.SetSlowQueryThreshold(0)
			}
			return nil
		})
		require.NoError(t, g.Wait())

		assert.Len(t, tel.Executions(), workers*perWorker)
		assert.Equal(t, int64(workers*perWorker), calls.Load())
	})
}
