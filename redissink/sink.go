// Package redissink exports execution records to a capped Redis list.
//
// A Sink is typically registered as a slow-query callback so that slow
// executions from every process end up in one place:
//
//	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	sink := redissink.New(rdb, redissink.WithMaxLen(5000))
//	tel.OnSlowQuery(sink.Callback())
//
// Pushes are retried with exponential backoff and guarded by a circuit
// breaker, so an unavailable Redis costs at most one fast failure per
// execution once the breaker is open.
package redissink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	gobreaker "github.com/sony/gobreaker/v2"
	gobreakerredis "github.com/sony/gobreaker/v2/redis"

	sqlshadow "github.com/kroma-labs/sqlshadow/sql"
)

// circuitBreaker is satisfied by both local and distributed gobreaker
// breakers.
type circuitBreaker interface {
	Execute(req func() (int, error)) (int, error)
}

// Sink pushes records to a Redis list, newest first.
type Sink struct {
	client  redis.UniversalClient
	cfg     config
	breaker circuitBreaker
}

// NewBreakerStore returns a gobreaker store backed by client, for use with
// WithBreakerStore.
func NewBreakerStore(client redis.UniversalClient) gobreaker.SharedDataStore {
	return gobreakerredis.NewStoreFromClient(client)
}

// New returns a Sink writing through client.
func New(client redis.UniversalClient, opts ...Option) *Sink {
	cfg := newConfig(opts...)

	st := gobreaker.Settings{
		Name:    cfg.Name,
		Timeout: 10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			cfg.Logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("redis sink circuit breaker state changed")
		},
	}

	var cb circuitBreaker = gobreaker.NewCircuitBreaker[int](st)
	if cfg.Store != nil {
		dcb, err := gobreaker.NewDistributedCircuitBreaker[int](cfg.Store, st)
		if err != nil {
			cfg.Logger.Warn().Err(err).Msg("falling back to local circuit breaker")
		} else {
			cb = dcb
		}
	}

	return &Sink{client: client, cfg: cfg, breaker: cb}
}

// Key returns the Redis list key.
func (s *Sink) Key() string {
	return s.cfg.Key
}

// Push prepends records to the list and trims it to the configured length
// in one transaction. It returns the list length after the push.
func (s *Sink) Push(ctx context.Context, records ...sqlshadow.Record) (int64, error) {
	if len(records) == 0 {
		return s.client.LLen(ctx, s.cfg.Key).Result()
	}

	values := make([]any, len(records))
	for i := range records {
		b, err := json.Marshal(records[i])
		if err != nil {
			return 0, fmt.Errorf("encode record %s: %w", records[i].ID, err)
		}
		values[i] = b
	}

	n, err := backoff.Retry(ctx, func() (int, error) {
		n, err := s.breaker.Execute(func() (int, error) {
			return s.push(ctx, values)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return 0, backoff.Permanent(err)
		}
		return n, err
	},
		backoff.WithBackOff(s.cfg.BackOff()),
		backoff.WithMaxTries(s.cfg.MaxRetries+1),
	)
	if err != nil {
		return 0, fmt.Errorf("push to %s: %w", s.cfg.Key, err)
	}

	return int64(n), nil
}

func (s *Sink) push(ctx context.Context, values []any) (int, error) {
	pipe := s.client.TxPipeline()
	pushed := pipe.LPush(ctx, s.cfg.Key, values...)
	if s.cfg.MaxLen > 0 {
		pipe.LTrim(ctx, s.cfg.Key, 0, s.cfg.MaxLen-1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}

	n := pushed.Val()
	if s.cfg.MaxLen > 0 {
		n = min(n, s.cfg.MaxLen)
	}
	return int(n), nil
}

// Callback returns a slow-query callback that pushes each record. Failures
// are logged and never reach the execution that triggered them.
func (s *Sink) Callback() sqlshadow.SlowQueryFunc {
	return func(r sqlshadow.Record) {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
		defer cancel()

		if _, err := s.Push(ctx, r); err != nil {
			s.cfg.Logger.Warn().
				Err(err).
				Str("id", r.ID.String()).
				Msg("failed to export slow query")
		}
	}
}

// Flush drains tel and pushes every drained record. Records are lost from
// tel even when the push fails; the error reports how many.
func (s *Sink) Flush(ctx context.Context, tel *sqlshadow.Telemetry) (int, error) {
	records := tel.Drain()
	if len(records) == 0 {
		return 0, nil
	}

	if _, err := s.Push(ctx, records...); err != nil {
		return 0, fmt.Errorf("flush %d records: %w", len(records), err)
	}
	return len(records), nil
}

// Recent returns up to n records from the list, newest first, as JSON.
func (s *Sink) Recent(ctx context.Context, n int64) ([]json.RawMessage, error) {
	if n <= 0 {
		return nil, nil
	}

	vals, err := s.client.LRange(ctx, s.cfg.Key, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.cfg.Key, err)
	}

	out := make([]json.RawMessage, len(vals))
	for i, v := range vals {
		out[i] = json.RawMessage(v)
	}
	return out, nil
}
