package redissink

import (
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
)

const (
	// DefaultKey is the Redis list records are pushed to.
	DefaultKey = "sqlshadow:slow_queries"

	// DefaultMaxLen is the number of records the list keeps.
	DefaultMaxLen = 1000

	// DefaultTimeout bounds each push made by Callback.
	DefaultTimeout = 2 * time.Second

	defaultMaxRetries = 3
	defaultName       = "sqlshadow-redis-sink"
)

type config struct {
	Key        string
	MaxLen     int64
	Timeout    time.Duration
	MaxRetries uint
	BackOff    func() backoff.BackOff
	Store      gobreaker.SharedDataStore
	Name       string
	Logger     zerolog.Logger
}

func newConfig(opts ...Option) config {
	cfg := config{
		Key:        DefaultKey,
		MaxLen:     DefaultMaxLen,
		Timeout:    DefaultTimeout,
		MaxRetries: defaultMaxRetries,
		BackOff: func() backoff.BackOff {
			return &backoff.ExponentialBackOff{
				InitialInterval:     50 * time.Millisecond,
				RandomizationFactor: 0.5,
				Multiplier:          2,
				MaxInterval:         500 * time.Millisecond,
			}
		},
		Name:   defaultName,
		Logger: zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Option configures a Sink.
type Option func(*config)

// WithKey sets the Redis list key.
func WithKey(key string) Option {
	return func(cfg *config) {
		cfg.Key = key
	}
}

// WithMaxLen sets how many records the list keeps. Older entries are
// trimmed on every push. Zero or less keeps everything.
func WithMaxLen(n int64) Option {
	return func(cfg *config) {
		cfg.MaxLen = n
	}
}

// WithTimeout bounds each push made by Callback, retries included.
func WithTimeout(d time.Duration) Option {
	return func(cfg *config) {
		cfg.Timeout = d
	}
}

// WithRetry sets the number of retries after a failed push and the backoff
// policy between them. A nil policy keeps the default exponential backoff.
func WithRetry(maxRetries uint, policy func() backoff.BackOff) Option {
	return func(cfg *config) {
		cfg.MaxRetries = maxRetries
		if policy != nil {
			cfg.BackOff = policy
		}
	}
}

// WithBreakerStore shares the circuit breaker state between processes
// through store. See NewBreakerStore.
func WithBreakerStore(store gobreaker.SharedDataStore) Option {
	return func(cfg *config) {
		cfg.Store = store
	}
}

// WithName sets the circuit breaker name.
func WithName(name string) Option {
	return func(cfg *config) {
		cfg.Name = name
	}
}

// WithLogger sets the logger used to report failed pushes.
func WithLogger(l zerolog.Logger) Option {
	return func(cfg *config) {
		cfg.Logger = l
	}
}
