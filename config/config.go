// Package config loads sqlshadow settings from a YAML file and keeps the
// slow-query threshold of a running process in sync with it.
//
// Example file:
//
//	database:
//	  system: postgresql
//	  name: orders
//	  instance: primary
//	telemetry:
//	  slow_query_threshold: 250ms
//	  max_records: 10000
//	log:
//	  level: info
//	  slow_query_rate: 5
//	redis:
//	  addr: localhost:6379
//	  max_len: 5000
package config

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/kroma-labs/sqlshadow/redissink"
	sqlshadow "github.com/kroma-labs/sqlshadow/sql"
)

// Config is the root of the configuration file.
type Config struct {
	Database  Database  `yaml:"database"`
	Telemetry Telemetry `yaml:"telemetry"`
	Log       Log       `yaml:"log"`

	// Redis enables the Redis sink when present.
	Redis *Redis `yaml:"redis"`
}

// Database describes the instrumented pool.
type Database struct {
	// System selects span attributes and the quoting dialect, for example
	// "postgresql", "mysql" or "sqlite".
	System   string `yaml:"system"`
	Name     string `yaml:"name"`
	Instance string `yaml:"instance"`

	// SanitizeQuery replaces literals in span statements with "?".
	SanitizeQuery bool `yaml:"sanitize_query"`
	DisableQuery  bool `yaml:"disable_query"`
}

// Telemetry configures the execution log.
type Telemetry struct {
	SlowQueryThreshold Threshold `yaml:"slow_query_threshold"`
	MaxRecords         int       `yaml:"max_records"`
	CaptureStacks      bool      `yaml:"capture_stacks"`
}

// Log configures the logger and the slow-query log callback.
type Log struct {
	Level string `yaml:"level"`

	// SlowQueryRate is the number of slow-query lines logged per second.
	// Zero logs every slow query.
	SlowQueryRate  float64 `yaml:"slow_query_rate"`
	SlowQueryBurst int     `yaml:"slow_query_burst"`
}

// Redis configures the Redis sink.
type Redis struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Key      string        `yaml:"key"`
	MaxLen   int64         `yaml:"max_len"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Threshold is a slow-query threshold. In YAML it is a duration string
// ("250ms"), a number of seconds (0.25) or "disabled".
type Threshold time.Duration

// Duration returns t as a time.Duration.
func (t Threshold) Duration() time.Duration {
	return time.Duration(t)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *Threshold) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: slow_query_threshold must be a scalar", value.Line)
	}

	s := strings.TrimSpace(value.Value)
	switch strings.ToLower(s) {
	case "", "disabled", "off", "none":
		*t = Threshold(sqlshadow.DisabledThreshold)
		return nil
	}

	if tag := value.ShortTag(); tag == "!!int" || tag == "!!float" {
		var secs float64
		if err := value.Decode(&secs); err != nil {
			return fmt.Errorf("line %d: slow_query_threshold: %w", value.Line, err)
		}
		if math.IsNaN(secs) {
			return fmt.Errorf("line %d: slow_query_threshold is NaN", value.Line)
		}
		if math.IsInf(secs, 1) || secs*float64(time.Second) >= float64(math.MaxInt64) {
			*t = Threshold(sqlshadow.DisabledThreshold)
			return nil
		}
		*t = Threshold(max(time.Duration(secs*float64(time.Second)), 0))
		return nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: slow_query_threshold: %w", value.Line, err)
	}
	*t = Threshold(max(d, 0))
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (t Threshold) MarshalYAML() (any, error) {
	if time.Duration(t) == sqlshadow.DisabledThreshold {
		return "disabled", nil
	}
	return time.Duration(t).String(), nil
}

// Default returns the configuration used for keys the file omits.
func Default() *Config {
	return &Config{
		Telemetry: Telemetry{
			SlowQueryThreshold: Threshold(sqlshadow.DisabledThreshold),
			CaptureStacks:      true,
		},
		Log: Log{
			Level: zerolog.LevelInfoValue,
		},
	}
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", path, err)
	}
	return cfg, nil
}

// Parse parses YAML over Default and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Redis != nil {
		cfg.Redis.applyDefaults()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (r *Redis) applyDefaults() {
	if r.Key == "" {
		r.Key = redissink.DefaultKey
	}
	if r.MaxLen == 0 {
		r.MaxLen = redissink.DefaultMaxLen
	}
	if r.Timeout == 0 {
		r.Timeout = redissink.DefaultTimeout
	}
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Telemetry.MaxRecords < 0 {
		errs = append(errs, errors.New("telemetry.max_records must not be negative"))
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.SlowQueryRate < 0 {
		errs = append(errs, errors.New("log.slow_query_rate must not be negative"))
	}
	if c.Log.SlowQueryBurst < 0 {
		errs = append(errs, errors.New("log.slow_query_burst must not be negative"))
	}
	if c.Redis != nil {
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr is required"))
		}
		if c.Redis.MaxLen < 0 {
			errs = append(errs, errors.New("redis.max_len must not be negative"))
		}
		if c.Redis.Timeout < 0 {
			errs = append(errs, errors.New("redis.timeout must not be negative"))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Logger returns a JSON logger writing to w at the configured level.
func (c *Config) Logger(w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// SlowQueryLimiter returns the limiter for sqlshadow.LogSlowQueries, or
// nil when every slow query is logged.
func (c *Config) SlowQueryLimiter() *rate.Limiter {
	if c.Log.SlowQueryRate == 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(c.Log.SlowQueryRate), max(c.Log.SlowQueryBurst, 1))
}

// TelemetryOptions returns the options for sqlshadow.NewTelemetry.
func (c *Config) TelemetryOptions(logger zerolog.Logger) []sqlshadow.TelemetryOption {
	return []sqlshadow.TelemetryOption{
		sqlshadow.WithSlowQueryThreshold(c.Telemetry.SlowQueryThreshold.Duration()),
		sqlshadow.WithMaxRecords(c.Telemetry.MaxRecords),
		sqlshadow.WithStackCapture(c.Telemetry.CaptureStacks),
		sqlshadow.WithLogger(logger),
	}
}

// Options returns the pool options for sqlshadow.Open, recording into tel.
func (c *Config) Options(tel *sqlshadow.Telemetry) []sqlshadow.Option {
	opts := []sqlshadow.Option{sqlshadow.WithTelemetry(tel)}

	if c.Database.System != "" {
		opts = append(opts, sqlshadow.WithDBSystem(c.Database.System))
	}
	if c.Database.Name != "" {
		opts = append(opts, sqlshadow.WithDBName(c.Database.Name))
	}
	if c.Database.Instance != "" {
		opts = append(opts, sqlshadow.WithInstanceName(c.Database.Instance))
	}
	if c.Database.SanitizeQuery {
		opts = append(opts, sqlshadow.WithQuerySanitizer(sqlshadow.DefaultQuerySanitizer))
	}
	if c.Database.DisableQuery {
		opts = append(opts, sqlshadow.WithDisableQuery())
	}

	return opts
}

// NewTelemetry builds a telemetry context from c with the slow-query log
// callback registered, and the Redis sink when configured. The returned
// client is nil without a redis section; the caller closes it.
func (c *Config) NewTelemetry(logger zerolog.Logger) (*sqlshadow.Telemetry, *redis.Client) {
	tel := sqlshadow.NewTelemetry(c.TelemetryOptions(logger)...)
	tel.OnSlowQuery(sqlshadow.LogSlowQueries(logger, c.SlowQueryLimiter()))

	if c.Redis == nil {
		return tel, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	})
	sink := redissink.New(client,
		redissink.WithKey(c.Redis.Key),
		redissink.WithMaxLen(c.Redis.MaxLen),
		redissink.WithTimeout(c.Redis.Timeout),
		redissink.WithLogger(logger),
	)
	tel.OnSlowQuery(sink.Callback())

	return tel, client
}
