package sql

import (
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// LogSlowQueries returns a callback that logs each slow execution as a
// warning. When limiter is not nil, records beyond its rate are dropped
// from the log output; they stay in the execution log.
//
// Example:
//
//	tel.OnSlowQuery(sqlshadow.LogSlowQueries(logger, rate.NewLimiter(rate.Every(time.Second), 10)))
func LogSlowQueries(logger zerolog.Logger, limiter *rate.Limiter) SlowQueryFunc {
	return func(r Record) {
		if limiter != nil && !limiter.Allow() {
			return
		}

		evt := logger.Warn().
			Str("id", r.ID.String()).
			Str("operation", r.Operation).
			Dur("elapsed", r.Elapsed).
			Int64("rows_affected", r.RowsAffected).
			Str("query", r.Query)

		if r.Err != nil {
			evt = evt.Err(r.Err).Str("sqlstate", r.ErrorInfo.SQLState)
		}
		if len(r.CallSite) > 0 {
			f := r.CallSite[0]
			evt = evt.Str("caller", f.Function).Str("file", f.File).Int("line", f.Line)
		}

		evt.Msg("slow query")
	}
}
