package sql

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"modernc.org/sqlite"
)

// SQLSTATE values used when a driver does not report one.
const (
	sqlStateOK       = "00000"
	sqlStateGeneral  = "HY000"
	sqlStateCanceled = "HY008"
)

// Record is one execution as observed by a Telemetry. Records are never
// mutated after they are appended to the log.
type Record struct {
	ID        uuid.UUID
	CreatedAt time.Time

	// Query is the statement with every bound placeholder replaced by a
	// literal. It is meant for humans and logs and is never sent to the
	// database.
	Query string

	// OriginalQuery is the template as it was prepared.
	OriginalQuery string

	// Operation is the leading SQL keyword (SELECT, INSERT, ...).
	Operation string

	Elapsed time.Duration

	// Slow reports whether Elapsed met the threshold in force when the
	// record was appended.
	Slow bool

	// Err is the error returned by the driver, unchanged.
	Err       error
	ErrorInfo ErrorInfo

	// RowsAffected is -1 when the driver cannot report it, for example for
	// row-returning queries.
	RowsAffected int64

	// CallSite is the stack at execute time, CreatedBy the stack at prepare
	// time. Both are empty when stack capture is disabled.
	CallSite  Frames
	CreatedBy Frames
}

// ElapsedSeconds returns Elapsed as fractional seconds.
func (r Record) ElapsedSeconds() float64 {
	return r.Elapsed.Seconds()
}

// ErrorInfo is the structured error tuple of an execution: the five
// character SQLSTATE, the driver specific code and the driver message.
type ErrorInfo struct {
	SQLState string `json:"sqlstate"`
	Code     string `json:"code,omitempty"`
	Message  string `json:"message,omitempty"`
}

// OK reports whether the execution completed without error.
func (e ErrorInfo) OK() bool {
	return e.SQLState == sqlStateOK
}

// sqlStater is implemented by driver errors that expose their SQLSTATE.
type sqlStater interface {
	SQLState() string
}

// errorInfoOf maps a driver error onto an ErrorInfo.
func errorInfoOf(err error) ErrorInfo {
	if err == nil {
		return ErrorInfo{SQLState: sqlStateOK}
	}

	var (
		pgErr  *pgconn.PgError
		pqErr  *pq.Error
		litErr *sqlite.Error
		stater sqlStater
	)

	switch {
	case errors.As(err, &pgErr):
		return ErrorInfo{SQLState: pgErr.Code, Code: pgErr.Code, Message: pgErr.Message}
	case errors.As(err, &pqErr):
		return ErrorInfo{SQLState: string(pqErr.Code), Code: string(pqErr.Code), Message: pqErr.Message}
	case errors.As(err, &litErr):
		return ErrorInfo{SQLState: sqlStateGeneral, Code: strconv.Itoa(litErr.Code()), Message: litErr.Error()}
	case errors.As(err, &stater):
		return ErrorInfo{SQLState: stater.SQLState(), Message: err.Error()}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorInfo{SQLState: sqlStateCanceled, Message: err.Error()}
	default:
		return ErrorInfo{SQLState: sqlStateGeneral, Message: err.Error()}
	}
}

// Frames is a captured call stack, innermost frame first.
type Frames []runtime.Frame

// maxFrames bounds the depth of a captured stack.
const maxFrames = 32

// internalPrefixes are function name prefixes dropped from captured stacks
// so that the first frame is the caller's code.
var internalPrefixes = []string{
	"database/sql.",
	"github.com/kroma-labs/sqlshadow/sql.",
	"github.com/kroma-labs/sqlshadow/sqlx.",
	"github.com/jmoiron/sqlx.",
	"runtime.",
}

// CaptureFrames returns the current call stack, skipping skip frames above
// the caller of CaptureFrames and every frame that belongs to database/sql
// or to this module's wrappers.
func CaptureFrames(skip int) Frames {
	pcs := make([]uintptr, maxFrames+skip)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return nil
	}

	frames := runtime.CallersFrames(pcs[:n])
	out := make(Frames, 0, n)
	for {
		f, more := frames.Next()
		if !internalFrame(f.Function) {
			out = append(out, f)
		}
		if !more || len(out) == maxFrames {
			break
		}
	}
	return out
}

func internalFrame(fn string) bool {
	for _, p := range internalPrefixes {
		// Test functions live in the same packages and must stay visible.
		if strings.HasPrefix(fn, p) && !strings.Contains(fn, ".Test") {
			return true
		}
	}
	return false
}

// Strings renders every frame as "function file:line".
func (f Frames) Strings() []string {
	out := make([]string, len(f))
	for i, fr := range f {
		out[i] = fmt.Sprintf("%s %s:%d", fr.Function, fr.File, fr.Line)
	}
	return out
}

// String implements fmt.Stringer.
func (f Frames) String() string {
	return strings.Join(f.Strings(), "\n")
}
