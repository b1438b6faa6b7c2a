package sqlx

import (
	sqlshadow "github.com/kroma-labs/sqlshadow/sql"
)

// Option configures the instrumentation. It is the same type as the sql
// package's Option, so options can be shared between both packages.
type Option = sqlshadow.Option

// Options re-exported from the sql package.
var (
	WithTracerProvider = sqlshadow.WithTracerProvider
	WithMeterProvider  = sqlshadow.WithMeterProvider
	WithTelemetry      = sqlshadow.WithTelemetry
	WithQuoter         = sqlshadow.WithQuoter
	WithDBSystem       = sqlshadow.WithDBSystem
	WithDBName         = sqlshadow.WithDBName
	WithInstanceName   = sqlshadow.WithInstanceName
	WithQuerySanitizer = sqlshadow.WithQuerySanitizer
	WithDisableQuery   = sqlshadow.WithDisableQuery
)
