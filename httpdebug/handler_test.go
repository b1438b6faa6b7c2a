package httpdebug_test

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kroma-labs/sqlshadow/httpdebug"
	sqlshadow "github.com/kroma-labs/sqlshadow/sql"
)

type envelope struct {
	Data    json.RawMessage   `json:"data"`
	Errors  []httpdebug.Error `json:"errors"`
	Message string            `json:"message"`
}

type recordView struct {
	ID        string `json:"id"`
	Query     string `json:"query"`
	Operation string `json:"operation"`
	Slow      bool   `json:"slow"`
}

func do(t *testing.T, h http.Handler, method, target, body string) (int, envelope) {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec.Code, env
}

func seed(tel *sqlshadow.Telemetry) []sqlshadow.Record {
	return []sqlshadow.Record{
		tel.Observe(sqlshadow.Observation{Query: "SELECT 1", Elapsed: time.Millisecond, RowsAffected: -1}),
		tel.Observe(sqlshadow.Observation{Query: "UPDATE t SET a = 1", Elapsed: time.Second, RowsAffected: 3}),
		tel.Observe(sqlshadow.Observation{Query: "SELECT 2", Elapsed: 2 * time.Second, RowsAffected: -1}),
	}
}

func TestHandler_ListExecutions(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		wantCode int
		want     []string
	}{
		{
			name:     "given no filter, then returns newest first",
			target:   "/executions",
			wantCode: http.StatusOK,
			want:     []string{"SELECT 2", "UPDATE t SET a = 1", "SELECT 1"},
		},
		{
			name:     "given slow filter, then returns slow records only",
			target:   "/executions?slow=true",
			wantCode: http.StatusOK,
			want:     []string{"SELECT 2", "UPDATE t SET a = 1"},
		},
		{
			name:     "given operation filter, then matches case-insensitively",
			target:   "/executions?operation=select",
			wantCode: http.StatusOK,
			want:     []string{"SELECT 2", "SELECT 1"},
		},
		{
			name:     "given limit, then truncates",
			target:   "/executions?limit=1",
			wantCode: http.StatusOK,
			want:     []string{"SELECT 2"},
		},
		{
			name:     "given invalid limit, then returns bad request",
			target:   "/executions?limit=-1",
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "given invalid slow flag, then returns bad request",
			target:   "/executions?slow=maybe",
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tel := sqlshadow.NewTelemetry(sqlshadow.WithSlowQueryThreshold(500 * time.Millisecond))
			seed(tel)

			code, env := do(t, httpdebug.New(tel), http.MethodGet, tt.target, "")

			require.Equal(t, tt.wantCode, code)
			if tt.wantCode != http.StatusOK {
				assert.NotEmpty(t, env.Errors)
				return
			}

			var got []recordView
			require.NoError(t, json.Unmarshal(env.Data, &got))
			queries := make([]string, len(got))
			for i, r := range got {
				queries[i] = r.Query
			}
			assert.Equal(t, tt.want, queries)
		})
	}
}

func TestHandler_GetExecution(t *testing.T) {
	tel := sqlshadow.NewTelemetry()
	records := seed(tel)
	h := httpdebug.New(tel)

	t.Run("given known id, then returns the record", func(t *testing.T) {
		code, env := do(t, h, http.MethodGet, "/executions/"+records[1].ID.String(), "")

		require.Equal(t, http.StatusOK, code)
		var got recordView
		require.NoError(t, json.Unmarshal(env.Data, &got))
		assert.Equal(t, records[1].ID.String(), got.ID)
		assert.Equal(t, "UPDATE", got.Operation)
	})

	t.Run("given unknown id, then returns not found", func(t *testing.T) {
		code, env := do(t, h, http.MethodGet, "/executions/00000000-0000-0000-0000-000000000000", "")

		assert.Equal(t, http.StatusNotFound, code)
		assert.Equal(t, "execution not found", env.Message)
	})

	t.Run("given malformed id, then returns bad request", func(t *testing.T) {
		code, env := do(t, h, http.MethodGet, "/executions/nope", "")

		assert.Equal(t, http.StatusBadRequest, code)
		require.Len(t, env.Errors, 1)
		assert.Equal(t, "id", env.Errors[0].Field)
	})
}

func TestHandler_DrainExecutions(t *testing.T) {
	tel := sqlshadow.NewTelemetry()
	seed(tel)

	code, env := do(t, httpdebug.New(tel), http.MethodDelete, "/executions", "")

	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"drained":3}`, string(env.Data))
	assert.Empty(t, tel.Executions())
}

func TestHandler_Stats(t *testing.T) {
	tel := sqlshadow.NewTelemetry(sqlshadow.WithSlowQueryThreshold(500 * time.Millisecond))
	seed(tel)

	code, env := do(t, httpdebug.New(tel), http.MethodGet, "/stats", "")

	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{
		"executions": 3,
		"failures": 0,
		"slow_queries": 2,
		"dropped": 0,
		"buffered": 3,
		"total_elapsed_seconds": 3.001
	}`, string(env.Data))
}

func TestHandler_Threshold(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantData string
		want     time.Duration
	}{
		{
			name:     "given seconds, then sets the threshold",
			body:     `{"seconds": 0.25}`,
			wantCode: http.StatusOK,
			wantData: `{"seconds": 0.25, "disabled": false}`,
			want:     250 * time.Millisecond,
		},
		{
			name:     "given negative seconds, then clamps to zero",
			body:     `{"seconds": -3}`,
			wantCode: http.StatusOK,
			wantData: `{"seconds": 0, "disabled": false}`,
			want:     0,
		},
		{
			name:     "given disabled, then disables the threshold",
			body:     `{"disabled": true}`,
			wantCode: http.StatusOK,
			wantData: `{"seconds": null, "disabled": true}`,
			want:     sqlshadow.DisabledThreshold,
		},
		{
			name:     "given empty object, then returns bad request",
			body:     `{}`,
			wantCode: http.StatusBadRequest,
			want:     time.Second,
		},
		{
			name:     "given malformed body, then returns bad request",
			body:     `{"seconds":`,
			wantCode: http.StatusBadRequest,
			want:     time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tel := sqlshadow.NewTelemetry(sqlshadow.WithSlowQueryThreshold(time.Second))
			h := httpdebug.New(tel)

			code, env := do(t, h, http.MethodPut, "/threshold", tt.body)

			require.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.want, tel.SlowQueryThreshold())
			if tt.wantData == "" {
				return
			}
			assert.JSONEq(t, tt.wantData, string(env.Data))

			code, env = do(t, h, http.MethodGet, "/threshold", "")
			require.Equal(t, http.StatusOK, code)
			assert.JSONEq(t, tt.wantData, string(env.Data))
		})
	}
}

func TestHandler_ReadOnly(t *testing.T) {
	tel := sqlshadow.NewTelemetry()
	seed(tel)
	h := httpdebug.New(tel, httpdebug.WithReadOnly())

	code, _ := do(t, h, http.MethodDelete, "/executions", "")
	assert.Equal(t, http.StatusMethodNotAllowed, code)

	code, _ = do(t, h, http.MethodPut, "/threshold", `{"disabled": true}`)
	assert.Equal(t, http.StatusMethodNotAllowed, code)

	assert.Len(t, tel.Executions(), 3)
	assert.Equal(t, sqlshadow.DisabledThreshold, tel.SlowQueryThreshold())
}

func TestHandler_Metrics(t *testing.T) {
	tel := sqlshadow.NewTelemetry()
	seed(tel)
	h := httpdebug.New(tel, httpdebug.WithInstanceName("orders"))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `sqlshadow_executions_total{instance_name="orders"} 3`)
}

func TestHandler_RequestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	h := httpdebug.New(sqlshadow.NewTelemetry(), httpdebug.WithLogger(logger))

	do(t, h, http.MethodGet, "/executions/nope", "")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "/executions/nope", line["path"])
	assert.EqualValues(t, http.StatusBadRequest, line["status"])
	assert.NotEmpty(t, line["request_id"])
}
