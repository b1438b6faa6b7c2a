package sql

import (
	"bufio"
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestRecord_MarshalJSON(t *testing.T) {
	id := uuid.MustParse("6f1c2a8e-0d1b-4c39-9a77-3f3f0a6b2d11")
	rec := Record{
		ID:            id,
		CreatedAt:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Query:         "DELETE FROM t WHERE id = 1",
		OriginalQuery: "DELETE FROM t WHERE id = ?",
		Operation:     "DELETE",
		Elapsed:       1500 * time.Millisecond,
		Slow:          true,
		ErrorInfo:     ErrorInfo{SQLState: "00000"},
		RowsAffected:  1,
		CallSite:      Frames{{Function: "main.run", File: "/app/main.go", Line: 7}},
	}

	b, err := json.Marshal(rec)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"id": "6f1c2a8e-0d1b-4c39-9a77-3f3f0a6b2d11",
		"created_at": "2024-05-01T12:00:00Z",
		"query": "DELETE FROM t WHERE id = 1",
		"original_query": "DELETE FROM t WHERE id = ?",
		"operation": "DELETE",
		"elapsed_seconds": 1.5,
		"slow": true,
		"error": {"sqlstate": "00000"},
		"rows_affected": 1,
		"call_site": ["main.run /app/main.go:7"]
	}`, string(b))
}

func TestWriteNDJSON(t *testing.T) {
	t.Run("given drained records, then writes one line per record", func(t *testing.T) {
		tel := NewTelemetry()
		observe(tel, time.Millisecond, nil)
		observe(tel, 2*time.Millisecond, assert.AnError)

		var buf bytes.Buffer
		require.NoError(t, WriteNDJSON(&buf, tel.Drain()))

		var lines []map[string]any
		sc := bufio.NewScanner(&buf)
		for sc.Scan() {
			var m map[string]any
			require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
			lines = append(lines, m)
		}
		require.Len(t, lines, 2)
		assert.Equal(t, "SELECT * FROM t WHERE id = 1", lines[0]["query"])
		assert.Equal(t, "HY000", lines[1]["error"].(map[string]any)["sqlstate"])
	})

	t.Run("given no records, then writes nothing", func(t *testing.T) {
		var buf bytes.Buffer

		require.NoError(t, WriteNDJSON(&buf, nil))
		assert.Zero(t, buf.Len())
	})

	t.Run("given failing writer, then returns error", func(t *testing.T) {
		tel := NewTelemetry()
		observe(tel, time.Millisecond, nil)

		assert.ErrorContains(t, WriteNDJSON(failingWriter{}, tel.Executions()), "disk full")
	})
}
