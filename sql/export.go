package sql

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"
)

// recordJSON is the wire form of a Record.
type recordJSON struct {
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	Query          string    `json:"query"`
	OriginalQuery  string    `json:"original_query"`
	Operation      string    `json:"operation,omitempty"`
	ElapsedSeconds float64   `json:"elapsed_seconds"`
	Slow           bool      `json:"slow"`
	Error          ErrorInfo `json:"error"`
	RowsAffected   int64     `json:"rows_affected"`
	CallSite       []string  `json:"call_site,omitempty"`
	CreatedBy      []string  `json:"created_by,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordJSON{
		ID:             r.ID.String(),
		CreatedAt:      r.CreatedAt,
		Query:          r.Query,
		OriginalQuery:  r.OriginalQuery,
		Operation:      r.Operation,
		ElapsedSeconds: r.ElapsedSeconds(),
		Slow:           r.Slow,
		Error:          r.ErrorInfo,
		RowsAffected:   r.RowsAffected,
		CallSite:       r.CallSite.Strings(),
		CreatedBy:      r.CreatedBy.Strings(),
	})
}

// WriteNDJSON writes records to w as newline-delimited JSON, one record per
// line. Combined with Telemetry.Drain it rotates the log to a file:
//
//	f, _ := os.OpenFile("executions.ndjson", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
//	defer f.Close()
//	err := sqlshadow.WriteNDJSON(f, tel.Drain())
func WriteNDJSON(w io.Writer, records []Record) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)

	for i := range records {
		if err := enc.Encode(records[i]); err != nil {
			return fmt.Errorf("encode record %s: %w", records[i].ID, err)
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush records: %w", err)
	}
	return nil
}
