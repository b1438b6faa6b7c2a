package httpdebug

import (
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// Response is the envelope of every JSON response.
//
// Example success response:
//
//	{
//	  "data": {"executions": 12, "failures": 1},
//	  "message": "ok"
//	}
//
// Example error response:
//
//	{
//	  "errors": [{"field": "limit", "message": "must be a positive integer"}],
//	  "message": "invalid query"
//	}
type Response[T any] struct {
	Data    T       `json:"data,omitempty"`
	Errors  []Error `json:"errors,omitempty"`
	Message string  `json:"message,omitempty"`
}

// Error is a single field-level error.
type Error struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func writeJSON[T any](w http.ResponseWriter, logger zerolog.Logger, statusCode int, response Response[T]) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		// Headers are already written.
		logger.Error().
			Err(err).
			Int("status_code", statusCode).
			Msg("failed to encode JSON response")
	}
}

func writeError(w http.ResponseWriter, logger zerolog.Logger, statusCode int, message string, errs ...Error) {
	writeJSON(w, logger, statusCode, Response[any]{
		Errors:  errs,
		Message: message,
	})
}
