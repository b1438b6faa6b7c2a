// Package httpdebug serves a telemetry context over HTTP for operators:
// the execution log, counters, the slow-query threshold and Prometheus
// metrics.
//
// Mount it on an internal listener only. Recorded queries contain bound
// values verbatim.
//
//	mux.Handle("/debug/sql/", http.StripPrefix("/debug/sql", httpdebug.New(tel,
//	    httpdebug.WithLogger(logger),
//	)))
//
// Routes:
//
//	GET    /executions          newest first; ?slow=true, ?operation=SELECT, ?limit=N
//	GET    /executions/{id}     one record
//	DELETE /executions          drain the log
//	GET    /stats               counters
//	GET    /threshold           current slow-query threshold
//	PUT    /threshold           {"seconds": 0.25} or {"disabled": true}
//	GET    /metrics             Prometheus text format
package httpdebug

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	sqlshadow "github.com/kroma-labs/sqlshadow/sql"
)

// defaultLimit bounds GET /executions when no limit is given.
const defaultLimit = 100

type config struct {
	logger   zerolog.Logger
	instance string
	readOnly bool
}

// Option configures the handler.
type Option func(*config)

// WithLogger sets the logger for request logs and handler errors.
func WithLogger(l zerolog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = l
	}
}

// WithInstanceName sets the instance_name label of the exported metrics.
func WithInstanceName(name string) Option {
	return func(cfg *config) {
		cfg.instance = name
	}
}

// WithReadOnly removes the routes that change the telemetry context.
func WithReadOnly() Option {
	return func(cfg *config) {
		cfg.readOnly = true
	}
}

type handler struct {
	tel *sqlshadow.Telemetry
	cfg config
}

// New returns a handler serving tel.
func New(tel *sqlshadow.Telemetry, opts ...Option) http.Handler {
	cfg := config{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	h := &handler{tel: tel, cfg: cfg}

	registry := prometheus.NewRegistry()
	registry.MustRegister(sqlshadow.NewCollector(tel, cfg.instance))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(cfg.logger))
	r.Use(recovery(cfg.logger))

	r.Get("/executions", h.listExecutions)
	r.Get("/executions/{id}", h.getExecution)
	r.Get("/stats", h.getStats)
	r.Get("/threshold", h.getThreshold)
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	if !cfg.readOnly {
		r.Delete("/executions", h.drainExecutions)
		r.Put("/threshold", h.putThreshold)
	}

	return r
}

func (h *handler) listExecutions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := defaultLimit
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, h.cfg.logger, http.StatusBadRequest, "invalid query",
				Error{Field: "limit", Message: "must be a positive integer"})
			return
		}
		limit = n
	}

	var slowOnly bool
	if s := q.Get("slow"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			writeError(w, h.cfg.logger, http.StatusBadRequest, "invalid query",
				Error{Field: "slow", Message: "must be a boolean"})
			return
		}
		slowOnly = b
	}
	operation := strings.ToUpper(q.Get("operation"))

	records := h.tel.Executions()
	out := make([]sqlshadow.Record, 0, min(limit, len(records)))
	for i := len(records) - 1; i >= 0 && len(out) < limit; i-- {
		rec := records[i]
		if slowOnly && !rec.Slow {
			continue
		}
		if operation != "" && rec.Operation != operation {
			continue
		}
		out = append(out, rec)
	}

	writeJSON(w, h.cfg.logger, http.StatusOK, Response[[]sqlshadow.Record]{Data: out})
}

func (h *handler) getExecution(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.cfg.logger, http.StatusBadRequest, "invalid path",
			Error{Field: "id", Message: "must be a UUID"})
		return
	}

	rec, ok := h.tel.Execution(id)
	if !ok {
		writeError(w, h.cfg.logger, http.StatusNotFound, "execution not found")
		return
	}

	writeJSON(w, h.cfg.logger, http.StatusOK, Response[sqlshadow.Record]{Data: rec})
}

type drainResponse struct {
	Drained int `json:"drained"`
}

func (h *handler) drainExecutions(w http.ResponseWriter, _ *http.Request) {
	n := len(h.tel.Drain())

	h.cfg.logger.Info().Int("drained", n).Msg("execution log drained")
	writeJSON(w, h.cfg.logger, http.StatusOK, Response[drainResponse]{Data: drainResponse{Drained: n}})
}

type statsResponse struct {
	Executions          uint64  `json:"executions"`
	Failures            uint64  `json:"failures"`
	SlowQueries         uint64  `json:"slow_queries"`
	Dropped             uint64  `json:"dropped"`
	Buffered            int     `json:"buffered"`
	TotalElapsedSeconds float64 `json:"total_elapsed_seconds"`
}

func (h *handler) getStats(w http.ResponseWriter, _ *http.Request) {
	s := h.tel.Stats()

	writeJSON(w, h.cfg.logger, http.StatusOK, Response[statsResponse]{Data: statsResponse{
		Executions:          s.Executions,
		Failures:            s.Failures,
		SlowQueries:         s.SlowQueries,
		Dropped:             s.Dropped,
		Buffered:            s.Buffered,
		TotalElapsedSeconds: s.TotalElapsed.Seconds(),
	}})
}

// thresholdBody is the wire form of the threshold. Seconds is null when
// the threshold is disabled, since JSON has no infinity.
type thresholdBody struct {
	Seconds  *float64 `json:"seconds"`
	Disabled bool     `json:"disabled"`
}

func (h *handler) thresholdBody() thresholdBody {
	d := h.tel.SlowQueryThreshold()
	if d == sqlshadow.DisabledThreshold {
		return thresholdBody{Disabled: true}
	}
	s := d.Seconds()
	return thresholdBody{Seconds: &s}
}

func (h *handler) getThreshold(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.cfg.logger, http.StatusOK, Response[thresholdBody]{Data: h.thresholdBody()})
}

func (h *handler) putThreshold(w http.ResponseWriter, r *http.Request) {
	var body thresholdBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&body); err != nil {
		writeError(w, h.cfg.logger, http.StatusBadRequest, "invalid body",
			Error{Field: "body", Message: err.Error()})
		return
	}

	switch {
	case body.Disabled:
		h.tel.SetSlowQueryThreshold(sqlshadow.DisabledThreshold)
	case body.Seconds != nil:
		h.tel.SetSlowQueryThresholdSeconds(*body.Seconds)
	default:
		writeError(w, h.cfg.logger, http.StatusBadRequest, "invalid body",
			Error{Field: "seconds", Message: "required unless disabled is true"})
		return
	}

	h.cfg.logger.Info().
		Dur("threshold", h.tel.SlowQueryThreshold()).
		Msg("slow query threshold changed")

	writeJSON(w, h.cfg.logger, http.StatusOK, Response[thresholdBody]{
		Data:    h.thresholdBody(),
		Message: "threshold updated",
	})
}
