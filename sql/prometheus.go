package sql

import (
	"github.com/prometheus/client_golang/prometheus"
)

var _ prometheus.Collector = (*Collector)(nil)

// Collector exports the counters of a Telemetry to Prometheus.
//
// Example:
//
//	prometheus.MustRegister(sqlshadow.NewCollector(tel, "primary"))
type Collector struct {
	tel *Telemetry

	executions *prometheus.Desc
	failures   *prometheus.Desc
	slow       *prometheus.Desc
	dropped    *prometheus.Desc
	buffered   *prometheus.Desc
	elapsed    *prometheus.Desc
	threshold  *prometheus.Desc
}

// NewCollector returns a collector for tel. instance is added as the
// "instance_name" const label when not empty.
func NewCollector(tel *Telemetry, instance string) *Collector {
	var labels prometheus.Labels
	if instance != "" {
		labels = prometheus.Labels{"instance_name": instance}
	}

	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName("sqlshadow", "", name), help, nil, labels)
	}

	return &Collector{
		tel:        tel,
		executions: desc("executions_total", "Number of recorded executions."),
		failures:   desc("execution_failures_total", "Number of recorded executions that returned an error."),
		slow:       desc("slow_queries_total", "Number of executions that met the slow-query threshold."),
		dropped:    desc("dropped_records_total", "Number of records evicted by the record cap."),
		buffered:   desc("buffered_records", "Number of records currently held in the execution log."),
		elapsed:    desc("execution_seconds_total", "Total elapsed time of recorded executions."),
		threshold:  desc("slow_query_threshold_seconds", "Current slow-query threshold, +Inf when disabled."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.executions
	ch <- c.failures
	ch <- c.slow
	ch <- c.dropped
	ch <- c.buffered
	ch <- c.elapsed
	ch <- c.threshold
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.tel.Stats()

	threshold := c.tel.SlowQueryThresholdSeconds()

	ch <- prometheus.MustNewConstMetric(c.executions, prometheus.CounterValue, float64(s.Executions))
	ch <- prometheus.MustNewConstMetric(c.failures, prometheus.CounterValue, float64(s.Failures))
	ch <- prometheus.MustNewConstMetric(c.slow, prometheus.CounterValue, float64(s.SlowQueries))
	ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(s.Dropped))
	ch <- prometheus.MustNewConstMetric(c.buffered, prometheus.GaugeValue, float64(s.Buffered))
	ch <- prometheus.MustNewConstMetric(c.elapsed, prometheus.CounterValue, s.TotalElapsed.Seconds())
	ch <- prometheus.MustNewConstMetric(c.threshold, prometheus.GaugeValue, threshold)
}
