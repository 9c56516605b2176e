// Package metrics holds the Prometheus collectors of the security events
// connector on a private registry.
//
// Metrics:
//   - secevents_api_calls_total{endpoint} (Counter): dispatched HTTP attempts
//   - secevents_retries_total{endpoint} (Counter): retries after a timeout
//   - secevents_backoff_seconds (Histogram): delay slept before each retry
//   - secevents_request_duration_seconds{endpoint} (Histogram): attempt duration
//   - secevents_pages_total{endpoint} (Counter): pages persisted
//   - secevents_records_total{endpoint} (Counter): records counted
//   - secevents_errors_total{type} (Counter): terminal failures by error type
//
// A batch run has no scrape endpoint, so the registry is exported once at the
// end of the run with WriteTextfile for the node-exporter textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector groups the connector metrics. A nil *Collector is valid and
// records nothing.
type Collector struct {
	registry *prometheus.Registry

	apiCalls        *prometheus.CounterVec
	retries         *prometheus.CounterVec
	backoffSeconds  prometheus.Histogram
	requestDuration *prometheus.HistogramVec
	pages           *prometheus.CounterVec
	records         *prometheus.CounterVec
	errors          *prometheus.CounterVec
}

// New creates a Collector registered on a fresh registry
func New() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		apiCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "secevents_api_calls_total",
			Help: "Total HTTP attempts dispatched by endpoint",
		}, []string{"endpoint"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "secevents_retries_total",
			Help: "Total retries after a timeout by endpoint",
		}, []string{"endpoint"}),
		backoffSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "secevents_backoff_seconds",
			Help:    "Delay slept before a retry in seconds",
			Buckets: []float64{2, 4, 8, 16, 32, 64},
		}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "secevents_request_duration_seconds",
			Help:    "HTTP attempt duration in seconds by endpoint",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"endpoint"}),
		pages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "secevents_pages_total",
			Help: "Total pages persisted by endpoint",
		}, []string{"endpoint"}),
		records: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "secevents_records_total",
			Help: "Total records counted by endpoint",
		}, []string{"endpoint"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "secevents_errors_total",
			Help: "Total terminal failures by error type",
		}, []string{"type"}),
	}
}

// Registry returns the registry holding the connector metrics
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// APICall records one dispatched attempt and its duration
func (c *Collector) APICall(endpoint string, duration time.Duration) {
	if c == nil {
		return
	}
	c.apiCalls.WithLabelValues(endpoint).Inc()
	c.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// Retry records a retry and the backoff slept before it
func (c *Collector) Retry(endpoint string, delay time.Duration) {
	if c == nil {
		return
	}
	c.retries.WithLabelValues(endpoint).Inc()
	c.backoffSeconds.Observe(delay.Seconds())
}

// Page records a persisted page and the records it held
func (c *Collector) Page(endpoint string, records int) {
	if c == nil {
		return
	}
	c.pages.WithLabelValues(endpoint).Inc()
	c.records.WithLabelValues(endpoint).Add(float64(records))
}

// Error records a terminal failure of the given type
func (c *Collector) Error(errorType string) {
	if c == nil {
		return
	}
	c.errors.WithLabelValues(errorType).Inc()
}

// WriteTextfile writes the registry to path in the text exposition format.
// prometheus.WriteToTextfile writes through a temp file and rename.
func (c *Collector) WriteTextfile(path string) error {
	if c == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
