// Package metrics collects run metrics in a private prometheus registry.
// A nil *Metrics discards every observation.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// File results.
const (
	ResultChecked = "checked"
	ResultCached  = "cached"
	ResultFailed  = "failed"
)

type Metrics struct {
	reg *prometheus.Registry

	files        *prometheus.CounterVec
	fileDuration prometheus.Histogram
	events       *prometheus.CounterVec
	filtered     prometheus.Counter
	runDuration  prometheus.Gauge
	workers      *prometheus.GaugeVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		files: f.NewCounterVec(prometheus.CounterOpts{
			Name: "arbor_files_total",
			Help: "Files processed by result",
		}, []string{"result"}),
		fileDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "arbor_file_duration_seconds",
			Help:    "Parse and walk duration per file in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "arbor_events_total",
			Help: "Delivered audit events by severity",
		}, []string{"severity"}),
		filtered: f.NewCounter(prometheus.CounterOpts{
			Name: "arbor_events_filtered_total",
			Help: "Events rejected by filters or ignored",
		}),
		runDuration: f.NewGauge(prometheus.GaugeOpts{
			Name: "arbor_run_duration_seconds",
			Help: "Wall time of the last run",
		}),
		workers: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "arbor_threads",
			Help: "Configured thread counts",
		}, []string{"level"}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Metrics) Threads(checker, treeWalker int) {
	if m == nil {
		return
	}
	m.workers.WithLabelValues("checker").Set(float64(checker))
	m.workers.WithLabelValues("tree_walker").Set(float64(treeWalker))
}

// File records one processed file.
func (m *Metrics) File(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.files.WithLabelValues(result).Inc()
	if result != ResultCached {
		m.fileDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) Events(severity string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.events.WithLabelValues(severity).Add(float64(n))
}

func (m *Metrics) Filtered(n int) {
	if m == nil || n == 0 {
		return
	}
	m.filtered.Add(float64(n))
}

func (m *Metrics) Run(d time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.Set(d.Seconds())
}

// WriteTextfile writes all metrics in the text exposition format, for the
// node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
