// Package prometheus implements metrics collection for the engine.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements ports.MetricsCollector using Prometheus
type Collector struct {
	runsSubmitted     *prometheus.CounterVec
	runsCompleted     *prometheus.CounterVec
	runDuration       prometheus.Histogram
	nodesExecuted     *prometheus.CounterVec
	nodeDuration      *prometheus.HistogramVec
	foreachIterations *prometheus.CounterVec
	activeRuns        prometheus.Gauge
}

// NewCollector creates a new Prometheus metrics collector
func NewCollector() *Collector {
	return &Collector{
		runsSubmitted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scopeflow_runs_submitted_total",
				Help: "Total number of pipeline runs submitted",
			},
			[]string{"status"},
		),
		runsCompleted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scopeflow_runs_completed_total",
				Help: "Total number of pipeline runs that reached a terminal state",
			},
			[]string{"status"},
		),
		runDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scopeflow_run_duration_seconds",
				Help:    "Pipeline run duration in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
			},
		),
		nodesExecuted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scopeflow_nodes_executed_total",
				Help: "Total number of nodes executed",
			},
			[]string{"node_type", "status"},
		),
		nodeDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scopeflow_node_duration_seconds",
				Help:    "Node execution duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"node_type"},
		),
		foreachIterations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scopeflow_foreach_iterations_total",
				Help: "Total number of loop iterations executed",
			},
			[]string{"node_id"},
		),
		activeRuns: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scopeflow_active_runs",
				Help: "Number of currently active pipeline runs",
			},
		),
	}
}

// RecordRunSubmitted records a run submission
func (c *Collector) RecordRunSubmitted(status string) {
	c.runsSubmitted.WithLabelValues(status).Inc()
}

// RecordRunCompleted records a run reaching a terminal state
func (c *Collector) RecordRunCompleted(status string, duration time.Duration) {
	c.runsCompleted.WithLabelValues(status).Inc()
	c.runDuration.Observe(duration.Seconds())
}

// RecordNodeExecuted records a node execution
func (c *Collector) RecordNodeExecuted(nodeType, status string, duration time.Duration) {
	c.nodesExecuted.WithLabelValues(nodeType, status).Inc()
	c.nodeDuration.WithLabelValues(nodeType).Observe(duration.Seconds())
}

// RecordForEachIteration records one loop iteration
func (c *Collector) RecordForEachIteration(nodeID string) {
	c.foreachIterations.WithLabelValues(nodeID).Inc()
}

// SetActiveRuns sets the number of currently active runs
func (c *Collector) SetActiveRuns(count int) {
	c.activeRuns.Set(float64(count))
}
