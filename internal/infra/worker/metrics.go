package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WorkerMetrics provides Prometheus metrics for the sweep worker:
//   - worker_sweep_runs_total: total sweep runs by status (success/failure)
//   - worker_sweep_duration_seconds: duration histogram of sweep execution
//   - worker_sweep_stories_processed_total: developing stories visited
//   - worker_sweep_last_success_timestamp: Unix timestamp of last success
type WorkerMetrics struct {
	SweepRunsTotal             *prometheus.CounterVec
	SweepDurationSeconds       prometheus.Histogram
	SweepStoriesProcessedTotal prometheus.Counter
	SweepLastSuccessTimestamp  prometheus.Gauge
}

// NewWorkerMetrics creates a WorkerMetrics instance. Metrics are registered
// with the default registry via promauto at creation time.
func NewWorkerMetrics() *WorkerMetrics {
	return &WorkerMetrics{
		SweepRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_sweep_runs_total",
			Help: "Total number of enrichment sweep runs by status (success/failure)",
		}, []string{"status"}),

		SweepDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "worker_sweep_duration_seconds",
			Help:    "Duration of enrichment sweep execution in seconds",
			Buckets: []float64{1, 5, 30, 60, 300, 900, 1800},
		}),

		SweepStoriesProcessedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "worker_sweep_stories_processed_total",
			Help: "Total number of developing stories visited across all sweep runs",
		}),

		SweepLastSuccessTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "worker_sweep_last_success_timestamp",
			Help: "Unix timestamp of the last successful sweep run",
		}),
	}
}

// RecordSweepRun increments the sweep run counter for the given status.
func (m *WorkerMetrics) RecordSweepRun(status string) {
	m.SweepRunsTotal.WithLabelValues(status).Inc()
}

// RecordSweepDuration observes the duration of a sweep run in seconds.
func (m *WorkerMetrics) RecordSweepDuration(seconds float64) {
	m.SweepDurationSeconds.Observe(seconds)
}

// RecordStoriesProcessed adds the number of stories visited in a sweep run.
func (m *WorkerMetrics) RecordStoriesProcessed(count int) {
	m.SweepStoriesProcessedTotal.Add(float64(count))
}

// RecordLastSuccess records the current time as the last successful sweep.
func (m *WorkerMetrics) RecordLastSuccess() {
	m.SweepLastSuccessTimestamp.SetToCurrentTime()
}
