// Package metrics defines Prometheus metrics for the story pipeline and
// helpers for recording them. Metrics are registered via promauto at package
// initialization and exposed by the worker's metrics server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DuplicateVerdictsTotal counts duplicate detection outcomes by the layer
	// that produced them (title_short_circuit, llm_verified) and the verdict.
	DuplicateVerdictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "story_duplicate_verdicts_total",
			Help: "Duplicate detection verdicts by layer and result",
		},
		[]string{"layer", "result"},
	)

	// StoryUpdatesTotal counts update (progression) detection outcomes.
	StoryUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "story_updates_total",
			Help: "Story update detection outcomes",
		},
		[]string{"result"},
	)

	// StoriesMergedTotal counts merge synthesis operations by outcome
	// (synthesized, fallback, passthrough).
	StoriesMergedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stories_merged_total",
			Help: "Story merge operations by outcome",
		},
		[]string{"outcome"},
	)

	// EnrichmentSweepArticlesTotal counts per-article sweep outcomes
	// (enriched, completed, skipped, failed).
	EnrichmentSweepArticlesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichment_sweep_articles_total",
			Help: "Per-article outcomes of the periodic enrichment sweep",
		},
		[]string{"outcome"},
	)

	// LLMCallDuration observes latency of LLM-backed classifier calls.
	LLMCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_call_duration_seconds",
			Help:    "Latency of LLM classifier calls by operation",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"operation", "status"},
	)

	// ActiveTimelines tracks the number of live story timelines.
	ActiveTimelines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "story_timelines_active",
			Help: "Number of active story timelines",
		},
	)
)

// RecordDuplicateVerdict records a duplicate detection verdict.
func RecordDuplicateVerdict(layer string, isDuplicate bool) {
	result := "rejected"
	if isDuplicate {
		result = "confirmed"
	}
	DuplicateVerdictsTotal.WithLabelValues(layer, result).Inc()
}

// RecordStoryUpdate records an update detection outcome.
func RecordStoryUpdate(isUpdate bool) {
	result := "no_update"
	if isUpdate {
		result = "update"
	}
	StoryUpdatesTotal.WithLabelValues(result).Inc()
}

// RecordMerge records a merge synthesis outcome.
func RecordMerge(outcome string) {
	StoriesMergedTotal.WithLabelValues(outcome).Inc()
}

// RecordSweepOutcome records a per-article enrichment sweep outcome.
func RecordSweepOutcome(outcome string) {
	EnrichmentSweepArticlesTotal.WithLabelValues(outcome).Inc()
}

// RecordLLMCall observes the duration and status of one LLM classifier call.
func RecordLLMCall(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	LLMCallDuration.WithLabelValues(operation, status).Observe(duration.Seconds())
}
