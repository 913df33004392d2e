// Package metrics provides Prometheus metrics for sitecrafter sessions.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// File action outcomes.
const (
	OutcomeApplied  = "applied"
	OutcomeRejected = "rejected"
	OutcomeDropped  = "dropped"
)

var (
	batchesReceivedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sitecrafter_batches_received_total",
			Help: "Total action batches received",
		},
	)

	actionsReceivedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sitecrafter_actions_received_total",
			Help: "Total actions received",
		},
	)

	fileActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitecrafter_file_actions_total",
			Help: "File actions handled by reconciliation, by outcome",
		},
		[]string{"outcome"},
	)

	editsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitecrafter_edits_total",
			Help: "Total file edits from the presentation side",
		},
		[]string{"status"},
	)

	mountsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitecrafter_mounts_total",
			Help: "Total descriptor mounts",
		},
		[]string{"status"},
	)

	mountDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sitecrafter_mount_duration_seconds",
			Help:    "Time to hand a descriptor to the sandbox",
			Buckets: prometheus.DefBuckets,
		},
	)

	treeNodes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sitecrafter_tree_nodes",
			Help: "Number of files and folders in the most recently changed tree",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordBatch records a received batch of n actions.
func RecordBatch(n int) {
	batchesReceivedTotal.Inc()
	actionsReceivedTotal.Add(float64(n))
}

// RecordFileActions adds n file actions with the given outcome.
func RecordFileActions(outcome string, n uint64) {
	if n == 0 {
		return
	}
	fileActionsTotal.WithLabelValues(outcome).Add(float64(n))
}

// RecordEdit records an edit attempt.
func RecordEdit(success bool) {
	editsTotal.WithLabelValues(status(success)).Inc()
}

// RecordMount records a sandbox mount.
func RecordMount(duration time.Duration, success bool) {
	mountDuration.Observe(duration.Seconds())
	mountsTotal.WithLabelValues(status(success)).Inc()
}

// SetTreeNodes sets the current tree size.
func SetTreeNodes(n int) {
	treeNodes.Set(float64(n))
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
