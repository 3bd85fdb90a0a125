package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// QueueDepth reports the current length of the task queue, scraped
	// from pkg/bus.QueueLength on Collector's tick.
	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "prism_queue_depth",
			Help: "Number of queue messages awaiting a worker",
		},
	)

	// WorkersConfigured reports the Pool Manager's last heartbeated
	// intended worker count (pkg/bus.WorkersCount).
	WorkersConfigured = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "prism_workers_configured",
			Help: "Intended worker process count, as heartbeated by the Pool Manager",
		},
	)

	// WorkersReady is registered for the count of workers holding an
	// unexpired readiness key. Nothing in this module sets it, so it
	// reports 0.
	WorkersReady = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "prism_workers_ready",
			Help: "Number of worker processes with a live readiness key",
		},
	)

	// TasksByStatus tracks task aggregate status counts, set by
	// Collector's periodic scrape of ledger.CountTasksByStatus.
	TasksByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "prism_tasks_by_status",
			Help: "Number of tasks currently in each aggregate status",
		},
		[]string{"status"},
	)

	// UnitsProcessedTotal counts every page unit a Worker finishes,
	// successfully or not, labeled by format and terminal status.
	UnitsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prism_units_processed_total",
			Help: "Total page units processed, by format and terminal status",
		},
		[]string{"format", "status"},
	)

	// UnitProcessingDuration times a unit's full pipeline run (download
	// through artifact upload), labeled by format.
	UnitProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "prism_unit_processing_duration_seconds",
			Help:    "Time to process a single page unit, by format",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"format"},
	)

	// WorkerCrashLoopTotal increments each time the Pool Manager
	// restarts a worker that exited within its crash-loop backoff
	// window, per spec.md's worker-init-failure error kind.
	WorkerCrashLoopTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "prism_worker_crash_loop_total",
			Help: "Total worker restarts attributed to a crash loop",
		},
	)

	// WorkerRestartsTotal counts every worker respawn, crash-loop or not.
	WorkerRestartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prism_worker_restarts_total",
			Help: "Total worker process restarts, by reason",
		},
		[]string{"reason"},
	)

	// RaftIsLeader reports whether this Pool Manager replica currently
	// holds Raft leadership within its host group (always 1 when HA
	// election is disabled).
	RaftIsLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "prism_poolmgr_raft_is_leader",
			Help: "Whether this Pool Manager replica is the elected leader (1) or a follower (0)",
		},
	)

	// RaftPeersTotal reports the size of the Pool Manager's Raft group
	// (1 when HA election is disabled).
	RaftPeersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "prism_poolmgr_raft_peers_total",
			Help: "Number of peers in the Pool Manager's Raft group",
		},
	)

	// DispatchLatency times a submit-task call from arrival to every
	// page unit's queue message being enqueued.
	DispatchLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "prism_dispatch_latency_seconds",
			Help:    "Time to create a task's ledger rows and enqueue its page units",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		QueueDepth,
		WorkersConfigured,
		WorkersReady,
		TasksByStatus,
		UnitsProcessedTotal,
		UnitProcessingDuration,
		WorkerCrashLoopTotal,
		WorkerRestartsTotal,
		RaftIsLeader,
		RaftPeersTotal,
		DispatchLatency,
	)
}

// Handler returns the Prometheus scrape handler for the /metrics route.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures elapsed wall-clock time for a single operation,
// grounded on the teacher's metrics.Timer helper.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time to a labeled histogram.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
