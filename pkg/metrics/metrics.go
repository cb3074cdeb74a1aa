package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vdb"

var (
	WorkflowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cluster",
			Name:      "workflows_total",
			Help:      "Cluster workflows finished, by action, datastore and outcome",
		},
		[]string{"action", "datastore", "outcome"},
	)

	WorkflowDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cluster",
			Name:      "workflow_duration_seconds",
			Help:      "Wall clock duration of cluster workflows",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600, 7200},
		},
		[]string{"action", "datastore"},
	)

	WorkflowsRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cluster",
			Name:      "workflows_running",
			Help:      "Detached workflows currently executing",
		},
	)

	TaskConflictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cluster",
			Name:      "task_conflicts_total",
			Help:      "Cluster actions refused because the cluster task did not allow them",
		},
		[]string{"action"},
	)

	GuestCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "guest",
			Name:      "call_duration_seconds",
			Help:      "Guest agent RPC latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "outcome"},
	)

	QuotaReservationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quota",
			Name:      "reservations_total",
			Help:      "Quota reservation results",
		},
		[]string{"outcome"},
	)

	PollerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "instance_poller",
			Name:      "transitions_total",
			Help:      "Instance task transitions made by the background poller",
		},
		[]string{"task"},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notification",
			Name:      "events_total",
			Help:      "Notifications emitted, by event type",
		},
		[]string{"event_type"},
	)
)

func init() {
	prometheus.MustRegister(
		WorkflowsTotal,
		WorkflowDuration,
		WorkflowsRunning,
		TaskConflictsTotal,
		GuestCallDuration,
		QuotaReservationsTotal,
		PollerTransitionsTotal,
		NotificationsTotal,
	)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures the time since its creation.
type Timer struct {
	start time.Time
}

func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) ObserveDuration(o prometheus.Observer) time.Duration {
	d := time.Since(t.start)
	o.Observe(d.Seconds())

	return d
}
