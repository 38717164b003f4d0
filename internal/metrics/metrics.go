package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ricirt/feedhub/internal/domain"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	JobsEnqueued         *prometheus.CounterVec
	JobsCompleted        *prometheus.CounterVec
	JobsRetried          *prometheus.CounterVec
	JobsDeadLettered     *prometheus.CounterVec
	JobLatency           *prometheus.HistogramVec
	NotificationsSent    *prometheus.CounterVec
	NotificationsDropped *prometheus.CounterVec
	PresenceConnections  prometheus.Gauge
	ReadyQueueDepth      prometheus.Gauge
	PostsRateLimited     prometheus.Counter
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		JobsEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobs_enqueued_total",
			Help: "Total number of jobs accepted by the queue.",
		}, []string{"type"}),

		JobsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobs_completed_total",
			Help: "Total number of jobs whose handler succeeded.",
		}, []string{"type"}),

		JobsRetried: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobs_retried_total",
			Help: "Total number of failed attempts scheduled for retry.",
		}, []string{"type"}),

		JobsDeadLettered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobs_dead_lettered_total",
			Help: "Total number of jobs dead-lettered (retries exhausted or permanent failure).",
		}, []string{"type"}),

		JobLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "job_processing_seconds",
			Help:    "Processing latency from dequeue to completion.",
			Buckets: prometheus.DefBuckets,
		}, []string{"type"}),

		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_delivered_total",
			Help: "Notifications handed to a live connection.",
		}, []string{"kind"}),

		NotificationsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_dropped_total",
			Help: "Notifications dropped because the recipient was offline.",
		}, []string{"kind"}),

		PresenceConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "presence_connections",
			Help: "Users with a live realtime connection on this instance.",
		}),

		ReadyQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ready_queue_depth",
			Help: "Leased jobs waiting for a free worker.",
		}),

		PostsRateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "posts_rate_limited_total",
			Help: "Post creation requests rejected by the per-user throttle.",
		}),
	}

	reg.MustRegister(
		m.JobsEnqueued,
		m.JobsCompleted,
		m.JobsRetried,
		m.JobsDeadLettered,
		m.JobLatency,
		m.NotificationsSent,
		m.NotificationsDropped,
		m.PresenceConnections,
		m.ReadyQueueDepth,
		m.PostsRateLimited,
	)

	return m
}

// WorkerHooks returns the metric callback functions expected by worker.MetricHooks.
// Centralises the prometheus observation calls so worker.go stays import-free.
func (m *Metrics) WorkerHooks() (
	onCompleted func(domain.JobType, time.Duration),
	onRetried func(domain.JobType),
	onDeadLettered func(domain.JobType),
) {
	onCompleted = func(t domain.JobType, latency time.Duration) {
		m.JobsCompleted.WithLabelValues(string(t)).Inc()
		m.JobLatency.WithLabelValues(string(t)).Observe(latency.Seconds())
	}
	onRetried = func(t domain.JobType) {
		m.JobsRetried.WithLabelValues(string(t)).Inc()
	}
	onDeadLettered = func(t domain.JobType) {
		m.JobsDeadLettered.WithLabelValues(string(t)).Inc()
	}
	return
}

// OnQueueDepth is the pool's ready-queue depth hook.
func (m *Metrics) OnQueueDepth(depth int) {
	m.ReadyQueueDepth.Set(float64(depth))
}

// OnEnqueued is the broker's enqueue hook.
func (m *Metrics) OnEnqueued(t domain.JobType) {
	m.JobsEnqueued.WithLabelValues(string(t)).Inc()
}

// NotifyHooks returns the dispatcher's delivered and dropped callbacks.
func (m *Metrics) NotifyHooks() (onDelivered, onDropped func(domain.NotificationKind)) {
	onDelivered = func(k domain.NotificationKind) {
		m.NotificationsSent.WithLabelValues(string(k)).Inc()
	}
	onDropped = func(k domain.NotificationKind) {
		m.NotificationsDropped.WithLabelValues(string(k)).Inc()
	}
	return
}

// OnPresenceChange is the registry's live-count hook.
func (m *Metrics) OnPresenceChange(live int) {
	m.PresenceConnections.Set(float64(live))
}
