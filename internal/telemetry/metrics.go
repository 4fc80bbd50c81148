package telemetry

import "github.com/prometheus/client_golang/prometheus"

// HTTPRequestDuration records request latency by method/route/status.
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "scheduler",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "route", "status"},
)

// PostsLeasedTotal counts posts claimed by the due-work leaser (C6).
var PostsLeasedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "scheduler",
		Subsystem: "leaser",
		Name:      "posts_leased_total",
		Help:      "Total number of posts claimed by the due-work leaser.",
	},
)

// LeaseExpiredTotal counts posts reclaimed by the lease watchdog.
var LeaseExpiredTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "scheduler",
		Subsystem: "leaser",
		Name:      "lease_expired_total",
		Help:      "Total number of posts returned to scheduled by the lease watchdog.",
	},
)

// PostsPublishedTotal counts posts that reached the posted state, by platform.
var PostsPublishedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "scheduler",
		Subsystem: "publish",
		Name:      "posts_published_total",
		Help:      "Total number of posts successfully published.",
	},
	[]string{"platform"},
)

// PostsFailedTotal counts posts that reached the failed state, by error code.
var PostsFailedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "scheduler",
		Subsystem: "publish",
		Name:      "posts_failed_total",
		Help:      "Total number of posts that terminally failed, by error code.",
	},
	[]string{"error_code"},
)

// PublishDuration records the wall time from lease to terminal FSM state.
var PublishDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "scheduler",
		Subsystem: "publish",
		Name:      "duration_seconds",
		Help:      "Time from lease to posted/failed, in seconds.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
	},
)

// QuotaRejectionsTotal counts RateGovernor rejections by reason.
var QuotaRejectionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "scheduler",
		Subsystem: "governor",
		Name:      "rejections_total",
		Help:      "Total number of RateGovernor reservation rejections.",
	},
	[]string{"reason"},
)

// All returns every scheduler-specific metric collector for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		HTTPRequestDuration,
		PostsLeasedTotal,
		LeaseExpiredTotal,
		PostsPublishedTotal,
		PostsFailedTotal,
		PublishDuration,
		QuotaRejectionsTotal,
	}
}

// NewRegistry creates a Prometheus registry with the default collectors and
// the given application-specific collectors registered.
func NewRegistry(collectors ...prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	for _, c := range collectors {
		reg.MustRegister(c)
	}
	return reg
}
