// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)

// Assignment engine collectors.
var (
	// outcome: ok, fallback_timeout, fallback_error, fallback_malformed, missing_location
	RouteEstimates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assignment_route_estimates_total",
			Help: "Route estimates by outcome",
		},
		[]string{"outcome"},
	)

	RouteEstimateDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "assignment_route_estimate_duration_seconds",
			Help:    "Time spent waiting for the route estimation service",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5},
		},
	)

	Sessions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assignment_sessions_total",
			Help: "Recommendation sessions by final state",
		},
		[]string{"state"},
	)

	Commits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assignment_commits_total",
			Help: "Assignment commits by action and result",
		},
		[]string{"action", "result"},
	)

	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assignment_notifications_total",
			Help: "Assignment notifications by channel and status",
		},
		[]string{"channel", "status"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assignment_cache_lookups_total",
			Help: "Redis cache lookups by cache and result",
		},
		[]string{"cache", "result"},
	)
)
