// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fintrack_http_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fintrack_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	RLRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fintrack_rate_limit_requests_total",
			Help: "Requests checked by the rate limiter",
		},
		[]string{"endpoint"},
	)

	RLBlocked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fintrack_rate_limit_blocked_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"endpoint"},
	)

	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fintrack_cache_lookups_total",
			Help: "Cache lookups by cache name and result (hit/miss/error)",
		},
		[]string{"cache", "result"},
	)

	JobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fintrack_job_runs_total",
			Help: "Background job runs by job and outcome",
		},
		[]string{"job", "outcome"},
	)

	RecurringMaterialized = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fintrack_recurring_materialized_total",
			Help: "Transactions created from recurring templates",
		},
	)

	ReportsHandled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fintrack_reports_handled_total",
			Help: "Report requests handled by the worker, by outcome",
		},
		[]string{"outcome"},
	)

	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fintrack_ws_connections",
			Help: "Open notification WebSocket connections",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequests,
		HTTPDuration,
		RLRequests,
		RLBlocked,
		CacheLookups,
		JobRuns,
		RecurringMaterialized,
		ReportsHandled,
		WSConnections,
	)
}
