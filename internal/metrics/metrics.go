// Package metrics exposes Prometheus collectors for the profile service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, route and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harper_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration observes request latency by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "harper_http_request_duration_seconds",
			Help:    "HTTP request latency distribution.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// ScoreRecomputations counts potential-score recomputations, labeled by
	// the operation that triggered them.
	ScoreRecomputations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harper_score_recomputations_total",
			Help: "Total number of potential score recomputations.",
		},
		[]string{"trigger"},
	)

	// UpdateConflicts counts conditional writes lost to a concurrent writer.
	// Includes conflicts that succeeded on retry.
	UpdateConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harper_update_conflicts_total",
			Help: "Total number of optimistic concurrency conflicts.",
		},
	)

	// LazyCreations counts user records created implicitly by a read.
	LazyCreations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harper_lazy_creations_total",
			Help: "Total number of user records created lazily on fetch.",
		},
	)

	// RatingsRecorded counts accepted rating events.
	RatingsRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harper_ratings_recorded_total",
			Help: "Total number of rating events recorded.",
		},
	)

	// LeaderboardQueries counts leaderboard page requests.
	LeaderboardQueries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harper_leaderboard_queries_total",
			Help: "Total number of leaderboard page queries.",
		},
	)

	// ExportRuns counts snapshot export attempts by outcome.
	ExportRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harper_export_runs_total",
			Help: "Total number of user snapshot export runs.",
		},
		[]string{"status"},
	)

	// RateLimited counts requests rejected by the per-subject rate limiter.
	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harper_rate_limited_total",
			Help: "Total number of requests rejected by rate limiting.",
		},
	)
)
