// Package metrics holds the process-wide Prometheus collectors.
// Collectors register with the default registry at init and are exposed
// by promhttp on GET /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scrape outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeTimeout = "timeout"
	OutcomeFailure = "failure"
)

// Navigation attempt labels.
const (
	NavSuccess   = "success"
	NavRetryable = "retryable"
	NavFatal     = "fatal"
)

// Auth result labels.
const (
	AuthOK      = "ok"
	AuthMissing = "missing"
	AuthInvalid = "invalid"
)

var (
	ScrapesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagesift_scrapes_total",
			Help: "Total number of scrape invocations by outcome.",
		},
		[]string{"outcome"},
	)

	ScrapeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pagesift_scrape_duration_seconds",
			Help:    "Wall-clock duration of scrape invocations.",
			Buckets: []float64{1, 5, 10, 15, 30, 60, 120, 240},
		},
	)

	NavigationAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagesift_navigation_attempts_total",
			Help: "Navigation attempts by result.",
		},
		[]string{"result"},
	)

	ChallengesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagesift_challenges_total",
			Help: "Bot challenges detected, labelled by whether they were bypassed.",
		},
		[]string{"resolved"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pagesift_active_sessions",
			Help: "Browser sessions currently open.",
		},
	)

	AuthRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagesift_auth_requests_total",
			Help: "API-key checks by key identity and result.",
		},
		[]string{"key", "result"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagesift_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pagesift_http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
