// Ludex - Personalized Game Catalog and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludex

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus Metrics Integration for Production Observability
// This package provides instrumentation for:
// - API endpoint latency and throughput
// - Local cache efficiency (hits, misses, stale serves, evictions)
// - Remote catalog client calls and circuit breaker state
// - Preference learning and recommendation computation

var (
	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"}, // "catalog"
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	CacheStaleServes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_stale_serves_total",
			Help: "Total number of stale entries served under degraded mode",
		},
		[]string{"cache_type"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Total number of cache evictions",
		},
		[]string{"cache_type", "reason"}, // reason: "not_found", "sweep"
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_entries",
			Help: "Current number of cached entries",
		},
		[]string{"cache_type"},
	)

	CacheSingleflightShared = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_singleflight_shared_total",
			Help: "Total number of cache fills shared with concurrent callers",
		},
		[]string{"cache_type"},
	)

	// Catalog Client Metrics
	CatalogRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_request_duration_seconds",
			Help:    "Duration of remote catalog calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // "fetch", "fetch_many", "list_top"
	)

	CatalogRequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_request_errors_total",
			Help: "Total number of failed remote catalog calls",
		},
		[]string{"operation", "error_type"}, // error_type: "not_found", "unavailable"
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Preference Engine Metrics
	InteractionsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interactions_recorded_total",
			Help: "Total number of recorded user interactions",
		},
		[]string{"kind"}, // "click", "wishlist"
	)

	ProfileUpdateDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "profile_update_duration_seconds",
			Help:    "Duration of preference profile updates in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Recommendation Engine Metrics
	RecommendationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommendation_duration_seconds",
			Help:    "Duration of recommendation computations in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	RecommendationResults = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommendation_result_count",
			Help:    "Number of items returned per recommendation request",
			Buckets: []float64{0, 1, 5, 10, 20, 50, 100},
		},
	)

	RecommendationEmpty = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_empty_total",
			Help: "Total number of empty recommendation results by reason",
		},
		[]string{"reason"}, // "no_candidates", "remote_unavailable"
	)

	// Sweep Metrics
	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cache_sweep_duration_seconds",
			Help:    "Duration of cache eviction sweeps in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	SweepRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_sweep_removed_total",
			Help: "Total number of entries removed by eviction sweeps",
		},
	)

	SweepLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cache_sweep_last_success_timestamp",
			Help: "Unix timestamp of last successful sweep",
		},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordCatalogRequest records a remote catalog call and its outcome
func RecordCatalogRequest(operation string, duration time.Duration, errorType string) {
	CatalogRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if errorType != "" {
		CatalogRequestErrors.WithLabelValues(operation, errorType).Inc()
	}
}

// RecordInteraction records a user interaction of the given kind
func RecordInteraction(kind string, duration time.Duration) {
	InteractionsRecorded.WithLabelValues(kind).Inc()
	ProfileUpdateDuration.Observe(duration.Seconds())
}

// RecordRecommendation records a recommendation computation
func RecordRecommendation(duration time.Duration, resultCount int, emptyReason string) {
	RecommendationDuration.Observe(duration.Seconds())
	RecommendationResults.Observe(float64(resultCount))
	if emptyReason != "" {
		RecommendationEmpty.WithLabelValues(emptyReason).Inc()
	}
}

// RecordSweep records an eviction sweep run
func RecordSweep(duration time.Duration, removed int, err error) {
	SweepDuration.Observe(duration.Seconds())
	SweepRemoved.Add(float64(removed))
	if err == nil {
		SweepLastSuccess.Set(float64(time.Now().Unix()))
	}
}
