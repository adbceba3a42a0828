// Recommender - Engagement Platform Recommendation Service
// Copyright 2026 Loyaltyworks Engineering
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loyaltyworks/recommender

// Package metrics exposes the service's Prometheus instrumentation.
//
// Metrics are registered through promauto at package load and served at
// the /metrics endpoint. Label cardinality is kept small: item keys and
// event names are bounded by registration, never by user input.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
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

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Recommendation Query Metrics
	RecommendQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_queries_total",
			Help: "Total number of recommendation queries",
		},
		[]string{"operation", "item"}, // operation: "suggest", "top", "by_weight"
	)

	RecommendQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_query_errors_total",
			Help: "Total number of recommendation queries degraded to an empty result",
		},
		[]string{"operation", "item"},
	)

	RecommendQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommend_query_duration_seconds",
			Help:    "Recommendation query duration in seconds, per item",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Index Maintenance Metrics
	RecommendIndexUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_index_updates_total",
			Help: "Total number of single-document index updates",
		},
		[]string{"item"},
	)

	RecommendDocsIndexed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_docs_indexed_total",
			Help: "Total number of documents written during populate runs",
		},
		[]string{"item"},
	)

	RecommendEventsHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_events_handled_total",
			Help: "Total number of bus events consumed by index update triggers",
		},
		[]string{"event", "item"},
	)

	// Search Client Metrics
	SearchRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "search_request_duration_seconds",
			Help:    "Duration of search service requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	SearchRequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_request_errors_total",
			Help: "Total number of failed search service requests",
		},
		[]string{"operation"},
	)

	// Store Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of entity store queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "kind"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_query_errors_total",
			Help: "Total number of failed entity store queries",
		},
		[]string{"operation", "kind"},
	)

	// Event Bus Metrics
	BusEventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bus_events_published_total",
			Help: "Total number of events published to the bus",
		},
		[]string{"event"},
	)

	BusPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bus_publish_errors_total",
			Help: "Total number of failed event publishes",
		},
		[]string{"event"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"name"},
	)
)

// RecordAPIRequest records one completed API request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordSearchRequest records one search service round trip.
func RecordSearchRequest(operation string, duration time.Duration, err error) {
	SearchRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		SearchRequestErrors.WithLabelValues(operation).Inc()
	}
}

// RecordDBQuery records one entity store query.
func RecordDBQuery(operation, kind string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, kind).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, kind).Inc()
	}
}

// SetCircuitBreakerState maps a breaker state name onto the gauge.
func SetCircuitBreakerState(name, state string) {
	var v float64
	switch state {
	case "open":
		v = 1
	case "half-open":
		v = 2
	}
	CircuitBreakerState.WithLabelValues(name).Set(v)
}
