// Recommender - Engagement Platform Recommendation Service
// Copyright 2026 Loyaltyworks Engineering
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loyaltyworks/recommender

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/loyaltyworks/recommender/internal/config"
	"github.com/loyaltyworks/recommender/internal/metrics"
)

// NewRouter builds the HTTP routing table.
func NewRouter(cfg config.ServerConfig, handler *Handler) http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to every route in order.
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestTiming)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health endpoints get a permissive limit so monitoring can poll
	// frequently without tripping the API limit.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(httprate.LimitByIP(1000, time.Minute))
		r.Get("/live", handler.HealthLive)
		r.Get("/ready", handler.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rateLimit(cfg.RateLimitReqs, cfg.RateLimitWindow))
		r.Use(prometheusMetrics)

		r.Get("/items", handler.Items)
		r.Get("/users/{userID}/suggestions", handler.Suggestions)
		r.Get("/recommendations/top", handler.TopItems)
		r.Get("/recommendations/by-weight", handler.ItemsByWeight)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/populate", handler.Populate)
			r.Post("/clean", handler.Clean)
			r.Post("/items/{itemKey}/entities/{id}/reindex", handler.Reindex)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// requestTiming stores the arrival time so response envelopes can report
// handler duration.
func requestTiming(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), startTimeKey{}, time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// rateLimit applies a per-IP limit and counts rejections.
func rateLimit(requests int, window time.Duration) func(http.Handler) http.Handler {
	if requests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if window <= 0 {
		window = time.Minute
	}
	return httprate.Limit(requests, window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.APIRateLimitHits.WithLabelValues(r.URL.Path).Inc()
			respondError(w, r, http.StatusTooManyRequests, ErrCodeRateLimited, "rate limit exceeded")
		}),
	)
}

// prometheusMetrics records request counts and latency per route pattern.
func prometheusMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := chi.RouteContext(r.Context()).RoutePattern()
		if endpoint == "" {
			endpoint = r.URL.Path
		}
		metrics.RecordAPIRequest(r.Method, endpoint, ww.Status(), time.Since(start))
	})
}
