// Fieldport - Field Service Customer Portal Sync Engine
// Copyright 2026 Fieldport Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldport/fieldport

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fieldport/fieldport/internal/config"
	"github.com/fieldport/fieldport/internal/middleware"
)

const (
	defaultRateLimit       = 100
	defaultRateLimitWindow = time.Minute
	healthRateLimit        = 1000
)

// chiMiddleware adapts http.HandlerFunc middleware to Chi's
// func(http.Handler) http.Handler.
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// NewRouter wires all portal routes.
func NewRouter(handler *Handler, cfg *config.ServerConfig) http.Handler {
	rateLimit := defaultRateLimit
	window := defaultRateLimitWindow
	origins := []string{"*"}
	if cfg != nil {
		if cfg.RateLimitReqs > 0 {
			rateLimit = cfg.RateLimitReqs
		}
		if cfg.RateLimitWindow > 0 {
			window = cfg.RateLimitWindow
		}
		if len(cfg.CORSOrigins) > 0 {
			origins = cfg.CORSOrigins
		}
	}

	r := chi.NewRouter()

	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "If-None-Match", "X-Request-ID"},
		ExposedHeaders:   []string{"ETag", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(httprate.LimitByIP(healthRateLimit, time.Minute))
		r.Get("/live", handler.HealthLive)
		r.Get("/ready", handler.HealthReady)
		r.Get("/", handler.Health)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(rateLimit, window))
		r.Use(chiMiddleware(middleware.PrometheusMetrics))

		r.Route("/customers/{customerUUID}", func(r chi.Router) {
			r.Get("/dashboard", handler.Dashboard)
			r.Get("/jobs", handler.Jobs)
			r.Get("/jobs/{jobUUID}", handler.JobDetail)
			r.Get("/documents", handler.Documents)
			r.Get("/payments", handler.Payments)
		})

		r.Post("/jobs/{jobUUID}/approve", handler.ApproveQuote)
		r.Post("/webhooks/upstream", handler.Webhook)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
