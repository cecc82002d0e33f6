// Ludex - Personalized Game Catalog and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludex

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router wires handlers and middleware into the HTTP surface.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router around the given handler and middleware factory.
func NewRouter(handler *Handler, mw *ChiMiddleware) *Router {
	return &Router{
		handler:       handler,
		chiMiddleware: mw,
	}
}

// Setup configures all HTTP routes.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to all routes in order
	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())

	// Health probes get a permissive limit so monitoring never trips the
	// API rate limiter.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(PrometheusMetrics())

		r.Post("/interactions/click", router.handler.RecordClick)
		r.Post("/interactions/wishlist", router.handler.RecordWishlist)

		r.Get("/recommendations/{userID}", router.handler.Recommendations)

		r.Get("/catalog/items/{id}", router.handler.CatalogItem)
		r.Get("/catalog/top", router.handler.CatalogTop)

		r.Get("/users/{userID}/profile", router.handler.Profile)
		r.Get("/stats", router.handler.Stats)
	})

	// Prometheus scrape endpoint, outside the API rate limit
	r.Handle("/metrics", promhttp.Handler())

	return r
}
