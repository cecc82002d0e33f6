// Ludex - Personalized Game Catalog and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludex

// Package api provides the HTTP interface: interaction recording,
// recommendations, catalog reads, profile inspection and health probes.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/ludex/internal/cache"
	"github.com/tomtom215/ludex/internal/catalog"
	"github.com/tomtom215/ludex/internal/config"
	"github.com/tomtom215/ludex/internal/logging"
	"github.com/tomtom215/ludex/internal/models"
	"github.com/tomtom215/ludex/internal/prefs"
	"github.com/tomtom215/ludex/internal/recommend"
	"github.com/tomtom215/ludex/internal/store"
)

// Handler holds dependencies for all HTTP handlers.
type Handler struct {
	cache       *cache.Coordinator
	prefs       *prefs.Engine
	recommender *recommend.Engine
	client      catalog.Client
	config      *config.Config
	startTime   time.Time
}

// NewHandler creates a handler with the given dependencies.
func NewHandler(coord *cache.Coordinator, prefEngine *prefs.Engine, recommender *recommend.Engine, client catalog.Client, cfg *config.Config) *Handler {
	return &Handler{
		cache:       coord,
		prefs:       prefEngine,
		recommender: recommender,
		client:      client,
		config:      cfg,
		startTime:   time.Now(),
	}
}

// respondDomainError maps the domain error taxonomy onto HTTP statuses.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Item not found", nil)
	case errors.Is(err, catalog.ErrUnavailable):
		respondError(w, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "Remote catalog is unavailable", err)
	case errors.Is(err, store.ErrCorrupted):
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Stored record is corrupted", err)
	default:
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Internal storage error", err)
	}
}

// RecordClick handles POST /api/v1/interactions/click.
// Accepted interactions return 202; the profile update has already been
// applied by then, the status signals that no response body beyond the
// acknowledgement is produced.
func (h *Handler) RecordClick(w http.ResponseWriter, r *http.Request) {
	h.recordInteraction(w, r, prefs.KindClick)
}

// RecordWishlist handles POST /api/v1/interactions/wishlist.
func (h *Handler) RecordWishlist(w http.ResponseWriter, r *http.Request) {
	h.recordInteraction(w, r, prefs.KindWishlist)
}

func (h *Handler) recordInteraction(w http.ResponseWriter, r *http.Request, kind string) {
	var req models.InteractionRequest
	if err := decodeJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid JSON body", err)
		return
	}

	if apiErr := validateRequest(&req); apiErr != nil {
		respondJSON(w, http.StatusBadRequest, &models.APIResponse{
			Status:   "error",
			Metadata: models.Metadata{Timestamp: time.Now()},
			Error:    apiErr,
		})
		return
	}

	var err error
	if kind == prefs.KindWishlist {
		err = h.prefs.RecordWishlist(r.Context(), req.UserID, req.ItemID)
	} else {
		err = h.prefs.RecordClick(r.Context(), req.UserID, req.ItemID)
	}
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"user_id": req.UserID,
			"item_id": req.ItemID,
			"kind":    kind,
		},
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// Recommendations handles GET /api/v1/recommendations/{userID}.
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	userID := chi.URLParam(r, "userID")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "userID is required", nil)
		return
	}

	limit := getIntParam(r, "limit", h.config.API.DefaultLimit)
	if limit < 1 || limit > h.config.API.MaxLimit {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
			"limit must be 1-"+strconv.Itoa(h.config.API.MaxLimit), nil)
		return
	}

	result, err := h.recommender.Recommend(r.Context(), userID, limit)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   result,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// CatalogItem handles GET /api/v1/catalog/items/{id}.
// Reads go through the cache; under a remote outage a stale snapshot may
// be served, flagged in the response metadata.
func (h *Handler) CatalogItem(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "id must be a positive integer", nil)
		return
	}

	item, src, err := h.cache.Lookup(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   item,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
			Cached:      src != cache.SourceRemote,
			Stale:       src == cache.SourceStale,
		},
	})
}

// CatalogTop handles GET /api/v1/catalog/top.
func (h *Handler) CatalogTop(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	limit := getIntParam(r, "limit", h.config.API.DefaultLimit)
	if limit < 1 || limit > h.config.API.MaxLimit {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
			"limit must be 1-"+strconv.Itoa(h.config.API.MaxLimit), nil)
		return
	}

	items, err := h.client.ListTop(r.Context(), limit)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	// Listing results double as future degraded-mode candidates.
	h.cache.Warm(r.Context(), items)

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   items,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// Profile handles GET /api/v1/users/{userID}/profile.
// Unknown users get an empty profile, never a 404.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "userID is required", nil)
		return
	}

	stats, err := h.prefs.Stats(r.Context(), userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status:   "success",
		Data:     stats,
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// Stats handles GET /api/v1/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	users, err := h.prefs.Count(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to count profiles", err)
		return
	}

	cached, err := h.cache.Count(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to count cache entries", err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: models.StoreStats{
			Users:       users,
			CachedItems: cached,
		},
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// HealthLive handles liveness probe requests (Kubernetes-style).
// Returns 200 OK if the process is alive, regardless of dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"alive":  true,
			"uptime": time.Since(h.startTime).Seconds(),
		},
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// HealthReady handles readiness probe requests (Kubernetes-style).
// Returns 200 OK only when the durable stores answer; the remote catalog
// being down does not make the service unready, degraded mode covers it.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	_, cacheErr := h.cache.Count(ctx)
	_, prefsErr := h.prefs.Count(ctx)
	ready := cacheErr == nil && prefsErr == nil

	statusCode := http.StatusOK
	status := "ready"
	if !ready {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
		logging.Ctx(ctx).Warn().
			AnErr("cache_error", cacheErr).
			AnErr("prefs_error", prefsErr).
			Msg("Readiness check failed")
	}

	respondJSON(w, statusCode, &models.APIResponse{
		Status: status,
		Data: map[string]interface{}{
			"cache_store_ok":   cacheErr == nil,
			"profile_store_ok": prefsErr == nil,
			"ready_to_serve":   ready,
			"uptime":           time.Since(h.startTime).Seconds(),
		},
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}
