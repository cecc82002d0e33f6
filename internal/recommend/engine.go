// Ludex - Personalized Game Catalog and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludex

// Package recommend implements the scoring and ranking engine.
//
// Candidates come from the remote catalog's popularity listing; each
// candidate is scored as the sum of the user's category weights over the
// item's tags. Items the user has already interacted with are excluded.
// The engine tolerates partial candidate resolution and keeps the last
// known candidate pool so recommendations survive remote outages as long
// as cached snapshots remain servable.
package recommend

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/ludex/internal/cache"
	"github.com/tomtom215/ludex/internal/catalog"
	"github.com/tomtom215/ludex/internal/logging"
	"github.com/tomtom215/ludex/internal/metrics"
	"github.com/tomtom215/ludex/internal/models"
	"github.com/tomtom215/ludex/internal/prefs"
)

// Engine computes personalized rankings over the catalog's top listing.
type Engine struct {
	cache    *cache.Coordinator
	prefs    *prefs.Engine
	client   catalog.Client
	poolSize int

	mu       sync.RWMutex
	lastPool []int64
}

// NewEngine creates a recommendation engine. poolSize bounds the
// candidate pool taken from the remote popularity listing.
func NewEngine(coord *cache.Coordinator, engine *prefs.Engine, client catalog.Client, poolSize int) *Engine {
	return &Engine{
		cache:    coord,
		prefs:    engine,
		client:   client,
		poolSize: poolSize,
	}
}

// scoredItem pairs a candidate with its computed score for sorting.
type scoredItem struct {
	item  models.CatalogItem
	score int
}

// Recommend returns up to limit items ranked for userID.
//
// The call never fails because the remote store is unreachable: cached
// candidates are served instead, and when nothing at all resolves the
// result is empty with a machine-readable reason.
func (e *Engine) Recommend(ctx context.Context, userID string, limit int) (*models.RecommendationResult, error) {
	start := time.Now()

	profile, err := e.prefs.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	pool, remoteDown := e.candidateIDs(ctx)

	// Exclude already-interacted items before resolution; no point
	// fetching snapshots that cannot be recommended.
	candidates := make([]int64, 0, len(pool))
	for _, id := range pool {
		if !profile.HasClicked(id) {
			candidates = append(candidates, id)
		}
	}

	resolved, resolveDown := e.cache.Resolve(ctx, candidates)
	remoteDown = remoteDown || resolveDown

	scored := make([]scoredItem, 0, len(resolved))
	for _, item := range resolved {
		scored = append(scored, scoredItem{item: *item, score: score(profile, item)})
	}
	rank(scored)

	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}

	result := &models.RecommendationResult{
		UserID: userID,
		Items:  make([]models.CatalogItem, 0, len(scored)),
	}
	for _, s := range scored {
		result.Items = append(result.Items, s.item)
	}

	if len(result.Items) == 0 {
		if remoteDown {
			result.Reason = models.ReasonRemoteUnavailable
		} else {
			result.Reason = models.ReasonNoCandidates
		}
	}

	metrics.RecordRecommendation(time.Since(start), len(result.Items), result.Reason)

	logging.Ctx(ctx).Debug().
		Str("user_id", userID).
		Int("candidates", len(candidates)).
		Int("results", len(result.Items)).
		Bool("remote_down", remoteDown).
		Msg("Recommendation computed")

	return result, nil
}

// candidateIDs returns the current candidate pool. A successful listing
// call refreshes the remembered pool and warms the cache; on failure the
// last known pool backs the request so cached snapshots can still serve.
func (e *Engine) candidateIDs(ctx context.Context) ([]int64, bool) {
	items, err := e.client.ListTop(ctx, e.poolSize)
	if err != nil {
		e.mu.RLock()
		pool := make([]int64, len(e.lastPool))
		copy(pool, e.lastPool)
		e.mu.RUnlock()

		logging.Ctx(ctx).Warn().
			Err(err).
			Int("fallback_pool", len(pool)).
			Msg("Popularity listing unavailable, using last known pool")
		return pool, true
	}

	e.cache.Warm(ctx, items)

	pool := make([]int64, len(items))
	for i := range items {
		pool[i] = items[i].ID
	}

	e.mu.Lock()
	e.lastPool = pool
	e.mu.Unlock()

	out := make([]int64, len(pool))
	copy(out, pool)
	return out, false
}

// score is the sum of the user's weights over the item's category tags.
// Unknown categories contribute nothing; an empty profile scores zero.
func score(profile *models.PreferenceProfile, item *models.CatalogItem) int {
	total := 0
	for _, category := range item.Categories {
		total += profile.Weights[category]
	}
	return total
}

// rank orders candidates by score descending, then review ratio
// descending, then id ascending. The id tie-break keeps the ordering
// deterministic for identical scores and ratios.
func rank(scored []scoredItem) {
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		ri, rj := scored[i].item.ReviewRatio(), scored[j].item.ReviewRatio()
		if ri != rj {
			return ri > rj
		}
		return scored[i].item.ID < scored[j].item.ID
	})
}
