// Ludex - Personalized Game Catalog and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludex

package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/ludex/internal/catalog"
	"github.com/tomtom215/ludex/internal/config"
	"github.com/tomtom215/ludex/internal/logging"
	"github.com/tomtom215/ludex/internal/metrics"
	"github.com/tomtom215/ludex/internal/models"
	"github.com/tomtom215/ludex/internal/store"
)

// cacheType labels all cache metrics emitted by this package.
const cacheType = "catalog"

// Coordinator is the read-through cache over the remote catalog.
//
// Thread Safety: safe for concurrent use. Per-item fills are deduplicated
// through a singleflight group; the pin set guards entries serving
// in-flight degraded reads against the background sweeper.
type Coordinator struct {
	store  *store.CacheStore
	client catalog.Client
	ttl    time.Duration
	grace  time.Duration

	group singleflight.Group

	mu   sync.Mutex
	pins map[int64]int

	// now is replaceable in tests
	now func() time.Time
}

// Source identifies where a lookup's payload came from.
type Source int

const (
	// SourceRemote means the item was fetched from the remote catalog.
	SourceRemote Source = iota
	// SourceFresh means a fresh cached snapshot was served.
	SourceFresh
	// SourceStale means a stale snapshot was served under degraded mode.
	SourceStale
)

// fillResult carries a completed fill out of the singleflight group.
type fillResult struct {
	item  *models.CatalogItem
	stale bool
}

// NewCoordinator creates a cache coordinator over the given store and
// remote client, configured from cfg.
func NewCoordinator(st *store.CacheStore, client catalog.Client, cfg *config.CacheConfig) *Coordinator {
	return &Coordinator{
		store:  st,
		client: client,
		ttl:    cfg.TTL,
		grace:  cfg.GraceWindow(),
		pins:   make(map[int64]int),
		now:    time.Now,
	}
}

// Get returns the item with the given id, preferring a fresh cached
// snapshot. On a miss or stale hit the remote store is consulted; if it
// is unreachable a stale snapshot within the grace window is served
// instead, reported through the stale return.
//
// Error conditions: catalog.ErrNotFound when the item does not exist
// upstream (any cached snapshot is evicted), catalog.ErrUnavailable when
// the remote store is unreachable and no servable snapshot exists.
func (c *Coordinator) Get(ctx context.Context, id int64) (*models.CatalogItem, bool, error) {
	item, src, err := c.Lookup(ctx, id)
	return item, src == SourceStale, err
}

// Lookup is Get with the payload's origin made explicit, for callers
// that distinguish cache hits from remote fills (e.g. response metadata).
func (c *Coordinator) Lookup(ctx context.Context, id int64) (*models.CatalogItem, Source, error) {
	entry, err := c.store.Get(ctx, id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		if errors.Is(err, store.ErrCorrupted) {
			// Unusable record: treat as a miss and let the fill overwrite it.
			logging.Warn().Int64("item_id", id).Err(err).Msg("Corrupt cache record, refilling")
			entry = nil
		} else {
			return nil, SourceRemote, fmt.Errorf("cache read %d: %w", id, err)
		}
	}

	now := c.now()
	if entry != nil && entry.Fresh(now, c.ttl) {
		metrics.CacheHits.WithLabelValues(cacheType).Inc()
		item := entry.Item
		return &item, SourceFresh, nil
	}

	metrics.CacheMisses.WithLabelValues(cacheType).Inc()

	// A stale snapshot may end up serving this read in degraded mode;
	// keep the sweeper away from it until the fill resolves.
	if entry != nil {
		c.pin(id)
		defer c.unpin(id)
	}

	key := strconv.FormatInt(id, 10)
	v, err, shared := c.group.Do(key, func() (interface{}, error) {
		return c.fill(ctx, id, entry)
	})
	if shared {
		metrics.CacheSingleflightShared.WithLabelValues(cacheType).Inc()
	}
	if err != nil {
		return nil, SourceRemote, err
	}

	res := v.(fillResult)
	item := *res.item
	if res.stale {
		return &item, SourceStale, nil
	}
	return &item, SourceRemote, nil
}

// fill consults the remote store for id. stale is the caller's existing
// snapshot, nil when this is a plain miss.
func (c *Coordinator) fill(ctx context.Context, id int64, stale *models.CacheEntry) (interface{}, error) {
	item, err := c.client.Fetch(ctx, id)

	switch {
	case err == nil:
		entry := &models.CacheEntry{ID: id, Item: *item, CachedAt: c.now()}
		if putErr := c.store.Put(ctx, entry); putErr != nil {
			// Remote answer is still good; persistence failure only costs
			// durability of this one snapshot.
			logging.Error().Int64("item_id", id).Err(putErr).Msg("Failed to persist cache entry")
		}
		return fillResult{item: item}, nil

	case errors.Is(err, catalog.ErrNotFound):
		if stale != nil {
			if delErr := c.store.Delete(ctx, id); delErr == nil {
				metrics.CacheEvictions.WithLabelValues(cacheType, "not_found").Inc()
			}
		}
		return nil, err

	case errors.Is(err, catalog.ErrUnavailable):
		if stale != nil && stale.Age(c.now()) < c.grace {
			metrics.CacheStaleServes.WithLabelValues(cacheType).Inc()
			logging.Warn().
				Int64("item_id", id).
				Dur("age", stale.Age(c.now())).
				Msg("Remote catalog unavailable, serving stale snapshot")
			item := stale.Item
			return fillResult{item: &item, stale: true}, nil
		}
		return nil, err

	default:
		return nil, err
	}
}

// Warm stores snapshots obtained out of band (e.g. from a listing call)
// so later reads and degraded-mode fallbacks can serve them without a
// per-item remote fetch. Persistence failures are logged and skipped.
func (c *Coordinator) Warm(ctx context.Context, items []models.CatalogItem) {
	now := c.now()
	for i := range items {
		entry := &models.CacheEntry{ID: items[i].ID, Item: items[i], CachedAt: now}
		if err := c.store.Put(ctx, entry); err != nil {
			logging.Error().Int64("item_id", items[i].ID).Err(err).Msg("Failed to warm cache entry")
		}
	}
}

// Resolve fetches the given ids tolerantly: ids that do not exist or
// cannot be resolved are omitted from the result rather than failing the
// whole call. The second return reports whether any id was dropped
// because the remote store was unreachable.
func (c *Coordinator) Resolve(ctx context.Context, ids []int64) (map[int64]*models.CatalogItem, bool) {
	resolved := make(map[int64]*models.CatalogItem, len(ids))
	remoteDown := false

	for _, id := range ids {
		item, _, err := c.Get(ctx, id)
		if err != nil {
			if errors.Is(err, catalog.ErrUnavailable) {
				remoteDown = true
			}
			continue
		}
		resolved[id] = item
	}

	return resolved, remoteDown
}

// Count returns the number of cached entries.
func (c *Coordinator) Count(ctx context.Context) (int64, error) {
	return c.store.Count(ctx)
}

// Pinned reports whether id is currently serving an in-flight degraded
// read. The sweeper skips pinned entries.
func (c *Coordinator) Pinned(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pins[id] > 0
}

func (c *Coordinator) pin(id int64) {
	c.mu.Lock()
	c.pins[id]++
	c.mu.Unlock()
}

func (c *Coordinator) unpin(id int64) {
	c.mu.Lock()
	if c.pins[id]--; c.pins[id] <= 0 {
		delete(c.pins, id)
	}
	c.mu.Unlock()
}
