// Ludex - Personalized Game Catalog and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludex

package models

import (
	"time"
)

// CatalogItem is a read-only snapshot of one item in the remote catalog.
// The remote store owns these records; locally they are only ever copied
// into cache entries. Identifiers are stable and immutable once assigned.
//
// Fields:
//   - ID: Remote catalog identifier (stable, immutable)
//   - Name: Display name
//   - Price: Price in the catalog's currency, zero meaning free
//   - Categories: Category tags, unique within an item
//   - PositiveReviews / NegativeReviews: Review counters, never negative
//   - UpdatedAt: Last-updated timestamp reported by the remote store
type CatalogItem struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Price           float64   `json:"price"`
	Categories      []string  `json:"categories"`
	PositiveReviews int64     `json:"positive_reviews"`
	NegativeReviews int64     `json:"negative_reviews"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ReviewRatio returns positive/(positive+negative), with 0/0 treated as 0.
// Used as a popularity signal when ranking items with equal preference scores.
func (c *CatalogItem) ReviewRatio() float64 {
	total := c.PositiveReviews + c.NegativeReviews
	if total == 0 {
		return 0
	}
	return float64(c.PositiveReviews) / float64(total)
}

// CacheEntry is a durable local snapshot of a CatalogItem.
// Entries are disposable projections of remote state, never authoritative:
// created or overwritten only on a successful catalog fetch, evicted on an
// authoritative NotFound, and swept once stale beyond a grace multiple of
// the freshness TTL.
type CacheEntry struct {
	ID       int64       `json:"id"`
	Item     CatalogItem `json:"item"`
	CachedAt time.Time   `json:"cached_at"`
}

// Fresh reports whether the entry is within the freshness window.
// Staleness alone does not imply deletion; a stale entry may still be
// served under degraded-mode policy.
func (e *CacheEntry) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.CachedAt) < ttl
}

// Age returns how long ago the entry was cached.
func (e *CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.CachedAt)
}
