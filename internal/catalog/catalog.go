// Ludex - Personalized Game Catalog and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludex

// Package catalog talks to the remote authoritative game catalog.
//
// The remote store owns all item data; this package only reads it. Two
// failure conditions are distinguished and callers must treat them
// differently: ErrNotFound is an authoritative answer (the item does not
// exist upstream) while ErrUnavailable is transient and triggers
// degraded-mode fallbacks in the cache layer.
//
// Clients are stateless and safe for concurrent use.
package catalog

import (
	"context"
	"errors"
	"sort"

	"github.com/tomtom215/ludex/internal/models"
)

var (
	// ErrNotFound means the remote store authoritatively reports the item
	// does not exist. Propagated to callers; never retried.
	ErrNotFound = errors.New("catalog: item not found")

	// ErrUnavailable means the remote store could not be reached or did
	// not answer in time. Transient; cache callers fall back to stale
	// data where it exists.
	ErrUnavailable = errors.New("catalog: remote unavailable")
)

// Client is the read-only interface to the remote catalog.
//
// Implemented by HTTPClient for production use and by mocks in tests.
// All methods accept a context for cancellation and per-call timeouts;
// exceeding the timeout surfaces as ErrUnavailable, never a hang.
type Client interface {
	// Fetch returns the item with the given id, or ErrNotFound.
	Fetch(ctx context.Context, id int64) (*models.CatalogItem, error)

	// FetchMany returns the subset of requested ids that exist, keyed by
	// id. Missing ids are silently omitted; the call fails only when the
	// remote store is unreachable.
	FetchMany(ctx context.Context, ids []int64) (map[int64]*models.CatalogItem, error)

	// ListTop returns up to n items ranked by the remote store's own
	// popularity notion.
	ListTop(ctx context.Context, n int) ([]models.CatalogItem, error)
}

// errorsIsNotFound reports whether err wraps ErrNotFound.
func errorsIsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// sortByPopularity orders items by total review volume descending, then by
// id ascending for determinism.
func sortByPopularity(items []models.CatalogItem) {
	sort.Slice(items, func(i, j int) bool {
		vi := items[i].PositiveReviews + items[i].NegativeReviews
		vj := items[j].PositiveReviews + items[j].NegativeReviews
		if vi != vj {
			return vi > vj
		}
		return items[i].ID < items[j].ID
	})
}
