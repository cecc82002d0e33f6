// Ludex - Personalized Game Catalog and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludex

// Package prefs implements the preference learning engine.
//
// User interactions (clicks and wishlist additions) adjust per-category
// weights in a durable preference profile. Profiles are created lazily on
// first interaction; reads of unknown users yield an empty profile, never
// an error. Writes for the same user are serialized through a per-user
// lock so concurrent interactions cannot lose updates.
package prefs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/ludex/internal/cache"
	"github.com/tomtom215/ludex/internal/config"
	"github.com/tomtom215/ludex/internal/logging"
	"github.com/tomtom215/ludex/internal/metrics"
	"github.com/tomtom215/ludex/internal/models"
	"github.com/tomtom215/ludex/internal/store"
)

// Interaction kinds, used for metrics and weight deltas.
const (
	KindClick    = "click"
	KindWishlist = "wishlist"
)

// Engine applies user interactions to durable preference profiles.
type Engine struct {
	store       *store.ProfileStore
	cache       *cache.Coordinator
	maxWeight   int
	historySize int
	deltas      map[string]int

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	// now is replaceable in tests
	now func() time.Time
}

// NewEngine creates a preference engine over the given profile store and
// cache coordinator, configured from cfg.
func NewEngine(st *store.ProfileStore, coord *cache.Coordinator, cfg *config.PreferencesConfig) *Engine {
	return &Engine{
		store:       st,
		cache:       coord,
		maxWeight:   cfg.MaxWeight,
		historySize: cfg.HistorySize,
		deltas: map[string]int{
			KindClick:    cfg.ClickIncrement,
			KindWishlist: cfg.WishlistIncrement,
		},
		locks: make(map[string]*sync.Mutex),
		now:   time.Now,
	}
}

// userLock returns the mutex serializing writes for userID, creating it
// on first use. Lock instances are never removed; the set grows with the
// active user population, a few dozen bytes per user.
func (e *Engine) userLock(userID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	l, ok := e.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[userID] = l
	}
	return l
}

// RecordClick applies a click interaction: each of the item's category
// tags gains the click increment and the item joins the user's history.
func (e *Engine) RecordClick(ctx context.Context, userID string, itemID int64) error {
	return e.record(ctx, userID, itemID, KindClick)
}

// RecordWishlist applies a wishlist interaction. Wishlisting signals
// stronger intent than a click, so it carries a larger weight increment;
// the item joins the history the same way.
func (e *Engine) RecordWishlist(ctx context.Context, userID string, itemID int64) error {
	return e.record(ctx, userID, itemID, KindWishlist)
}

func (e *Engine) record(ctx context.Context, userID string, itemID int64, kind string) error {
	start := time.Now()

	// Resolve the item first: an interaction with an unknown item is the
	// caller's error and must not create or touch the profile.
	item, _, err := e.cache.Get(ctx, itemID)
	if err != nil {
		return fmt.Errorf("resolve item %d: %w", itemID, err)
	}

	lock := e.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	profile, err := e.loadForWrite(ctx, userID)
	if err != nil {
		return err
	}

	delta := e.deltas[kind]
	for _, category := range item.Categories {
		profile.Weights[category] = clamp(profile.Weights[category]+delta, e.maxWeight)
	}

	profile.ClickedItems = appendToHistory(profile.ClickedItems, itemID, e.historySize)
	profile.UpdatedAt = e.now().UTC()

	if err := e.store.Put(ctx, profile); err != nil {
		return fmt.Errorf("persist profile %s: %w", userID, err)
	}

	metrics.RecordInteraction(kind, time.Since(start))

	logging.Ctx(ctx).Debug().
		Str("user_id", userID).
		Int64("item_id", itemID).
		Str("kind", kind).
		Msg("Interaction recorded")

	return nil
}

// loadForWrite returns the stored profile for userID, creating an empty
// one lazily when none exists. A corrupt record is replaced rather than
// failing the interaction; the old weights are unrecoverable either way.
func (e *Engine) loadForWrite(ctx context.Context, userID string) (*models.PreferenceProfile, error) {
	profile, err := e.store.Get(ctx, userID)
	switch {
	case err == nil:
		return profile, nil
	case errors.Is(err, store.ErrNotFound):
		return models.NewPreferenceProfile(userID), nil
	case errors.Is(err, store.ErrCorrupted):
		logging.Warn().Str("user_id", userID).Err(err).Msg("Corrupt profile record, resetting")
		return models.NewPreferenceProfile(userID), nil
	default:
		return nil, fmt.Errorf("load profile %s: %w", userID, err)
	}
}

// GetProfile returns a copy of the user's profile. Unknown users get an
// empty profile, never an error.
func (e *Engine) GetProfile(ctx context.Context, userID string) (*models.PreferenceProfile, error) {
	profile, err := e.store.Get(ctx, userID)
	switch {
	case err == nil:
		return profile, nil
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrCorrupted):
		return models.NewPreferenceProfile(userID), nil
	default:
		return nil, fmt.Errorf("load profile %s: %w", userID, err)
	}
}

// Stats returns a summary view of the user's profile.
func (e *Engine) Stats(ctx context.Context, userID string) (*models.ProfileStats, error) {
	profile, err := e.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &models.ProfileStats{
		UserID:        profile.UserID,
		Weights:       profile.Weights,
		HistoryLength: len(profile.ClickedItems),
		UpdatedAt:     profile.UpdatedAt,
	}, nil
}

// Count returns the number of stored profiles.
func (e *Engine) Count(ctx context.Context) (int64, error) {
	return e.store.Count(ctx)
}

// clamp bounds w to [-limit, limit].
func clamp(w, limit int) int {
	if w > limit {
		return limit
	}
	if w < -limit {
		return -limit
	}
	return w
}

// appendToHistory adds itemID as the most recent entry, removing any
// earlier occurrence and trimming the oldest entries beyond size.
func appendToHistory(history []int64, itemID int64, size int) []int64 {
	out := make([]int64, 0, len(history)+1)
	for _, id := range history {
		if id != itemID {
			out = append(out, id)
		}
	}
	out = append(out, itemID)

	if len(out) > size {
		out = out[len(out)-size:]
	}
	return out
}
