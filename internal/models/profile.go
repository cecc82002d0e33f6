// Ludex - Personalized Game Catalog and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludex

package models

import (
	"time"
)

// PreferenceProfile is the per-user learned state driving personalization:
// category weights plus a bounded recency history of clicked items.
//
// Invariants maintained by the preference engine:
//   - every weight stays within [-WMax, WMax]
//   - ClickedItems never exceeds the history bound and never contains
//     duplicate identifiers (a re-click moves the id to the end)
//
// ClickedItems holds catalog identifiers by value only — a referenced item
// may no longer exist in the cache or even the catalog, and consumers must
// treat such references as unknown rather than assuming existence.
type PreferenceProfile struct {
	UserID       string         `json:"user_id"`
	Weights      map[string]int `json:"weights"`
	ClickedItems []int64        `json:"clicked_items"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// NewPreferenceProfile returns an empty profile for the given user.
// "No signal yet" is a valid state, not an error: unknown users get
// this rather than a lookup failure.
func NewPreferenceProfile(userID string) *PreferenceProfile {
	return &PreferenceProfile{
		UserID:       userID,
		Weights:      make(map[string]int),
		ClickedItems: nil,
	}
}

// Empty reports whether the profile carries no learned signal at all.
func (p *PreferenceProfile) Empty() bool {
	return len(p.Weights) == 0
}

// HasClicked reports whether the given item id is in the clicked history.
func (p *PreferenceProfile) HasClicked(itemID int64) bool {
	for _, id := range p.ClickedItems {
		if id == itemID {
			return true
		}
	}
	return false
}

// ProfileStats is the introspection view of a profile: the weight mapping
// plus history length, without exposing the raw click sequence.
type ProfileStats struct {
	UserID        string         `json:"user_id"`
	Weights       map[string]int `json:"weights"`
	HistoryLength int            `json:"history_length"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// StoreStats summarizes local persisted state for the stats endpoint.
type StoreStats struct {
	Users       int64 `json:"users"`
	CachedItems int64 `json:"cached_items"`
}
