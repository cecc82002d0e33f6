// Ludex - Personalized Game Catalog and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludex

/*
Package models defines the data structures shared across the service.

It serves as the single source of truth for:

  - CatalogItem and CacheEntry: the normalized catalog record and its
    durable cached form with freshness metadata.
  - PreferenceProfile: per-user category weights and bounded click
    history learned from interactions.
  - RecommendationResult: a scored, ordered recommendation response
    with an explicit reason when empty.
  - API request payloads with validator tags, and the standard
    APIResponse envelope shared by every HTTP endpoint.

Models carry JSON tags matching the external API surface; internal
persistence uses the same encoding.
*/
package models
