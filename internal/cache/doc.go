// Ludex - Personalized Game Catalog and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludex

/*
Package cache coordinates the durable catalog cache in front of the
remote catalog client.

# Overview

The Coordinator is the single read path for catalog items. On every
lookup it consults the Badger-backed store first:

  - Fresh entry (age < TTL): served directly, no remote call.
  - Stale or missing entry: one remote fetch per item id, collapsed
    across concurrent callers with singleflight.
  - Remote unavailable with a stale entry inside the grace window:
    the stale snapshot is served and flagged as degraded.
  - Remote reports the item gone: the cached entry is evicted and the
    not-found condition propagates.

# Sweeper

The Sweeper is a suture.Service that periodically removes entries older
than the grace window. Entries currently serving an in-flight degraded
read are pinned by the Coordinator and skipped by the sweep, so a slow
degraded response never races with its own eviction.

# Freshness Semantics

An entry whose age equals the TTL exactly is stale, not fresh. An entry
whose age equals the grace window exactly is expired and removed. Both
boundaries are closed on the expiring side so that freshness never
depends on timer granularity.
*/
package cache
