// Ludex - Personalized Game Catalog and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludex

package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/ludex/internal/config"
	"github.com/tomtom215/ludex/internal/metrics"
	"github.com/tomtom215/ludex/internal/store"
)

// Sweeper periodically removes cache entries older than the grace window.
// It runs under Suture supervision and never touches entries pinned by
// in-flight degraded reads.
type Sweeper struct {
	store    *store.CacheStore
	coord    *Coordinator
	grace    time.Duration
	interval time.Duration
	logger   zerolog.Logger
	name     string

	// now is replaceable in tests
	now func() time.Time
}

// NewSweeper creates a sweeper over the given store, sharing the
// coordinator's pin set.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewSweeper(st *store.CacheStore, coord *Coordinator, cfg *config.CacheConfig, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		store:    st,
		coord:    coord,
		grace:    cfg.GraceWindow(),
		interval: cfg.SweepInterval,
		logger:   logger.With().Str("service", "sweeper").Logger(),
		name:     "cache-sweeper",
		now:      time.Now,
	}
}

// Serve implements the suture.Service interface.
func (s *Sweeper) Serve(ctx context.Context) error {
	s.logger.Info().
		Dur("interval", s.interval).
		Dur("grace_window", s.grace).
		Msg("cache sweeper starting")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("cache sweeper shutting down")
			return ctx.Err()

		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep performs one eviction pass.
func (s *Sweeper) sweep(ctx context.Context) {
	start := time.Now()

	removed, err := s.store.Sweep(ctx, s.now(), s.grace, s.coord.Pinned)
	metrics.RecordSweep(time.Since(start), removed, err)

	if err != nil {
		s.logger.Warn().Err(err).Msg("eviction sweep failed")
		return
	}

	if removed > 0 {
		metrics.CacheEvictions.WithLabelValues(cacheType, "sweep").Add(float64(removed))
	}

	if count, countErr := s.store.Count(ctx); countErr == nil {
		metrics.CacheSize.WithLabelValues(cacheType).Set(float64(count))
	}

	s.logger.Debug().
		Int("removed", removed).
		Dur("duration", time.Since(start)).
		Msg("eviction sweep complete")
}

// String returns the service name for logging.
func (s *Sweeper) String() string {
	return s.name
}
