// Ludex - Personalized Game Catalog and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludex

// Package store provides the durable keyed stores backing the cache and
// preference layers. Both stores persist to BadgerDB and survive process
// restarts; keys are namespaced by prefix so the two record kinds can
// share a database without colliding.
package store

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

var (
	// ErrNotFound means no record exists under the requested key.
	ErrNotFound = errors.New("store: not found")

	// ErrCorrupted means a stored record could not be decoded. The
	// record is unusable; callers treat the key as absent after the
	// corrupt value has been reported.
	ErrCorrupted = errors.New("store: corrupted record")
)

// Key prefixes for BadgerDB storage
const (
	itemKeyPrefix    = "item:"
	profileKeyPrefix = "profile:"
)

// Open opens (creating if necessary) a BadgerDB database at path.
// Badger's own logger is silenced; this package logs through the
// application logger instead.
func Open(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	return db, nil
}
