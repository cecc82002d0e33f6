// Ludex - Personalized Game Catalog and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludex

package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/ludex/internal/models"
)

// CacheStore persists catalog snapshots keyed by item id.
// Safe for concurrent use; Badger transactions provide isolation.
type CacheStore struct {
	db *badger.DB
}

// NewCacheStore creates a BadgerDB-backed cache store.
func NewCacheStore(db *badger.DB) *CacheStore {
	return &CacheStore{db: db}
}

func itemKey(id int64) []byte {
	return []byte(itemKeyPrefix + strconv.FormatInt(id, 10))
}

// Put stores or overwrites the cache entry for entry.ID.
func (s *CacheStore) Put(ctx context.Context, entry *models.CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(itemKey(entry.ID), data); err != nil {
			return fmt.Errorf("set cache entry: %w", err)
		}
		return nil
	})
}

// Get retrieves the cache entry for id, or ErrNotFound.
// A record that cannot be decoded surfaces as ErrCorrupted.
func (s *CacheStore) Get(ctx context.Context, id int64) (*models.CacheEntry, error) {
	var entry models.CacheEntry

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(itemKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get cache entry: %w", err)
		}

		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &entry); err != nil {
				return fmt.Errorf("%w: item %d: %v", ErrCorrupted, id, err)
			}
			return nil
		})
	})

	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Delete removes the cache entry for id. Deleting an absent key is not
// an error.
func (s *CacheStore) Delete(ctx context.Context, id int64) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(itemKey(id)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete cache entry: %w", err)
		}
		return nil
	})
}

// Count returns the number of cached entries.
func (s *CacheStore) Count(ctx context.Context) (int64, error) {
	var count int64

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(itemKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})

	return count, err
}

// Sweep removes entries whose age at now is maxAge or older. Entries for
// which skip returns true are left in place regardless of age; the cache
// coordinator uses this to protect entries serving in-flight degraded
// reads. Undecodable records count as expired and are removed.
// Returns the number of entries deleted.
func (s *CacheStore) Sweep(ctx context.Context, now time.Time, maxAge time.Duration, skip func(id int64) bool) (int, error) {
	var expired []int64

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(itemKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			item := it.Item()

			var entry models.CacheEntry
			decodeErr := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if decodeErr != nil {
				// Corrupt record: recover the id from the key so it can
				// be purged with the expired batch.
				if id, err := strconv.ParseInt(string(item.Key()[len(itemKeyPrefix):]), 10, 64); err == nil {
					expired = append(expired, id)
				}
				continue
			}

			if entry.Age(now) >= maxAge {
				expired = append(expired, entry.ID)
			}
		}
		return nil
	})

	if err != nil {
		return 0, fmt.Errorf("scan cache entries: %w", err)
	}

	removed := 0
	for _, id := range expired {
		if skip != nil && skip(id) {
			continue
		}
		deleted, err := s.deleteIfStillExpired(id, now, maxAge)
		if err != nil {
			continue
		}
		if deleted {
			removed++
		}
	}

	return removed, nil
}

// deleteIfStillExpired removes the entry for id unless it was refilled
// fresh between the sweep's scan and this delete. The age re-check runs
// inside the delete transaction so a concurrent refill is never evicted.
func (s *CacheStore) deleteIfStillExpired(id int64, now time.Time, maxAge time.Duration) (bool, error) {
	deleted := false

	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(itemKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("recheck cache entry: %w", err)
		}

		var entry models.CacheEntry
		decodeErr := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
		if decodeErr == nil && entry.Age(now) < maxAge {
			// Refilled since the scan; keep it.
			return nil
		}

		if err := txn.Delete(itemKey(id)); err != nil {
			return fmt.Errorf("delete cache entry: %w", err)
		}
		deleted = true
		return nil
	})

	return deleted, err
}
