// Ludex - Personalized Game Catalog and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludex

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/ludex/internal/models"
)

// ProfileStore persists preference profiles keyed by user id.
type ProfileStore struct {
	db *badger.DB
}

// NewProfileStore creates a BadgerDB-backed profile store.
func NewProfileStore(db *badger.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

func profileKey(userID string) []byte {
	return []byte(profileKeyPrefix + userID)
}

// Put stores or overwrites the profile for profile.UserID.
func (s *ProfileStore) Put(ctx context.Context, profile *models.PreferenceProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(profileKey(profile.UserID), data); err != nil {
			return fmt.Errorf("set profile: %w", err)
		}
		return nil
	})
}

// Get retrieves the profile for userID, or ErrNotFound.
// A record that cannot be decoded surfaces as ErrCorrupted.
func (s *ProfileStore) Get(ctx context.Context, userID string) (*models.PreferenceProfile, error) {
	var profile models.PreferenceProfile

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(profileKey(userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get profile: %w", err)
		}

		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &profile); err != nil {
				return fmt.Errorf("%w: profile %s: %v", ErrCorrupted, userID, err)
			}
			return nil
		})
	})

	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// Delete removes the profile for userID. Deleting an absent key is not
// an error.
func (s *ProfileStore) Delete(ctx context.Context, userID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(profileKey(userID)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete profile: %w", err)
		}
		return nil
	})
}

// Count returns the number of stored profiles.
func (s *ProfileStore) Count(ctx context.Context) (int64, error) {
	var count int64

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(profileKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})

	return count, err
}
