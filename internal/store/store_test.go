// Ludex - Personalized Game Catalog and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludex

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/ludex/internal/models"
)

func newTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func testEntry(id int64, cachedAt time.Time) *models.CacheEntry {
	return &models.CacheEntry{
		ID: id,
		Item: models.CatalogItem{
			ID:              id,
			Name:            "Test Game",
			Price:           9.99,
			Categories:      []string{"Action", "Indie"},
			PositiveReviews: 10,
			NegativeReviews: 2,
			UpdatedAt:       cachedAt,
		},
		CachedAt: cachedAt,
	}
}

func TestCacheStoreRoundTrip(t *testing.T) {
	s := NewCacheStore(newTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	if err := s.Put(ctx, testEntry(570, now)); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	got, err := s.Get(ctx, 570)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.ID != 570 || got.Item.Name != "Test Game" {
		t.Errorf("unexpected entry: %+v", got)
	}
	if len(got.Item.Categories) != 2 {
		t.Errorf("Categories = %v, want 2 tags", got.Item.Categories)
	}
	if !got.CachedAt.Equal(now) {
		t.Errorf("CachedAt = %v, want %v", got.CachedAt, now)
	}
}

func TestCacheStoreGetMissing(t *testing.T) {
	s := NewCacheStore(newTestDB(t))

	if _, err := s.Get(context.Background(), 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestCacheStoreOverwrite(t *testing.T) {
	s := NewCacheStore(newTestDB(t))
	ctx := context.Background()

	first := time.Now().UTC().Add(-time.Hour)
	second := time.Now().UTC()

	if err := s.Put(ctx, testEntry(1, first)); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if err := s.Put(ctx, testEntry(1, second)); err != nil {
		t.Fatalf("second Put error: %v", err)
	}

	got, err := s.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if !got.CachedAt.Equal(second) {
		t.Errorf("CachedAt = %v, want overwrite to %v", got.CachedAt, second)
	}

	count, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count error: %v", err)
	}
	if count != 1 {
		t.Errorf("Count = %d, want 1", count)
	}
}

func TestCacheStoreDelete(t *testing.T) {
	s := NewCacheStore(newTestDB(t))
	ctx := context.Background()

	if err := s.Put(ctx, testEntry(1, time.Now().UTC())); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if err := s.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := s.Get(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete, error = %v, want ErrNotFound", err)
	}

	// Deleting an absent key is not an error
	if err := s.Delete(ctx, 42); err != nil {
		t.Errorf("Delete(absent) error: %v", err)
	}
}

func TestCacheStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	now := time.Now().UTC()

	db, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := NewCacheStore(db).Put(ctx, testEntry(570, now)); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db, err = Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	got, err := NewCacheStore(db).Get(ctx, 570)
	if err != nil {
		t.Fatalf("Get after reopen error: %v", err)
	}
	if got.Item.Name != "Test Game" {
		t.Errorf("entry did not survive reopen: %+v", got)
	}
}

func TestCacheStoreSweep(t *testing.T) {
	s := NewCacheStore(newTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	// One old enough to sweep, one old but protected, one fresh.
	if err := s.Put(ctx, testEntry(1, now.Add(-48*time.Hour))); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if err := s.Put(ctx, testEntry(2, now.Add(-48*time.Hour))); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if err := s.Put(ctx, testEntry(3, now.Add(-time.Minute))); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	removed, err := s.Sweep(ctx, now, 24*time.Hour, func(id int64) bool {
		return id == 2
	})
	if err != nil {
		t.Fatalf("Sweep error: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	if _, err := s.Get(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("entry 1 should have been swept, got %v", err)
	}
	if _, err := s.Get(ctx, 2); err != nil {
		t.Errorf("protected entry 2 should survive, got %v", err)
	}
	if _, err := s.Get(ctx, 3); err != nil {
		t.Errorf("fresh entry 3 should survive, got %v", err)
	}
}

func TestCacheStoreSweepExactBoundary(t *testing.T) {
	s := NewCacheStore(newTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	// Age exactly equal to maxAge is expired.
	if err := s.Put(ctx, testEntry(1, now.Add(-24*time.Hour))); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	removed, err := s.Sweep(ctx, now, 24*time.Hour, nil)
	if err != nil {
		t.Fatalf("Sweep error: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
}

func TestCacheStoreSweepKeepsConcurrentlyRefilledEntry(t *testing.T) {
	s := NewCacheStore(newTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	if err := s.Put(ctx, testEntry(1, now.Add(-48*time.Hour))); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	// The skip callback runs between the sweep's scan and its delete;
	// refilling the entry there models a read-through fill racing the
	// sweep after the entry's pin is released.
	refillOnSkip := func(id int64) bool {
		if err := s.Put(ctx, testEntry(id, now)); err != nil {
			t.Fatalf("refill during sweep: %v", err)
		}
		return false
	}

	removed, err := s.Sweep(ctx, now, 24*time.Hour, refillOnSkip)
	if err != nil {
		t.Fatalf("Sweep error: %v", err)
	}
	if removed != 0 {
		t.Errorf("removed = %d, want 0 for an entry refilled mid-sweep", removed)
	}

	entry, err := s.Get(ctx, 1)
	if err != nil {
		t.Fatalf("refilled entry evicted by sweep: %v", err)
	}
	if !entry.CachedAt.Equal(now) {
		t.Errorf("CachedAt = %v, want refilled timestamp %v", entry.CachedAt, now)
	}
}

func TestCacheStoreCorruptedRecord(t *testing.T) {
	db := newTestDB(t)
	s := NewCacheStore(db)
	ctx := context.Background()

	err := db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("item:7"), []byte("not json"))
	})
	if err != nil {
		t.Fatalf("seed corrupt record: %v", err)
	}

	if _, err := s.Get(ctx, 7); !errors.Is(err, ErrCorrupted) {
		t.Errorf("error = %v, want ErrCorrupted", err)
	}

	// The sweeper purges undecodable records.
	removed, err := s.Sweep(ctx, time.Now().UTC(), 24*time.Hour, nil)
	if err != nil {
		t.Fatalf("Sweep error: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want corrupt record purged", removed)
	}
}

func TestProfileStoreRoundTrip(t *testing.T) {
	s := NewProfileStore(newTestDB(t))
	ctx := context.Background()

	profile := models.NewPreferenceProfile("alice")
	profile.Weights["Action"] = 3
	profile.Weights["Indie"] = -2
	profile.ClickedItems = []int64{570, 730}

	if err := s.Put(ctx, profile); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	got, err := s.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Weights["Action"] != 3 || got.Weights["Indie"] != -2 {
		t.Errorf("Weights = %v", got.Weights)
	}
	if len(got.ClickedItems) != 2 || got.ClickedItems[1] != 730 {
		t.Errorf("ClickedItems = %v", got.ClickedItems)
	}
}

func TestProfileStoreGetMissing(t *testing.T) {
	s := NewProfileStore(newTestDB(t))

	if _, err := s.Get(context.Background(), "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestProfileStoreCount(t *testing.T) {
	s := NewProfileStore(newTestDB(t))
	ctx := context.Background()

	for _, user := range []string{"a", "b", "c"} {
		if err := s.Put(ctx, models.NewPreferenceProfile(user)); err != nil {
			t.Fatalf("Put(%s) error: %v", user, err)
		}
	}

	count, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count error: %v", err)
	}
	if count != 3 {
		t.Errorf("Count = %d, want 3", count)
	}
}

func TestStoresShareDatabaseWithoutCollision(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	cache := NewCacheStore(db)
	profiles := NewProfileStore(db)

	if err := cache.Put(ctx, testEntry(1, time.Now().UTC())); err != nil {
		t.Fatalf("cache Put error: %v", err)
	}
	if err := profiles.Put(ctx, models.NewPreferenceProfile("alice")); err != nil {
		t.Fatalf("profile Put error: %v", err)
	}

	cacheCount, _ := cache.Count(ctx)
	profileCount, _ := profiles.Count(ctx)
	if cacheCount != 1 || profileCount != 1 {
		t.Errorf("counts = %d/%d, want 1/1", cacheCount, profileCount)
	}
}
