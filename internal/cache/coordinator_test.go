// Ludex - Personalized Game Catalog and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludex

package cache

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/tomtom215/ludex/internal/catalog"
	"github.com/tomtom215/ludex/internal/config"
	"github.com/tomtom215/ludex/internal/logging"
	"github.com/tomtom215/ludex/internal/models"
	"github.com/tomtom215/ludex/internal/store"
)

// fakeClient is a scriptable catalog.Client counting Fetch calls.
// When gate is set, Fetch blocks until the gate channel is closed.
type fakeClient struct {
	items      map[int64]models.CatalogItem
	err        error
	fetchCalls atomic.Int64
	gate       chan struct{}
}

func (f *fakeClient) Fetch(ctx context.Context, id int64) (*models.CatalogItem, error) {
	f.fetchCalls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return nil, f.err
	}
	item, ok := f.items[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &item, nil
}

func (f *fakeClient) FetchMany(ctx context.Context, ids []int64) (map[int64]*models.CatalogItem, error) {
	found := make(map[int64]*models.CatalogItem, len(ids))
	for _, id := range ids {
		item, err := f.Fetch(ctx, id)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				continue
			}
			return nil, err
		}
		found[id] = item
	}
	return found, nil
}

func (f *fakeClient) ListTop(ctx context.Context, n int) ([]models.CatalogItem, error) {
	if f.err != nil {
		return nil, f.err
	}
	items := make([]models.CatalogItem, 0, len(f.items))
	for _, item := range f.items {
		items = append(items, item)
	}
	if n > 0 && len(items) > n {
		items = items[:n]
	}
	return items, nil
}

func zerologTestLogger() zerolog.Logger {
	return logging.NewTestLogger(io.Discard)
}

func testCacheConfig() *config.CacheConfig {
	return &config.CacheConfig{
		TTL:           time.Hour,
		GraceMultiple: 24,
		SweepInterval: 10 * time.Minute,
	}
}

func newTestCoordinator(t *testing.T, client catalog.Client) (*Coordinator, *store.CacheStore, *badger.DB) {
	t.Helper()
	db, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	st := store.NewCacheStore(db)
	return NewCoordinator(st, client, testCacheConfig()), st, db
}

func seedEntry(t *testing.T, st *store.CacheStore, id int64, cachedAt time.Time) {
	t.Helper()
	err := st.Put(context.Background(), &models.CacheEntry{
		ID: id,
		Item: models.CatalogItem{
			ID:         id,
			Name:       "Cached Game",
			Categories: []string{"Strategy"},
		},
		CachedAt: cachedAt,
	})
	if err != nil {
		t.Fatalf("seed entry %d: %v", id, err)
	}
}

func TestGetFreshHitSkipsRemote(t *testing.T) {
	client := &fakeClient{}
	coord, st, _ := newTestCoordinator(t, client)

	now := time.Now().UTC()
	coord.now = func() time.Time { return now }
	seedEntry(t, st, 570, now.Add(-time.Minute))

	item, stale, err := coord.Get(context.Background(), 570)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if stale {
		t.Error("fresh hit reported stale")
	}
	if item.Name != "Cached Game" {
		t.Errorf("item = %+v", item)
	}
	if client.fetchCalls.Load() != 0 {
		t.Errorf("remote fetched %d times on fresh hit, want 0", client.fetchCalls.Load())
	}
}

func TestGetMissFetchesAndPersists(t *testing.T) {
	client := &fakeClient{items: map[int64]models.CatalogItem{
		730: {ID: 730, Name: "Counter-Strike 2", Categories: []string{"Action"}},
	}}
	coord, st, _ := newTestCoordinator(t, client)

	item, stale, err := coord.Get(context.Background(), 730)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if stale {
		t.Error("fill reported stale")
	}
	if item.Name != "Counter-Strike 2" {
		t.Errorf("item = %+v", item)
	}

	entry, err := st.Get(context.Background(), 730)
	if err != nil {
		t.Fatalf("entry not persisted: %v", err)
	}
	if entry.Item.Name != "Counter-Strike 2" {
		t.Errorf("persisted entry = %+v", entry)
	}
}

func TestGetStaleRefetches(t *testing.T) {
	client := &fakeClient{items: map[int64]models.CatalogItem{
		570: {ID: 570, Name: "Updated Name", Categories: []string{"Action"}},
	}}
	coord, st, _ := newTestCoordinator(t, client)

	now := time.Now().UTC()
	coord.now = func() time.Time { return now }
	seedEntry(t, st, 570, now.Add(-2*time.Hour))

	item, stale, err := coord.Get(context.Background(), 570)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if stale {
		t.Error("successful refetch reported stale")
	}
	if item.Name != "Updated Name" {
		t.Errorf("item = %+v, want refetched snapshot", item)
	}
	if client.fetchCalls.Load() != 1 {
		t.Errorf("fetchCalls = %d, want 1", client.fetchCalls.Load())
	}

	entry, err := st.Get(context.Background(), 570)
	if err != nil {
		t.Fatalf("Get entry: %v", err)
	}
	if entry.Item.Name != "Updated Name" {
		t.Errorf("stale entry not overwritten: %+v", entry)
	}
}

func TestGetExactTTLBoundaryIsStale(t *testing.T) {
	client := &fakeClient{items: map[int64]models.CatalogItem{
		570: {ID: 570, Name: "Refetched"},
	}}
	coord, st, _ := newTestCoordinator(t, client)

	now := time.Now().UTC()
	coord.now = func() time.Time { return now }
	seedEntry(t, st, 570, now.Add(-time.Hour)) // age == TTL

	if _, _, err := coord.Get(context.Background(), 570); err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if client.fetchCalls.Load() != 1 {
		t.Errorf("entry at exactly TTL should refetch, fetchCalls = %d", client.fetchCalls.Load())
	}
}

func TestGetConcurrentMissSharesSingleFetch(t *testing.T) {
	const callers = 8

	client := &fakeClient{
		items: map[int64]models.CatalogItem{
			730: {ID: 730, Name: "Counter-Strike 2", Categories: []string{"Action"}},
		},
		gate: make(chan struct{}),
	}
	coord, _, _ := newTestCoordinator(t, client)

	var wg sync.WaitGroup
	items := make([]*models.CatalogItem, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			items[i], _, errs[i] = coord.Get(context.Background(), 730)
		}(i)
	}

	// Hold the remote call open until the first fetch is in flight and
	// the remaining callers have had time to join it.
	deadline := time.Now().Add(2 * time.Second)
	for client.fetchCalls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no fetch started")
		}
		time.Sleep(time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	close(client.gate)
	wg.Wait()

	if got := client.fetchCalls.Load(); got != 1 {
		t.Errorf("fetchCalls = %d, want 1 shared fetch for %d concurrent misses", got, callers)
	}
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d error: %v", i, errs[i])
		}
		if items[i] == nil || items[i].Name != "Counter-Strike 2" {
			t.Errorf("caller %d item = %+v, want shared result", i, items[i])
		}
	}
}

func TestLookupReportsSource(t *testing.T) {
	client := &fakeClient{
		items: map[int64]models.CatalogItem{
			730: {ID: 730, Name: "Counter-Strike 2"},
		},
	}
	coord, st, _ := newTestCoordinator(t, client)

	now := time.Now().UTC()
	coord.now = func() time.Time { return now }

	if _, src, err := coord.Lookup(context.Background(), 730); err != nil || src != SourceRemote {
		t.Errorf("cold miss: src = %v err = %v, want SourceRemote", src, err)
	}
	if _, src, err := coord.Lookup(context.Background(), 730); err != nil || src != SourceFresh {
		t.Errorf("fresh hit: src = %v err = %v, want SourceFresh", src, err)
	}

	client.err = catalog.ErrUnavailable
	seedEntry(t, st, 570, now.Add(-2*time.Hour))
	if _, src, err := coord.Lookup(context.Background(), 570); err != nil || src != SourceStale {
		t.Errorf("degraded read: src = %v err = %v, want SourceStale", src, err)
	}
}

func TestGetDegradedServesStale(t *testing.T) {
	client := &fakeClient{err: catalog.ErrUnavailable}
	coord, st, _ := newTestCoordinator(t, client)

	now := time.Now().UTC()
	coord.now = func() time.Time { return now }
	seedEntry(t, st, 570, now.Add(-2*time.Hour)) // stale, well inside grace

	item, stale, err := coord.Get(context.Background(), 570)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if !stale {
		t.Error("degraded read must report stale")
	}
	if item.Name != "Cached Game" {
		t.Errorf("item = %+v, want stale snapshot", item)
	}
}

func TestGetDegradedBeyondGraceFails(t *testing.T) {
	client := &fakeClient{err: catalog.ErrUnavailable}
	coord, st, _ := newTestCoordinator(t, client)

	now := time.Now().UTC()
	coord.now = func() time.Time { return now }
	seedEntry(t, st, 570, now.Add(-25*time.Hour)) // older than TTL*24

	_, _, err := coord.Get(context.Background(), 570)
	if !errors.Is(err, catalog.ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
}

func TestGetMissWhileUnavailableFails(t *testing.T) {
	client := &fakeClient{err: catalog.ErrUnavailable}
	coord, _, _ := newTestCoordinator(t, client)

	_, _, err := coord.Get(context.Background(), 999)
	if !errors.Is(err, catalog.ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
}

func TestGetNotFoundEvictsStaleEntry(t *testing.T) {
	client := &fakeClient{items: map[int64]models.CatalogItem{}} // upstream knows nothing
	coord, st, _ := newTestCoordinator(t, client)

	now := time.Now().UTC()
	coord.now = func() time.Time { return now }
	seedEntry(t, st, 570, now.Add(-2*time.Hour))

	_, _, err := coord.Get(context.Background(), 570)
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}

	if _, err := st.Get(context.Background(), 570); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("removed-upstream entry should be evicted, got %v", err)
	}
}

func TestGetCorruptRecordRefills(t *testing.T) {
	client := &fakeClient{items: map[int64]models.CatalogItem{
		7: {ID: 7, Name: "Recovered"},
	}}
	coord, _, db := newTestCoordinator(t, client)

	err := db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("item:7"), []byte("not json"))
	})
	if err != nil {
		t.Fatalf("seed corrupt record: %v", err)
	}

	item, stale, err := coord.Get(context.Background(), 7)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if stale || item.Name != "Recovered" {
		t.Errorf("item = %+v stale = %v, want refilled snapshot", item, stale)
	}
}

func TestResolveToleratesPartialFailure(t *testing.T) {
	client := &fakeClient{items: map[int64]models.CatalogItem{
		1: {ID: 1, Name: "One"},
		3: {ID: 3, Name: "Three"},
	}}
	coord, _, _ := newTestCoordinator(t, client)

	resolved, remoteDown := coord.Resolve(context.Background(), []int64{1, 2, 3})
	if remoteDown {
		t.Error("remoteDown = true, want false for NotFound drops")
	}
	if len(resolved) != 2 {
		t.Fatalf("len(resolved) = %d, want 2", len(resolved))
	}
	if resolved[1].Name != "One" || resolved[3].Name != "Three" {
		t.Errorf("resolved = %v", resolved)
	}
}

func TestResolveReportsRemoteDown(t *testing.T) {
	client := &fakeClient{err: catalog.ErrUnavailable}
	coord, st, _ := newTestCoordinator(t, client)

	now := time.Now().UTC()
	coord.now = func() time.Time { return now }
	seedEntry(t, st, 1, now.Add(-2*time.Hour)) // servable stale

	resolved, remoteDown := coord.Resolve(context.Background(), []int64{1, 2})
	if !remoteDown {
		t.Error("remoteDown = false, want true when an id was dropped")
	}
	if len(resolved) != 1 || resolved[1] == nil {
		t.Errorf("resolved = %v, want stale snapshot for id 1", resolved)
	}
}

func TestPinUnpin(t *testing.T) {
	coord, _, _ := newTestCoordinator(t, &fakeClient{})

	if coord.Pinned(1) {
		t.Error("Pinned(1) = true before any pin")
	}
	coord.pin(1)
	coord.pin(1)
	if !coord.Pinned(1) {
		t.Error("Pinned(1) = false after pin")
	}
	coord.unpin(1)
	if !coord.Pinned(1) {
		t.Error("Pinned(1) = false while one pin remains")
	}
	coord.unpin(1)
	if coord.Pinned(1) {
		t.Error("Pinned(1) = true after all pins released")
	}
}

func TestSweeperRemovesExpired(t *testing.T) {
	client := &fakeClient{}
	coord, st, _ := newTestCoordinator(t, client)

	now := time.Now().UTC()
	seedEntry(t, st, 1, now.Add(-25*time.Hour)) // beyond grace
	seedEntry(t, st, 2, now.Add(-time.Minute))  // fresh

	sweeper := NewSweeper(st, coord, testCacheConfig(), zerologTestLogger())
	sweeper.now = func() time.Time { return now }
	sweeper.sweep(context.Background())

	if _, err := st.Get(context.Background(), 1); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expired entry should be swept, got %v", err)
	}
	if _, err := st.Get(context.Background(), 2); err != nil {
		t.Errorf("fresh entry should survive, got %v", err)
	}
}

func TestSweeperSkipsPinned(t *testing.T) {
	client := &fakeClient{}
	coord, st, _ := newTestCoordinator(t, client)

	now := time.Now().UTC()
	seedEntry(t, st, 1, now.Add(-25*time.Hour))
	coord.pin(1)
	defer coord.unpin(1)

	sweeper := NewSweeper(st, coord, testCacheConfig(), zerologTestLogger())
	sweeper.now = func() time.Time { return now }
	sweeper.sweep(context.Background())

	if _, err := st.Get(context.Background(), 1); err != nil {
		t.Errorf("pinned entry must survive the sweep, got %v", err)
	}
}
