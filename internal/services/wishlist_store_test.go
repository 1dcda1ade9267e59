package services

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/hanko-field/storefront/internal/repositories"
	"github.com/hanko-field/storefront/internal/repositories/kv"
	"github.com/hanko-field/storefront/internal/repositories/memory"
)

func newWishlistStore(t *testing.T, backend repositories.KeyValueStore, session SessionReader) (*WishlistStore, *eventRecorder) {
	t.Helper()
	repo, err := kv.NewWishlistRepository(backend)
	if err != nil {
		t.Fatalf("unexpected error creating wishlist repository: %v", err)
	}
	events := &eventRecorder{}
	store, err := NewWishlistStore(context.Background(), WishlistStoreDeps{
		Repository: repo,
		Session:    session,
		Clock:      testClock,
		Logger:     events.log,
	})
	if err != nil {
		t.Fatalf("unexpected error creating wishlist store: %v", err)
	}
	t.Cleanup(store.Close)
	return store, events
}

func TestWishlistStoreAddIsIdempotent(t *testing.T) {
	store, _ := newWishlistStore(t, memory.NewKVStore(), nil)
	ctx := context.Background()
	product := testProduct("w2", 34500)

	if _, err := store.Add(ctx, product); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wishlist, err := store.Add(ctx, product)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(wishlist.Items) != 1 {
		t.Fatalf("expected one entry, got %d", len(wishlist.Items))
	}
	if !store.Contains("w2") {
		t.Fatalf("expected wishlist to contain w2")
	}
}

func TestWishlistStoreRemove(t *testing.T) {
	store, _ := newWishlistStore(t, memory.NewKVStore(), nil)
	ctx := context.Background()
	if _, err := store.Add(ctx, testProduct("w1", 1000)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.Add(ctx, testProduct("w2", 2000)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	before := store.Snapshot()

	unchanged, err := store.Remove(ctx, "w9")
	if err != nil {
		t.Fatalf("expected removing absent product to be a no-op, got %v", err)
	}
	if !reflect.DeepEqual(unchanged, before) {
		t.Fatalf("expected unchanged wishlist, got %+v", unchanged)
	}

	wishlist, err := store.Remove(ctx, "w1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(wishlist.Items) != 1 || wishlist.Items[0].ID != "w2" {
		t.Fatalf("expected only w2 left, got %+v", wishlist.Items)
	}
	if store.Contains("w1") {
		t.Fatalf("expected w1 removed")
	}
}

func TestWishlistStoreRequiresSession(t *testing.T) {
	session := &stubSession{}
	store, _ := newWishlistStore(t, memory.NewKVStore(), session)

	if _, err := store.Add(context.Background(), testProduct("w1", 1000)); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	session.user = &User{ID: "user-1"}
	if _, err := store.Add(context.Background(), testProduct("w1", 1000)); err != nil {
		t.Fatalf("unexpected error with session: %v", err)
	}
}

func TestWishlistStorePersistsAndReloads(t *testing.T) {
	backend := memory.NewKVStore()
	store, _ := newWishlistStore(t, backend, nil)
	if _, err := store.Add(context.Background(), testProduct("w1", 1000)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	saved := store.Snapshot()

	reloaded, _ := newWishlistStore(t, backend, nil)
	if got := reloaded.Snapshot(); !reflect.DeepEqual(got, saved) {
		t.Fatalf("expected %+v after reload, got %+v", saved, got)
	}
}

func TestWishlistStoreRecoversFromCorruptSnapshot(t *testing.T) {
	backend := memory.NewKVStore()
	if err := backend.Set(context.Background(), repositories.KeyWishlist, "[broken"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	store, events := newWishlistStore(t, backend, nil)
	if len(store.Snapshot().Items) != 0 {
		t.Fatalf("expected empty wishlist")
	}
	if !events.has("wishlist.snapshot_corrupt") {
		t.Fatalf("expected corrupt snapshot to be logged")
	}
}

func TestWishlistStoreRollsBackWhenPersistFails(t *testing.T) {
	backend := &flakyKV{KeyValueStore: memory.NewKVStore()}
	store, events := newWishlistStore(t, backend, nil)
	backend.failSet.Store(true)

	_, err := store.Add(context.Background(), testProduct("w1", 1000))
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	if store.Contains("w1") {
		t.Fatalf("expected add rolled back")
	}
	if !events.has("wishlist.persist_failed") {
		t.Fatalf("expected failure to be logged")
	}
}
