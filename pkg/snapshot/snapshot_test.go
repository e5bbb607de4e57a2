package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/feedstream/feedcache/pkg/cache"
)

type feedItem struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// setupTestRedis creates a test Redis client for testing.
// Unit tests connect to localhost and skip when Redis is not running;
// tests/integration spins up a real instance via testcontainers-go.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func testKey(variant string) cache.Key {
	return cache.Key{Resource: "feed", Variant: variant, AuthEpoch: cache.EpochAny}
}

func TestNewStore_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewStore should panic with nil redis client")
		}
	}()
	NewStore[feedItem](nil, time.Hour, zerolog.Nop())
}

func TestStore_SaveAndLoad(t *testing.T) {
	client := setupTestRedis(t)
	store := NewStore[feedItem](client, time.Hour, zerolog.Nop())
	ctx := context.Background()
	key := testKey("latest")

	items := []feedItem{
		{ID: "a", Title: "first"},
		{ID: "b", Title: "second"},
	}
	if err := store.Save(ctx, key, items); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load(ctx, key)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != len(items) {
		t.Fatalf("Loaded %d items, want %d", len(loaded), len(items))
	}
	for i, item := range loaded {
		if item != items[i] {
			t.Errorf("Item %d mismatch: got %+v, want %+v", i, item, items[i])
		}
	}
}

func TestStore_Load_Miss(t *testing.T) {
	client := setupTestRedis(t)
	store := NewStore[feedItem](client, time.Hour, zerolog.Nop())

	_, err := store.Load(context.Background(), testKey("nonexistent"))
	if !errors.Is(err, ErrSnapshotMiss) {
		t.Errorf("Expected ErrSnapshotMiss, got %v", err)
	}
}

func TestStore_Save_Replaces(t *testing.T) {
	client := setupTestRedis(t)
	store := NewStore[feedItem](client, time.Hour, zerolog.Nop())
	ctx := context.Background()
	key := testKey("latest")

	if err := store.Save(ctx, key, []feedItem{{ID: "old"}}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Save(ctx, key, []feedItem{{ID: "new-1"}, {ID: "new-2"}}); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}

	loaded, err := store.Load(ctx, key)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 2 || loaded[0].ID != "new-1" {
		t.Errorf("Loaded %+v, want the replacement items", loaded)
	}
}

func TestStore_Load_CorruptSelfHeals(t *testing.T) {
	client := setupTestRedis(t)
	store := NewStore[feedItem](client, time.Hour, zerolog.Nop())
	ctx := context.Background()
	key := testKey("latest")

	if err := client.Set(ctx, "snapshot:"+key.String(), "not json{", time.Hour).Err(); err != nil {
		t.Fatalf("Failed to plant corrupt snapshot: %v", err)
	}

	_, err := store.Load(ctx, key)
	if !errors.Is(err, ErrInvalidSnapshot) {
		t.Fatalf("Expected ErrInvalidSnapshot, got %v", err)
	}

	// the corrupt value was deleted; the next load is a clean miss
	_, err = store.Load(ctx, key)
	if !errors.Is(err, ErrSnapshotMiss) {
		t.Errorf("Expected ErrSnapshotMiss after self-heal, got %v", err)
	}
}

func TestStore_Delete(t *testing.T) {
	client := setupTestRedis(t)
	store := NewStore[feedItem](client, time.Hour, zerolog.Nop())
	ctx := context.Background()
	key := testKey("latest")

	if err := store.Save(ctx, key, []feedItem{{ID: "a"}}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	_, err := store.Load(ctx, key)
	if !errors.Is(err, ErrSnapshotMiss) {
		t.Errorf("Expected ErrSnapshotMiss after Delete, got %v", err)
	}
}

func TestStore_KeysAreEpochScoped(t *testing.T) {
	client := setupTestRedis(t)
	store := NewStore[feedItem](client, time.Hour, zerolog.Nop())
	ctx := context.Background()

	anon := cache.Key{Resource: "bookmarks", Variant: "", AuthEpoch: cache.EpochAnon}
	auth := cache.Key{Resource: "bookmarks", Variant: "", AuthEpoch: "auth:sess-1"}

	if err := store.Save(ctx, anon, []feedItem{{ID: "anon-item"}}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Save(ctx, auth, []feedItem{{ID: "auth-item"}}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load(ctx, anon)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 1 || loaded[0].ID != "anon-item" {
		t.Errorf("Anon snapshot = %+v, want only the anon item", loaded)
	}
}
