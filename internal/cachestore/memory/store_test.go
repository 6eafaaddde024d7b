package memory

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStore_RoundTrip(t *testing.T) {
	store := New(16)
	ctx := context.Background()

	if err := store.Set(ctx, "canvas:GET:/api/v1/courses", []byte("payload"), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok, err := store.Get(ctx, "canvas:GET:/api/v1/courses")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want hit")
	}
	if string(got) != "payload" {
		t.Errorf("Get() = %q, want %q", got, "payload")
	}
}

func TestMemoryStore_MissOnUnknownKey(t *testing.T) {
	store := New(16)

	_, ok, err := store.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want miss")
	}

	stats, _ := store.Stats(context.Background())
	if stats.Misses != 1 {
		t.Errorf("Misses = %d, want 1", stats.Misses)
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := New(16)
	base := time.Now()
	store.now = func() time.Time { return base }
	ctx := context.Background()

	if err := store.Set(ctx, "k", []byte("v"), 30*time.Second); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	// Still live just before the deadline.
	store.now = func() time.Time { return base.Add(29 * time.Second) }
	if _, ok, _ := store.Get(ctx, "k"); !ok {
		t.Fatal("Get() before deadline ok = false, want hit")
	}

	store.now = func() time.Time { return base.Add(31 * time.Second) }
	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Error("Get() after deadline ok = true, want miss")
	}

	stats, _ := store.Stats(context.Background())
	if stats.Entries != 0 {
		t.Errorf("Entries = %d, want 0 after expiry drop", stats.Entries)
	}
}

func TestMemoryStore_SetCopiesValue(t *testing.T) {
	store := New(16)
	ctx := context.Background()

	val := []byte("original")
	if err := store.Set(ctx, "k", val, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	val[0] = 'X'

	got, _, _ := store.Get(ctx, "k")
	if string(got) != "original" {
		t.Errorf("Get() = %q, want stored copy unaffected by caller mutation", got)
	}
}

func TestMemoryStore_DeleteByPattern(t *testing.T) {
	store := New(16)
	ctx := context.Background()

	keys := []string{
		"canvas:GET:/api/v1/courses",
		"canvas:GET:/api/v1/courses?page=2",
		"canvas:GET:/api/v1/courses/5",
		"canvas:GET:/api/v1/users/7",
	}
	for _, k := range keys {
		if err := store.Set(ctx, k, []byte("x"), time.Minute); err != nil {
			t.Fatalf("Set(%q) error = %v", k, err)
		}
	}

	removed, err := store.DeleteByPattern(ctx, "*:GET:/api/v1/courses*")
	if err != nil {
		t.Fatalf("DeleteByPattern() error = %v", err)
	}
	if removed != 3 {
		t.Errorf("DeleteByPattern() removed = %d, want 3", removed)
	}

	if _, ok, _ := store.Get(ctx, "canvas:GET:/api/v1/users/7"); !ok {
		t.Error("unrelated key was removed")
	}
}

func TestMemoryStore_EvictsLeastRecentlyUsed(t *testing.T) {
	store := New(2)
	ctx := context.Background()

	store.Set(ctx, "a", []byte("1"), time.Minute)
	store.Set(ctx, "b", []byte("2"), time.Minute)
	store.Get(ctx, "a") // refresh a
	store.Set(ctx, "c", []byte("3"), time.Minute)

	if _, ok, _ := store.Get(ctx, "b"); ok {
		t.Error("b survived eviction, want it displaced as least recently used")
	}
	if _, ok, _ := store.Get(ctx, "a"); !ok {
		t.Error("a was evicted despite recent use")
	}

	stats, _ := store.Stats(ctx)
	if stats.Evictions == 0 {
		t.Error("Evictions = 0, want displaced entry counted")
	}
}

func TestMemoryStore_Clear(t *testing.T) {
	store := New(16)
	ctx := context.Background()

	store.Set(ctx, "a", []byte("1"), time.Minute)
	store.Set(ctx, "b", []byte("2"), time.Minute)

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	stats, _ := store.Stats(ctx)
	if stats.Entries != 0 {
		t.Errorf("Entries = %d after Clear, want 0", stats.Entries)
	}
}

func TestMemoryStore_ZeroTTLNotStored(t *testing.T) {
	store := New(16)
	ctx := context.Background()

	if err := store.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Error("Get() ok = true for zero-TTL entry, want miss")
	}
}
