package redis

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

func TestGlobToMatch(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		want    string
	}{
		{"star preserved", "canvas:GET:/api/v1/courses*", `canvas:GET:/api/v1/courses*`},
		{"question escaped", "canvas:GET:/api/v1/courses?page=2", `canvas:GET:/api/v1/courses\?page=2`},
		{"brackets escaped", "canvas:GET:/api/v1/courses?ids[]=1", `canvas:GET:/api/v1/courses\?ids\[\]=1`},
		{"backslash escaped", `a\b*`, `a\\b*`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := globToMatch(tt.pattern); got != tt.want {
				t.Errorf("globToMatch(%q) = %q, want %q", tt.pattern, got, tt.want)
			}
		})
	}
}

// newTestStore connects to a local Redis and skips the test when none is
// reachable, so the suite stays green on machines without one.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379", DB: 15})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}

	store := NewWithClient(client, WithNamespace("canvastest:"))
	t.Cleanup(func() {
		store.Clear(context.Background())
		store.Close()
	})
	return store
}

func TestRedisStore_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "canvas:GET:/api/v1/courses", []byte("payload"), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok, err := store.Get(ctx, "canvas:GET:/api/v1/courses")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok || string(got) != "payload" {
		t.Errorf("Get() = %q, %v, want %q hit", got, ok, "payload")
	}
}

func TestRedisStore_DeleteByPattern(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	keys := []string{
		"canvas:GET:/api/v1/courses",
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
	if removed != 2 {
		t.Errorf("DeleteByPattern() removed = %d, want 2", removed)
	}

	if _, ok, _ := store.Get(ctx, "canvas:GET:/api/v1/users/7"); !ok {
		t.Error("unrelated key was removed")
	}
}

func TestRedisStore_ClearScopedToNamespace(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.Set(ctx, "mine", []byte("x"), time.Minute)

	// A key outside the namespace must survive Clear.
	outside := "unrelated:key"
	if err := store.client.Set(ctx, outside, "y", time.Minute).Err(); err != nil {
		t.Fatalf("seed outside key: %v", err)
	}
	defer store.client.Del(ctx, outside)

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	if _, ok, _ := store.Get(ctx, "mine"); ok {
		t.Error("namespaced key survived Clear")
	}
	if n, _ := store.client.Exists(ctx, outside).Result(); n != 1 {
		t.Error("Clear removed a key outside the namespace")
	}
}
