package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisWithClient(client), mr
}

func TestPutGet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "v" {
		t.Fatalf("Get() = %q, want %q", got, "v")
	}
}

func TestGetMissing(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), "absent")
	if !errors.Is(err, ErrMiss) {
		t.Fatalf("Get() error = %v, want ErrMiss", err)
	}
}

func TestExpiry(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	mr.FastForward(time.Minute + time.Second)

	_, err := store.Get(ctx, "k")
	if !errors.Is(err, ErrMiss) {
		t.Fatalf("Get() after TTL error = %v, want ErrMiss", err)
	}
}

func TestForget(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for _, key := range []string{"a", "b"} {
		if err := store.Put(ctx, key, "v", time.Minute); err != nil {
			t.Fatalf("Put(%q) error = %v", key, err)
		}
	}

	if err := store.Forget(ctx, "a", "b", "c"); err != nil {
		t.Fatalf("Forget() error = %v", err)
	}

	for _, key := range []string{"a", "b"} {
		if _, err := store.Get(ctx, key); !errors.Is(err, ErrMiss) {
			t.Fatalf("Get(%q) after Forget error = %v, want ErrMiss", key, err)
		}
	}
}
