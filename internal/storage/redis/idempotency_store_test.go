package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*IdempotencyStore, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewIdempotencyStore(client, time.Minute), srv
}

func TestIdempotencyStore_TryLock(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	ok, err := store.TryLock(ctx, "orders", "key-1")
	if err != nil || !ok {
		t.Fatalf("expected first lock to succeed, ok=%v err=%v", ok, err)
	}

	ok, err = store.TryLock(ctx, "orders", "key-1")
	if err != nil {
		t.Fatalf("lock failed: %v", err)
	}
	if ok {
		t.Fatal("expected second lock on the same key to fail")
	}

	// other scope is independent
	ok, _ = store.TryLock(ctx, "payments", "key-1")
	if !ok {
		t.Fatal("expected lock in another scope to succeed")
	}
}

func TestIdempotencyStore_RememberRecall(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	// nothing stored yet
	if _, found, err := store.Recall(ctx, "orders", "key-1"); err != nil || found {
		t.Fatalf("expected empty recall, found=%v err=%v", found, err)
	}

	// locked but not completed: still no result
	if _, err := store.TryLock(ctx, "orders", "key-1"); err != nil {
		t.Fatalf("lock failed: %v", err)
	}
	if _, found, _ := store.Recall(ctx, "orders", "key-1"); found {
		t.Fatal("pending key must not be recallable")
	}

	if err := store.Remember(ctx, "orders", "key-1", `{"order_id":"o1"}`); err != nil {
		t.Fatalf("remember failed: %v", err)
	}
	value, found, err := store.Recall(ctx, "orders", "key-1")
	if err != nil || !found {
		t.Fatalf("expected recall to succeed, found=%v err=%v", found, err)
	}
	if value != `{"order_id":"o1"}` {
		t.Fatalf("unexpected recalled value %q", value)
	}
}

func TestIdempotencyStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	store, srv := newTestStore(t)

	if err := store.Remember(ctx, "orders", "key-1", "v"); err != nil {
		t.Fatalf("remember failed: %v", err)
	}

	srv.FastForward(2 * time.Minute)

	if _, found, _ := store.Recall(ctx, "orders", "key-1"); found {
		t.Fatal("expired key must not be recallable")
	}
	ok, err := store.TryLock(ctx, "orders", "key-1")
	if err != nil || !ok {
		t.Fatalf("expected lock after expiry to succeed, ok=%v err=%v", ok, err)
	}
}
