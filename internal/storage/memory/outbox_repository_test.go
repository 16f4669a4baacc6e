package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/pharmacy/internal/domain"
)

func TestOutboxRepository_EnqueueAndPull(t *testing.T) {
	repo := NewOutboxRepository()

	first, err := repo.Enqueue(domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   "o1",
		EventType:     "order.created",
		Payload:       []byte(`{"order_id":"o1"}`),
	})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if first.ID == "" {
		t.Fatalf("expected generated message id")
	}
	time.Sleep(time.Millisecond)
	second, _ := repo.Enqueue(domain.OutboxMessage{EventType: "payment.completed"})

	pending, err := repo.PullPending(10)
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending, got %d", len(pending))
	}
	if pending[0].ID != first.ID || pending[1].ID != second.ID {
		t.Fatalf("expected oldest-first ordering")
	}

	if err := repo.MarkSent(first.ID); err != nil {
		t.Fatalf("mark sent failed: %v", err)
	}
	if err := repo.MarkFailed(second.ID); err != nil {
		t.Fatalf("mark failed failed: %v", err)
	}

	pending, _ = repo.PullPending(10)
	if len(pending) != 0 {
		t.Fatalf("expected empty backlog, got %d", len(pending))
	}
}

func TestOutboxRepository_Stats(t *testing.T) {
	repo := NewOutboxRepository()

	stats, err := repo.Stats()
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.PendingCount != 0 || !stats.OldestPendingAt.IsZero() {
		t.Fatalf("expected empty stats, got %+v", stats)
	}

	msg, _ := repo.Enqueue(domain.OutboxMessage{EventType: "order.created"})
	_, _ = repo.Enqueue(domain.OutboxMessage{EventType: "order.cancelled"})

	stats, _ = repo.Stats()
	if stats.PendingCount != 2 {
		t.Fatalf("expected 2 pending, got %d", stats.PendingCount)
	}
	if stats.OldestPendingAt.IsZero() {
		t.Fatalf("expected oldest pending timestamp")
	}

	_ = repo.MarkSent(msg.ID)
	stats, _ = repo.Stats()
	if stats.PendingCount != 1 {
		t.Fatalf("expected 1 pending, got %d", stats.PendingCount)
	}
}

func TestIdempotencyStore_LockRememberRecall(t *testing.T) {
	ctx := context.Background()
	store := NewIdempotencyStore(time.Minute)

	ok, err := store.TryLock(ctx, "orders", "key-1")
	if err != nil || !ok {
		t.Fatalf("expected lock to succeed, ok=%v err=%v", ok, err)
	}
	ok, _ = store.TryLock(ctx, "orders", "key-1")
	if ok {
		t.Fatalf("expected second lock to fail")
	}

	// different scope is independent
	ok, _ = store.TryLock(ctx, "payments", "key-1")
	if !ok {
		t.Fatalf("expected lock in another scope to succeed")
	}

	if _, found, _ := store.Recall(ctx, "orders", "key-1"); found {
		t.Fatalf("incomplete record must not be recallable")
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

func TestIdempotencyStore_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	store := NewIdempotencyStore(time.Minute)

	_ = store.Remember(ctx, "orders", "old", "v")
	time.Sleep(5 * time.Millisecond)
	cutoff := time.Now().UTC()
	_ = store.Remember(ctx, "orders", "fresh", "v")

	deleted, err := store.DeleteExpired(cutoff, 100)
	if err != nil {
		t.Fatalf("delete expired failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted, got %d", deleted)
	}

	if _, found, _ := store.Recall(ctx, "orders", "fresh"); !found {
		t.Fatalf("fresh record must survive cleanup")
	}
}

func TestCounterRepository_Next(t *testing.T) {
	repo := NewCounterRepository()

	const workers = 50
	var wg sync.WaitGroup
	seen := make(map[int64]bool)
	var mu sync.Mutex

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := repo.Next("orders")
			if err != nil {
				t.Errorf("next failed: %v", err)
				return
			}
			mu.Lock()
			seen[n] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != workers {
		t.Fatalf("expected %d unique values, got %d", workers, len(seen))
	}
	for i := int64(1); i <= workers; i++ {
		if !seen[i] {
			t.Fatalf("missing counter value %d", i)
		}
	}
}
