package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/pharmacy/internal/domain"
	"github.com/vladislavdragonenkov/pharmacy/internal/storage/memory"
)

type capturingPublisher struct {
	mu        sync.Mutex
	published []domain.OutboxMessage
	failures  int
}

func (p *capturingPublisher) Publish(event domain.OutboxMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, event)
	return nil
}

func (p *capturingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

func TestWorker_ProcessOnce(t *testing.T) {
	repo := memory.NewOutboxRepository()
	publisher := &capturingPublisher{}

	_, _ = repo.Enqueue(domain.OutboxMessage{EventType: "order.created", AggregateID: "o1"})
	_, _ = repo.Enqueue(domain.OutboxMessage{EventType: "payment.completed", AggregateID: "o1"})

	worker := NewWorker(repo, publisher, WithRetryBaseDelay(0))
	worker.ProcessOnce(context.Background())

	if publisher.count() != 2 {
		t.Fatalf("expected 2 published messages, got %d", publisher.count())
	}

	pending, _ := repo.PullPending(10)
	if len(pending) != 0 {
		t.Fatalf("expected empty backlog after processing, got %d", len(pending))
	}
}

func TestWorker_RetriesThenSucceeds(t *testing.T) {
	repo := memory.NewOutboxRepository()
	publisher := &capturingPublisher{failures: 2}

	_, _ = repo.Enqueue(domain.OutboxMessage{EventType: "order.created"})

	worker := NewWorker(repo, publisher, WithMaxAttempts(3), WithRetryBaseDelay(time.Millisecond))
	worker.ProcessOnce(context.Background())

	if publisher.count() != 1 {
		t.Fatalf("expected message to be published after retries, got %d", publisher.count())
	}
}

func TestWorker_ExhaustedRetriesGoToDLQ(t *testing.T) {
	repo := memory.NewOutboxRepository()
	publisher := &capturingPublisher{failures: 100}
	dlq := &capturingPublisher{}

	msg, _ := repo.Enqueue(domain.OutboxMessage{EventType: "order.created", AggregateID: "o1"})

	worker := NewWorker(repo, publisher,
		WithMaxAttempts(2),
		WithRetryBaseDelay(time.Millisecond),
		WithDLQPublisher(dlq))
	worker.ProcessOnce(context.Background())

	if dlq.count() != 1 {
		t.Fatalf("expected 1 DLQ message, got %d", dlq.count())
	}
	if dlq.published[0].ID != msg.ID {
		t.Fatalf("DLQ message must keep the outbox id")
	}

	// message must not come back as pending
	pending, _ := repo.PullPending(10)
	if len(pending) != 0 {
		t.Fatalf("failed message must leave the pending backlog")
	}
}

func TestWorker_RunStopsOnContextCancel(t *testing.T) {
	repo := memory.NewOutboxRepository()
	publisher := &capturingPublisher{}
	worker := NewWorker(repo, publisher, WithPollInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}
}

func TestEventFields(t *testing.T) {
	orderMsg := domain.OutboxMessage{
		ID:            "out-1",
		AggregateType: "order",
		AggregateID:   "o1",
		EventType:     "payment.completed",
		Payload:       []byte(`{"order_number":"SM260800042","customer_id":"cust-7"}`),
	}
	fields := eventFields(orderMsg)
	if fields["order_number"] != "SM260800042" || fields["customer_id"] != "cust-7" {
		t.Fatalf("order fields not extracted from payload: %v", fields)
	}
	if fields["outbox_id"] != "out-1" || fields["aggregate_id"] != "o1" {
		t.Fatalf("base fields missing: %v", fields)
	}

	stockMsg := domain.OutboxMessage{
		ID:            "out-2",
		AggregateType: "catalog_item",
		AggregateID:   "med-1",
		EventType:     "stock.low",
		Payload:       []byte(`{"name":"Cetirizine","stock":2}`),
	}
	fields = eventFields(stockMsg)
	if fields["item_name"] != "Cetirizine" || fields["stock"] != int32(2) {
		t.Fatalf("catalog fields not extracted from payload: %v", fields)
	}

	// broken payload must not break logging
	fields = eventFields(domain.OutboxMessage{ID: "out-3", AggregateType: "order", Payload: []byte("{")})
	if fields["outbox_id"] != "out-3" {
		t.Fatalf("base fields missing on bad payload: %v", fields)
	}
}

func TestWorker_RetryBackoffGrows(t *testing.T) {
	worker := NewWorker(memory.NewOutboxRepository(), &capturingPublisher{},
		WithRetryBaseDelay(10*time.Millisecond))

	if worker.retryBackoff(1) != 10*time.Millisecond {
		t.Fatalf("unexpected first backoff: %v", worker.retryBackoff(1))
	}
	if worker.retryBackoff(2) != 20*time.Millisecond {
		t.Fatalf("unexpected second backoff: %v", worker.retryBackoff(2))
	}
	if worker.retryBackoff(3) != 40*time.Millisecond {
		t.Fatalf("unexpected third backoff: %v", worker.retryBackoff(3))
	}
}
