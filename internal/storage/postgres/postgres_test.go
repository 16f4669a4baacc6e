package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/pharmacy/internal/domain"
)

// Интеграционные тесты требуют живой PostgreSQL.
// Запуск: PHARMACY_TEST_POSTGRES_DSN=postgres://... go test ./internal/storage/postgres/
func testStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("PHARMACY_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("PHARMACY_TEST_POSTGRES_DSN is not set")
	}

	ctx := context.Background()
	store, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return store
}

func testOrder() domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:          uuid.NewString(),
		OrderNumber: "SM" + uuid.NewString()[:10],
		CustomerID:  "cust-1",
		Status:      domain.OrderStatusPlaced,
		Items: []domain.OrderItem{
			{ID: uuid.NewString(), CatalogItemID: "med-1", Name: "Cetirizine", Qty: 2, UnitPriceMinor: 1500, UnitTaxMinor: 75, CreatedAt: now},
		},
		Payment: domain.PaymentInfo{Method: domain.PaymentMethodCOD, Status: domain.PaymentStatusPending},
		Pricing: domain.Pricing{ItemsTotalMinor: 3000, TaxTotalMinor: 150, DeliveryChargeMinor: 4000, TotalAmountMinor: 7150},
		StatusHistory: []domain.StatusChange{
			{Status: domain.OrderStatusPlaced, Actor: domain.ActorSystem, Timestamp: now},
		},
	}
}

func TestOrderRepository_RoundTrip(t *testing.T) {
	store := testStore(t)
	repo := NewOrderRepository(store)

	order := testOrder()
	if err := repo.Create(order); err != nil {
		t.Fatalf("create order: %v", err)
	}

	got, err := repo.Get(order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if got.Version != 1 {
		t.Fatalf("expected version 1, got %d", got.Version)
	}
	if len(got.Items) != 1 || got.Items[0].UnitPriceMinor != 1500 {
		t.Fatalf("unexpected items after round trip: %+v", got.Items)
	}
	if len(got.StatusHistory) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(got.StatusHistory))
	}

	// duplicate order number
	dup := testOrder()
	dup.OrderNumber = order.OrderNumber
	if err := repo.Create(dup); !errors.Is(err, domain.ErrOrderNumberConflict) {
		t.Fatalf("expected ErrOrderNumberConflict, got %v", err)
	}
}

func TestOrderRepository_OptimisticLocking(t *testing.T) {
	store := testStore(t)
	repo := NewOrderRepository(store)

	order := testOrder()
	if err := repo.Create(order); err != nil {
		t.Fatalf("create order: %v", err)
	}

	first, _ := repo.Get(order.ID)
	second, _ := repo.Get(order.ID)

	first.Notes = "first writer"
	if err := repo.Save(first); err != nil {
		t.Fatalf("first save: %v", err)
	}

	second.Notes = "second writer"
	if err := repo.Save(second); !errors.Is(err, domain.ErrOrderVersionConflict) {
		t.Fatalf("expected ErrOrderVersionConflict, got %v", err)
	}
}

func TestCatalogRepository_AtomicDecrement(t *testing.T) {
	store := testStore(t)
	repo := NewCatalogRepository(store)

	id := uuid.NewString()
	if err := repo.Upsert(domain.CatalogItem{ID: id, Name: "Ibuprofen", PriceMinor: 1000, Stock: 3, IsActive: true}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	item, err := repo.DecrementStock(id, 2)
	if err != nil {
		t.Fatalf("decrement: %v", err)
	}
	if item.Stock != 1 {
		t.Fatalf("expected stock 1, got %d", item.Stock)
	}

	if _, err := repo.DecrementStock(id, 2); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if _, err := repo.DecrementStock(uuid.NewString(), 1); !errors.Is(err, domain.ErrCatalogItemNotFound) {
		t.Fatalf("expected ErrCatalogItemNotFound, got %v", err)
	}

	if err := repo.RestoreStock(id, 2); err != nil {
		t.Fatalf("restore: %v", err)
	}
	item, _ = repo.Get(id)
	if item.Stock != 3 {
		t.Fatalf("expected stock 3 after restore, got %d", item.Stock)
	}
}

func TestCounterRepository_Increments(t *testing.T) {
	store := testStore(t)
	repo := NewCounterRepository(store)

	key := "test-" + uuid.NewString()
	first, err := repo.Next(key)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	second, err := repo.Next(key)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if second != first+1 {
		t.Fatalf("expected consecutive values, got %d then %d", first, second)
	}
}

func TestOutboxRepository_Flow(t *testing.T) {
	store := testStore(t)
	repo := NewOutboxRepository(store)

	msg, err := repo.Enqueue(domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   uuid.NewString(),
		EventType:     "order.created",
		Payload:       []byte(`{"ok":true}`),
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	pending, err := repo.PullPending(1000)
	if err != nil {
		t.Fatalf("pull pending: %v", err)
	}
	found := false
	for _, p := range pending {
		if p.ID == msg.ID {
			found = true
		}
	}
	if !found {
		t.Fatal("enqueued message must be pending")
	}

	if err := repo.MarkSent(msg.ID); err != nil {
		t.Fatalf("mark sent: %v", err)
	}

	pending, _ = repo.PullPending(1000)
	for _, p := range pending {
		if p.ID == msg.ID {
			t.Fatal("sent message must leave the pending backlog")
		}
	}
}
