package kafka

import (
	"encoding/json"
	"testing"

	"github.com/vladislavdragonenkov/pharmacy/internal/domain"
)

func TestTopicFor(t *testing.T) {
	cases := []struct {
		eventType string
		topic     string
	}{
		{EventOrderCreated, TopicOrders},
		{EventOrderStatusChanged, TopicOrders},
		{EventOrderCancelled, TopicOrders},
		{EventOrderDelivered, TopicOrders},
		{EventPaymentCompleted, TopicPayments},
		{EventPaymentFailed, TopicPayments},
		{EventPrescriptionApproved, TopicPrescriptions},
		{EventPrescriptionRejected, TopicPrescriptions},
		{EventStockLow, TopicInventory},
	}

	for _, tc := range cases {
		if got := TopicFor(tc.eventType); got != tc.topic {
			t.Fatalf("TopicFor(%s) = %s, want %s", tc.eventType, got, tc.topic)
		}
	}
}

func TestNewOrderMessage(t *testing.T) {
	order := domain.Order{
		ID:          "o1",
		OrderNumber: "SM260800001",
		CustomerID:  "cust-1",
		Status:      domain.OrderStatusCancelled,
		Payment: domain.PaymentInfo{
			Method: domain.PaymentMethodCOD,
			Status: domain.PaymentStatusPending,
		},
		Pricing: domain.Pricing{TotalAmountMinor: 10720},
	}

	msg, err := NewOrderMessage(EventOrderCancelled, order, "customer request")
	if err != nil {
		t.Fatalf("build message failed: %v", err)
	}
	if msg.AggregateType != "order" || msg.AggregateID != "o1" {
		t.Fatalf("unexpected aggregate: %s/%s", msg.AggregateType, msg.AggregateID)
	}
	if msg.EventType != EventOrderCancelled {
		t.Fatalf("unexpected event type %s", msg.EventType)
	}

	var event OrderEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		t.Fatalf("payload is not valid json: %v", err)
	}
	if event.OrderNumber != "SM260800001" || event.Reason != "customer request" {
		t.Fatalf("unexpected payload: %+v", event)
	}
	if event.TotalMinor != 10720 {
		t.Fatalf("expected total 10720, got %d", event.TotalMinor)
	}
	if event.OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at to be set")
	}
}

func TestNewStockLowMessage(t *testing.T) {
	item := domain.CatalogItem{
		ID:                "med-1",
		Name:              "Insulin",
		Stock:             3,
		LowStockThreshold: 5,
	}

	msg, err := NewStockLowMessage(item)
	if err != nil {
		t.Fatalf("build message failed: %v", err)
	}
	if msg.EventType != EventStockLow || msg.AggregateID != "med-1" {
		t.Fatalf("unexpected message: %+v", msg)
	}

	var event StockLowEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		t.Fatalf("payload is not valid json: %v", err)
	}
	if event.Stock != 3 || event.Threshold != 5 {
		t.Fatalf("unexpected payload: %+v", event)
	}
}
