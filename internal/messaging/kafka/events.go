package kafka

import (
	"encoding/json"
	"time"

	"github.com/vladislavdragonenkov/pharmacy/internal/domain"
)

// Топики событий аптеки.
const (
	TopicOrders        = "pharmacy.orders"
	TopicPayments      = "pharmacy.payments"
	TopicPrescriptions = "pharmacy.prescriptions"
	TopicInventory     = "pharmacy.inventory"
)

// Типы событий.
const (
	EventOrderCreated         = "order.created"
	EventOrderStatusChanged   = "order.status_changed"
	EventOrderCancelled       = "order.cancelled"
	EventOrderDelivered       = "order.delivered"
	EventPaymentCompleted     = "payment.completed"
	EventPaymentFailed        = "payment.failed"
	EventPrescriptionApproved = "prescription.approved"
	EventPrescriptionRejected = "prescription.rejected"
	EventStockLow             = "stock.low"
)

// TopicFor возвращает топик для типа события.
func TopicFor(eventType string) string {
	switch eventType {
	case EventPaymentCompleted, EventPaymentFailed:
		return TopicPayments
	case EventPrescriptionApproved, EventPrescriptionRejected:
		return TopicPrescriptions
	case EventStockLow:
		return TopicInventory
	default:
		return TopicOrders
	}
}

// OrderEvent — общий payload событий заказа.
type OrderEvent struct {
	OrderID       string    `json:"order_id"`
	OrderNumber   string    `json:"order_number"`
	CustomerID    string    `json:"customer_id"`
	Status        string    `json:"status"`
	PaymentMethod string    `json:"payment_method"`
	PaymentStatus string    `json:"payment_status"`
	TotalMinor    int64     `json:"total_minor"`
	Reason        string    `json:"reason,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// StockLowEvent — payload события о низком остатке.
type StockLowEvent struct {
	CatalogItemID string    `json:"catalog_item_id"`
	Name          string    `json:"name"`
	Stock         int32     `json:"stock"`
	Threshold     int32     `json:"threshold"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NewOrderMessage собирает outbox-сообщение по заказу.
func NewOrderMessage(eventType string, order domain.Order, reason string) (domain.OutboxMessage, error) {
	payload, err := json.Marshal(OrderEvent{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		CustomerID:    order.CustomerID,
		Status:        string(order.Status),
		PaymentMethod: string(order.Payment.Method),
		PaymentStatus: string(order.Payment.Status),
		TotalMinor:    order.Pricing.TotalAmountMinor,
		Reason:        reason,
		OccurredAt:    time.Now().UTC(),
	})
	if err != nil {
		return domain.OutboxMessage{}, err
	}

	return domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   order.ID,
		EventType:     eventType,
		Payload:       payload,
	}, nil
}

// NewStockLowMessage собирает outbox-сообщение о низком остатке товара.
func NewStockLowMessage(item domain.CatalogItem) (domain.OutboxMessage, error) {
	payload, err := json.Marshal(StockLowEvent{
		CatalogItemID: item.ID,
		Name:          item.Name,
		Stock:         item.Stock,
		Threshold:     item.LowStockThreshold,
		OccurredAt:    time.Now().UTC(),
	})
	if err != nil {
		return domain.OutboxMessage{}, err
	}

	return domain.OutboxMessage{
		AggregateType: "catalog_item",
		AggregateID:   item.ID,
		EventType:     EventStockLow,
		Payload:       payload,
	}, nil
}
