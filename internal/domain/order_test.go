package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/pharmacy/internal/domain"
)

// helper для создания базового заказа с одной позицией.
func makeOrder() domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:          "order-1",
		OrderNumber: "SM260800001",
		CustomerID:  "customer-1",
		Status:      domain.OrderStatusPlaced,
		Items: []domain.OrderItem{
			{
				ID:             "item-1",
				CatalogItemID:  "med-1",
				Name:           "Paracetamol 500mg",
				Qty:            3,
				UnitPriceMinor: 2000,
				UnitTaxMinor:   240,
				CreatedAt:      now,
			},
		},
		Payment: domain.PaymentInfo{
			Method: domain.PaymentMethodCOD,
			Status: domain.PaymentStatusPending,
		},
		Pricing: domain.Pricing{
			ItemsTotalMinor:     6000,
			TaxTotalMinor:       720,
			DeliveryChargeMinor: 4000,
			DiscountMinor:       0,
			TotalAmountMinor:    10720,
		},
		StatusHistory: []domain.StatusChange{
			{Status: domain.OrderStatusPlaced, Actor: domain.ActorSystem, Timestamp: now},
		},
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOrderValidateInvariants_Ok(t *testing.T) {
	order := makeOrder()
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestOrderValidateInvariants_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(o *domain.Order)
		want error
	}{
		{
			name: "no customer",
			mut: func(o *domain.Order) {
				o.CustomerID = ""
			},
			want: domain.ErrCustomerRequired,
		},
		{
			name: "no order number",
			mut: func(o *domain.Order) {
				o.OrderNumber = ""
			},
			want: domain.ErrOrderNumberRequired,
		},
		{
			name: "no items",
			mut: func(o *domain.Order) {
				o.Items = nil
			},
			want: domain.ErrItemsRequired,
		},
		{
			name: "qty invalid",
			mut: func(o *domain.Order) {
				o.Items[0].Qty = 0
			},
			want: domain.ErrItemQtyInvalid,
		},
		{
			name: "price invalid",
			mut: func(o *domain.Order) {
				o.Items[0].UnitPriceMinor = -5
			},
			want: domain.ErrItemPriceInvalid,
		},
		{
			name: "bad payment method",
			mut: func(o *domain.Order) {
				o.Payment.Method = "wire"
			},
			want: domain.ErrPaymentMethodInvalid,
		},
		{
			name: "pricing mismatch",
			mut: func(o *domain.Order) {
				o.Pricing.TotalAmountMinor = 999
			},
			want: domain.ErrPricingMismatch,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := makeOrder()
			tc.mut(&order)
			errs := order.ValidateInvariants()
			if len(errs) == 0 {
				t.Fatalf("expected validation errors")
			}
			found := false
			for _, err := range errs {
				if errors.Is(err, tc.want) {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected %v among %v", tc.want, errs)
			}
		})
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to domain.OrderStatus
		allowed  bool
	}{
		{domain.OrderStatusPlaced, domain.OrderStatusProcessing, true},
		{domain.OrderStatusPlaced, domain.OrderStatusCancelled, true},
		{domain.OrderStatusProcessing, domain.OrderStatusOutForDelivery, true},
		{domain.OrderStatusProcessing, domain.OrderStatusCancelled, true},
		{domain.OrderStatusOutForDelivery, domain.OrderStatusDelivered, true},
		{domain.OrderStatusOutForDelivery, domain.OrderStatusCancelled, false},
		{domain.OrderStatusPlaced, domain.OrderStatusDelivered, false},
		{domain.OrderStatusDelivered, domain.OrderStatusProcessing, false},
		{domain.OrderStatusCancelled, domain.OrderStatusPlaced, false},
		{domain.OrderStatusDelivered, domain.OrderStatusCancelled, false},
	}

	for _, tc := range cases {
		if got := domain.CanTransition(tc.from, tc.to); got != tc.allowed {
			t.Fatalf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.allowed)
		}
	}
}

func TestApplyStatus_AppendsHistory(t *testing.T) {
	order := makeOrder()
	now := time.Now().UTC()

	if err := order.ApplyStatus(domain.OrderStatusProcessing, "admin-1", "packing", now); err != nil {
		t.Fatalf("apply status failed: %v", err)
	}

	if order.Status != domain.OrderStatusProcessing {
		t.Fatalf("expected processing, got %s", order.Status)
	}
	if len(order.StatusHistory) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(order.StatusHistory))
	}
	last := order.StatusHistory[len(order.StatusHistory)-1]
	if last.Actor != "admin-1" || last.Comment != "packing" {
		t.Fatalf("unexpected history entry: %+v", last)
	}
}

func TestApplyStatus_Illegal(t *testing.T) {
	order := makeOrder()
	err := order.ApplyStatus(domain.OrderStatusDelivered, "admin-1", "", time.Now().UTC())
	if !errors.Is(err, domain.ErrIllegalStatusTransition) {
		t.Fatalf("expected ErrIllegalStatusTransition, got %v", err)
	}
}

func TestApplyStatus_TerminalTimestamps(t *testing.T) {
	order := makeOrder()
	now := time.Now().UTC()

	if err := order.ApplyStatus(domain.OrderStatusCancelled, "customer-1", "changed my mind", now); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if order.CancelledAt == nil || !order.CancelledAt.Equal(now) {
		t.Fatalf("expected CancelledAt to be set")
	}
}

func TestEffectivePriceMinor(t *testing.T) {
	cases := []struct {
		name     string
		item     domain.CatalogItem
		expected int64
	}{
		{"no discount", domain.CatalogItem{PriceMinor: 2000}, 2000},
		{"discount lower", domain.CatalogItem{PriceMinor: 2000, DiscountPriceMinor: 1500}, 1500},
		{"discount higher is ignored", domain.CatalogItem{PriceMinor: 2000, DiscountPriceMinor: 2500}, 2000},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.item.EffectivePriceMinor(); got != tc.expected {
				t.Fatalf("expected %d, got %d", tc.expected, got)
			}
		})
	}
}

func TestPricingCheckTotal(t *testing.T) {
	p := domain.Pricing{
		ItemsTotalMinor:     6000,
		TaxTotalMinor:       720,
		DeliveryChargeMinor: 4000,
		DiscountMinor:       500,
		TotalAmountMinor:    10220,
	}
	if !p.CheckTotal() {
		t.Fatalf("expected pricing total to match components")
	}
	p.TotalAmountMinor++
	if p.CheckTotal() {
		t.Fatalf("expected pricing mismatch to be detected")
	}
}

func TestPaymentMethodOnline(t *testing.T) {
	if domain.PaymentMethodCOD.Online() {
		t.Fatalf("cod must not be online")
	}
	if !domain.PaymentMethodGateway.Online() || !domain.PaymentMethodUPI.Online() {
		t.Fatalf("gateway and upi must be online")
	}
}
