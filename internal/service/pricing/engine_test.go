package pricing

import (
	"errors"
	"strings"
	"testing"

	"github.com/vladislavdragonenkov/pharmacy/internal/domain"
	"github.com/vladislavdragonenkov/pharmacy/internal/storage/memory"
)

func newCatalog(t *testing.T, items ...domain.CatalogItem) *memory.CatalogRepository {
	t.Helper()
	repo := memory.NewCatalogRepository()
	for _, item := range items {
		if err := repo.Upsert(item); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
	}
	return repo
}

func TestEngine_PriceSingleItem(t *testing.T) {
	catalog := newCatalog(t, domain.CatalogItem{
		ID:             "med-1",
		Name:           "Paracetamol 500mg",
		PriceMinor:     2000,
		TaxRatePercent: 12,
		Stock:          10,
		IsActive:       true,
	})
	engine := NewEngine(catalog, nil)

	quote, err := engine.Price([]CartLine{{CatalogItemID: "med-1", Qty: 3}})
	if err != nil {
		t.Fatalf("price failed: %v", err)
	}

	if quote.Pricing.ItemsTotalMinor != 6000 {
		t.Fatalf("items total: expected 6000, got %d", quote.Pricing.ItemsTotalMinor)
	}
	if quote.Pricing.TaxTotalMinor != 720 {
		t.Fatalf("tax total: expected 720, got %d", quote.Pricing.TaxTotalMinor)
	}
	if quote.Pricing.DeliveryChargeMinor != 4000 {
		t.Fatalf("delivery: expected 4000, got %d", quote.Pricing.DeliveryChargeMinor)
	}
	if quote.Pricing.TotalAmountMinor != 10720 {
		t.Fatalf("total: expected 10720, got %d", quote.Pricing.TotalAmountMinor)
	}
	if !quote.Pricing.CheckTotal() {
		t.Fatalf("pricing components must add up")
	}
	if len(quote.Items) != 1 || quote.Items[0].UnitTaxMinor != 240 {
		t.Fatalf("unexpected quote items: %+v", quote.Items)
	}
}

func TestEngine_DiscountPriceWins(t *testing.T) {
	catalog := newCatalog(t, domain.CatalogItem{
		ID:                 "med-1",
		Name:               "Vitamin D3",
		PriceMinor:         30000,
		DiscountPriceMinor: 25000,
		TaxRatePercent:     5,
		Stock:              5,
		IsActive:           true,
	})
	engine := NewEngine(catalog, nil)

	quote, err := engine.Price([]CartLine{{CatalogItemID: "med-1", Qty: 2}})
	if err != nil {
		t.Fatalf("price failed: %v", err)
	}
	if quote.Items[0].UnitPriceMinor != 25000 {
		t.Fatalf("expected discounted unit price, got %d", quote.Items[0].UnitPriceMinor)
	}
	// 50000 items total hits the free delivery threshold exactly.
	if quote.Pricing.DeliveryChargeMinor != 0 {
		t.Fatalf("expected free delivery, got %d", quote.Pricing.DeliveryChargeMinor)
	}
}

func TestEngine_PrescriptionFlagPropagates(t *testing.T) {
	catalog := newCatalog(t,
		domain.CatalogItem{ID: "otc", Name: "Cough Syrup", PriceMinor: 1000, Stock: 5, IsActive: true},
		domain.CatalogItem{ID: "rx", Name: "Amoxicillin", PriceMinor: 1000, Stock: 5, IsActive: true, PrescriptionRequired: true},
	)
	engine := NewEngine(catalog, nil)

	quote, err := engine.Price([]CartLine{{CatalogItemID: "otc", Qty: 1}})
	if err != nil {
		t.Fatalf("price failed: %v", err)
	}
	if quote.PrescriptionRequired {
		t.Fatalf("otc-only cart must not require a prescription")
	}

	quote, err = engine.Price([]CartLine{{CatalogItemID: "otc", Qty: 1}, {CatalogItemID: "rx", Qty: 1}})
	if err != nil {
		t.Fatalf("price failed: %v", err)
	}
	if !quote.PrescriptionRequired {
		t.Fatalf("cart with an rx item must require a prescription")
	}
}

func TestEngine_PriceErrors(t *testing.T) {
	catalog := newCatalog(t,
		domain.CatalogItem{ID: "active", Name: "Aspirin", PriceMinor: 1000, Stock: 2, IsActive: true},
		domain.CatalogItem{ID: "inactive", Name: "Recalled Drug", PriceMinor: 1000, Stock: 2, IsActive: false},
	)
	engine := NewEngine(catalog, nil)

	cases := []struct {
		name    string
		lines   []CartLine
		want    error
		mention string
	}{
		{
			name: "empty cart",
			want: domain.ErrItemsRequired,
		},
		{
			name:    "zero qty",
			lines:   []CartLine{{CatalogItemID: "active", Qty: 0}},
			want:    domain.ErrItemQtyInvalid,
			mention: "active",
		},
		{
			name:    "unknown item",
			lines:   []CartLine{{CatalogItemID: "ghost", Qty: 1}},
			want:    domain.ErrCatalogItemNotFound,
			mention: "ghost",
		},
		{
			name:    "inactive item",
			lines:   []CartLine{{CatalogItemID: "inactive", Qty: 1}},
			want:    domain.ErrCatalogItemInactive,
			mention: "Recalled Drug",
		},
		{
			name:    "insufficient stock",
			lines:   []CartLine{{CatalogItemID: "active", Qty: 3}},
			want:    domain.ErrInsufficientStock,
			mention: "Aspirin",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.Price(tc.lines)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if tc.mention != "" && !strings.Contains(err.Error(), tc.mention) {
				t.Fatalf("error must name the offending item, got %q", err.Error())
			}
		})
	}
}

func TestUnitTaxMinor_RoundsHalfUp(t *testing.T) {
	cases := []struct {
		price    int64
		rate     int32
		expected int64
	}{
		{2000, 12, 240},
		{1050, 5, 53},  // 52.5 rounds up
		{1049, 5, 52},  // 52.45 rounds down
		{1, 12, 0},     // 0.12 rounds down
		{5, 12, 1},     // 0.6 rounds up
		{2000, 0, 0},
	}

	for _, tc := range cases {
		if got := UnitTaxMinor(tc.price, tc.rate); got != tc.expected {
			t.Fatalf("UnitTaxMinor(%d, %d) = %d, want %d", tc.price, tc.rate, got, tc.expected)
		}
	}
}

func TestDeliveryChargeMinor(t *testing.T) {
	cases := []struct {
		itemsTotal int64
		expected   int64
	}{
		{0, 4000},
		{49999, 4000},
		{50000, 0},
		{120000, 0},
	}

	for _, tc := range cases {
		if got := DeliveryChargeMinor(tc.itemsTotal); got != tc.expected {
			t.Fatalf("DeliveryChargeMinor(%d) = %d, want %d", tc.itemsTotal, got, tc.expected)
		}
	}
}
