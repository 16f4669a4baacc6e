package domain

import "time"

// CatalogItem — товар каталога, внешний коллаборатор заказа.
// Заказ мутирует только Stock и только через протокол списания/возврата.
type CatalogItem struct {
	ID   string
	Name string
	// PriceMinor — цена по прайсу в минорных единицах.
	PriceMinor int64
	// DiscountPriceMinor — цена со скидкой; 0 означает отсутствие скидки.
	DiscountPriceMinor int64
	// TaxRatePercent — ставка налога в процентах (GST).
	TaxRatePercent int32
	Stock          int32
	// LowStockThreshold — порог, ниже которого публикуется событие stock.low.
	LowStockThreshold    int32
	PrescriptionRequired bool
	IsActive             bool
	ExpiryDate           time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// EffectivePriceMinor возвращает цену со скидкой, если она задана и ниже прайса.
func (c CatalogItem) EffectivePriceMinor() int64 {
	if c.DiscountPriceMinor > 0 && c.DiscountPriceMinor < c.PriceMinor {
		return c.DiscountPriceMinor
	}
	return c.PriceMinor
}

// LowStock сообщает, что остаток на складе не выше порога.
func (c CatalogItem) LowStock() bool {
	return c.Stock <= c.LowStockThreshold
}
