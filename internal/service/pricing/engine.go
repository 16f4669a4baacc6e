package pricing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pharmacy/internal/domain"
)

const (
	// freeDeliveryThresholdMinor — порог бесплатной доставки (сумма позиций).
	freeDeliveryThresholdMinor int64 = 50000
	// deliveryChargeMinor — плата за доставку ниже порога.
	deliveryChargeMinor int64 = 4000
)

// CartLine — позиция корзины на входе расчёта.
type CartLine struct {
	CatalogItemID string
	Qty           int32
}

// Quote — результат расчёта стоимости корзины.
type Quote struct {
	Items                []domain.OrderItem
	Pricing              domain.Pricing
	PrescriptionRequired bool
}

// Engine рассчитывает стоимость заказа по актуальному каталогу.
// Расчёт детерминирован: сервер никогда не доверяет ценам клиента.
type Engine struct {
	catalog domain.CatalogRepository
	logger  *log.Entry
}

// NewEngine создаёт движок расчёта цен.
func NewEngine(catalog domain.CatalogRepository, logger *log.Entry) *Engine {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Engine{
		catalog: catalog,
		logger:  logger.WithField("component", "pricing_engine"),
	}
}

// Price рассчитывает стоимость корзины. Каждая позиция проверяется на
// существование, активность и достаточный остаток; ошибка всегда называет
// проблемный товар. Налог считается на единицу с округлением half-up.
func (e *Engine) Price(lines []CartLine) (Quote, error) {
	if len(lines) == 0 {
		return Quote{}, domain.ErrItemsRequired
	}

	now := time.Now().UTC()
	quote := Quote{Items: make([]domain.OrderItem, 0, len(lines))}

	for _, line := range lines {
		if line.Qty <= 0 {
			return Quote{}, fmt.Errorf("item %s: %w", line.CatalogItemID, domain.ErrItemQtyInvalid)
		}

		item, err := e.catalog.Get(line.CatalogItemID)
		if err != nil {
			return Quote{}, fmt.Errorf("item %s: %w", line.CatalogItemID, err)
		}
		if !item.IsActive {
			return Quote{}, fmt.Errorf("item %s: %w", item.Name, domain.ErrCatalogItemInactive)
		}
		if item.Stock < line.Qty {
			return Quote{}, fmt.Errorf("item %s: %w", item.Name, domain.ErrInsufficientStock)
		}

		unitPrice := item.EffectivePriceMinor()
		unitTax := UnitTaxMinor(unitPrice, item.TaxRatePercent)

		quote.Items = append(quote.Items, domain.OrderItem{
			ID:                   uuid.NewString(),
			CatalogItemID:        item.ID,
			Name:                 item.Name,
			Qty:                  line.Qty,
			UnitPriceMinor:       unitPrice,
			UnitTaxMinor:         unitTax,
			PrescriptionRequired: item.PrescriptionRequired,
			CreatedAt:            now,
		})

		quote.Pricing.ItemsTotalMinor += unitPrice * int64(line.Qty)
		quote.Pricing.TaxTotalMinor += unitTax * int64(line.Qty)
		if item.PrescriptionRequired {
			quote.PrescriptionRequired = true
		}
	}

	quote.Pricing.DeliveryChargeMinor = DeliveryChargeMinor(quote.Pricing.ItemsTotalMinor)
	quote.Pricing.TotalAmountMinor = quote.Pricing.ItemsTotalMinor +
		quote.Pricing.TaxTotalMinor +
		quote.Pricing.DeliveryChargeMinor -
		quote.Pricing.DiscountMinor

	e.logger.WithFields(log.Fields{
		"items":        len(quote.Items),
		"total_minor":  quote.Pricing.TotalAmountMinor,
		"requires_rx":  quote.PrescriptionRequired,
		"delivery_fee": quote.Pricing.DeliveryChargeMinor,
	}).Debug("Cart priced")

	return quote, nil
}

// UnitTaxMinor считает налог на единицу товара в минорных единицах
// с округлением half-up.
func UnitTaxMinor(unitPriceMinor int64, taxRatePercent int32) int64 {
	return (unitPriceMinor*int64(taxRatePercent) + 50) / 100
}

// DeliveryChargeMinor возвращает плату за доставку: бесплатно от порога.
func DeliveryChargeMinor(itemsTotalMinor int64) int64 {
	if itemsTotalMinor >= freeDeliveryThresholdMinor {
		return 0
	}
	return deliveryChargeMinor
}
