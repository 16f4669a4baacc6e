package domain

import "time"

// OrderStatus описывает жизненный цикл заказа аптеки.
type OrderStatus string

const (
	// OrderStatusPlaced — заказ создан, цены зафиксированы.
	OrderStatusPlaced OrderStatus = "placed"
	// OrderStatusProcessing — заказ принят в обработку и собирается.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusOutForDelivery — заказ передан курьеру.
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	// OrderStatusDelivered — заказ доставлен (терминальный статус).
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled — заказ отменён (терминальный статус).
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPlaced, OrderStatusProcessing, OrderStatusOutForDelivery,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal сообщает, является ли статус конечным.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// orderTransitions задаёт разрешённые переходы статусов заказа.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPlaced:         {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing:     {OrderStatusOutForDelivery, OrderStatusCancelled},
	OrderStatusOutForDelivery: {OrderStatusDelivered},
	OrderStatusDelivered:      {},
	OrderStatusCancelled:      {},
}

// CanTransition проверяет легальность перехода from → to.
func CanTransition(from, to OrderStatus) bool {
	for _, allowed := range orderTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ActorSystem используется в истории статусов для системных переходов.
const ActorSystem = "system"

// StatusChange — запись append-only истории статусов заказа.
type StatusChange struct {
	Status    OrderStatus
	Comment   string
	Actor     string
	Timestamp time.Time
}

// OrderItem — позиция заказа со снапшотом цены на момент создания.
// Цены никогда не пересчитываются из живого каталога.
type OrderItem struct {
	ID            string
	CatalogItemID string
	// Name — снапшот названия товара на момент заказа.
	Name string
	Qty  int32
	// UnitPriceMinor — эффективная цена за единицу в минорных единицах (пайсах).
	UnitPriceMinor int64
	// UnitTaxMinor — налог за единицу, округлённый half-up до минорной единицы.
	UnitTaxMinor         int64
	PrescriptionRequired bool
	CreatedAt            time.Time
}

// ShippingAddress — денормализованная копия адреса доставки.
// Не ссылается на аккаунт: изменение профиля не меняет историю заказов.
type ShippingAddress struct {
	Name    string
	Phone   string
	Street  string
	City    string
	State   string
	Pincode string
	Country string
}

// Pricing фиксирует расчёт стоимости заказа в минорных единицах.
// Считается один раз при создании и далее неизменен.
type Pricing struct {
	ItemsTotalMinor     int64
	TaxTotalMinor       int64
	DeliveryChargeMinor int64
	DiscountMinor       int64
	TotalAmountMinor    int64
}

// CheckTotal проверяет инвариант total = items + tax + delivery - discount.
func (p Pricing) CheckTotal() bool {
	return p.TotalAmountMinor == p.ItemsTotalMinor+p.TaxTotalMinor+p.DeliveryChargeMinor-p.DiscountMinor
}

// Order агрегирует состояние заказа: позиции, оплату, рецепт и историю статусов.
type Order struct {
	ID string
	// OrderNumber — человекочитаемый номер вида SM260800042.
	OrderNumber     string
	CustomerID      string
	Items           []OrderItem
	ShippingAddress ShippingAddress
	Payment         PaymentInfo
	Pricing         Pricing
	// Prescription заполняется только после загрузки документа.
	Prescription *Prescription
	Status       OrderStatus
	// StatusHistory — append-only журнал всех переходов, включая начальный placed.
	StatusHistory []StatusChange
	// StockDeducted отмечает, что сток по заказу уже списан.
	// Гарантирует ровно одно списание и ровно один возврат при отмене.
	StockDeducted      bool
	DeliveredAt        *time.Time
	CancelledAt        *time.Time
	CancellationReason string
	Notes              string
	Version            int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// RequiresPrescription сообщает, есть ли в заказе рецептурные позиции.
func (o *Order) RequiresPrescription() bool {
	for _, item := range o.Items {
		if item.PrescriptionRequired {
			return true
		}
	}
	return false
}

// ApplyStatus выполняет переход статуса и добавляет запись в историю.
// Возвращает ErrIllegalStatusTransition для запрещённых переходов.
func (o *Order) ApplyStatus(to OrderStatus, actor, comment string, now time.Time) error {
	if !to.Valid() {
		return ErrStatusInvalid
	}
	if !CanTransition(o.Status, to) {
		return ErrIllegalStatusTransition
	}

	o.Status = to
	o.UpdatedAt = now
	o.StatusHistory = append(o.StatusHistory, StatusChange{
		Status:    to,
		Comment:   comment,
		Actor:     actor,
		Timestamp: now,
	})

	switch to {
	case OrderStatusDelivered:
		ts := now
		o.DeliveredAt = &ts
	case OrderStatusCancelled:
		ts := now
		o.CancelledAt = &ts
	}

	return nil
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerID == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if o.OrderNumber == "" {
		errs = append(errs, ErrOrderNumberRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if !o.Payment.Method.Valid() {
		errs = append(errs, ErrPaymentMethodInvalid)
	}

	for _, item := range o.Items {
		if item.Qty <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.UnitPriceMinor < 0 || item.UnitTaxMinor < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
	}

	if o.Pricing.ItemsTotalMinor < 0 || o.Pricing.TotalAmountMinor < 0 {
		errs = append(errs, ErrAmountNegative)
	}
	if !o.Pricing.CheckTotal() {
		errs = append(errs, ErrPricingMismatch)
	}

	return errs
}
