package domain

import "errors"

var (
	// Ошибка отсутствующего идентификатора клиента.
	ErrCustomerRequired = errors.New("customer_id is required")
	// Ошибка отсутствующего номера заказа.
	ErrOrderNumberRequired = errors.New("order_number is required")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item qty must be greater than zero")
	// Ошибка, если цена или налог позиции отрицательные.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка отрицательных сумм в pricing.
	ErrAmountNegative = errors.New("pricing amounts must be non-negative")
	// Ошибка нарушения инварианта total = items + tax + delivery - discount.
	ErrPricingMismatch = errors.New("pricing total does not match components")
	// Ошибка неподдерживаемого метода оплаты.
	ErrPaymentMethodInvalid = errors.New("unsupported payment method")
	// Ошибка неподдерживаемого статуса заказа.
	ErrStatusInvalid = errors.New("unsupported order status")

	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrOrderNumberConflict — коллизия уникального номера заказа.
	ErrOrderNumberConflict = errors.New("order number already exists")
	// ErrIllegalStatusTransition — запрещённый переход статуса заказа.
	ErrIllegalStatusTransition = errors.New("illegal order status transition")

	// ErrCatalogItemNotFound — товар каталога не найден.
	ErrCatalogItemNotFound = errors.New("catalog item not found")
	// ErrCatalogItemInactive — товар снят с продажи.
	ErrCatalogItemInactive = errors.New("catalog item is not available")
	// ErrInsufficientStock — на складе меньше, чем запрошено.
	// Проверяется и при расчёте цены, и атомарно при списании.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrPaymentVerificationFailed — подпись шлюза не совпала.
	ErrPaymentVerificationFailed = errors.New("invalid payment signature")
	// ErrPaymentNotPending — оплата уже закрыта (completed или refunded);
	// повторная верификация не должна списывать сток второй раз.
	ErrPaymentNotPending = errors.New("payment already settled")
	// ErrPaymentMethodMismatch — callback шлюза для заказа без онлайн-оплаты.
	ErrPaymentMethodMismatch = errors.New("order is not paid via gateway")
	// ErrGatewayUnavailable — платёжный шлюз недоступен (5xx, без ретраев).
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// ErrPrescriptionMissing — для заказа не загружен рецепт.
	ErrPrescriptionMissing = errors.New("no prescription uploaded for this order")
	// ErrPrescriptionReviewed — рецепт уже проверен; повторная проверка запрещена.
	ErrPrescriptionReviewed = errors.New("prescription already reviewed")
	// ErrPrescriptionStatusInvalid — допустимы только approved и rejected.
	ErrPrescriptionStatusInvalid = errors.New("prescription status must be approved or rejected")

	// ErrNotOrderOwner — операция доступна только владельцу заказа.
	ErrNotOrderOwner = errors.New("not authorized for this order")
	// ErrUserNotFound — пользователь не найден в хранилище аккаунтов.
	ErrUserNotFound = errors.New("user not found")
	// ErrDocumentRequired — пустой файл рецепта.
	ErrDocumentRequired = errors.New("prescription document is required")

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}
