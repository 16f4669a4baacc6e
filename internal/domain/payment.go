package domain

import "time"

// PaymentMethod описывает способ оплаты заказа.
type PaymentMethod string

const (
	// PaymentMethodCOD — оплата наличными при доставке.
	PaymentMethodCOD PaymentMethod = "cod"
	// PaymentMethodGateway — онлайн-оплата через платёжный шлюз.
	PaymentMethodGateway PaymentMethod = "gateway"
	// PaymentMethodUPI — оплата через UPI, проходит через тот же шлюз.
	PaymentMethodUPI PaymentMethod = "upi"
)

// Valid проверяет, что метод относится к поддерживаемым значениям.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCOD, PaymentMethodGateway, PaymentMethodUPI:
		return true
	default:
		return false
	}
}

// Online сообщает, требует ли метод транзакции у платёжного шлюза.
func (m PaymentMethod) Online() bool {
	return m == PaymentMethodGateway || m == PaymentMethodUPI
}

// PaymentStatus описывает состояние оплаты заказа.
type PaymentStatus string

const (
	// PaymentStatusPending — оплата инициирована, но не подтверждена.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusCompleted — подпись шлюза проверена, деньги получены.
	PaymentStatusCompleted PaymentStatus = "completed"
	// PaymentStatusFailed — проверка подписи не прошла.
	PaymentStatusFailed PaymentStatus = "failed"
	// PaymentStatusRefunded — терминальное состояние возврата.
	// Логика перехода в refunded не реализована: статус зарезервирован.
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Settled сообщает, что оплата закрыта окончательно. failed сюда не входит:
// после неудачной верификации допускается повторная попытка оплаты.
func (s PaymentStatus) Settled() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusRefunded
}

// PaymentInfo хранит состояние оплаты внутри заказа.
type PaymentInfo struct {
	Method PaymentMethod
	Status PaymentStatus
	// GatewayOrderID выдаётся шлюзом при создании транзакции.
	GatewayOrderID string
	// GatewayPaymentID и GatewaySignature приходят в callback после оплаты.
	GatewayPaymentID string
	GatewaySignature string
	PaidAt           *time.Time
}

// GatewayCallback — поля redirect/webhook платёжного шлюза.
type GatewayCallback struct {
	GatewayOrderID   string
	GatewayPaymentID string
	GatewaySignature string
}
