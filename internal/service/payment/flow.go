package payment

import (
	"fmt"

	"github.com/vladislavdragonenkov/pharmacy/internal/domain"
)

// Flow инициализирует оплату заказа для конкретного метода.
// Новый метод оплаты добавляется новой реализацией Flow,
// без ветвлений в сервисе заказов.
type Flow interface {
	// Method возвращает метод оплаты, который обслуживает flow.
	Method() domain.PaymentMethod
	// Begin заполняет платёжные поля нового заказа.
	Begin(order *domain.Order) error
}

// Flows — реестр flow по методу оплаты.
type Flows struct {
	byMethod map[domain.PaymentMethod]Flow
}

// NewFlows регистрирует переданные flow.
func NewFlows(flows ...Flow) *Flows {
	byMethod := make(map[domain.PaymentMethod]Flow, len(flows))
	for _, f := range flows {
		byMethod[f.Method()] = f
	}
	return &Flows{byMethod: byMethod}
}

// For возвращает flow для метода или ErrPaymentMethodInvalid.
func (f *Flows) For(method domain.PaymentMethod) (Flow, error) {
	flow, ok := f.byMethod[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrPaymentMethodInvalid, method)
	}
	return flow, nil
}

// CODFlow — оплата при получении: транзакция у шлюза не открывается,
// оплата остаётся pending до доставки.
type CODFlow struct{}

var _ Flow = (*CODFlow)(nil)

// NewCODFlow создаёт flow наложенного платежа.
func NewCODFlow() *CODFlow {
	return &CODFlow{}
}

func (f *CODFlow) Method() domain.PaymentMethod {
	return domain.PaymentMethodCOD
}

func (f *CODFlow) Begin(order *domain.Order) error {
	order.Payment.Status = domain.PaymentStatusPending
	return nil
}

// GatewayFlow открывает транзакцию у платёжного провайдера и сохраняет
// её идентификатор; подтверждение придёт отдельным callback'ом.
type GatewayFlow struct {
	method  domain.PaymentMethod
	gateway domain.PaymentGateway
}

var _ Flow = (*GatewayFlow)(nil)

// NewGatewayFlow создаёт flow онлайн-оплаты через карточный шлюз.
func NewGatewayFlow(gateway domain.PaymentGateway) *GatewayFlow {
	return &GatewayFlow{method: domain.PaymentMethodGateway, gateway: gateway}
}

// NewUPIFlow создаёт flow оплаты через UPI; использует тот же протокол
// шлюза, что и карточный flow.
func NewUPIFlow(gateway domain.PaymentGateway) *GatewayFlow {
	return &GatewayFlow{method: domain.PaymentMethodUPI, gateway: gateway}
}

func (f *GatewayFlow) Method() domain.PaymentMethod {
	return f.method
}

func (f *GatewayFlow) Begin(order *domain.Order) error {
	gatewayOrderID, err := f.gateway.CreateTransaction(
		order.Pricing.TotalAmountMinor, "INR", order.OrderNumber)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}

	order.Payment.Status = domain.PaymentStatusPending
	order.Payment.GatewayOrderID = gatewayOrderID
	return nil
}
