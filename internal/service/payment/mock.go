package payment

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/vladislavdragonenkov/pharmacy/internal/domain"
)

// MockGateway — детерминированный платёжный шлюз для тестов и локального
// запуска без внешнего провайдера.
type MockGateway struct {
	mu       sync.Mutex
	seq      atomic.Int64
	failNext error
	created  []MockTransaction
}

// MockTransaction — запись об открытой транзакции.
type MockTransaction struct {
	GatewayOrderID string
	AmountMinor    int64
	Currency       string
	Receipt        string
}

var _ domain.PaymentGateway = (*MockGateway)(nil)

// NewMockGateway создаёт шлюз-заглушку.
func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

// CreateTransaction выдаёт последовательные идентификаторы pay_order_N.
func (g *MockGateway) CreateTransaction(amountMinor int64, currency, receipt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.failNext != nil {
		err := g.failNext
		g.failNext = nil
		return "", err
	}

	id := fmt.Sprintf("pay_order_%d", g.seq.Add(1))
	g.created = append(g.created, MockTransaction{
		GatewayOrderID: id,
		AmountMinor:    amountMinor,
		Currency:       currency,
		Receipt:        receipt,
	})
	return id, nil
}

// FailNext заставляет следующий вызов CreateTransaction вернуть err.
func (g *MockGateway) FailNext(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failNext = err
}

// Created возвращает все открытые транзакции.
func (g *MockGateway) Created() []MockTransaction {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]MockTransaction, len(g.created))
	copy(out, g.created)
	return out
}
