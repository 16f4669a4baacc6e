package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/pharmacy/internal/domain"
)

// OrderRepository — потокобезопасное in-memory хранилище заказов
// с optimistic locking, повторяющее контракт postgres-реализации.
type OrderRepository struct {
	mu       sync.RWMutex
	orders   map[string]domain.Order
	byNumber map[string]string
}

var _ domain.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository создаёт пустое хранилище заказов.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders:   make(map[string]domain.Order),
		byNumber: make(map[string]string),
	}
}

// Create сохраняет новый заказ с версией 1.
func (r *OrderRepository) Create(order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byNumber[order.OrderNumber]; ok {
		return domain.ErrOrderNumberConflict
	}

	now := time.Now().UTC()
	order.Version = 1
	order.CreatedAt = now
	order.UpdatedAt = now

	r.orders[order.ID] = copyOrder(order)
	r.byNumber[order.OrderNumber] = order.ID
	return nil
}

// Get возвращает копию заказа или ErrOrderNotFound.
func (r *OrderRepository) Get(id string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return copyOrder(order), nil
}

// GetByNumber возвращает заказ по человекочитаемому номеру.
func (r *OrderRepository) GetByNumber(number string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byNumber[number]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return copyOrder(r.orders[id]), nil
}

// ListByCustomer возвращает заказы клиента, новые первыми.
func (r *OrderRepository) ListByCustomer(customerID string, limit, offset int) ([]domain.Order, error) {
	filter := domain.OrderFilter{Limit: limit, Offset: offset}
	return r.list(filter, func(o domain.Order) bool {
		return o.CustomerID == customerID
	})
}

// List возвращает заказы по фильтру, новые первыми.
func (r *OrderRepository) List(filter domain.OrderFilter) ([]domain.Order, error) {
	return r.list(filter, func(o domain.Order) bool {
		return matchesFilter(o, filter)
	})
}

// Count возвращает количество заказов под фильтром без учёта limit/offset.
func (r *OrderRepository) Count(filter domain.OrderFilter) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, order := range r.orders {
		if matchesFilter(order, filter) {
			count++
		}
	}
	return count, nil
}

// Save применяет обновления при совпадении версии, иначе возвращает
// ErrOrderVersionConflict.
func (r *OrderRepository) Save(order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.orders[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if current.Version != order.Version {
		return domain.ErrOrderVersionConflict
	}

	order.Version++
	order.UpdatedAt = time.Now().UTC()
	r.orders[order.ID] = copyOrder(order)
	return nil
}

func (r *OrderRepository) list(filter domain.OrderFilter, match func(domain.Order) bool) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Order, 0)
	for _, order := range r.orders {
		if match(order) {
			result = append(result, copyOrder(order))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []domain.Order{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

func matchesFilter(order domain.Order, filter domain.OrderFilter) bool {
	if filter.Status != "" && order.Status != filter.Status {
		return false
	}
	if filter.PaymentStatus != "" && order.Payment.Status != filter.PaymentStatus {
		return false
	}
	if filter.PrescriptionStatus != "" {
		if order.Prescription == nil || order.Prescription.Status != filter.PrescriptionStatus {
			return false
		}
	}
	return true
}

// copyOrder делает глубокую копию, чтобы вызывающие не могли
// мутировать состояние хранилища в обход Save.
func copyOrder(order domain.Order) domain.Order {
	cp := order

	cp.Items = make([]domain.OrderItem, len(order.Items))
	copy(cp.Items, order.Items)

	cp.StatusHistory = make([]domain.StatusChange, len(order.StatusHistory))
	copy(cp.StatusHistory, order.StatusHistory)

	if order.Prescription != nil {
		rx := *order.Prescription
		if order.Prescription.ReviewedAt != nil {
			t := *order.Prescription.ReviewedAt
			rx.ReviewedAt = &t
		}
		cp.Prescription = &rx
	}
	if order.Payment.PaidAt != nil {
		t := *order.Payment.PaidAt
		cp.Payment.PaidAt = &t
	}
	if order.DeliveredAt != nil {
		t := *order.DeliveredAt
		cp.DeliveredAt = &t
	}
	if order.CancelledAt != nil {
		t := *order.CancelledAt
		cp.CancelledAt = &t
	}
	return cp
}
