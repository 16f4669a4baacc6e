package memory

import (
	"sync"

	"github.com/vladislavdragonenkov/pharmacy/internal/domain"
)

// CounterRepository — in-memory атомарный счётчик для номеров заказов.
type CounterRepository struct {
	mu       sync.Mutex
	counters map[string]int64
}

var _ domain.OrderCounter = (*CounterRepository)(nil)

// NewCounterRepository создаёт хранилище счётчиков.
func NewCounterRepository() *CounterRepository {
	return &CounterRepository{
		counters: make(map[string]int64),
	}
}

// Next атомарно инкрементирует счётчик key и возвращает новое значение.
func (r *CounterRepository) Next(key string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.counters[key]++
	return r.counters[key], nil
}
