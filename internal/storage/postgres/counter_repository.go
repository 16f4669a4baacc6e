package postgres

import (
	"fmt"

	"github.com/vladislavdragonenkov/pharmacy/internal/domain"
)

// CounterRepository — атомарный счётчик номеров заказов на PostgreSQL.
// INSERT .. ON CONFLICT .. RETURNING выполняет инкремент одной командой:
// read-then-increment гонки исключены.
type CounterRepository struct {
	store *Store
}

var _ domain.OrderCounter = (*CounterRepository)(nil)

// NewCounterRepository создаёт репозиторий счётчиков.
func NewCounterRepository(store *Store) *CounterRepository {
	return &CounterRepository{store: store}
}

// Next атомарно инкрементирует счётчик key и возвращает новое значение.
func (r *CounterRepository) Next(key string) (int64, error) {
	ctx, cancel := opContext()
	defer cancel()

	var value int64
	err := r.store.db.QueryRowContext(ctx, `
		INSERT INTO order_counters (key, value)
		VALUES ($1, 1)
		ON CONFLICT (key) DO UPDATE SET value = order_counters.value + 1
		RETURNING value
	`, key).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("next counter value: %w", err)
	}
	return value, nil
}
