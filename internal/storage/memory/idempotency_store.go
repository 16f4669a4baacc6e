package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/pharmacy/internal/domain"
)

type idempotencyRecord struct {
	value     string
	completed bool
	createdAt time.Time
}

// IdempotencyStore — in-memory реализация защиты от повторов.
// Записи протухают по TTL и вычищаются фоновым воркером.
type IdempotencyStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	records map[string]*idempotencyRecord
}

var _ domain.IdempotencyStore = (*IdempotencyStore)(nil)

// NewIdempotencyStore создаёт хранилище с заданным TTL записей.
func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		ttl:     ttl,
		records: make(map[string]*idempotencyRecord),
	}
}

// TryLock захватывает ключ; false означает, что ключ уже обрабатывается
// или обработан.
func (s *IdempotencyStore) TryLock(_ context.Context, scope, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := scope + ":" + key
	if rec, ok := s.records[k]; ok && !s.expired(rec) {
		return false, nil
	}
	s.records[k] = &idempotencyRecord{createdAt: time.Now().UTC()}
	return true, nil
}

// Remember сохраняет результат обработки ключа.
func (s *IdempotencyStore) Remember(_ context.Context, scope, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[scope+":"+key] = &idempotencyRecord{
		value:     value,
		completed: true,
		createdAt: time.Now().UTC(),
	}
	return nil
}

// Recall возвращает сохранённый результат, если обработка завершена.
func (s *IdempotencyStore) Recall(_ context.Context, scope, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[scope+":"+key]
	if !ok || !rec.completed || s.expired(rec) {
		return "", false, nil
	}
	return rec.value, true, nil
}

// DeleteExpired удаляет до limit записей старше before.
// Возвращает количество удалённых.
func (s *IdempotencyStore) DeleteExpired(before time.Time, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for k, rec := range s.records {
		if limit > 0 && deleted >= limit {
			break
		}
		if rec.createdAt.Before(before) {
			delete(s.records, k)
			deleted++
		}
	}
	return deleted, nil
}

func (s *IdempotencyStore) expired(rec *idempotencyRecord) bool {
	if s.ttl <= 0 {
		return false
	}
	return time.Since(rec.createdAt) > s.ttl
}
