package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/pharmacy/internal/domain"
)

// pendingMarker хранится под ключом, пока обработка не завершена.
const pendingMarker = "__pending__"

// IdempotencyStore — реализация защиты от повторов на Redis.
// Протухание записей обеспечивает TTL ключей, отдельный cleanup не нужен.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

var _ domain.IdempotencyStore = (*IdempotencyStore)(nil)

// NewIdempotencyStore создаёт хранилище поверх клиента Redis.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		client: client,
		ttl:    ttl,
		prefix: "pharmacy:idempotency:",
	}
}

func (s *IdempotencyStore) key(scope, key string) string {
	return s.prefix + scope + ":" + key
}

// TryLock захватывает ключ через SETNX; false — ключ уже занят.
func (s *IdempotencyStore) TryLock(ctx context.Context, scope, key string) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(scope, key), pendingMarker, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency lock: %w", err)
	}
	return ok, nil
}

// Remember сохраняет результат обработки, заменяя pending-маркер.
func (s *IdempotencyStore) Remember(ctx context.Context, scope, key, value string) error {
	if err := s.client.Set(ctx, s.key(scope, key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("idempotency remember: %w", err)
	}
	return nil
}

// Recall возвращает сохранённый результат; pending-маркер считается
// отсутствием результата.
func (s *IdempotencyStore) Recall(ctx context.Context, scope, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, s.key(scope, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("idempotency recall: %w", err)
	}
	if value == pendingMarker {
		return "", false, nil
	}
	return value, true, nil
}
