package domain

import (
	"context"
	"time"
)

// PaymentGateway описывает взаимодействие с платёжным провайдером.
type PaymentGateway interface {
	// CreateTransaction открывает транзакцию у провайдера и возвращает её id.
	// Сумма передаётся в минорных единицах.
	CreateTransaction(amountMinor int64, currency, receipt string) (string, error)
}

// DocumentRef — результат сохранения документа во внешнем blob-хранилище.
type DocumentRef struct {
	URL string
	Ref string
}

// DocumentStore сохраняет загруженные документы (рецепты). Pass-through:
// ядро не зависит от устройства хранилища.
type DocumentStore interface {
	Store(data []byte, contentType string) (DocumentRef, error)
}

// User — минимальная проекция аккаунта для денормализации в заказы.
type User struct {
	ID   string
	Name string
}

// AccountStore — read-only доступ к пользователям.
type AccountStore interface {
	GetUser(id string) (User, error)
}

// IdempotencyStore защищает HTTP-операции от повторов по idempotency-key.
type IdempotencyStore interface {
	// TryLock пытается захватить ключ; false — ключ уже занят.
	TryLock(ctx context.Context, scope, key string) (bool, error)
	// Remember сохраняет результат обработки ключа.
	Remember(ctx context.Context, scope, key, value string) error
	// Recall возвращает сохранённый результат, если он есть.
	Recall(ctx context.Context, scope, key string) (string, bool, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
