package kafka

import (
	"github.com/vladislavdragonenkov/pharmacy/internal/domain"
)

// OutboxPublisher публикует outbox-сообщения в Kafka,
// выбирая топик по типу события.
type OutboxPublisher struct {
	producer *Producer
}

var _ domain.OutboxPublisher = (*OutboxPublisher)(nil)

// NewOutboxPublisher создаёт publisher поверх producer'а.
func NewOutboxPublisher(producer *Producer) *OutboxPublisher {
	return &OutboxPublisher{producer: producer}
}

// Publish отправляет событие в топик, соответствующий его типу.
// Идемпотентность обеспечивается producer'ом: повторная публикация
// после падения воркера безопасна.
func (p *OutboxPublisher) Publish(event domain.OutboxMessage) error {
	return p.producer.Send(TopicFor(event.EventType), event.AggregateID, event.Payload)
}
