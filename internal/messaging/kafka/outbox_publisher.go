package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// OutboxTopicPublisher заворачивает outbox-уведомление в OutboxEnvelope и пишет в topic.
// Ключ сообщения: id заказа, поэтому уведомления одного заказа попадают в одну партицию.
type OutboxTopicPublisher struct {
	producer *Producer
	topic    string
	headers  []sarama.RecordHeader
	now      func() time.Time
}

// NewOutboxPublisher создаёт Kafka-паблишер для transactional outbox.
func NewOutboxPublisher(producer *Producer, topic string) domain.OutboxPublisher {
	if topic == "" {
		topic = TopicNotifications
	}
	return &OutboxTopicPublisher{
		producer: producer,
		topic:    topic,
		now:      time.Now,
	}
}

// NewDLQPublisher: паблишер для уведомлений, которые outbox worker не доставил за MaxAttempts.
// Заголовок x-original-topic нужен dlq-reprocess, чтобы вернуть сообщение на место.
func NewDLQPublisher(producer *Producer, topic, originalTopic string) domain.OutboxPublisher {
	if topic == "" {
		topic = TopicDeadLetterQueue
	}
	return &OutboxTopicPublisher{
		producer: producer,
		topic:    topic,
		headers: []sarama.RecordHeader{
			{Key: []byte(HeaderOriginalTopic), Value: []byte(originalTopic)},
		},
		now: time.Now,
	}
}

func (p *OutboxTopicPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return errors.New("kafka outbox publisher is not initialized")
	}
	if len(event.Payload) == 0 {
		return fmt.Errorf("outbox message %s has empty payload", event.ID)
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}

	envelope := OutboxEnvelope{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       json.RawMessage(event.Payload),
		PublishedAt:   p.now().UTC(),
	}

	headers := p.headers
	if len(headers) > 0 {
		headers = append(append([]sarama.RecordHeader(nil), headers...), sarama.RecordHeader{
			Key:   []byte(HeaderFailedAt),
			Value: []byte(envelope.PublishedAt.Format(time.RFC3339)),
		})
	}
	return p.producer.PublishEvent(p.topic, key, envelope, headers...)
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
