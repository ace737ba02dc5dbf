package kafka

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestOutboxPublisher_Publish(t *testing.T) {
	t.Parallel()

	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var envelope OutboxEnvelope
		if err := json.Unmarshal(val, &envelope); err != nil {
			return err
		}
		if envelope.EventType != string(domain.NotificationOrderPlaced) || envelope.AggregateID != "order-123" {
			return fmt.Errorf("unexpected envelope: %+v", envelope)
		}
		if string(envelope.Payload) != `{"type":"ORDER_PLACED"}` {
			return fmt.Errorf("payload must be embedded verbatim: %s", envelope.Payload)
		}
		return nil
	})

	publisher := NewOutboxPublisher(NewProducerFromSync(mockProducer), "")

	err := publisher.Publish(domain.OutboxMessage{
		ID:            "outbox-1",
		AggregateType: "order",
		AggregateID:   "order-123",
		EventType:     string(domain.NotificationOrderPlaced),
		Payload:       []byte(`{"type":"ORDER_PLACED"}`),
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOutboxPublisher_PublishProducerError(t *testing.T) {
	t.Parallel()

	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	publisher := NewOutboxPublisher(NewProducerFromSync(mockProducer), TopicNotifications)

	err := publisher.Publish(domain.OutboxMessage{
		ID:          "outbox-2",
		AggregateID: "order-234",
		EventType:   string(domain.NotificationOrderShipped),
		Payload:     []byte(`{}`),
	})
	if err == nil {
		t.Fatal("expected publish error, got nil")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestDLQPublisher_Publish(t *testing.T) {
	t.Parallel()

	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageAndSucceed()

	publisher := NewDLQPublisher(NewProducerFromSync(mockProducer), "", TopicNotifications)
	dlq, ok := publisher.(*OutboxTopicPublisher)
	if !ok {
		t.Fatalf("unexpected publisher type %T", publisher)
	}
	if dlq.topic != TopicDeadLetterQueue {
		t.Fatalf("expected default dlq topic, got %s", dlq.topic)
	}

	if err := publisher.Publish(domain.OutboxMessage{ID: "outbox-3", Payload: []byte(`{}`)}); err != nil {
		t.Fatalf("dlq publish failed: %v", err)
	}
	if len(dlq.headers) != 1 {
		t.Fatalf("base headers must not grow between publishes: %d", len(dlq.headers))
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOutboxPublisher_PublishNilProducer(t *testing.T) {
	t.Parallel()

	publisher := NewOutboxPublisher(nil, TopicNotifications)
	if err := publisher.Publish(domain.OutboxMessage{ID: "outbox-4"}); err == nil {
		t.Fatal("expected error for nil producer")
	}
}

func TestOutboxPublisher_RejectsEmptyPayload(t *testing.T) {
	t.Parallel()

	mockProducer := mocks.NewSyncProducer(t, nil)
	publisher := NewOutboxPublisher(NewProducerFromSync(mockProducer), TopicNotifications)
	if err := publisher.Publish(domain.OutboxMessage{ID: "outbox-5", AggregateID: "order-5"}); err == nil {
		t.Fatal("expected error for empty payload")
	}
	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}
