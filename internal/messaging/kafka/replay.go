package kafka

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/IBM/sarama"
)

// ErrNotReplayable: сообщение DLQ не содержит исходного события.
var ErrNotReplayable = errors.New("dlq message is not replayable")

// ReplayMessage восстанавливает исходное сообщение из DLQ.
// Понимает оба формата: DeadLetter от consumer и OutboxEnvelope от outbox-воркера.
// Если исходный topic неизвестен, используется defaultTopic.
func ReplayMessage(message *sarama.ConsumerMessage, defaultTopic string) (*sarama.ProducerMessage, error) {
	if message == nil || len(message.Value) == 0 {
		return nil, ErrNotReplayable
	}

	var letter DeadLetter
	if err := json.Unmarshal(message.Value, &letter); err == nil && letter.OriginalValue != "" {
		return &sarama.ProducerMessage{
			Topic: firstNonEmpty(letter.OriginalTopic, defaultTopic),
			Key:   sarama.StringEncoder(letter.OriginalKey),
			Value: sarama.ByteEncoder(letter.OriginalValue),
		}, nil
	}

	var envelope OutboxEnvelope
	if err := json.Unmarshal(message.Value, &envelope); err != nil || envelope.ID == "" || len(envelope.Payload) == 0 {
		return nil, ErrNotReplayable
	}
	return &sarama.ProducerMessage{
		Topic: firstNonEmpty(headerValue(message, HeaderOriginalTopic), defaultTopic),
		Key:   sarama.StringEncoder(firstNonEmpty(envelope.AggregateID, envelope.ID)),
		Value: sarama.ByteEncoder(message.Value),
	}, nil
}

func headerValue(message *sarama.ConsumerMessage, key string) string {
	for _, header := range message.Headers {
		if header != nil && string(header.Key) == key {
			return string(header.Value)
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
