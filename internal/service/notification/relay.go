package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
)

// Sender доставляет уведомление получателю.
type Sender interface {
	Send(ctx context.Context, n domain.Notification) error
}

// Relay разбирает outbox-сообщения и передаёт уведомления в Sender.
// Handle подключается к kafka.Consumer, Publish позволяет ставить Relay
// вместо Kafka-паблишера при локальном запуске.
type Relay struct {
	sender Sender
	logger *log.Entry
}

// NewRelay создаёт relay поверх sender.
func NewRelay(sender Sender, logger *log.Entry) *Relay {
	if logger == nil {
		logger = log.WithField("component", "notification-relay")
	}
	return &Relay{sender: sender, logger: logger}
}

// Handle: kafka.MessageHandler для topic уведомлений.
func (r *Relay) Handle(ctx context.Context, message *sarama.ConsumerMessage) error {
	envelope, err := kafka.ParseOutboxEnvelope(message)
	if err != nil {
		return err
	}
	return r.deliver(ctx, envelope.ID, envelope.Payload)
}

// Publish доставляет сообщение сразу, минуя брокер.
func (r *Relay) Publish(event domain.OutboxMessage) error {
	return r.deliver(context.Background(), event.ID, event.Payload)
}

func (r *Relay) deliver(ctx context.Context, messageID string, payload []byte) error {
	var n domain.Notification
	if err := json.Unmarshal(payload, &n); err != nil {
		return fmt.Errorf("decode notification %s: %w", messageID, err)
	}
	if n.Type == "" || n.Recipient == "" {
		return fmt.Errorf("notification %s has no type or recipient", messageID)
	}
	if err := r.sender.Send(ctx, n); err != nil {
		return fmt.Errorf("send %s notification to %s: %w", n.Type, n.Recipient, err)
	}
	return nil
}

// LogSender пишет уведомления в лог вместо реальной доставки.
type LogSender struct {
	logger *log.Entry
}

// NewLogSender создаёт sender, который только логирует.
func NewLogSender(logger *log.Entry) *LogSender {
	if logger == nil {
		logger = log.WithField("component", "notification-sender")
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, n domain.Notification) error {
	s.logger.WithFields(log.Fields{
		"type":           n.Type,
		"recipient":      n.Recipient,
		"recipient_role": n.RecipientRole,
		"order_id":       n.OrderID,
		"subject":        n.Subject,
	}).Info("notification delivered")
	return nil
}

var (
	_ domain.OutboxPublisher = (*Relay)(nil)
	_ Sender                 = (*LogSender)(nil)
)
