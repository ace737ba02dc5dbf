package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/service/notification"
)

// initKafkaProducer создаёт producer, если заданы брокеры.
// Пустой список даёт nil, nil.
func initKafkaProducer(brokers string, logger *log.Entry) (*kafka.Producer, error) {
	list := brokerList(brokers)
	if len(list) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(list)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil, err
	}

	logger.WithField("brokers", list).Info("kafka producer initialized")
	return producer, nil
}

// closeKafka закрывает producer, если он был создан.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}

// outboxPublishers выбирает, куда outbox-воркер отправляет уведомления.
// Без Kafka сообщения сразу уходят в локальный relay, DLQ нет.
func outboxPublishers(cfg Config, producer *kafka.Producer, logger *log.Entry) (publisher, dlq domain.OutboxPublisher) {
	if producer == nil {
		relayLogger := logger.WithField("component", "notification-relay")
		return notification.NewRelay(notification.NewLogSender(relayLogger), relayLogger), nil
	}
	return kafka.NewOutboxPublisher(producer, cfg.NotificationTopic),
		kafka.NewDLQPublisher(producer, cfg.DLQTopic, cfg.NotificationTopic)
}
