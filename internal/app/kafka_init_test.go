package app

import (
	"testing"

	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/service/notification"
)

func TestInitKafkaProducer_EmptyBrokers(t *testing.T) {
	logger := log.WithField("test", "kafka-empty")

	for _, brokers := range []string{"", " ", ",,"} {
		producer, err := initKafkaProducer(brokers, logger)
		require.NoError(t, err)
		require.Nil(t, producer)
	}
}

func TestInitKafkaProducer_UnreachableBroker(t *testing.T) {
	producer, err := initKafkaProducer("127.0.0.1:1", log.WithField("test", "kafka-unreachable"))
	if err == nil {
		closeKafka(producer, log.WithField("test", "kafka-unreachable"))
		t.Skip("something is listening on 127.0.0.1:1")
	}
	require.Nil(t, producer)
}

func TestCloseKafka_Nil(t *testing.T) {
	closeKafka(nil, log.WithField("test", "kafka-close"))
}

func TestOutboxPublishers_WithoutKafka(t *testing.T) {
	publisher, dlq := outboxPublishers(DefaultConfig(), nil, log.WithField("test", "publishers"))

	require.IsType(t, &notification.Relay{}, publisher)
	require.Nil(t, dlq)
}

func TestOutboxPublishers_WithKafka(t *testing.T) {
	syncProducer := mocks.NewSyncProducer(t, nil)
	syncProducer.ExpectSendMessageAndSucceed()
	syncProducer.ExpectSendMessageAndSucceed()
	producer := kafka.NewProducerFromSync(syncProducer)
	defer closeKafka(producer, log.WithField("test", "publishers"))

	publisher, dlq := outboxPublishers(DefaultConfig(), producer, log.WithField("test", "publishers"))
	require.NotNil(t, publisher)
	require.NotNil(t, dlq)

	msg := domain.OutboxMessage{
		ID:            "msg-1",
		AggregateType: "order",
		AggregateID:   "order-1",
		EventType:     "order_placed",
		Payload:       []byte(`{"type":"order_placed","recipient":"buyer-1"}`),
	}
	require.NoError(t, publisher.Publish(msg))
	require.NoError(t, dlq.Publish(msg))
}
