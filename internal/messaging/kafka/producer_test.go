package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestProducerConfig(t *testing.T) {
	cfg := ProducerConfig()
	require.Equal(t, ClientID, cfg.ClientID)
	require.True(t, cfg.Producer.Idempotent)
	require.Equal(t, 1, cfg.Net.MaxOpenRequests)
	require.Equal(t, sarama.WaitForAll, cfg.Producer.RequiredAcks)
	require.NoError(t, cfg.Validate())
}

func TestProducer_PublishNotification(t *testing.T) {
	sync := mocks.NewSyncProducer(t, nil)
	producer := NewProducerFromSync(sync)
	sentAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	producer.now = func() time.Time { return sentAt }

	sync.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		require.Equal(t, TopicNotifications, msg.Topic)
		require.Equal(t, sentAt, msg.Timestamp)

		raw, err := msg.Value.Encode()
		require.NoError(t, err)
		var n domain.Notification
		require.NoError(t, json.Unmarshal(raw, &n))
		require.Equal(t, domain.NotificationOrderShipped, n.Type)
		require.Equal(t, "customer-7", n.Recipient)
		return nil
	})

	err := producer.PublishEvent(TopicNotifications, "order-7", domain.Notification{
		Type:          domain.NotificationOrderShipped,
		Recipient:     "customer-7",
		RecipientRole: domain.RecipientCustomer,
		OrderID:       "order-7",
	})
	require.NoError(t, err)
	require.NoError(t, producer.Close())
}

func TestProducer_SendError(t *testing.T) {
	sync := mocks.NewSyncProducer(t, nil)
	producer := NewProducerFromSync(sync)
	sync.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	err := producer.Send(TopicDeadLetterQueue, "order-1", []byte(`{}`))
	require.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.ErrorContains(t, err, "send to "+TopicDeadLetterQueue)
	require.NoError(t, producer.Close())
}

func TestProducer_EncodeError(t *testing.T) {
	sync := mocks.NewSyncProducer(t, nil)
	producer := NewProducerFromSync(sync)

	// Канал не кодируется в JSON, до брокера сообщение не доходит.
	require.ErrorContains(t, producer.PublishEvent(TopicNotifications, "k", make(chan int)), "encode")
	require.NoError(t, sync.Close())
}

func TestNewProducer_UnreachableBroker(t *testing.T) {
	_, err := NewProducer([]string{"127.0.0.1:1"})
	require.ErrorContains(t, err, "connect kafka producer")
}
