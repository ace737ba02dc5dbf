package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
)

type recordingSender struct {
	sent []domain.Notification
	err  error
}

func (s *recordingSender) Send(_ context.Context, n domain.Notification) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, n)
	return nil
}

func notificationPayload(t *testing.T) []byte {
	t.Helper()
	payload, err := json.Marshal(build(domain.NotificationOrderShipped, domain.RecipientCustomer, "c-1", "o-1", ""))
	require.NoError(t, err)
	return payload
}

func TestRelay_HandleKafkaMessage(t *testing.T) {
	sender := &recordingSender{}
	relay := NewRelay(sender, loggerForTests())

	value, err := json.Marshal(kafka.OutboxEnvelope{
		ID:          "m-1",
		AggregateID: "o-1",
		EventType:   string(domain.NotificationOrderShipped),
		Payload:     notificationPayload(t),
	})
	require.NoError(t, err)

	require.NoError(t, relay.Handle(context.Background(), &sarama.ConsumerMessage{Value: value}))
	require.Len(t, sender.sent, 1)
	require.Equal(t, "Your Order #o-1 has Shipped!", sender.sent[0].Subject)
}

func TestRelay_Publish(t *testing.T) {
	sender := &recordingSender{}
	relay := NewRelay(sender, loggerForTests())

	require.NoError(t, relay.Publish(domain.OutboxMessage{ID: "m-1", Payload: notificationPayload(t)}))
	require.Len(t, sender.sent, 1)
}

func TestRelay_Errors(t *testing.T) {
	relay := NewRelay(&recordingSender{}, loggerForTests())

	require.Error(t, relay.Handle(context.Background(), &sarama.ConsumerMessage{Value: []byte("{")}))
	require.Error(t, relay.Publish(domain.OutboxMessage{ID: "bad", Payload: []byte("not json")}))
	require.Error(t, relay.Publish(domain.OutboxMessage{ID: "empty", Payload: []byte(`{}`)}))

	failing := NewRelay(&recordingSender{err: errors.New("smtp down")}, loggerForTests())
	err := failing.Publish(domain.OutboxMessage{ID: "m-2", Payload: notificationPayload(t)})
	require.ErrorContains(t, err, "smtp down")
}

func TestLogSender(t *testing.T) {
	sender := NewLogSender(loggerForTests())
	require.NoError(t, sender.Send(context.Background(), build(domain.NotificationOrderPlaced, domain.RecipientVendor, "v-1", "o-1", "")))
}
