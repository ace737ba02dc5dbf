package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/require"
)

func encoded(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestReplayMessage_DeadLetter(t *testing.T) {
	original := encoded(t, OutboxEnvelope{ID: "n-1", AggregateID: "order-1", Payload: json.RawMessage(`{"type":"order_placed"}`)})
	msg := &sarama.ConsumerMessage{Value: encoded(t, DeadLetter{
		OriginalTopic: "notify",
		OriginalKey:   "order-1",
		OriginalValue: string(original),
		ErrorMessage:  "smtp down",
		FailedAt:      time.Now().UTC(),
		RetryCount:    3,
	})}

	replay, err := ReplayMessage(msg, "fallback")
	require.NoError(t, err)
	require.Equal(t, "notify", replay.Topic)
	require.Equal(t, sarama.StringEncoder("order-1"), replay.Key)
	require.Equal(t, sarama.ByteEncoder(original), replay.Value)
}

func TestReplayMessage_DeadLetterWithoutTopic(t *testing.T) {
	msg := &sarama.ConsumerMessage{Value: encoded(t, DeadLetter{OriginalValue: `{"id":"x"}`})}

	replay, err := ReplayMessage(msg, "fallback")
	require.NoError(t, err)
	require.Equal(t, "fallback", replay.Topic)
}

func TestReplayMessage_OutboxEnvelope(t *testing.T) {
	value := encoded(t, OutboxEnvelope{
		ID:          "n-2",
		AggregateID: "order-2",
		EventType:   "order_cancelled",
		Payload:     json.RawMessage(`{"type":"order_cancelled"}`),
	})
	msg := &sarama.ConsumerMessage{
		Value: value,
		Headers: []*sarama.RecordHeader{
			{Key: []byte(HeaderFailedAt), Value: []byte("2026-01-01T00:00:00Z")},
			{Key: []byte(HeaderOriginalTopic), Value: []byte("notify")},
		},
	}

	replay, err := ReplayMessage(msg, "fallback")
	require.NoError(t, err)
	require.Equal(t, "notify", replay.Topic)
	require.Equal(t, sarama.StringEncoder("order-2"), replay.Key)
	require.Equal(t, sarama.ByteEncoder(value), replay.Value)
}

func TestReplayMessage_NotReplayable(t *testing.T) {
	for name, msg := range map[string]*sarama.ConsumerMessage{
		"nil":        nil,
		"empty":      {},
		"garbage":    {Value: []byte("not json")},
		"no payload": {Value: []byte(`{"id":"n-3"}`)},
		"no id":      {Value: []byte(`{"payload":{"type":"x"}}`)},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ReplayMessage(msg, "fallback")
			require.ErrorIs(t, err, ErrNotReplayable)
		})
	}
}
