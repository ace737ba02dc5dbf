package notification

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func loggerForTests() *log.Entry {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger.WithField("component", "notification-test")
}

func sampleOrder(status domain.OrderStatus) domain.Order {
	return domain.Order{
		ID:         "o-1",
		CustomerID: "c-1",
		Status:     status,
		Items: []domain.OrderItem{
			{ID: "i-1", ProductID: "p-1", VendorID: "v-1", Quantity: 1},
			{ID: "i-2", ProductID: "p-2", VendorID: "v-2", Quantity: 1},
			{ID: "i-3", ProductID: "p-3", VendorID: "v-1", Quantity: 2},
		},
	}
}

func pending(t *testing.T, outbox domain.OutboxRepository) []domain.Notification {
	t.Helper()
	msgs, err := outbox.PullPending(100)
	require.NoError(t, err)

	result := make([]domain.Notification, 0, len(msgs))
	for _, msg := range msgs {
		require.Equal(t, AggregateOrder, msg.AggregateType)
		var n domain.Notification
		require.NoError(t, json.Unmarshal(msg.Payload, &n))
		require.Equal(t, string(n.Type), msg.EventType)
		require.Equal(t, n.OrderID, msg.AggregateID)
		result = append(result, n)
	}
	return result
}

func TestDispatcher_OrderPlaced(t *testing.T) {
	outbox := memory.NewOutboxRepository()
	d := NewDispatcher(outbox, loggerForTests(), metrics.NewOrderMetricsWithRegisterer(prometheus.NewRegistry()))

	require.NoError(t, d.OrderPlaced(context.Background(), sampleOrder(domain.OrderStatusPending)))

	got := pending(t, outbox)
	require.Len(t, got, 3)
	require.Equal(t, domain.RecipientCustomer, got[0].RecipientRole)
	require.Equal(t, "c-1", got[0].Recipient)
	require.Equal(t, "Order Confirmation #o-1", got[0].Subject)

	require.Equal(t, "v-1", got[1].Recipient)
	require.Equal(t, "v-2", got[2].Recipient)
	for _, n := range got[1:] {
		require.Equal(t, domain.RecipientVendor, n.RecipientRole)
		require.Equal(t, "New Order Received! (#o-1)", n.Subject)
	}
}

func TestDispatcher_OrderCancelledGoesToVendors(t *testing.T) {
	outbox := memory.NewOutboxRepository()
	d := NewDispatcher(outbox, loggerForTests(), nil)

	require.NoError(t, d.OrderCancelled(context.Background(), sampleOrder(domain.OrderStatusCancelled)))

	got := pending(t, outbox)
	require.Len(t, got, 2)
	for _, n := range got {
		require.Equal(t, domain.NotificationOrderCancelled, n.Type)
		require.Contains(t, n.Message, "The customer has cancelled this order.")
	}
}

func TestDispatcher_OrderStatusChanged(t *testing.T) {
	cases := map[domain.OrderStatus]domain.NotificationType{
		domain.OrderStatusApproved:  domain.NotificationOrderApproved,
		domain.OrderStatusRejected:  domain.NotificationOrderRejected,
		domain.OrderStatusShipped:   domain.NotificationOrderShipped,
		domain.OrderStatusDelivered: domain.NotificationOrderDelivered,
	}
	for status, want := range cases {
		outbox := memory.NewOutboxRepository()
		d := NewDispatcher(outbox, loggerForTests(), nil)

		require.NoError(t, d.OrderStatusChanged(context.Background(), sampleOrder(status)))
		got := pending(t, outbox)
		require.Len(t, got, 1, status)
		require.Equal(t, want, got[0].Type)
		require.Equal(t, "c-1", got[0].Recipient)
	}

	outbox := memory.NewOutboxRepository()
	d := NewDispatcher(outbox, loggerForTests(), nil)
	require.NoError(t, d.OrderStatusChanged(context.Background(), sampleOrder(domain.OrderStatusCompleted)))
	require.Empty(t, pending(t, outbox))
}

func TestDispatcher_ReturnsAndComplaints(t *testing.T) {
	outbox := memory.NewOutboxRepository()
	d := NewDispatcher(outbox, loggerForTests(), nil)
	order := sampleOrder(domain.OrderStatusDelivered)

	require.NoError(t, d.ReturnRequested(context.Background(), order, []string{"v-2"}, "damaged"))
	require.NoError(t, d.ReturnReviewed(context.Background(), order, true))
	require.NoError(t, d.ReturnReviewed(context.Background(), order, false))
	require.NoError(t, d.ComplaintFiled(context.Background(), order, "v-1", "late delivery"))

	got := pending(t, outbox)
	require.Len(t, got, 4)
	require.Equal(t, domain.NotificationReturnRequested, got[0].Type)
	require.Equal(t, "v-2", got[0].Recipient)
	require.Contains(t, got[0].Message, "damaged")
	require.Equal(t, domain.NotificationReturnApproved, got[1].Type)
	require.Equal(t, domain.NotificationReturnRejected, got[2].Type)
	require.Equal(t, domain.NotificationComplaintFiled, got[3].Type)
	require.Contains(t, got[3].Message, "late delivery")
}

type failingOutbox struct {
	domain.OutboxRepository
}

func (failingOutbox) Enqueue(domain.OutboxMessage) (domain.OutboxMessage, error) {
	return domain.OutboxMessage{}, errors.New("disk full")
}

func TestDispatcher_EnqueueFailure(t *testing.T) {
	d := NewDispatcher(failingOutbox{}, loggerForTests(), nil)

	err := d.OrderPlaced(context.Background(), sampleOrder(domain.OrderStatusPending))
	require.Error(t, err)
	require.Contains(t, err.Error(), "disk full")
}

func TestDispatcher_CanceledContext(t *testing.T) {
	outbox := memory.NewOutboxRepository()
	d := NewDispatcher(outbox, loggerForTests(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, d.OrderPlaced(ctx, sampleOrder(domain.OrderStatusPending)), context.Canceled)
	require.Empty(t, pending(t, outbox))
}
