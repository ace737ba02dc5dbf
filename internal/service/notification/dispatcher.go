// Package notification формирует уведомления по заказам, ставит их в outbox
// и доставляет из Kafka получателям.
package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// AggregateOrder: AggregateType outbox-сообщений с уведомлениями.
const AggregateOrder = "order"

const cancelledByCustomer = "The customer has cancelled this order."

// Dispatcher превращает изменения заказа в уведомления и кладёт их в outbox.
type Dispatcher struct {
	outbox  domain.OutboxRepository
	logger  *log.Entry
	metrics *metrics.OrderMetrics
}

// NewDispatcher создаёт диспетчер уведомлений. metrics может быть nil.
func NewDispatcher(outbox domain.OutboxRepository, logger *log.Entry, m *metrics.OrderMetrics) *Dispatcher {
	if logger == nil {
		logger = log.WithField("component", "notification-dispatcher")
	}
	return &Dispatcher{outbox: outbox, logger: logger, metrics: m}
}

// Dispatch ставит уведомления в outbox. Ошибки по отдельным уведомлениям объединяются.
func (d *Dispatcher) Dispatch(ctx context.Context, notifications ...domain.Notification) error {
	var errs []error
	for _, n := range notifications {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := d.enqueue(n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) enqueue(n domain.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	msg, err := d.outbox.Enqueue(domain.OutboxMessage{
		AggregateType: AggregateOrder,
		AggregateID:   n.OrderID,
		EventType:     string(n.Type),
		Payload:       payload,
	})
	if err != nil {
		d.logger.WithError(err).WithFields(log.Fields{
			"order_id":  n.OrderID,
			"type":      n.Type,
			"recipient": n.Recipient,
		}).Error("enqueue notification failed")
		return fmt.Errorf("enqueue %s notification: %w", n.Type, err)
	}

	d.metrics.RecordNotification(string(n.Type))
	d.logger.WithFields(log.Fields{
		"order_id":  n.OrderID,
		"type":      n.Type,
		"recipient": n.Recipient,
		"outbox_id": msg.ID,
	}).Debug("notification enqueued")
	return nil
}

// OrderPlaced уведомляет покупателя и каждого поставщика заказа.
func (d *Dispatcher) OrderPlaced(ctx context.Context, order domain.Order) error {
	notifications := []domain.Notification{
		build(domain.NotificationOrderPlaced, domain.RecipientCustomer, order.CustomerID, order.ID, ""),
	}
	for _, vendorID := range order.VendorIDs() {
		notifications = append(notifications,
			build(domain.NotificationOrderPlaced, domain.RecipientVendor, vendorID, order.ID, ""))
	}
	return d.Dispatch(ctx, notifications...)
}

// OrderCancelled предупреждает поставщиков об отмене покупателем.
func (d *Dispatcher) OrderCancelled(ctx context.Context, order domain.Order) error {
	notifications := make([]domain.Notification, 0, len(order.Items))
	for _, vendorID := range order.VendorIDs() {
		notifications = append(notifications,
			build(domain.NotificationOrderCancelled, domain.RecipientVendor, vendorID, order.ID, cancelledByCustomer))
	}
	return d.Dispatch(ctx, notifications...)
}

// OrderStatusChanged сообщает покупателю о шаге, сделанном поставщиком.
// Для статусов без уведомления ничего не делает.
func (d *Dispatcher) OrderStatusChanged(ctx context.Context, order domain.Order) error {
	var t domain.NotificationType
	switch order.Status {
	case domain.OrderStatusApproved:
		t = domain.NotificationOrderApproved
	case domain.OrderStatusRejected:
		t = domain.NotificationOrderRejected
	case domain.OrderStatusShipped:
		t = domain.NotificationOrderShipped
	case domain.OrderStatusDelivered:
		t = domain.NotificationOrderDelivered
	default:
		return nil
	}
	return d.Dispatch(ctx, build(t, domain.RecipientCustomer, order.CustomerID, order.ID, ""))
}

// ReturnRequested уведомляет поставщиков, чьи позиции попали в возврат.
func (d *Dispatcher) ReturnRequested(ctx context.Context, order domain.Order, vendorIDs []string, reason string) error {
	notifications := make([]domain.Notification, 0, len(vendorIDs))
	for _, vendorID := range vendorIDs {
		notifications = append(notifications,
			build(domain.NotificationReturnRequested, domain.RecipientVendor, vendorID, order.ID, reason))
	}
	return d.Dispatch(ctx, notifications...)
}

// ReturnReviewed сообщает покупателю решение поставщика по возврату.
func (d *Dispatcher) ReturnReviewed(ctx context.Context, order domain.Order, approved bool) error {
	t := domain.NotificationReturnRejected
	if approved {
		t = domain.NotificationReturnApproved
	}
	return d.Dispatch(ctx, build(t, domain.RecipientCustomer, order.CustomerID, order.ID, ""))
}

// ComplaintFiled уведомляет поставщика о жалобе.
func (d *Dispatcher) ComplaintFiled(ctx context.Context, order domain.Order, vendorID, message string) error {
	return d.Dispatch(ctx, build(domain.NotificationComplaintFiled, domain.RecipientVendor, vendorID, order.ID, message))
}
