package notification

import (
	"fmt"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// messageText возвращает текст уведомления; extra: причина или комментарий.
func messageText(t domain.NotificationType, role domain.RecipientRole, orderID, extra string) string {
	switch t {
	case domain.NotificationOrderPlaced:
		if role == domain.RecipientVendor {
			return fmt.Sprintf("You have received a new order! Order #%s has been placed. Please go to your Vendor Dashboard to pack and ship the items.", orderID)
		}
		return "Thank you for your purchase! We have received your order and are getting it ready. You will be notified once it ships."
	case domain.NotificationOrderApproved:
		return fmt.Sprintf("Your order #%s has been confirmed by the seller.", orderID)
	case domain.NotificationOrderRejected:
		return fmt.Sprintf("Unfortunately the seller could not accept order #%s.", orderID)
	case domain.NotificationOrderShipped:
		return "Great news! Your order has been shipped and is on its way to you."
	case domain.NotificationOrderDelivered:
		return "Your order has been delivered! We hope you enjoy your purchase."
	case domain.NotificationOrderCancelled:
		if extra != "" {
			return fmt.Sprintf("Alert: Order #%s has been cancelled. Reason: %s", orderID, extra)
		}
		return fmt.Sprintf("This is a confirmation that Order #%s has been cancelled as requested.", orderID)
	case domain.NotificationReturnRequested:
		return fmt.Sprintf("Action Required: A return has been requested for Order #%s. Reason: %s", orderID, extra)
	case domain.NotificationReturnApproved:
		return "Your return request has been APPROVED. We have initiated the refund process."
	case domain.NotificationReturnRejected:
		return fmt.Sprintf("Your return request for Order #%s was rejected.", orderID)
	case domain.NotificationComplaintFiled:
		return fmt.Sprintf("A complaint has been filed for Order #%s: %s", orderID, extra)
	default:
		return "You have a new notification regarding your account."
	}
}

func build(t domain.NotificationType, role domain.RecipientRole, recipient, orderID, extra string) domain.Notification {
	return domain.Notification{
		Type:          t,
		Recipient:     recipient,
		RecipientRole: role,
		OrderID:       orderID,
		Subject:       domain.NotificationSubject(t, role, orderID),
		Message:       messageText(t, role, orderID, extra),
	}
}
