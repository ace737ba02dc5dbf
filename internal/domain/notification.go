package domain

import "fmt"

// NotificationType: тип уведомления, которое рассылается после изменения заказа.
type NotificationType string

const (
	NotificationOrderPlaced     NotificationType = "ORDER_PLACED"
	NotificationOrderApproved   NotificationType = "ORDER_APPROVED"
	NotificationOrderRejected   NotificationType = "ORDER_REJECTED"
	NotificationOrderShipped    NotificationType = "ORDER_SHIPPED"
	NotificationOrderDelivered  NotificationType = "ORDER_DELIVERED"
	NotificationOrderCancelled  NotificationType = "ORDER_CANCELLED"
	NotificationReturnRequested NotificationType = "RETURN_REQUESTED"
	NotificationReturnApproved  NotificationType = "RETURN_APPROVED"
	NotificationReturnRejected  NotificationType = "RETURN_REJECTED"
	NotificationComplaintFiled  NotificationType = "COMPLAINT_FILED"
)

// RecipientRole: кому адресовано уведомление.
type RecipientRole string

const (
	RecipientCustomer RecipientRole = "customer"
	RecipientVendor   RecipientRole = "vendor"
	RecipientAdmin    RecipientRole = "admin"
)

// Notification: готовое к доставке уведомление.
type Notification struct {
	Type          NotificationType `json:"type"`
	Recipient     string           `json:"recipient"`
	RecipientRole RecipientRole    `json:"recipient_role"`
	OrderID       string           `json:"order_id"`
	Subject       string           `json:"subject"`
	Message       string           `json:"message,omitempty"`
}

// NotificationSubject формирует тему письма по типу и адресату.
func NotificationSubject(t NotificationType, role RecipientRole, orderID string) string {
	switch t {
	case NotificationOrderPlaced:
		if role == RecipientVendor {
			return fmt.Sprintf("New Order Received! (#%s)", orderID)
		}
		return fmt.Sprintf("Order Confirmation #%s", orderID)
	case NotificationOrderApproved:
		return fmt.Sprintf("Order #%s Confirmed", orderID)
	case NotificationOrderRejected:
		return fmt.Sprintf("Order #%s Was Rejected", orderID)
	case NotificationOrderShipped:
		return fmt.Sprintf("Your Order #%s has Shipped!", orderID)
	case NotificationOrderDelivered:
		return fmt.Sprintf("Order #%s Delivered Successfully", orderID)
	case NotificationOrderCancelled:
		return fmt.Sprintf("Order #%s Cancellation Alert", orderID)
	case NotificationReturnRequested:
		return fmt.Sprintf("Return Request for Order #%s", orderID)
	case NotificationReturnApproved:
		return fmt.Sprintf("Return Approved for Order #%s", orderID)
	case NotificationReturnRejected:
		return fmt.Sprintf("Return Update for Order #%s", orderID)
	case NotificationComplaintFiled:
		return fmt.Sprintf("Complaint Filed for Order #%s", orderID)
	default:
		return "Notification from FixKart"
	}
}
