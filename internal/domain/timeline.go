package domain

import "time"

// Типы событий таймлайна заказа.
const (
	TimelineOrderPlaced     = "OrderPlaced"
	TimelineStatusChanged   = "OrderStatusChanged"
	TimelineReturnRequested = "ReturnRequested"
	TimelineReturnReviewed  = "ReturnReviewed"
	TimelineComplaintFiled  = "ComplaintFiled"
)

// ActorSystem: событие без участника-человека (оформление, фоновые задачи).
const ActorSystem = "system"

// TimelineEvent описывает событие в жизненном цикле заказа.
// Status: статус заказа сразу после события.
type TimelineEvent struct {
	OrderID  string
	Type     string
	Actor    string
	Status   OrderStatus
	Reason   string
	Occurred time.Time
}

// CustomerActor и VendorActor формируют поле Actor для участников заказа.
func CustomerActor(customerID string) string { return "customer:" + customerID }

func VendorActor(vendorID string) string { return "vendor:" + vendorID }
