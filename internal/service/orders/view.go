package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// ItemView: позиция заказа в ответах API.
type ItemView struct {
	ID        string          `json:"id"`
	ProductID string          `json:"productId"`
	VendorID  string          `json:"vendorId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Status    string          `json:"status,omitempty"`
}

// View: заказ в ответах API. Адрес отдаётся разобранным.
type View struct {
	ID           string          `json:"id"`
	CustomerID   string          `json:"customerId"`
	CustomerName string          `json:"customerName"`
	TotalAmount  decimal.Decimal `json:"totalAmount"`
	Status       string          `json:"status"`
	Address      *domain.Address `json:"address,omitempty"`
	Items        []ItemView      `json:"items"`
	Version      int64           `json:"version"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// TimelineView: событие таймлайна в ответах API.
type TimelineView struct {
	Type     string    `json:"type"`
	Actor    string    `json:"actor,omitempty"`
	Status   string    `json:"status,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred"`
}

// NewView строит представление заказа.
func NewView(order domain.Order) View {
	view := View{
		ID:           order.ID,
		CustomerID:   order.CustomerID,
		CustomerName: order.CustomerName,
		TotalAmount:  order.TotalAmount,
		Status:       string(order.Status),
		Items:        make([]ItemView, 0, len(order.Items)),
		Version:      order.Version,
		CreatedAt:    order.CreatedAt,
		UpdatedAt:    order.UpdatedAt,
	}
	if order.Address != "" {
		if addr, err := domain.ParseAddress(order.Address); err == nil {
			view.Address = &addr
		}
	}
	for _, item := range order.Items {
		view.Items = append(view.Items, ItemView{
			ID:        item.ID,
			ProductID: item.ProductID,
			VendorID:  item.VendorID,
			Quantity:  item.Quantity,
			Price:     item.Price,
			Status:    string(item.Status),
		})
	}
	return view
}

// NewViews строит представления списка заказов.
func NewViews(orders []domain.Order) []View {
	views := make([]View, 0, len(orders))
	for _, order := range orders {
		views = append(views, NewView(order))
	}
	return views
}

// NewTimelineViews строит представления событий таймлайна.
func NewTimelineViews(events []domain.TimelineEvent) []TimelineView {
	views := make([]TimelineView, 0, len(events))
	for _, e := range events {
		views = append(views, TimelineView{
			Type:     e.Type,
			Actor:    e.Actor,
			Status:   string(e.Status),
			Reason:   e.Reason,
			Occurred: e.Occurred,
		})
	}
	return views
}
