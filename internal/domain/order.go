package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает жизненный цикл заказа витрины.
type OrderStatus string

const (
	// OrderStatusPending: заказ создан при оформлении, поставщик ещё не подтвердил его.
	OrderStatusPending OrderStatus = "PENDING"
	// OrderStatusApproved: поставщик подтвердил заказ.
	OrderStatusApproved OrderStatus = "APPROVED"
	// OrderStatusShipped: заказ передан в доставку.
	OrderStatusShipped OrderStatus = "SHIPPED"
	// OrderStatusDelivered: заказ получен клиентом.
	OrderStatusDelivered OrderStatus = "DELIVERED"
	// OrderStatusCancelled: клиент отменил заказ.
	OrderStatusCancelled OrderStatus = "CANCELLED"
	// OrderStatusReturnRequested: по заказу открыт запрос на возврат.
	OrderStatusReturnRequested OrderStatus = "RETURN_REQUESTED"
	// OrderStatusReturned: возврат одобрен.
	OrderStatusReturned OrderStatus = "RETURNED"
	// OrderStatusRejected: поставщик отклонил заказ.
	OrderStatusRejected OrderStatus = "REJECTED"
	// OrderStatusCompleted: заказ закрыт без возврата.
	OrderStatusCompleted OrderStatus = "COMPLETED"
)

// orderTransitions задаёт допустимые переходы статусов после создания заказа.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:         {OrderStatusApproved, OrderStatusRejected, OrderStatusCancelled},
	OrderStatusApproved:        {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:         {OrderStatusDelivered},
	OrderStatusDelivered:       {OrderStatusCompleted, OrderStatusReturnRequested},
	OrderStatusCompleted:       {OrderStatusReturnRequested},
	OrderStatusReturnRequested: {OrderStatusReturned, OrderStatusCompleted},
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusApproved, OrderStatusShipped, OrderStatusDelivered,
		OrderStatusCancelled, OrderStatusReturnRequested, OrderStatusReturned,
		OrderStatusRejected, OrderStatusCompleted:
		return true
	default:
		return false
	}
}

// CanTransitionTo сообщает, разрешён ли переход в next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal возвращает true для статусов, из которых переходов нет.
func (s OrderStatus) Terminal() bool {
	return s.Valid() && len(orderTransitions[s]) == 0
}

// ItemStatus описывает состояние отдельной позиции. Пустое значение: статус по умолчанию.
type ItemStatus string

const (
	ItemStatusDefault         ItemStatus = ""
	ItemStatusReturnRequested ItemStatus = "RETURN_REQUESTED"
	ItemStatusReturned        ItemStatus = "RETURNED"
	ItemStatusShipped         ItemStatus = "SHIPPED"
	ItemStatusDelivered       ItemStatus = "DELIVERED"
)

// InReturn сообщает, находится ли позиция в процессе возврата.
func (s ItemStatus) InReturn() bool {
	return s == ItemStatusReturnRequested || s == ItemStatusReturned
}

// OrderItem представляет одну позицию заказа.
type OrderItem struct {
	ID        string
	OrderID   string
	ProductID string
	VendorID  string
	Quantity  int
	// Price копируется из строки корзины без сверки с каталогом.
	Price  decimal.Decimal
	Status ItemStatus
}

// Order агрегирует заказ и его позиции.
type Order struct {
	ID           string
	CustomerID   string
	CustomerName string
	TotalAmount  decimal.Decimal
	Status       OrderStatus
	// Address хранит адрес доставки в сериализованном (JSON) виде.
	Address   string
	Items     []OrderItem
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerID == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if o.TotalAmount.IsNegative() {
		errs = append(errs, ErrAmountNegative)
	}
	if !o.Status.Valid() {
		errs = append(errs, ErrStatusInvalid)
	}

	for _, item := range o.Items {
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.Price.IsNegative() {
			errs = append(errs, ErrItemPriceInvalid)
		}
	}

	return errs
}

// VendorIDs возвращает уникальных поставщиков заказа в порядке первого появления.
func (o *Order) VendorIDs() []string {
	seen := make(map[string]struct{}, len(o.Items))
	result := make([]string, 0, len(o.Items))
	for _, item := range o.Items {
		if item.VendorID == "" {
			continue
		}
		if _, ok := seen[item.VendorID]; ok {
			continue
		}
		seen[item.VendorID] = struct{}{}
		result = append(result, item.VendorID)
	}
	return result
}

// HasVendor проверяет, что хотя бы одна позиция принадлежит поставщику.
func (o *Order) HasVendor(vendorID string) bool {
	for _, item := range o.Items {
		if item.VendorID == vendorID {
			return true
		}
	}
	return false
}

// Clone возвращает копию заказа с отдельным срезом позиций.
func (o Order) Clone() Order {
	o.Items = append([]OrderItem(nil), o.Items...)
	return o
}
