package domain

import (
	"errors"
	"fmt"
)

// UnknownItemName подставляется, когда товар не найден и имя определить нельзя.
const UnknownItemName = "Unknown Item"

// OrderErrorKind различает причины отказа при оформлении заказа.
type OrderErrorKind string

const (
	KindMissingAddress     OrderErrorKind = "missing_address"
	KindInsufficientStock  OrderErrorKind = "insufficient_stock"
	KindInvalidCart        OrderErrorKind = "invalid_cart"
	KindTransactionFailure OrderErrorKind = "transaction_failure"
)

// Сентинелы видов ошибки, с ними сравнивают через errors.Is.
var (
	ErrMissingAddress     = errors.New("delivery address is missing")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidCart        = errors.New("invalid cart")
	ErrTransactionFailure = errors.New("order transaction failed")
)

const (
	msgMissingAddress    = "Delivery address is missing."
	msgInsufficientStock = "Insufficient stock for: "
	msgOrderFailed       = "Order failed"
)

// OrderError: единственный тип ошибки, который движок оформления отдаёт наружу.
type OrderError struct {
	Kind        OrderErrorKind
	ProductID   string
	ProductName string
	Cause       error
}

// MissingAddress создаёт ошибку отсутствующего адреса.
func MissingAddress() *OrderError {
	return &OrderError{Kind: KindMissingAddress}
}

// InsufficientStock создаёт ошибку нехватки остатка по товару.
func InsufficientStock(productID, productName string) *OrderError {
	if productName == "" {
		productName = UnknownItemName
	}
	return &OrderError{Kind: KindInsufficientStock, ProductID: productID, ProductName: productName}
}

// InvalidCart оборачивает ошибку валидации корзины.
func InvalidCart(cause error) *OrderError {
	return &OrderError{Kind: KindInvalidCart, Cause: cause}
}

// TransactionFailure оборачивает любую иную ошибку атомарного шага.
func TransactionFailure(cause error) *OrderError {
	return &OrderError{Kind: KindTransactionFailure, Cause: cause}
}

func (e *OrderError) Error() string {
	switch e.Kind {
	case KindMissingAddress:
		return ErrMissingAddress.Error()
	case KindInsufficientStock:
		return fmt.Sprintf("%s: product %s (%s)", ErrInsufficientStock, e.ProductID, e.ProductName)
	case KindInvalidCart:
		if e.Cause != nil {
			return fmt.Sprintf("%s: %v", ErrInvalidCart, e.Cause)
		}
		return ErrInvalidCart.Error()
	default:
		if e.Cause != nil {
			return fmt.Sprintf("%s: %v", ErrTransactionFailure, e.Cause)
		}
		return ErrTransactionFailure.Error()
	}
}

// Unwrap отдаёт первопричину, чтобы работали errors.Is(err, context.Canceled) и т.п.
func (e *OrderError) Unwrap() error {
	return e.Cause
}

// Is сопоставляет ошибку с сентинелом её вида.
func (e *OrderError) Is(target error) bool {
	switch target {
	case ErrMissingAddress:
		return e.Kind == KindMissingAddress
	case ErrInsufficientStock:
		return e.Kind == KindInsufficientStock
	case ErrInvalidCart:
		return e.Kind == KindInvalidCart
	case ErrTransactionFailure:
		return e.Kind == KindTransactionFailure
	}
	return false
}

// UserMessage: текст, который можно показать покупателю.
func (e *OrderError) UserMessage() string {
	switch e.Kind {
	case KindMissingAddress:
		return msgMissingAddress
	case KindInsufficientStock:
		return msgInsufficientStock + e.ProductName
	default:
		if e.Cause != nil && e.Cause.Error() != "" {
			return e.Cause.Error()
		}
		return msgOrderFailed
	}
}

// Retryable сообщает, что повтор того же запроса может пройти.
func (e *OrderError) Retryable() bool {
	return e.Kind == KindTransactionFailure && errors.Is(e.Cause, ErrTransactionConflict)
}

// AsOrderError достаёт *OrderError из цепочки.
func AsOrderError(err error) (*OrderError, bool) {
	var oe *OrderError
	if errors.As(err, &oe) {
		return oe, true
	}
	return nil, false
}
