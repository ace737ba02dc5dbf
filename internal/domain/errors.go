package domain

import "errors"

var (
	// Ошибка отсутствующего идентификатора клиента.
	ErrCustomerRequired = errors.New("customer_id is required")
	// Ошибка отсутствия хотя бы одного товара в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка отрицательной суммы заказа.
	ErrAmountNegative = errors.New("total amount must be non-negative")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item quantity must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrAmountMismatch = errors.New("order total does not match cart lines")
	// Ошибка неизвестного статуса заказа.
	ErrStatusInvalid = errors.New("order status is invalid")
	// Ошибка адреса без получателя.
	ErrAddressNameRequired = errors.New("address recipient name is required")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrOrderTransitionInvalid: переход статуса запрещён жизненным циклом.
	ErrOrderTransitionInvalid = errors.New("order status transition is not allowed")
	// ErrOrderForbidden: заказ не принадлежит клиенту или поставщику.
	ErrOrderForbidden = errors.New("order does not belong to the caller")
	// ErrProductNotFound возвращается, если товара нет в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrProductExists: товар с таким ID уже заведён.
	ErrProductExists = errors.New("product already exists")
	// ErrVendorRequired: товар без поставщика.
	ErrVendorRequired = errors.New("vendor_id is required")
	// ErrProductNameRequired: товар без названия.
	ErrProductNameRequired = errors.New("product name is required")
	// ErrProductPriceInvalid: отрицательная цена товара.
	ErrProductPriceInvalid = errors.New("product price must be non-negative")
	// ErrStockNegative: изменение остатка увело бы количество ниже нуля.
	ErrStockNegative = errors.New("stock quantity cannot go negative")
	// ErrTransactionConflict: хранилище отклонило транзакцию (serialization/deadlock), запрос можно повторить.
	ErrTransactionConflict = errors.New("transaction conflict, retry the request")
	// ErrReasonRequired: для возврата нужна причина.
	ErrReasonRequired = errors.New("reason is required")
	// ErrMessageRequired: жалоба без текста.
	ErrMessageRequired = errors.New("message is required")
	// ErrTooManyProofImages: превышен лимит вложений.
	ErrTooManyProofImages = errors.New("too many proof images")
	// ErrNothingToReturn: все позиции заказа уже в возврате.
	ErrNothingToReturn = errors.New("no items left to return")
	// ErrRefundExists: по позиции уже есть заявка на возврат.
	ErrRefundExists = errors.New("refund request already exists for item")
	// ErrRefundNotFound: нет открытых заявок на возврат.
	ErrRefundNotFound = errors.New("refund request not found")
	// ErrRefundSettled: заявка уже одобрена или отклонена.
	ErrRefundSettled = errors.New("refund request already settled")
	// ErrOutboxPublish: ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

var (
	// ErrIdempotencyKeyRequired: пустой idempotency-key.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired: пустой хэш запроса.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyAlreadyExists: ключ уже использовался с тем же запросом.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch: ключ уже использовался с другим запросом.
	ErrIdempotencyHashMismatch = errors.New("idempotency key reused with different request")
	// ErrIdempotencyKeyNotFound: записи по ключу нет.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
)

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}

// IsIdempotencyConflict проверяет, что ключ уже занят (тем же или другим запросом).
func IsIdempotencyConflict(err error) bool {
	return errors.Is(err, ErrIdempotencyKeyAlreadyExists) || errors.Is(err, ErrIdempotencyHashMismatch)
}
