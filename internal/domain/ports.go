package domain

import (
	"context"
	"time"
)

// CheckoutTx: операции, доступные движку оформления внутри одной транзакции.
type CheckoutTx interface {
	// InsertOrder сохраняет заголовок заказа вместе со всеми позициями.
	InsertOrder(ctx context.Context, order Order) error
	// LockProduct перечитывает товар и блокирует его до конца транзакции.
	// Возвращает ErrProductNotFound, если товара нет.
	LockProduct(ctx context.Context, productID string) (Product, error)
	// DecrementStock условно уменьшает остаток; при нехватке возвращает ErrStockNegative.
	DecrementStock(ctx context.Context, productID string, qty int) error
}

// CheckoutStore открывает атомарную область для оформления заказа.
type CheckoutStore interface {
	// RunInTx выполняет fn в транзакции. При nil транзакция фиксируется, при ошибке откатывается без побочных эффектов.
	RunInTx(ctx context.Context, fn func(tx CheckoutTx) error) error
}

// ProductRepository: доступ к каталогу вне оформления заказа.
type ProductRepository interface {
	Create(ctx context.Context, product Product) error
	Get(ctx context.Context, id string) (Product, error)
	// AdjustStock меняет остаток на delta, не допуская отрицательного значения.
	AdjustStock(ctx context.Context, id string, delta int) (Product, error)
}

// RequestRepository хранит заявки на возврат и жалобы.
type RequestRepository interface {
	// CreateRefund возвращает ErrRefundExists, если по позиции уже есть заявка.
	CreateRefund(ctx context.Context, refund RefundRequest) error
	ListRefunds(ctx context.Context, orderID string) ([]RefundRequest, error)
	// SettleRefund переводит заявку из PENDING в status.
	// Уже закрытая заявка даёт ErrRefundSettled, отсутствующая ErrRefundNotFound.
	SettleRefund(ctx context.Context, id string, status RefundStatus) error
	CreateComplaint(ctx context.Context, complaint Complaint) error
	ListComplaints(ctx context.Context, orderID string) ([]Complaint, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(orderID string) ([]TimelineEvent, error)
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key string, responseBody []byte, httpStatus int) error
	MarkFailed(key string, responseBody []byte, httpStatus int) error
	// Release удаляет ключ в статусе processing, чтобы повтор обработал запрос заново.
	// Завершённую или отсутствующую запись не трогает.
	Release(key string) error
	DeleteExpired(before time.Time, limit int) (int, error)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
