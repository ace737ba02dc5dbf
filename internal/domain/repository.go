package domain

import "context"

// OrderRepository описывает требования к хранилищу заказов после оформления.
// Создание заказа идёт только через CheckoutStore.
type OrderRepository interface {
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(ctx context.Context, id string) (Order, error)
	// ListByCustomer возвращает заказы клиента, новые первыми; limit <= 0: без ограничения.
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]Order, error)
	// ListByVendor возвращает заказы, в которых есть позиции поставщика.
	ListByVendor(ctx context.Context, vendorID string, limit int) ([]Order, error)
	// Save сохраняет статус заказа и статусы позиций с учётом optimistic locking.
	Save(ctx context.Context, order Order) error
}
