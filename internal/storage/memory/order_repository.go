package memory

import (
	"context"
	"sort"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// orderRepositoryInMemory: представление заказов поверх общего Store.
type orderRepositoryInMemory struct {
	store *Store
}

// NewOrderRepository возвращает in-memory репозиторий заказов.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepositoryInMemory{store: store}
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepositoryInMemory) Get(_ context.Context, id string) (domain.Order, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	order, ok := r.store.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order.Clone(), nil
}

// ListByCustomer возвращает заказы клиента, ограничивая выборку limit (если >0).
func (r *orderRepositoryInMemory) ListByCustomer(_ context.Context, customerID string, limit int) ([]domain.Order, error) {
	return r.list(limit, func(order domain.Order) bool {
		return order.CustomerID == customerID
	}), nil
}

// ListByVendor возвращает заказы, где есть хотя бы одна позиция поставщика.
func (r *orderRepositoryInMemory) ListByVendor(_ context.Context, vendorID string, limit int) ([]domain.Order, error) {
	return r.list(limit, func(order domain.Order) bool {
		return order.HasVendor(vendorID)
	}), nil
}

func (r *orderRepositoryInMemory) list(limit int, match func(domain.Order) bool) []domain.Order {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := make([]domain.Order, 0)
	for _, order := range r.store.orders {
		if !match(order) {
			continue
		}
		result = append(result, order.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

// Save перезаписывает статус заказа и позиций, проверяя версию (optimistic locking).
func (r *orderRepositoryInMemory) Save(_ context.Context, order domain.Order) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	current, ok := r.store.orders[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if current.Version != order.Version {
		return domain.ErrOrderVersionConflict
	}

	// Сумма, адрес и состав позиций после оформления не меняются.
	updated := current.Clone()
	updated.Status = order.Status
	updated.UpdatedAt = order.UpdatedAt
	statuses := make(map[string]domain.ItemStatus, len(order.Items))
	for _, item := range order.Items {
		statuses[item.ID] = item.Status
	}
	for i := range updated.Items {
		if status, ok := statuses[updated.Items[i].ID]; ok {
			updated.Items[i].Status = status
		}
	}
	updated.Version++
	r.store.orders[order.ID] = updated
	return nil
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
