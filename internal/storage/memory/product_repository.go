package memory

import (
	"context"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type productRepositoryInMemory struct {
	store *Store
}

// NewProductRepository возвращает in-memory каталог поверх общего Store.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepositoryInMemory{store: store}
}

func (r *productRepositoryInMemory) Create(_ context.Context, product domain.Product) error {
	if product.Quantity < 0 {
		return domain.ErrStockNegative
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.products[product.ID]; exists {
		return domain.ErrProductExists
	}
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now
	r.store.products[product.ID] = product
	return nil
}

func (r *productRepositoryInMemory) Get(_ context.Context, id string) (domain.Product, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	product, ok := r.store.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

// AdjustStock применяет delta только если остаток не станет отрицательным.
func (r *productRepositoryInMemory) AdjustStock(_ context.Context, id string, delta int) (domain.Product, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	product, ok := r.store.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	if product.Quantity+delta < 0 {
		return domain.Product{}, domain.ErrStockNegative
	}

	product.Quantity += delta
	product.Version++
	product.UpdatedAt = time.Now().UTC()
	r.store.products[id] = product
	return product, nil
}

var _ domain.ProductRepository = (*productRepositoryInMemory)(nil)
