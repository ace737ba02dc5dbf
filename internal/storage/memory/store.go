package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Store: in-memory хранилище каталога, заказов и заявок клиента.
// Все сущности живут под одним мьютексом, поэтому транзакция оформления
// видит согласованный снимок и применяется целиком.
type Store struct {
	mu           sync.RWMutex
	products     map[string]domain.Product
	orders       map[string]domain.Order
	refunds      map[string]domain.RefundRequest
	refundByItem map[string]string
	complaints   map[string]domain.Complaint
}

// NewStore создаёт пустое хранилище для локальной разработки и тестов.
func NewStore() *Store {
	return &Store{
		products:     make(map[string]domain.Product),
		orders:       make(map[string]domain.Order),
		refunds:      make(map[string]domain.RefundRequest),
		refundByItem: make(map[string]string),
		complaints:   make(map[string]domain.Complaint),
	}
}

// RunInTx выполняет fn под эксклюзивной блокировкой.
// Изменения копятся в staging и попадают в Store только после успешного fn
// и если ctx ещё не отменён.
func (s *Store) RunInTx(ctx context.Context, fn func(tx domain.CheckoutTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &checkoutTx{
		store:    s,
		products: make(map[string]domain.Product),
	}
	if err := fn(tx); err != nil {
		return err
	}
	// Дедлайн мог истечь во время fn: тогда ничего не применяем.
	if err := ctx.Err(); err != nil {
		return err
	}

	for id, product := range tx.products {
		s.products[id] = product
	}
	for _, order := range tx.orders {
		s.orders[order.ID] = order
	}
	return nil
}

// Ping всегда успешен; нужен для health-check наравне с postgres.
func (s *Store) Ping(context.Context) error {
	return nil
}

// checkoutTx: staging-слой одной транзакции оформления.
type checkoutTx struct {
	store    *Store
	products map[string]domain.Product
	orders   []domain.Order
}

func (tx *checkoutTx) InsertOrder(ctx context.Context, order domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, exists := tx.store.orders[order.ID]; exists {
		return fmt.Errorf("order %s already exists: %w", order.ID, domain.ErrOrderVersionConflict)
	}
	for _, staged := range tx.orders {
		if staged.ID == order.ID {
			return fmt.Errorf("order %s already exists: %w", order.ID, domain.ErrOrderVersionConflict)
		}
	}
	tx.orders = append(tx.orders, order.Clone())
	return nil
}

func (tx *checkoutTx) LockProduct(ctx context.Context, productID string) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}
	return tx.current(productID)
}

func (tx *checkoutTx) DecrementStock(ctx context.Context, productID string, qty int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	product, err := tx.current(productID)
	if err != nil {
		return err
	}
	if qty <= 0 || product.Quantity < qty {
		return domain.ErrStockNegative
	}

	product.Quantity -= qty
	product.Version++
	product.UpdatedAt = time.Now().UTC()
	tx.products[productID] = product
	return nil
}

// current возвращает значение с учётом уже сделанных в транзакции списаний.
func (tx *checkoutTx) current(productID string) (domain.Product, error) {
	if product, ok := tx.products[productID]; ok {
		return product, nil
	}
	product, ok := tx.store.products[productID]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

var (
	_ domain.CheckoutStore = (*Store)(nil)
	_ domain.CheckoutTx    = (*checkoutTx)(nil)
)
