package checkout

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func loggerForTests() *log.Entry {
	logger := log.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(log.DebugLevel)
	return logger.WithField("component", "checkout-test")
}

type fixture struct {
	store    *memory.Store
	products domain.ProductRepository
	orders   domain.OrderRepository
	registry *prometheus.Registry
	engine   *Engine
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	store := memory.NewStore()
	registry := prometheus.NewRegistry()
	m := metrics.NewCheckoutMetricsWithRegisterer(registry)
	var seq atomic.Int64
	base := []Option{
		WithLogger(loggerForTests()),
		WithMetrics(m),
		WithIDGenerator(func() string { return fmt.Sprintf("id-%d", seq.Add(1)) }),
	}
	return &fixture{
		store:    store,
		products: memory.NewProductRepository(store),
		orders:   memory.NewOrderRepository(store),
		registry: registry,
		engine:   NewEngine(store, append(base, opts...)...),
	}
}

func (f *fixture) seed(t *testing.T, id, name string, qty int) {
	t.Helper()
	require.NoError(t, f.products.Create(context.Background(), domain.Product{
		ID:       id,
		VendorID: "vendor-" + id,
		Name:     name,
		Price:    decimal.RequireFromString("9.99"),
		Quantity: qty,
	}))
}

func (f *fixture) stock(t *testing.T, id string) int {
	t.Helper()
	product, err := f.products.Get(context.Background(), id)
	require.NoError(t, err)
	return product.Quantity
}

func (f *fixture) orderCount(t *testing.T) int {
	t.Helper()
	orders, err := f.orders.ListByCustomer(context.Background(), "buyer-1", 0)
	require.NoError(t, err)
	return len(orders)
}

// attempts возвращает значение storefront_checkout_attempts_total{result}.
func (f *fixture) attempts(t *testing.T, result string) float64 {
	t.Helper()
	families, err := f.registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != "storefront_checkout_attempts_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "result" && label.GetValue() == result {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func line(productID string, qty int, price string) domain.CartLine {
	return domain.CartLine{
		ProductID: productID,
		VendorID:  "vendor-" + productID,
		Quantity:  qty,
		UnitPrice: decimal.RequireFromString(price),
	}
}

func validAddress() *domain.Address {
	return &domain.Address{Name: "Jane Doe", Street: "1 Main St", City: "Springfield", State: "IL", PostalCode: "62701", Phone: "555-0100"}
}

func request(lines ...domain.CartLine) PlaceOrderRequest {
	return PlaceOrderRequest{
		BuyerID:     "buyer-1",
		Lines:       lines,
		TotalAmount: domain.LinesTotal(lines),
		Address:     validAddress(),
	}
}

// failingStore возвращает ошибку из RunInTx после выполнения fn.
type failingStore struct {
	inner domain.CheckoutStore
	err   error
}

func (s failingStore) RunInTx(ctx context.Context, fn func(tx domain.CheckoutTx) error) error {
	return s.inner.RunInTx(ctx, func(tx domain.CheckoutTx) error {
		if err := fn(tx); err != nil {
			return err
		}
		return s.err
	})
}

// recordingNotifier запоминает уведомления о новых заказах.
type recordingNotifier struct {
	mu     sync.Mutex
	orders []domain.Order
	delay  time.Duration
	err    error
}

func (n *recordingNotifier) OrderPlaced(_ context.Context, order domain.Order) error {
	if n.delay > 0 {
		time.Sleep(n.delay)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.orders = append(n.orders, order)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.orders)
}
