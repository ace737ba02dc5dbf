// Package checkout реализует атомарное оформление заказа со списанием остатков.
package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// PlaceOrderRequest: вход оформления: покупатель, корзина, итог и адрес.
type PlaceOrderRequest struct {
	BuyerID string
	// CustomerName по умолчанию берётся из Address.Name.
	CustomerName string
	Lines        []domain.CartLine
	TotalAmount  decimal.Decimal
	Address      *domain.Address
}

// Engine выполняет оформление одной транзакцией хранилища.
// Повторов нет: конфликт возвращается как retryable transaction_failure.
type Engine struct {
	store        domain.CheckoutStore
	logger       *log.Entry
	metrics      *metrics.CheckoutMetrics
	strictTotals bool
	now          func() time.Time
	newID        func() string
}

// Option настраивает Engine.
type Option func(*Engine)

// WithStrictTotals включает сверку TotalAmount с суммой строк корзины.
func WithStrictTotals(strict bool) Option {
	return func(e *Engine) { e.strictTotals = strict }
}

func WithLogger(logger *log.Entry) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithMetrics(m *metrics.CheckoutMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator подменяет генератор идентификаторов заказа и позиций.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) {
		if newID != nil {
			e.newID = newID
		}
	}
}

// NewEngine создаёт движок оформления поверх транзакционного хранилища.
func NewEngine(store domain.CheckoutStore, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		logger: log.WithField("component", "checkout-engine"),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// PlaceOrder создаёт заказ и списывает остатки либо не меняет ничего.
// Ошибка всегда *domain.OrderError.
func (e *Engine) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (string, error) {
	order, err := e.Place(ctx, req)
	if err != nil {
		return "", err
	}
	return order.ID, nil
}

// Place: то же, что PlaceOrder, но возвращает зафиксированный заказ целиком.
func (e *Engine) Place(ctx context.Context, req PlaceOrderRequest) (domain.Order, error) {
	started := time.Now()
	finish := e.metrics.Started()

	order, oerr := e.place(ctx, req)
	if oerr != nil {
		finish(string(oerr.Kind), time.Since(started))
		e.logFailure(req, oerr)
		return domain.Order{}, oerr
	}

	finish(metrics.ResultSuccess, time.Since(started))
	units := 0
	for _, item := range order.Items {
		units += item.Quantity
	}
	e.metrics.RecordCommitted(len(order.Items), units)
	e.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"buyer_id": req.BuyerID,
		"items":    len(order.Items),
		"total":    order.TotalAmount.String(),
	}).Info("order placed")
	return order, nil
}

func (e *Engine) place(ctx context.Context, req PlaceOrderRequest) (domain.Order, *domain.OrderError) {
	if oerr := e.validate(req); oerr != nil {
		return domain.Order{}, oerr
	}

	order, err := e.buildOrder(req)
	if err != nil {
		return domain.Order{}, domain.InvalidCart(err)
	}

	err = e.store.RunInTx(ctx, func(tx domain.CheckoutTx) error {
		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}
		// Строки обрабатываются в порядке корзины; повторный товар видит
		// уже уменьшенный в этой транзакции остаток.
		for _, line := range req.Lines {
			if err := reserveLine(ctx, tx, line); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, toOrderError(ctx, err)
	}
	return order, nil
}

func (e *Engine) validate(req PlaceOrderRequest) *domain.OrderError {
	if req.Address.Validate() != nil {
		return domain.MissingAddress()
	}
	if len(req.Lines) == 0 {
		return domain.InvalidCart(domain.ErrItemsRequired)
	}
	for _, line := range req.Lines {
		if line.Quantity <= 0 {
			return domain.InvalidCart(domain.ErrItemQtyInvalid)
		}
		if line.UnitPrice.IsNegative() {
			return domain.InvalidCart(domain.ErrItemPriceInvalid)
		}
	}
	if req.TotalAmount.IsNegative() {
		return domain.InvalidCart(domain.ErrAmountNegative)
	}
	if e.strictTotals && !req.TotalAmount.Equal(domain.LinesTotal(req.Lines)) {
		return domain.InvalidCart(domain.ErrAmountMismatch)
	}
	return nil
}

func (e *Engine) buildOrder(req PlaceOrderRequest) (domain.Order, error) {
	address, err := req.Address.Marshal()
	if err != nil {
		return domain.Order{}, err
	}

	customerName := req.CustomerName
	if customerName == "" {
		customerName = req.Address.Name
	}

	now := e.now()
	order := domain.Order{
		ID:           e.newID(),
		CustomerID:   req.BuyerID,
		CustomerName: customerName,
		TotalAmount:  req.TotalAmount,
		Status:       domain.OrderStatusPending,
		Address:      address,
		Items:        make([]domain.OrderItem, 0, len(req.Lines)),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, line := range req.Lines {
		order.Items = append(order.Items, domain.OrderItem{
			ID:        e.newID(),
			OrderID:   order.ID,
			ProductID: line.ProductID,
			VendorID:  line.VendorID,
			Quantity:  line.Quantity,
			Price:     line.UnitPrice,
		})
	}

	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, errors.Join(errs...)
	}
	return order, nil
}

// reserveLine перечитывает товар под блокировкой и условно списывает остаток.
func reserveLine(ctx context.Context, tx domain.CheckoutTx, line domain.CartLine) error {
	product, err := tx.LockProduct(ctx, line.ProductID)
	if errors.Is(err, domain.ErrProductNotFound) {
		return domain.InsufficientStock(line.ProductID, "")
	}
	if err != nil {
		return err
	}
	if product.Quantity < line.Quantity {
		return domain.InsufficientStock(product.ID, product.DisplayName())
	}

	err = tx.DecrementStock(ctx, line.ProductID, line.Quantity)
	if errors.Is(err, domain.ErrStockNegative) {
		return domain.InsufficientStock(product.ID, product.DisplayName())
	}
	return err
}

// toOrderError приводит любую ошибку транзакции к *domain.OrderError.
func toOrderError(ctx context.Context, err error) *domain.OrderError {
	if oerr, ok := domain.AsOrderError(err); ok {
		return oerr
	}
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		err = errors.Join(ctxErr, err)
	}
	return domain.TransactionFailure(err)
}

func (e *Engine) logFailure(req PlaceOrderRequest, oerr *domain.OrderError) {
	entry := e.logger.WithFields(log.Fields{
		"buyer_id": req.BuyerID,
		"kind":     oerr.Kind,
		"lines":    len(req.Lines),
	})
	if oerr.ProductID != "" {
		entry = entry.WithField("product_id", oerr.ProductID)
	}
	if oerr.Cause != nil {
		entry = entry.WithError(oerr.Cause)
	}

	if oerr.Kind == domain.KindTransactionFailure {
		entry.WithField("retryable", oerr.Retryable()).Error("checkout transaction failed")
		return
	}
	entry.Warn("checkout rejected")
}
