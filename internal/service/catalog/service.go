// Package catalog управляет товарами поставщиков и их остатками вне оформления.
package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Service: операции каталога.
type Service struct {
	products domain.ProductRepository
	logger   *log.Entry
	newID    func() string
}

// Option настраивает Service.
type Option func(*Service)

// WithIDGenerator подменяет генератор идентификаторов товаров.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// NewService создаёт сервис каталога.
func NewService(products domain.ProductRepository, logger *log.Entry, opts ...Option) *Service {
	if logger == nil {
		logger = log.WithField("component", "catalog")
	}
	s := &Service{products: products, logger: logger, newID: uuid.NewString}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateProduct заводит товар поставщика с начальным остатком.
func (s *Service) CreateProduct(ctx context.Context, vendorID, name string, price decimal.Decimal, quantity int) (domain.Product, error) {
	vendorID = strings.TrimSpace(vendorID)
	name = strings.TrimSpace(name)
	switch {
	case vendorID == "":
		return domain.Product{}, domain.ErrVendorRequired
	case name == "":
		return domain.Product{}, domain.ErrProductNameRequired
	case price.IsNegative():
		return domain.Product{}, domain.ErrProductPriceInvalid
	case quantity < 0:
		return domain.Product{}, domain.ErrStockNegative
	}

	now := time.Now().UTC()
	product := domain.Product{
		ID:        s.newID(),
		VendorID:  vendorID,
		Name:      name,
		Price:     price.Round(2),
		Quantity:  quantity,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.products.Create(ctx, product); err != nil {
		return domain.Product{}, err
	}

	s.logger.WithFields(log.Fields{
		"product_id": product.ID,
		"vendor_id":  vendorID,
		"quantity":   quantity,
	}).Info("product created")
	return product, nil
}

// GetProduct возвращает товар.
func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	return s.products.Get(ctx, id)
}

// Restock меняет остаток на delta. Отрицательная delta списывает товар,
// но остаток никогда не уходит ниже нуля.
func (s *Service) Restock(ctx context.Context, productID string, delta int) (domain.Product, error) {
	product, err := s.products.AdjustStock(ctx, productID, delta)
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"product_id": productID,
			"delta":      delta,
		}).Warn("restock rejected")
		return domain.Product{}, err
	}

	s.logger.WithFields(log.Fields{
		"product_id": productID,
		"delta":      delta,
		"quantity":   product.Quantity,
	}).Info("stock adjusted")
	return product, nil
}
