package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type productRepository struct {
	db *sql.DB
}

// NewProductRepository создаёт PostgreSQL-реализацию каталога.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepository{db: store.DB()}
}

func (r *productRepository) Create(ctx context.Context, product domain.Product) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (id, vendor_id, name, price, quantity, version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, product.ID, product.VendorID, product.Name, product.Price, product.Quantity, product.Version, product.CreatedAt, now)
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return domain.ErrProductExists
	case isCheckViolation(err):
		return domain.ErrStockNegative
	default:
		return fmt.Errorf("insert product: %w", err)
	}
}

func (r *productRepository) Get(ctx context.Context, id string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	product, err := scanProduct(r.db.QueryRowContext(ctx, `
		SELECT id, vendor_id, name, price, quantity, version, created_at, updated_at
		FROM products
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}
	return product, nil
}

// AdjustStock меняет остаток одним условным UPDATE.
func (r *productRepository) AdjustStock(ctx context.Context, id string, delta int) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	product, err := scanProduct(r.db.QueryRowContext(ctx, `
		UPDATE products
		SET quantity = quantity + $2,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $1
		  AND quantity + $2 >= 0
		RETURNING id, vendor_id, name, price, quantity, version, created_at, updated_at
	`, id, delta))
	if err == nil {
		return product, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, classifyError(fmt.Errorf("adjust stock: %w", err))
	}

	// Строка не обновилась: либо товара нет, либо остаток ушёл бы в минус.
	if _, getErr := r.Get(ctx, id); getErr != nil {
		return domain.Product{}, getErr
	}
	return domain.Product{}, domain.ErrStockNegative
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var product domain.Product
	err := row.Scan(
		&product.ID, &product.VendorID, &product.Name, &product.Price,
		&product.Quantity, &product.Version, &product.CreatedAt, &product.UpdatedAt,
	)
	return product, err
}

var _ domain.ProductRepository = (*productRepository)(nil)
