package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type checkoutTx struct {
	tx *sql.Tx
}

func (c *checkoutTx) InsertOrder(ctx context.Context, order domain.Order) error {
	_, err := c.tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, customer_id, customer_name, total_amount, status, address, version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		order.ID, order.CustomerID, order.CustomerName, order.TotalAmount, string(order.Status),
		order.Address, order.Version, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("order %s already exists: %w", order.ID, domain.ErrOrderVersionConflict)
		}
		return classifyError(fmt.Errorf("insert order: %w", err))
	}

	for i, item := range order.Items {
		if _, err := c.tx.ExecContext(ctx, `
			INSERT INTO order_items (
				id, order_id, position, product_id, vendor_id, quantity, price, status
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`,
			item.ID, order.ID, i, item.ProductID, item.VendorID, item.Quantity, item.Price, string(item.Status),
		); err != nil {
			return classifyError(fmt.Errorf("insert order item %s: %w", item.ID, err))
		}
	}

	return nil
}

func (c *checkoutTx) LockProduct(ctx context.Context, productID string) (domain.Product, error) {
	var product domain.Product
	err := c.tx.QueryRowContext(ctx, `
		SELECT id, vendor_id, name, price, quantity, version, created_at, updated_at
		FROM products
		WHERE id = $1
		FOR UPDATE
	`, productID).Scan(
		&product.ID, &product.VendorID, &product.Name, &product.Price,
		&product.Quantity, &product.Version, &product.CreatedAt, &product.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, classifyError(fmt.Errorf("lock product %s: %w", productID, err))
	}
	return product, nil
}

// DecrementStock списывает остаток только при достаточном количестве.
func (c *checkoutTx) DecrementStock(ctx context.Context, productID string, qty int) error {
	res, err := c.tx.ExecContext(ctx, `
		UPDATE products
		SET quantity = quantity - $2,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $1
		  AND quantity >= $2
	`, productID, qty)
	if err != nil {
		if isCheckViolation(err) {
			return domain.ErrStockNegative
		}
		return classifyError(fmt.Errorf("decrement stock %s: %w", productID, err))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrStockNegative
	}
	return nil
}

var _ domain.CheckoutTx = (*checkoutTx)(nil)
