package catalog

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// ProductView: товар в ответах API.
type ProductView struct {
	ID        string          `json:"id"`
	VendorID  string          `json:"vendorId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Version   int64           `json:"version"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// NewProductView строит представление товара.
func NewProductView(p domain.Product) ProductView {
	return ProductView{
		ID:        p.ID,
		VendorID:  p.VendorID,
		Name:      p.Name,
		Price:     p.Price,
		Quantity:  p.Quantity,
		Version:   p.Version,
		UpdatedAt: p.UpdatedAt,
	}
}
