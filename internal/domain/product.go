package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product: товар поставщика со счётчиком остатка.
// Quantity никогда не уходит в минус: все списания условные.
type Product struct {
	ID        string
	VendorID  string
	Name      string
	Price     decimal.Decimal
	Quantity  int
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DisplayName возвращает имя товара для сообщений клиенту.
func (p *Product) DisplayName() string {
	if p == nil || p.Name == "" {
		return UnknownItemName
	}
	return p.Name
}
