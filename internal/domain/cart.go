package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// CartLine: строка корзины, которую присылает витрина при оформлении.
type CartLine struct {
	ProductID string          `json:"productId"`
	VendorID  string          `json:"vendorId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"price"`
}

// Address: адрес доставки. Хранится в заказе как JSON.
type Address struct {
	Name       string `json:"name"`
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Phone      string `json:"phone"`
}

// Validate проверяет минимальную структуру адреса: нужен получатель.
func (a *Address) Validate() error {
	if a == nil || strings.TrimSpace(a.Name) == "" {
		return ErrAddressNameRequired
	}
	return nil
}

// Marshal сериализует адрес в тот же JSON, который потом читают из заказа.
func (a Address) Marshal() (string, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("marshal address: %w", err)
	}
	return string(data), nil
}

// ParseAddress восстанавливает адрес из сохранённого blob.
func ParseAddress(blob string) (Address, error) {
	var addr Address
	if err := json.Unmarshal([]byte(blob), &addr); err != nil {
		return Address{}, fmt.Errorf("parse address: %w", err)
	}
	return addr, nil
}

// LinesTotal считает сумму строк корзины: цена × количество.
func LinesTotal(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total
}
