package grpcsvc

import (
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/orders"
)

type PlaceOrderRequest struct {
	BuyerID      string            `json:"buyerId"`
	CustomerName string            `json:"customerName,omitempty"`
	CartLines    []domain.CartLine `json:"cartLines"`
	TotalAmount  decimal.Decimal   `json:"totalAmount"`
	Address      *domain.Address   `json:"address,omitempty"`
}

type PlaceOrderResponse struct {
	Success bool   `json:"success"`
	OrderID string `json:"orderId,omitempty"`
}

type GetOrderRequest struct {
	OrderID string `json:"orderId"`
}

type GetOrderResponse struct {
	Order    orders.View           `json:"order"`
	Timeline []orders.TimelineView `json:"timeline"`
}

// ListOrdersRequest выбирает заказы клиента или поставщика; ровно одно из полей обязательно.
type ListOrdersRequest struct {
	CustomerID string `json:"customerId,omitempty"`
	VendorID   string `json:"vendorId,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

type ListOrdersResponse struct {
	Orders []orders.View `json:"orders"`
}

type CancelOrderRequest struct {
	OrderID    string `json:"orderId"`
	CustomerID string `json:"customerId,omitempty"`
}

type CancelOrderResponse struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

type GetProductRequest struct {
	ProductID string `json:"productId"`
}

type GetProductResponse struct {
	Product catalog.ProductView `json:"product"`
}
