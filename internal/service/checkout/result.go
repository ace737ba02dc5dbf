package checkout

import "github.com/vladislavdragonenkov/storefront/internal/domain"

// Result: ответ оформления для внешних вызывающих: {success, orderId} или {success:false, error}.
type Result struct {
	Success bool   `json:"success"`
	OrderID string `json:"orderId,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ResultFrom переводит результат движка в безопасный для пользователя ответ.
func ResultFrom(orderID string, err error) Result {
	if err == nil {
		return Result{Success: true, OrderID: orderID}
	}
	if oerr, ok := domain.AsOrderError(err); ok {
		return Result{Error: oerr.UserMessage()}
	}
	return Result{Error: domain.TransactionFailure(err).UserMessage()}
}
