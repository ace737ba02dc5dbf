package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// checkoutStatus выбирает HTTP-код для отказа оформления.
func checkoutStatus(err error) int {
	oerr, ok := domain.AsOrderError(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch oerr.Kind {
	case domain.KindMissingAddress, domain.KindInvalidCart:
		return http.StatusBadRequest
	case domain.KindInsufficientStock:
		return http.StatusConflict
	default:
		if oerr.Retryable() {
			return http.StatusConflict
		}
		return http.StatusInternalServerError
	}
}

// writeDomainError переводит ошибки заказов и каталога в ответ.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error, operation string) {
	var code int
	switch {
	case errors.Is(err, domain.ErrOrderNotFound), errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrRefundNotFound):
		code = http.StatusNotFound
	case errors.Is(err, domain.ErrOrderForbidden):
		code = http.StatusForbidden
	case errors.Is(err, domain.ErrOrderTransitionInvalid), errors.Is(err, domain.ErrNothingToReturn),
		errors.Is(err, domain.ErrStockNegative), errors.Is(err, domain.ErrOrderVersionConflict),
		errors.Is(err, domain.ErrTransactionConflict), errors.Is(err, domain.ErrProductExists),
		errors.Is(err, domain.ErrRefundExists), errors.Is(err, domain.ErrRefundSettled):
		code = http.StatusConflict
	case errors.Is(err, domain.ErrCustomerRequired), errors.Is(err, domain.ErrStatusInvalid),
		errors.Is(err, domain.ErrReasonRequired), errors.Is(err, domain.ErrMessageRequired),
		errors.Is(err, domain.ErrTooManyProofImages), errors.Is(err, domain.ErrVendorRequired),
		errors.Is(err, domain.ErrProductNameRequired), errors.Is(err, domain.ErrProductPriceInvalid),
		errors.Is(err, domain.ErrItemsRequired):
		code = http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		code = http.StatusGatewayTimeout
	default:
		h.logger.WithError(err).WithField("operation", operation).Error("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.logger.WithError(err).WithFields(log.Fields{
		"operation": operation,
		"status":    code,
	}).Debug("request rejected")
	writeError(w, code, err.Error())
}
