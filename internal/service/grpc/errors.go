package grpcsvc

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// checkoutStatus переводит отказ оформления в gRPC-статус с сообщением для покупателя.
func checkoutStatus(err error) error {
	oerr, ok := domain.AsOrderError(err)
	if !ok {
		oerr = domain.TransactionFailure(err)
	}

	code := codes.Internal
	switch oerr.Kind {
	case domain.KindMissingAddress, domain.KindInvalidCart:
		code = codes.InvalidArgument
	case domain.KindInsufficientStock:
		code = codes.FailedPrecondition
	case domain.KindTransactionFailure:
		if oerr.Retryable() {
			code = codes.Aborted
		}
	}
	return status.Error(code, oerr.UserMessage())
}

// domainStatus переводит ошибки заказов и каталога в gRPC-статус.
func (s *CheckoutService) domainStatus(err error, operation string) error {
	var code codes.Code
	switch {
	case errors.Is(err, domain.ErrOrderNotFound), errors.Is(err, domain.ErrProductNotFound):
		code = codes.NotFound
	case errors.Is(err, domain.ErrOrderForbidden):
		code = codes.PermissionDenied
	case errors.Is(err, domain.ErrOrderTransitionInvalid), errors.Is(err, domain.ErrNothingToReturn),
		errors.Is(err, domain.ErrStockNegative):
		code = codes.FailedPrecondition
	case errors.Is(err, domain.ErrOrderVersionConflict), errors.Is(err, domain.ErrTransactionConflict):
		code = codes.Aborted
	case errors.Is(err, domain.ErrCustomerRequired), errors.Is(err, domain.ErrStatusInvalid),
		errors.Is(err, domain.ErrReasonRequired), errors.Is(err, domain.ErrMessageRequired),
		errors.Is(err, domain.ErrTooManyProofImages):
		code = codes.InvalidArgument
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	default:
		s.logger.WithError(err).WithField("operation", operation).Error("request failed")
		return status.Error(codes.Internal, "internal error")
	}

	s.logger.WithError(err).WithFields(log.Fields{
		"operation": operation,
		"code":      code.String(),
	}).Debug("request rejected")
	return status.Error(code, err.Error())
}
