package grpcsvc

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/idempotency"
)

func TestCheckoutStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code codes.Code
		msg  string
	}{
		{"missing address", domain.MissingAddress(), codes.InvalidArgument, "Delivery address is missing."},
		{"invalid cart", domain.InvalidCart(domain.ErrItemsRequired), codes.InvalidArgument, domain.ErrItemsRequired.Error()},
		{"insufficient stock", domain.InsufficientStock("p-1", "Belt"), codes.FailedPrecondition, "Insufficient stock for: Belt"},
		{"conflict", domain.TransactionFailure(domain.ErrTransactionConflict), codes.Aborted, domain.ErrTransactionConflict.Error()},
		{"storage", domain.TransactionFailure(errors.New("disk full")), codes.Internal, "disk full"},
		{"raw error", errors.New(""), codes.Internal, "Order failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := status.Convert(checkoutStatus(tt.err))
			require.Equal(t, tt.code, st.Code())
			require.Equal(t, tt.msg, st.Message())
		})
	}
}

func TestDomainStatus(t *testing.T) {
	s := NewCheckoutService(nil, nil, nil, nil, nil)
	tests := []struct {
		err  error
		code codes.Code
	}{
		{fmt.Errorf("load: %w", domain.ErrOrderNotFound), codes.NotFound},
		{domain.ErrProductNotFound, codes.NotFound},
		{domain.ErrOrderForbidden, codes.PermissionDenied},
		{domain.ErrOrderTransitionInvalid, codes.FailedPrecondition},
		{domain.ErrOrderVersionConflict, codes.Aborted},
		{domain.ErrReasonRequired, codes.InvalidArgument},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{errors.New("boom"), codes.Internal},
	}
	for _, tt := range tests {
		require.Equal(t, tt.code, status.Code(s.domainStatus(tt.err, "test")), tt.err.Error())
	}
}

func TestDecodeReplay(t *testing.T) {
	resp, err := decodeReplay(&idempotency.Replay{Status: 0, Body: []byte(`{"success":true,"orderId":"o-1"}`)})
	require.NoError(t, err)
	require.Equal(t, "o-1", resp.OrderID)

	_, err = decodeReplay(&idempotency.Replay{Failed: true, Body: []byte(`{"code":9,"message":"Insufficient stock for: Belt"}`)})
	require.Equal(t, codes.FailedPrecondition, status.Code(err))

	_, err = decodeReplay(&idempotency.Replay{Failed: true, Body: []byte(`garbage`)})
	require.Equal(t, codes.Internal, status.Code(err))

	_, err = decodeReplay(&idempotency.Replay{Body: []byte(`garbage`)})
	require.Equal(t, codes.Internal, status.Code(err))
}
