package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestService_CheckoutNotifiesAfterCommit(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "p1", "Brake Pad", 2)
	notifier := &recordingNotifier{}
	svc := NewService(f.engine, notifier, loggerForTests())

	result, err := svc.Checkout(context.Background(), request(line("p1", 1, "5.00")))
	require.NoError(t, err)
	require.True(t, result.Success)
	require.NotEmpty(t, result.OrderID)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, svc.Shutdown(ctx))

	require.Equal(t, 1, notifier.count())
	require.Equal(t, result.OrderID, notifier.orders[0].ID)
}

func TestService_FailedCheckoutDoesNotNotify(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "p1", "Brake Pad", 0)
	notifier := &recordingNotifier{}
	svc := NewService(f.engine, notifier, loggerForTests())

	result, err := svc.Checkout(context.Background(), request(line("p1", 1, "5.00")))
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	require.Equal(t, Result{Error: "Insufficient stock for: Brake Pad"}, result)

	require.NoError(t, svc.Shutdown(context.Background()))
	require.Zero(t, notifier.count())
}

func TestService_NotificationFailureKeepsOrder(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "p1", "Brake Pad", 1)
	notifier := &recordingNotifier{err: errors.New("outbox unavailable")}
	svc := NewService(f.engine, notifier, loggerForTests())

	result, err := svc.Checkout(context.Background(), request(line("p1", 1, "5.00")))
	require.NoError(t, err)
	require.NoError(t, svc.Shutdown(context.Background()))

	_, err = f.orders.Get(context.Background(), result.OrderID)
	require.NoError(t, err)
	require.Zero(t, f.stock(t, "p1"))
}

func TestService_ShutdownHonoursContext(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "p1", "Brake Pad", 1)
	notifier := &recordingNotifier{delay: 200 * time.Millisecond}
	svc := NewService(f.engine, notifier, loggerForTests())

	_, err := svc.Checkout(context.Background(), request(line("p1", 1, "5.00")))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, svc.Shutdown(ctx), context.DeadlineExceeded)

	// Дожидаемся фоновой рассылки, чтобы goleak не увидел её горутину.
	require.NoError(t, svc.Shutdown(context.Background()))
	require.Equal(t, 1, notifier.count())
}

func TestService_SkipsDispatchAfterShutdown(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "p1", "Brake Pad", 1)
	notifier := &recordingNotifier{}
	svc := NewService(f.engine, notifier, loggerForTests())
	require.NoError(t, svc.Shutdown(context.Background()))

	result, err := svc.Checkout(context.Background(), request(line("p1", 1, "5.00")))
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Zero(t, notifier.count())
}

func TestResultFrom(t *testing.T) {
	require.Equal(t, Result{Success: true, OrderID: "o-1"}, ResultFrom("o-1", nil))
	require.Equal(t, Result{Error: "Delivery address is missing."}, ResultFrom("", domain.MissingAddress()))
	require.Equal(t, Result{Error: "Order failed"}, ResultFrom("", domain.TransactionFailure(nil)))
	require.Equal(t, Result{Error: "boom"}, ResultFrom("", errors.New("boom")))
}
