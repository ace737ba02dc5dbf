package idempotency

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func TestGuard_Lifecycle(t *testing.T) {
	t.Parallel()

	guard := NewGuard(memory.NewIdempotencyRepository(), time.Hour, nil)

	replay, err := guard.Begin("key-1", "hash-a")
	require.NoError(t, err)
	require.Nil(t, replay)

	_, err = guard.Begin("key-1", "hash-a")
	require.ErrorIs(t, err, ErrInFlight)

	_, err = guard.Begin("key-1", "hash-b")
	require.ErrorIs(t, err, ErrKeyReused)

	require.NoError(t, guard.Complete("key-1", 201, []byte(`{"success":true}`), false))

	replay, err = guard.Begin("key-1", "hash-a")
	require.NoError(t, err)
	require.NotNil(t, replay)
	require.Equal(t, 201, replay.Status)
	require.False(t, replay.Failed)
	require.JSONEq(t, `{"success":true}`, string(replay.Body))
}

func TestGuard_ReplaysFailures(t *testing.T) {
	t.Parallel()

	guard := NewGuard(memory.NewIdempotencyRepository(), 0, nil)

	_, err := guard.Begin("key-2", "hash")
	require.NoError(t, err)
	require.NoError(t, guard.Complete("key-2", 409, []byte(`{"success":false}`), true))

	replay, err := guard.Begin("key-2", "hash")
	require.NoError(t, err)
	require.True(t, replay.Failed)
	require.Equal(t, 409, replay.Status)
}

func TestGuard_Errors(t *testing.T) {
	t.Parallel()

	guard := NewGuard(memory.NewIdempotencyRepository(), time.Hour, nil)

	_, err := guard.Begin("", "hash")
	require.Error(t, err)
	require.Error(t, guard.Complete("missing", 200, nil, false))
}

func TestGuard_SettleReleasesTransientFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		runErr error
	}{
		{name: "retryable conflict", runErr: domain.TransactionFailure(domain.ErrTransactionConflict)},
		{name: "store outage", runErr: domain.TransactionFailure(errors.New("connection refused"))},
		{name: "client went away", runErr: domain.TransactionFailure(context.Canceled)},
		{name: "deadline", runErr: fmt.Errorf("place order: %w", context.DeadlineExceeded)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			guard := NewGuard(memory.NewIdempotencyRepository(), time.Hour, silent())
			_, err := guard.Begin("key", "hash")
			require.NoError(t, err)

			require.NoError(t, guard.Settle("key", 409, []byte(`{"success":false}`), tc.runErr))

			replay, err := guard.Begin("key", "hash")
			require.NoError(t, err)
			require.Nil(t, replay, "released key must be processed again")
		})
	}
}

func TestGuard_SettleStoresFinalOutcomes(t *testing.T) {
	t.Parallel()

	guard := NewGuard(memory.NewIdempotencyRepository(), time.Hour, silent())

	_, err := guard.Begin("rejected", "hash")
	require.NoError(t, err)
	require.NoError(t, guard.Settle("rejected", 409, []byte(`{"success":false}`),
		domain.InsufficientStock("p-1", "Oil Filter")))

	replay, err := guard.Begin("rejected", "hash")
	require.NoError(t, err)
	require.NotNil(t, replay)
	require.True(t, replay.Failed)

	_, err = guard.Begin("placed", "hash")
	require.NoError(t, err)
	require.NoError(t, guard.Settle("placed", 201, []byte(`{"success":true}`), nil))

	replay, err = guard.Begin("placed", "hash")
	require.NoError(t, err)
	require.NotNil(t, replay)
	require.False(t, replay.Failed)
}

// failingFinish не может сохранить ответ, но умеет освобождать ключ.
type failingFinish struct {
	domain.IdempotencyRepository
}

func (failingFinish) MarkFailed(string, []byte, int) error {
	return errors.New("redis: connection pool timeout")
}

func TestGuard_SettleReleasesWhenFailureCannotBeStored(t *testing.T) {
	t.Parallel()

	repo := failingFinish{IdempotencyRepository: memory.NewIdempotencyRepository()}
	guard := NewGuard(repo, time.Hour, silent())

	_, err := guard.Begin("key", "hash")
	require.NoError(t, err)

	err = guard.Settle("key", 400, []byte(`{}`), domain.MissingAddress())
	require.ErrorContains(t, err, "connection pool timeout")

	replay, err := guard.Begin("key", "hash")
	require.NoError(t, err, "key must not stay in processing")
	require.Nil(t, replay)
}

func TestGuard_ReleaseKeepsFinishedKeys(t *testing.T) {
	t.Parallel()

	guard := NewGuard(memory.NewIdempotencyRepository(), time.Hour, silent())

	_, err := guard.Begin("key", "hash")
	require.NoError(t, err)
	require.NoError(t, guard.Complete("key", 201, []byte(`{}`), false))
	require.NoError(t, guard.Release("key"))
	require.NoError(t, guard.Release("missing"))

	replay, err := guard.Begin("key", "hash")
	require.NoError(t, err)
	require.NotNil(t, replay)
	require.Equal(t, 201, replay.Status)
}

func TestTransient(t *testing.T) {
	t.Parallel()

	require.False(t, Transient(nil))
	require.False(t, Transient(domain.MissingAddress()))
	require.False(t, Transient(domain.InvalidCart(errors.New("quantity must be positive"))))
	require.False(t, Transient(domain.InsufficientStock("p-1", "")))
	require.True(t, Transient(domain.TransactionFailure(domain.ErrTransactionConflict)))
	require.True(t, Transient(context.Canceled))
	require.True(t, Transient(fmt.Errorf("commit: %w", domain.ErrTransactionConflict)))
}

func TestRequestHash(t *testing.T) {
	t.Parallel()

	type payload struct {
		BuyerID string
		Lines   []string
	}

	a, err := RequestHash("checkout", payload{BuyerID: "b-1", Lines: []string{"p1"}})
	require.NoError(t, err)
	b, err := RequestHash("checkout", payload{BuyerID: "b-1", Lines: []string{"p1"}})
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Len(t, a, 64)

	other, err := RequestHash("checkout", payload{BuyerID: "b-2", Lines: []string{"p1"}})
	require.NoError(t, err)
	require.NotEqual(t, a, other)

	scoped, err := RequestHash("cancel", payload{BuyerID: "b-1", Lines: []string{"p1"}})
	require.NoError(t, err)
	require.NotEqual(t, a, scoped)

	_, err = RequestHash("checkout", make(chan int))
	require.Error(t, err)
}
