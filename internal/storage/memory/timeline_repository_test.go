package memory_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func TestTimelineRepository_OrdersByTimeThenAppend(t *testing.T) {
	repo := memory.NewTimelineRepository()
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Append(domain.TimelineEvent{OrderID: "o1", Type: domain.TimelineStatusChanged,
		Actor: domain.VendorActor("v1"), Status: domain.OrderStatusApproved, Occurred: now.Add(time.Second)}))
	require.NoError(t, repo.Append(domain.TimelineEvent{OrderID: "o1", Type: domain.TimelineOrderPlaced,
		Status: domain.OrderStatusPending, Occurred: now}))
	require.NoError(t, repo.Append(domain.TimelineEvent{OrderID: "o1", Type: domain.TimelineComplaintFiled,
		Actor: domain.CustomerActor("c1"), Status: domain.OrderStatusApproved, Occurred: now.Add(time.Second)}))
	require.NoError(t, repo.Append(domain.TimelineEvent{OrderID: "o2", Type: domain.TimelineOrderPlaced, Occurred: now}))

	events, err := repo.List("o1")
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, domain.TimelineOrderPlaced, events[0].Type)
	require.Equal(t, domain.ActorSystem, events[0].Actor)
	require.Equal(t, domain.TimelineStatusChanged, events[1].Type)
	require.Equal(t, "vendor:v1", events[1].Actor)
	require.Equal(t, domain.TimelineComplaintFiled, events[2].Type)
	require.Equal(t, "customer:c1", events[2].Actor)
}

func TestTimelineRepository_EmptyAndInvalid(t *testing.T) {
	repo := memory.NewTimelineRepository()

	events, err := repo.List("missing")
	require.NoError(t, err)
	require.Empty(t, events)
	require.NotNil(t, events)

	require.Error(t, repo.Append(domain.TimelineEvent{Type: domain.TimelineOrderPlaced}))
}
