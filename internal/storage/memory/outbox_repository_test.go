package memory

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestOutboxRepository_EnqueueAndPull(t *testing.T) {
	repo := NewOutboxRepository()

	first, err := repo.Enqueue(domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   "order-1",
		EventType:     string(domain.NotificationOrderPlaced),
		Payload:       []byte(`{"recipient":"vendor-1"}`),
	})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if first.ID == "" {
		t.Fatal("expected generated id")
	}
	second, _ := repo.Enqueue(domain.OutboxMessage{AggregateType: "order", AggregateID: "order-1"})

	pending, err := repo.PullPending(10)
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != first.ID || pending[1].ID != second.ID {
		t.Fatalf("expected messages in enqueue order, got %+v", pending)
	}

	limited, _ := repo.PullPending(1)
	if len(limited) != 1 {
		t.Fatalf("expected 1 message, got %d", len(limited))
	}
}

func TestOutboxRepository_MarkSentAndFailed(t *testing.T) {
	repo := NewOutboxRepository()

	saved, err := repo.Enqueue(domain.OutboxMessage{AggregateType: "order"})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	if err := repo.MarkSent(saved.ID); err != nil {
		t.Fatalf("mark sent failed: %v", err)
	}
	if err := repo.MarkFailed(saved.ID); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if repo.Attempts(saved.ID) != 2 {
		t.Fatalf("expected 2 attempts, got %d", repo.Attempts(saved.ID))
	}
	if err := repo.MarkFailed("missing"); err == nil {
		t.Fatal("expected error for missing record")
	}
}

func TestOutboxRepository_Stats(t *testing.T) {
	repo := NewOutboxRepository()

	stats, err := repo.Stats()
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.PendingCount != 0 || !stats.OldestPendingAt.IsZero() {
		t.Fatalf("expected empty stats, got %+v", stats)
	}

	before := time.Now().UTC()
	first, _ := repo.Enqueue(domain.OutboxMessage{AggregateType: "order"})
	_, _ = repo.Enqueue(domain.OutboxMessage{AggregateType: "order"})
	_ = repo.MarkSent(first.ID)

	stats, _ = repo.Stats()
	if stats.PendingCount != 1 {
		t.Fatalf("expected 1 pending, got %d", stats.PendingCount)
	}
	if stats.OldestPendingAt.Before(before) {
		t.Fatalf("unexpected oldest pending time %s", stats.OldestPendingAt)
	}
}
