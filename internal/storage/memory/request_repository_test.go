package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func TestRequestRepository_Refunds(t *testing.T) {
	repo := memory.NewRequestRepository(memory.NewStore())
	ctx := context.Background()

	refund := domain.RefundRequest{
		ID:          "refund-1",
		OrderItemID: "item-1",
		OrderID:     "order-1",
		Reason:      "broken",
		ProofImages: []string{"a.png"},
		Status:      domain.RefundStatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	if err := repo.CreateRefund(ctx, refund); err != nil {
		t.Fatalf("create refund: %v", err)
	}

	dup := refund
	dup.ID = "refund-2"
	if err := repo.CreateRefund(ctx, dup); !errors.Is(err, domain.ErrRefundExists) {
		t.Fatalf("expected ErrRefundExists, got %v", err)
	}

	if err := repo.SettleRefund(ctx, "refund-1", domain.RefundStatusApproved); err != nil {
		t.Fatalf("settle refund: %v", err)
	}
	if err := repo.SettleRefund(ctx, "refund-1", domain.RefundStatusRejected); !errors.Is(err, domain.ErrRefundSettled) {
		t.Fatalf("expected ErrRefundSettled, got %v", err)
	}
	if err := repo.SettleRefund(ctx, "missing", domain.RefundStatusApproved); !errors.Is(err, domain.ErrRefundNotFound) {
		t.Fatalf("expected ErrRefundNotFound, got %v", err)
	}

	refunds, err := repo.ListRefunds(ctx, "order-1")
	if err != nil {
		t.Fatalf("list refunds: %v", err)
	}
	if len(refunds) != 1 || refunds[0].Status != domain.RefundStatusApproved {
		t.Fatalf("unexpected refunds: %+v", refunds)
	}
}

func TestRequestRepository_Complaints(t *testing.T) {
	repo := memory.NewRequestRepository(memory.NewStore())
	ctx := context.Background()

	for i, id := range []string{"c-1", "c-2"} {
		err := repo.CreateComplaint(ctx, domain.Complaint{
			ID:        id,
			OrderID:   "order-1",
			Message:   "late",
			Status:    domain.ComplaintStatusOpen,
			CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("create complaint: %v", err)
		}
	}

	complaints, err := repo.ListComplaints(ctx, "order-1")
	if err != nil {
		t.Fatalf("list complaints: %v", err)
	}
	if len(complaints) != 2 || complaints[0].ID != "c-1" {
		t.Fatalf("unexpected complaints: %+v", complaints)
	}
}
