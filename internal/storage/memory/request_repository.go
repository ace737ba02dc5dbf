package memory

import (
	"context"
	"sort"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type requestRepositoryInMemory struct {
	store *Store
}

// NewRequestRepository возвращает in-memory хранилище возвратов и жалоб.
func NewRequestRepository(store *Store) domain.RequestRepository {
	return &requestRepositoryInMemory{store: store}
}

func (r *requestRepositoryInMemory) CreateRefund(_ context.Context, refund domain.RefundRequest) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.refundByItem[refund.OrderItemID]; exists {
		return domain.ErrRefundExists
	}
	refund.ProofImages = append([]string(nil), refund.ProofImages...)
	r.store.refunds[refund.ID] = refund
	r.store.refundByItem[refund.OrderItemID] = refund.ID
	return nil
}

func (r *requestRepositoryInMemory) ListRefunds(_ context.Context, orderID string) ([]domain.RefundRequest, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := make([]domain.RefundRequest, 0)
	for _, refund := range r.store.refunds {
		if refund.OrderID != orderID {
			continue
		}
		refund.ProofImages = append([]string(nil), refund.ProofImages...)
		result = append(result, refund)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (r *requestRepositoryInMemory) SettleRefund(_ context.Context, id string, status domain.RefundStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	refund, ok := r.store.refunds[id]
	if !ok {
		return domain.ErrRefundNotFound
	}
	if refund.Status != domain.RefundStatusPending {
		return domain.ErrRefundSettled
	}
	refund.Status = status
	refund.UpdatedAt = time.Now().UTC()
	r.store.refunds[id] = refund
	return nil
}

func (r *requestRepositoryInMemory) CreateComplaint(_ context.Context, complaint domain.Complaint) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	complaint.ProofImages = append([]string(nil), complaint.ProofImages...)
	r.store.complaints[complaint.ID] = complaint
	return nil
}

func (r *requestRepositoryInMemory) ListComplaints(_ context.Context, orderID string) ([]domain.Complaint, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := make([]domain.Complaint, 0)
	for _, complaint := range r.store.complaints {
		if complaint.OrderID == orderID {
			complaint.ProofImages = append([]string(nil), complaint.ProofImages...)
			result = append(result, complaint)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

var _ domain.RequestRepository = (*requestRepositoryInMemory)(nil)
