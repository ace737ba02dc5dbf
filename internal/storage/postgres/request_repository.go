package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type requestRepository struct {
	db *sql.DB
}

// NewRequestRepository создаёт PostgreSQL-хранилище возвратов и жалоб.
func NewRequestRepository(store *Store) domain.RequestRepository {
	return &requestRepository{db: store.DB()}
}

func (r *requestRepository) CreateRefund(ctx context.Context, refund domain.RefundRequest) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	images, err := marshalImages(refund.ProofImages)
	if err != nil {
		return err
	}
	if refund.UpdatedAt.IsZero() {
		refund.UpdatedAt = refund.CreatedAt
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO refund_requests (
			id, order_item_id, order_id, vendor_id, customer_id, reason, proof_images, status, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		refund.ID, refund.OrderItemID, refund.OrderID, refund.VendorID, refund.CustomerID,
		refund.Reason, images, string(refund.Status), refund.CreatedAt, refund.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrRefundExists
		}
		return fmt.Errorf("insert refund request: %w", err)
	}
	return nil
}

func (r *requestRepository) ListRefunds(ctx context.Context, orderID string) ([]domain.RefundRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_item_id, order_id, vendor_id, customer_id, reason, proof_images, status, created_at, updated_at
		FROM refund_requests
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list refund requests: %w", err)
	}
	defer rows.Close()

	refunds := make([]domain.RefundRequest, 0)
	for rows.Next() {
		var (
			refund domain.RefundRequest
			images []byte
			status string
		)
		if err := rows.Scan(
			&refund.ID, &refund.OrderItemID, &refund.OrderID, &refund.VendorID, &refund.CustomerID,
			&refund.Reason, &images, &status, &refund.CreatedAt, &refund.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan refund request: %w", err)
		}
		refund.Status = domain.RefundStatus(status)
		if refund.ProofImages, err = unmarshalImages(images); err != nil {
			return nil, err
		}
		refunds = append(refunds, refund)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate refund requests: %w", err)
	}
	return refunds, nil
}

func (r *requestRepository) SettleRefund(ctx context.Context, id string, status domain.RefundStatus) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE refund_requests SET status = $1, updated_at = $2
		WHERE id = $3 AND status = 'PENDING'
	`, string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("settle refund request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var current string
	err = r.db.QueryRowContext(ctx, `SELECT status FROM refund_requests WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrRefundNotFound
	}
	if err != nil {
		return fmt.Errorf("load refund request: %w", err)
	}
	return domain.ErrRefundSettled
}

func (r *requestRepository) CreateComplaint(ctx context.Context, complaint domain.Complaint) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	images, err := marshalImages(complaint.ProofImages)
	if err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO complaints (id, order_id, customer_id, vendor_id, message, proof_images, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		complaint.ID, complaint.OrderID, complaint.CustomerID, complaint.VendorID,
		complaint.Message, images, string(complaint.Status), complaint.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert complaint: %w", err)
	}
	return nil
}

func (r *requestRepository) ListComplaints(ctx context.Context, orderID string) ([]domain.Complaint, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, customer_id, vendor_id, message, proof_images, status, created_at
		FROM complaints
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list complaints: %w", err)
	}
	defer rows.Close()

	complaints := make([]domain.Complaint, 0)
	for rows.Next() {
		var (
			complaint domain.Complaint
			images    []byte
			status    string
		)
		if err := rows.Scan(
			&complaint.ID, &complaint.OrderID, &complaint.CustomerID, &complaint.VendorID,
			&complaint.Message, &images, &status, &complaint.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan complaint: %w", err)
		}
		complaint.Status = domain.ComplaintStatus(status)
		if complaint.ProofImages, err = unmarshalImages(images); err != nil {
			return nil, err
		}
		complaints = append(complaints, complaint)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate complaints: %w", err)
	}
	return complaints, nil
}

func marshalImages(images []string) (string, error) {
	if images == nil {
		images = []string{}
	}
	data, err := json.Marshal(images)
	if err != nil {
		return "", fmt.Errorf("marshal proof images: %w", err)
	}
	return string(data), nil
}

func unmarshalImages(data []byte) ([]string, error) {
	var images []string
	if len(data) == 0 {
		return images, nil
	}
	if err := json.Unmarshal(data, &images); err != nil {
		return nil, fmt.Errorf("unmarshal proof images: %w", err)
	}
	return images, nil
}

var _ domain.RequestRepository = (*requestRepository)(nil)
