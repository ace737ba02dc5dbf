package domain

import "time"

// MaxProofImages: лимит ссылок на фото при возврате или жалобе.
const MaxProofImages = 5

// RefundStatus: состояние заявки на возврат позиции.
type RefundStatus string

const (
	RefundStatusPending  RefundStatus = "PENDING"
	RefundStatusApproved RefundStatus = "APPROVED"
	RefundStatusRejected RefundStatus = "REJECTED"
)

// RefundRequest: заявка на возврат одной позиции заказа.
type RefundRequest struct {
	ID          string
	OrderItemID string
	OrderID     string
	VendorID    string
	CustomerID  string
	Reason      string
	ProofImages []string
	Status      RefundStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ComplaintStatus: состояние жалобы.
type ComplaintStatus string

const (
	ComplaintStatusOpen     ComplaintStatus = "OPEN"
	ComplaintStatusResolved ComplaintStatus = "RESOLVED"
)

// Complaint: жалоба клиента по заказу.
type Complaint struct {
	ID          string
	OrderID     string
	CustomerID  string
	VendorID    string
	Message     string
	ProofImages []string
	Status      ComplaintStatus
	CreatedAt   time.Time
}
