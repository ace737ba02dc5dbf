// Package orders ведёт заказ после оформления: отмена, статусы поставщика,
// возвраты и жалобы. Все изменения сохраняются с optimistic locking.
package orders

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// Notifier ставит уведомления по событиям заказа.
type Notifier interface {
	OrderPlaced(ctx context.Context, order domain.Order) error
	OrderCancelled(ctx context.Context, order domain.Order) error
	OrderStatusChanged(ctx context.Context, order domain.Order) error
	ReturnRequested(ctx context.Context, order domain.Order, vendorIDs []string, reason string) error
	ReturnReviewed(ctx context.Context, order domain.Order, approved bool) error
	ComplaintFiled(ctx context.Context, order domain.Order, vendorID, message string) error
}

// vendorTransitions: переходы, которые поставщик выполняет сам.
var vendorTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending:   {domain.OrderStatusApproved, domain.OrderStatusRejected},
	domain.OrderStatusApproved:  {domain.OrderStatusShipped},
	domain.OrderStatusShipped:   {domain.OrderStatusDelivered},
	domain.OrderStatusDelivered: {domain.OrderStatusCompleted},
}

// Service: жизненный цикл заказа после оформления.
type Service struct {
	orders   domain.OrderRepository
	requests domain.RequestRepository
	timeline domain.TimelineRepository
	notifier Notifier
	metrics  *metrics.OrderMetrics
	logger   *log.Entry
	retry    RetryConfig
	now      func() time.Time
	newID    func() string
}

// Option настраивает Service.
type Option func(*Service)

// WithMetrics подключает метрики переходов и конфликтов.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRetryConfig задаёт политику повторов при конфликте версий.
func WithRetryConfig(cfg RetryConfig) Option {
	return func(s *Service) { s.retry = cfg.normalized() }
}

// WithClock подменяет часы (для тестов).
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator подменяет генератор идентификаторов заявок.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// NewService создаёт сервис. notifier может быть nil.
func NewService(orders domain.OrderRepository, requests domain.RequestRepository, timeline domain.TimelineRepository, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		orders:   orders,
		requests: requests,
		timeline: timeline,
		notifier: notifier,
		logger:   log.WithField("component", "order-lifecycle"),
		retry:    DefaultRetryConfig(),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get возвращает заказ.
func (s *Service) Get(ctx context.Context, id string) (domain.Order, error) {
	return s.orders.Get(ctx, id)
}

// ListByCustomer возвращает заказы клиента, новые первыми.
func (s *Service) ListByCustomer(ctx context.Context, customerID string, limit int) ([]domain.Order, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, domain.ErrCustomerRequired
	}
	return s.orders.ListByCustomer(ctx, customerID, limit)
}

// ListByVendor возвращает заказы с позициями поставщика.
func (s *Service) ListByVendor(ctx context.Context, vendorID string, limit int) ([]domain.Order, error) {
	if strings.TrimSpace(vendorID) == "" {
		return nil, domain.ErrOrderForbidden
	}
	return s.orders.ListByVendor(ctx, vendorID, limit)
}

// Timeline возвращает события заказа в порядке появления.
func (s *Service) Timeline(ctx context.Context, id string) ([]domain.TimelineEvent, error) {
	if _, err := s.orders.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.timeline.List(id)
}

// OrderPlaced фиксирует новый заказ в таймлайне и рассылает ORDER_PLACED.
// Вызывается сервисом оформления после коммита.
func (s *Service) OrderPlaced(ctx context.Context, order domain.Order) error {
	s.metrics.RecordTransition(string(order.Status))
	s.appendTimeline(order, domain.TimelineOrderPlaced, domain.ActorSystem, "order placed")
	if s.notifier == nil {
		return nil
	}
	return s.notifier.OrderPlaced(ctx, order)
}

// Cancel отменяет заказ клиента. Остаток на складе не возвращается.
func (s *Service) Cancel(ctx context.Context, orderID, customerID string) (domain.Order, error) {
	order, err := s.mutate(ctx, "cancel", orderID, func(order *domain.Order) error {
		if customerID != "" && order.CustomerID != customerID {
			return domain.ErrOrderForbidden
		}
		if order.Status != domain.OrderStatusPending && order.Status != domain.OrderStatusApproved {
			return fmt.Errorf("cancel from %s: %w", order.Status, domain.ErrOrderTransitionInvalid)
		}
		order.Status = domain.OrderStatusCancelled
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.afterTransition(order, domain.TimelineStatusChanged, domain.CustomerActor(order.CustomerID), "cancelled by customer")
	s.notify(ctx, order, "cancel", func(n Notifier) error { return n.OrderCancelled(ctx, order) })
	return order, nil
}

// UpdateStatus выполняет шаг рабочего процесса поставщика.
func (s *Service) UpdateStatus(ctx context.Context, orderID, vendorID string, next domain.OrderStatus) (domain.Order, error) {
	if !next.Valid() {
		return domain.Order{}, domain.ErrStatusInvalid
	}

	order, err := s.mutate(ctx, "update_status", orderID, func(order *domain.Order) error {
		if vendorID == "" || !order.HasVendor(vendorID) {
			return domain.ErrOrderForbidden
		}
		if !vendorCanMove(order.Status, next) {
			return fmt.Errorf("%s -> %s: %w", order.Status, next, domain.ErrOrderTransitionInvalid)
		}
		order.Status = next
		stampItems(order, next)
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.afterTransition(order, domain.TimelineStatusChanged, domain.VendorActor(vendorID), fmt.Sprintf("status set to %s", next))
	s.notify(ctx, order, "update_status", func(n Notifier) error { return n.OrderStatusChanged(ctx, order) })
	return order, nil
}

// RequestReturn открывает возврат по всем позициям, по которым его ещё нет.
// Заявки создаются до сохранения заказа: если запись прервалась, повторный вызов
// подхватит уже открытые PENDING-заявки и доведёт заказ до RETURN_REQUESTED.
func (s *Service) RequestReturn(ctx context.Context, orderID, customerID, reason string, proofImages []string) (domain.Order, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.Order{}, domain.ErrReasonRequired
	}
	if len(proofImages) > domain.MaxProofImages {
		return domain.Order{}, domain.ErrTooManyProofImages
	}

	current, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if err := checkReturnable(current, customerID); err != nil {
		return domain.Order{}, err
	}
	existing, err := s.refundStatuses(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	now := s.now()
	opened := make(map[string]struct{}, len(current.Items))
	for _, item := range current.Items {
		if item.Status.InReturn() {
			continue
		}
		if status, ok := existing[item.ID]; ok {
			if status == domain.RefundStatusPending {
				opened[item.ID] = struct{}{}
			}
			continue
		}
		refund := domain.RefundRequest{
			ID:          s.newID(),
			OrderItemID: item.ID,
			OrderID:     current.ID,
			VendorID:    item.VendorID,
			CustomerID:  current.CustomerID,
			Reason:      reason,
			ProofImages: append([]string(nil), proofImages...),
			Status:      domain.RefundStatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.requests.CreateRefund(ctx, refund); err != nil {
			if errors.Is(err, domain.ErrRefundExists) {
				continue
			}
			return domain.Order{}, fmt.Errorf("create refund for item %s: %w", item.ID, err)
		}
		opened[item.ID] = struct{}{}
	}
	if len(opened) == 0 {
		return domain.Order{}, domain.ErrNothingToReturn
	}

	var vendors []string
	order, err := s.mutate(ctx, "request_return", orderID, func(order *domain.Order) error {
		vendors = vendors[:0]
		if err := checkReturnable(*order, customerID); err != nil {
			return err
		}
		marked := 0
		for i := range order.Items {
			item := &order.Items[i]
			if _, ok := opened[item.ID]; !ok || item.Status.InReturn() {
				continue
			}
			item.Status = domain.ItemStatusReturnRequested
			marked++
			if item.VendorID != "" && !slices.Contains(vendors, item.VendorID) {
				vendors = append(vendors, item.VendorID)
			}
		}
		if marked == 0 {
			return domain.ErrNothingToReturn
		}
		order.Status = domain.OrderStatusReturnRequested
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.afterTransition(order, domain.TimelineReturnRequested, domain.CustomerActor(order.CustomerID), reason)
	s.notify(ctx, order, "request_return", func(n Notifier) error {
		return n.ReturnRequested(ctx, order, vendors, reason)
	})
	return order, nil
}

// ReviewReturn закрывает открытые заявки поставщика на возврат.
func (s *Service) ReviewReturn(ctx context.Context, orderID, vendorID string, approve bool) (domain.Order, error) {
	current, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if vendorID == "" || !current.HasVendor(vendorID) {
		return domain.Order{}, domain.ErrOrderForbidden
	}
	if current.Status != domain.OrderStatusReturnRequested {
		return domain.Order{}, fmt.Errorf("review return in %s: %w", current.Status, domain.ErrOrderTransitionInvalid)
	}

	refunds, err := s.requests.ListRefunds(ctx, orderID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("list refunds: %w", err)
	}

	decision := domain.RefundStatusRejected
	if approve {
		decision = domain.RefundStatusApproved
	}
	settled := 0
	for _, refund := range refunds {
		if refund.VendorID != vendorID || refund.Status != domain.RefundStatusPending {
			continue
		}
		err := s.requests.SettleRefund(ctx, refund.ID, decision)
		if errors.Is(err, domain.ErrRefundSettled) {
			continue
		}
		if err != nil {
			return domain.Order{}, fmt.Errorf("settle refund %s: %w", refund.ID, err)
		}
		settled++
	}
	if settled == 0 {
		return domain.Order{}, domain.ErrRefundNotFound
	}

	// Состояние заказа выводится из заявок, перечитанных на каждой попытке:
	// решение другого поставщика, принятое параллельно, тоже попадает в расчёт.
	order, err := s.mutate(ctx, "review_return", orderID, func(order *domain.Order) error {
		latest, err := s.requests.ListRefunds(ctx, orderID)
		if err != nil {
			return fmt.Errorf("list refunds: %w", err)
		}
		applyRefunds(order, latest)
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.afterTransition(order, domain.TimelineReturnReviewed, domain.VendorActor(vendorID), "return "+strings.ToLower(string(decision)))
	s.notify(ctx, order, "review_return", func(n Notifier) error { return n.ReturnReviewed(ctx, order, approve) })
	return order, nil
}

// applyRefunds переносит решения по заявкам на позиции. Заказ закрывается,
// когда ни одна позиция в RETURN_REQUESTED не ждёт решения.
func applyRefunds(order *domain.Order, refunds []domain.RefundRequest) {
	byItem := make(map[string]domain.RefundStatus, len(refunds))
	for _, refund := range refunds {
		byItem[refund.OrderItemID] = refund.Status
	}

	pending, returned := 0, false
	for i := range order.Items {
		item := &order.Items[i]
		switch byItem[item.ID] {
		case domain.RefundStatusApproved:
			item.Status = domain.ItemStatusReturned
		case domain.RefundStatusRejected:
			if item.Status == domain.ItemStatusReturnRequested {
				item.Status = domain.ItemStatusDelivered
			}
		case domain.RefundStatusPending:
			if item.Status == domain.ItemStatusReturnRequested {
				pending++
			}
		}
		if item.Status == domain.ItemStatusReturned {
			returned = true
		}
	}
	if pending > 0 || order.Status != domain.OrderStatusReturnRequested {
		return
	}
	if returned {
		order.Status = domain.OrderStatusReturned
	} else {
		order.Status = domain.OrderStatusCompleted
	}
}

func checkReturnable(order domain.Order, customerID string) error {
	if customerID != "" && order.CustomerID != customerID {
		return domain.ErrOrderForbidden
	}
	if order.Status != domain.OrderStatusDelivered && order.Status != domain.OrderStatusCompleted {
		return fmt.Errorf("return from %s: %w", order.Status, domain.ErrOrderTransitionInvalid)
	}
	return nil
}

// FileComplaint регистрирует жалобу клиента на поставщика первой позиции.
func (s *Service) FileComplaint(ctx context.Context, orderID, customerID, message string, proofImages []string) (domain.Complaint, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return domain.Complaint{}, domain.ErrMessageRequired
	}
	if len(proofImages) > domain.MaxProofImages {
		return domain.Complaint{}, domain.ErrTooManyProofImages
	}

	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Complaint{}, err
	}
	if customerID != "" && order.CustomerID != customerID {
		return domain.Complaint{}, domain.ErrOrderForbidden
	}
	if len(order.Items) == 0 {
		return domain.Complaint{}, domain.ErrItemsRequired
	}

	complaint := domain.Complaint{
		ID:          s.newID(),
		OrderID:     order.ID,
		CustomerID:  order.CustomerID,
		VendorID:    order.Items[0].VendorID,
		Message:     message,
		ProofImages: append([]string(nil), proofImages...),
		Status:      domain.ComplaintStatusOpen,
		CreatedAt:   s.now(),
	}
	if err := s.requests.CreateComplaint(ctx, complaint); err != nil {
		return domain.Complaint{}, fmt.Errorf("create complaint: %w", err)
	}

	s.appendTimeline(order, domain.TimelineComplaintFiled, domain.CustomerActor(order.CustomerID), message)
	s.notify(ctx, order, "file_complaint", func(n Notifier) error {
		return n.ComplaintFiled(ctx, order, complaint.VendorID, message)
	})
	return complaint, nil
}

// Complaints возвращает жалобы по заказу.
func (s *Service) Complaints(ctx context.Context, orderID string) ([]domain.Complaint, error) {
	return s.requests.ListComplaints(ctx, orderID)
}

// Refunds возвращает заявки на возврат по заказу.
func (s *Service) Refunds(ctx context.Context, orderID string) ([]domain.RefundRequest, error) {
	return s.requests.ListRefunds(ctx, orderID)
}

func (s *Service) refundStatuses(ctx context.Context, orderID string) (map[string]domain.RefundStatus, error) {
	refunds, err := s.requests.ListRefunds(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list refunds: %w", err)
	}
	result := make(map[string]domain.RefundStatus, len(refunds))
	for _, refund := range refunds {
		result[refund.OrderItemID] = refund.Status
	}
	return result, nil
}

func (s *Service) afterTransition(order domain.Order, eventType, actor, reason string) {
	s.metrics.RecordTransition(string(order.Status))
	s.appendTimeline(order, eventType, actor, reason)
}

// appendTimeline не влияет на результат операции: заказ уже сохранён.
func (s *Service) appendTimeline(order domain.Order, eventType, actor, reason string) {
	err := s.timeline.Append(domain.TimelineEvent{
		OrderID:  order.ID,
		Type:     eventType,
		Actor:    actor,
		Status:   order.Status,
		Reason:   reason,
		Occurred: s.now(),
	})
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
			"actor":    actor,
		}).Error("append timeline event failed")
	}
}

func (s *Service) notify(ctx context.Context, order domain.Order, operation string, fn func(Notifier) error) {
	if s.notifier == nil {
		return
	}
	if err := fn(s.notifier); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id":  order.ID,
			"operation": operation,
		}).Error("enqueue notifications failed")
	}
}

func vendorCanMove(from, to domain.OrderStatus) bool {
	for _, allowed := range vendorTransitions[from] {
		if allowed == to {
			return from.CanTransitionTo(to)
		}
	}
	return false
}

// stampItems переносит статус доставки на позиции, не находящиеся в возврате.
func stampItems(order *domain.Order, status domain.OrderStatus) {
	var itemStatus domain.ItemStatus
	switch status {
	case domain.OrderStatusShipped:
		itemStatus = domain.ItemStatusShipped
	case domain.OrderStatusDelivered:
		itemStatus = domain.ItemStatusDelivered
	default:
		return
	}
	for i := range order.Items {
		if order.Items[i].Status.InReturn() {
			continue
		}
		order.Items[i].Status = itemStatus
	}
}
