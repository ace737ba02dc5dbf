package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/service/idempotency"
	"github.com/vladislavdragonenkov/storefront/internal/service/orders"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	checkoutScope        = "POST /api/checkout"
	defaultListLimit     = 100
	maxBodyBytes         = 1 << 20
)

// Handler: HTTP-обработчики витрины.
type Handler struct {
	checkout *checkout.Service
	orders   *orders.Service
	catalog  *catalog.Service
	guard    *idempotency.Guard
	logger   *log.Entry
}

// NewHandler создаёт обработчики. guard может быть nil.
func NewHandler(
	checkoutSvc *checkout.Service,
	ordersSvc *orders.Service,
	catalogSvc *catalog.Service,
	guard *idempotency.Guard,
	logger *log.Entry,
) *Handler {
	if logger == nil {
		logger = log.WithField("component", "http-api")
	}
	return &Handler{
		checkout: checkoutSvc,
		orders:   ordersSvc,
		catalog:  catalogSvc,
		guard:    guard,
		logger:   logger,
	}
}

type checkoutRequest struct {
	BuyerID      string            `json:"buyerId"`
	CustomerName string            `json:"customerName,omitempty"`
	CartLines    []domain.CartLine `json:"cartLines"`
	TotalAmount  decimal.Decimal   `json:"totalAmount"`
	Address      *domain.Address   `json:"address,omitempty"`
}

// Checkout оформляет заказ: 201 при успехе, иначе {success:false, error}.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if !h.decode(w, r, &req) {
		return
	}

	key := strings.TrimSpace(r.Header.Get(idempotencyKeyHeader))
	if key == "" || h.guard == nil {
		status, result, _ := h.placeOrder(r, req)
		writeJSON(w, status, result)
		return
	}

	hash, err := idempotency.RequestHash(checkoutScope, req)
	if err != nil {
		h.logger.WithError(err).Warn("failed to build idempotency request hash")
		writeJSON(w, http.StatusInternalServerError, checkout.Result{Error: "Order failed"})
		return
	}

	replay, err := h.guard.Begin(key, hash)
	switch {
	case errors.Is(err, idempotency.ErrKeyReused):
		writeJSON(w, http.StatusUnprocessableEntity, checkout.Result{Error: err.Error()})
		return
	case errors.Is(err, idempotency.ErrInFlight):
		writeJSON(w, http.StatusConflict, checkout.Result{Error: err.Error()})
		return
	case err != nil:
		h.logger.WithError(err).Warn("failed to reserve idempotency key")
		writeJSON(w, http.StatusInternalServerError, checkout.Result{Error: "Order failed"})
		return
	case replay != nil:
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Idempotent-Replayed", "true")
		w.WriteHeader(replay.Status)
		_, _ = w.Write(replay.Body)
		return
	}

	// Паника до сохранения ответа не должна оставить ключ в processing.
	settled := false
	defer func() {
		if settled {
			return
		}
		if p := recover(); p != nil {
			_ = h.guard.Release(key)
			panic(p)
		}
	}()

	status, result, runErr := h.placeOrder(r, req)
	body, err := json.Marshal(result)
	if err != nil {
		settled = true
		h.logger.WithError(err).Warn("failed to encode checkout result")
		_ = h.guard.Release(key)
		writeJSON(w, status, result)
		return
	}
	body = append(body, '\n')
	settled = true
	if err := h.guard.Settle(key, status, body, runErr); err != nil {
		h.logger.WithError(err).WithFields(log.Fields{
			"idempotency_key": key,
			"order_id":        result.OrderID,
		}).Error("failed to settle idempotency key")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (h *Handler) placeOrder(r *http.Request, req checkoutRequest) (int, checkout.Result, error) {
	result, err := h.checkout.Checkout(r.Context(), checkout.PlaceOrderRequest{
		BuyerID:      req.BuyerID,
		CustomerName: req.CustomerName,
		Lines:        req.CartLines,
		TotalAmount:  req.TotalAmount,
		Address:      req.Address,
	})
	if err != nil {
		return checkoutStatus(err), result, err
	}
	return http.StatusCreated, result, nil
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err, "get_order")
		return
	}
	writeJSON(w, http.StatusOK, orders.NewView(order))
}

func (h *Handler) Timeline(w http.ResponseWriter, r *http.Request) {
	events, err := h.orders.Timeline(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err, "timeline")
		return
	}
	writeJSON(w, http.StatusOK, orders.NewTimelineViews(events))
}

func (h *Handler) ListCustomerOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.orders.ListByCustomer(r.Context(), chi.URLParam(r, "id"), listLimit(r))
	if err != nil {
		h.writeDomainError(w, err, "list_customer_orders")
		return
	}
	writeJSON(w, http.StatusOK, orders.NewViews(list))
}

func (h *Handler) ListVendorOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.orders.ListByVendor(r.Context(), chi.URLParam(r, "id"), listLimit(r))
	if err != nil {
		h.writeDomainError(w, err, "list_vendor_orders")
		return
	}
	writeJSON(w, http.StatusOK, orders.NewViews(list))
}

type cancelRequest struct {
	CustomerID string `json:"customerId"`
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if !h.decode(w, r, &req) {
		return
	}
	order, err := h.orders.Cancel(r.Context(), chi.URLParam(r, "id"), req.CustomerID)
	if err != nil {
		h.writeDomainError(w, err, "cancel_order")
		return
	}
	writeJSON(w, http.StatusOK, orders.NewView(order))
}

type returnRequest struct {
	CustomerID  string   `json:"customerId"`
	Reason      string   `json:"reason"`
	ProofImages []string `json:"proofImages,omitempty"`
}

func (h *Handler) RequestReturn(w http.ResponseWriter, r *http.Request) {
	var req returnRequest
	if !h.decode(w, r, &req) {
		return
	}
	order, err := h.orders.RequestReturn(r.Context(), chi.URLParam(r, "id"), req.CustomerID, req.Reason, req.ProofImages)
	if err != nil {
		h.writeDomainError(w, err, "request_return")
		return
	}
	writeJSON(w, http.StatusOK, orders.NewView(order))
}

type reviewRequest struct {
	VendorID string `json:"vendorId"`
	Approve  bool   `json:"approve"`
}

func (h *Handler) ReviewReturn(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if !h.decode(w, r, &req) {
		return
	}
	order, err := h.orders.ReviewReturn(r.Context(), chi.URLParam(r, "id"), req.VendorID, req.Approve)
	if err != nil {
		h.writeDomainError(w, err, "review_return")
		return
	}
	writeJSON(w, http.StatusOK, orders.NewView(order))
}

type complaintRequest struct {
	CustomerID  string   `json:"customerId"`
	Message     string   `json:"message"`
	ProofImages []string `json:"proofImages,omitempty"`
}

type complaintResponse struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"orderId"`
	VendorID    string    `json:"vendorId"`
	Message     string    `json:"message"`
	ProofImages []string  `json:"proofImages,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (h *Handler) FileComplaint(w http.ResponseWriter, r *http.Request) {
	var req complaintRequest
	if !h.decode(w, r, &req) {
		return
	}
	complaint, err := h.orders.FileComplaint(r.Context(), chi.URLParam(r, "id"), req.CustomerID, req.Message, req.ProofImages)
	if err != nil {
		h.writeDomainError(w, err, "file_complaint")
		return
	}
	writeJSON(w, http.StatusCreated, complaintResponse{
		ID:          complaint.ID,
		OrderID:     complaint.OrderID,
		VendorID:    complaint.VendorID,
		Message:     complaint.Message,
		ProofImages: complaint.ProofImages,
		Status:      string(complaint.Status),
		CreatedAt:   complaint.CreatedAt,
	})
}

type statusRequest struct {
	VendorID string `json:"vendorId"`
	Status   string `json:"status"`
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !h.decode(w, r, &req) {
		return
	}
	next := domain.OrderStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	order, err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.VendorID, next)
	if err != nil {
		h.writeDomainError(w, err, "update_status")
		return
	}
	writeJSON(w, http.StatusOK, orders.NewView(order))
}

type createProductRequest struct {
	VendorID string          `json:"vendorId"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if !h.decode(w, r, &req) {
		return
	}
	product, err := h.catalog.CreateProduct(r.Context(), req.VendorID, req.Name, req.Price, req.Quantity)
	if err != nil {
		h.writeDomainError(w, err, "create_product")
		return
	}
	writeJSON(w, http.StatusCreated, catalog.NewProductView(product))
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err, "get_product")
		return
	}
	writeJSON(w, http.StatusOK, catalog.NewProductView(product))
}

type restockRequest struct {
	Delta int `json:"delta"`
}

func (h *Handler) Restock(w http.ResponseWriter, r *http.Request) {
	var req restockRequest
	if !h.decode(w, r, &req) {
		return
	}
	product, err := h.catalog.Restock(r.Context(), chi.URLParam(r, "id"), req.Delta)
	if err != nil {
		h.writeDomainError(w, err, "restock")
		return
	}
	writeJSON(w, http.StatusOK, catalog.NewProductView(product))
}

// decode читает JSON-тело; при ошибке уже ответил 400.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		h.logger.WithError(err).WithField("path", r.URL.Path).Debug("invalid request body")
		if _, ok := dst.(*checkoutRequest); ok {
			writeJSON(w, http.StatusBadRequest, checkout.Result{Error: "Invalid JSON body"})
		} else {
			writeError(w, http.StatusBadRequest, "Invalid JSON body")
		}
		return false
	}
	return true
}

func listLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	return limit
}
