// Package grpcsvc публикует оформление и чтение заказов как storefront.v1.CheckoutService.
package grpcsvc

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/service/idempotency"
	"github.com/vladislavdragonenkov/storefront/internal/service/orders"
)

const (
	idempotencyKeyHeader   = "idempotency-key"
	defaultListOrdersLimit = 100
)

// CheckoutService реализует CheckoutServiceServer поверх доменных сервисов.
type CheckoutService struct {
	checkout *checkout.Service
	orders   *orders.Service
	catalog  *catalog.Service
	guard    *idempotency.Guard
	logger   *log.Entry
}

// NewCheckoutService связывает транспорт с сервисами. guard может быть nil:
// тогда idempotency-key игнорируется.
func NewCheckoutService(
	checkoutSvc *checkout.Service,
	ordersSvc *orders.Service,
	catalogSvc *catalog.Service,
	guard *idempotency.Guard,
	logger *log.Entry,
) *CheckoutService {
	if logger == nil {
		logger = log.WithField("component", "grpc-checkout")
	}
	return &CheckoutService{
		checkout: checkoutSvc,
		orders:   ordersSvc,
		catalog:  catalogSvc,
		guard:    guard,
		logger:   logger,
	}
}

// PlaceOrder оформляет заказ. При наличии idempotency-key повтор получает сохранённый ответ.
func (s *CheckoutService) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*PlaceOrderResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	key := readIdempotencyKey(ctx)
	if key == "" || s.guard == nil {
		resp, err := s.placeOrder(ctx, req)
		if err != nil {
			return nil, checkoutStatus(err)
		}
		return resp, nil
	}

	hash, err := idempotency.RequestHash(MethodPlaceOrder, req)
	if err != nil {
		s.logger.WithError(err).Warn("failed to build idempotency request hash")
		return nil, status.Error(codes.Internal, "failed to initialize idempotency request")
	}

	replay, err := s.guard.Begin(key, hash)
	switch {
	case errors.Is(err, idempotency.ErrKeyReused):
		return nil, status.Error(codes.AlreadyExists, "idempotency key is already used with different request payload")
	case errors.Is(err, idempotency.ErrInFlight):
		return nil, status.Error(codes.Aborted, "request with the same idempotency key is already processing")
	case err != nil:
		s.logger.WithError(err).Warn("failed to reserve idempotency key")
		return nil, status.Error(codes.Internal, "failed to initialize idempotency request")
	case replay != nil:
		return decodeReplay(replay)
	}

	settled := false
	defer func() {
		if settled {
			return
		}
		if p := recover(); p != nil {
			_ = s.guard.Release(key)
			panic(p)
		}
	}()

	resp, runErr := s.placeOrder(ctx, req)
	settled = true
	if runErr != nil {
		st := checkoutStatus(runErr)
		s.remember(key, nil, runErr, st)
		return nil, st
	}
	s.remember(key, resp, nil, nil)
	return resp, nil
}

func (s *CheckoutService) placeOrder(ctx context.Context, req *PlaceOrderRequest) (*PlaceOrderResponse, error) {
	result, err := s.checkout.Checkout(ctx, checkout.PlaceOrderRequest{
		BuyerID:      req.BuyerID,
		CustomerName: req.CustomerName,
		Lines:        req.CartLines,
		TotalAmount:  req.TotalAmount,
		Address:      req.Address,
	})
	if err != nil {
		return nil, err
	}
	return &PlaceOrderResponse{Success: true, OrderID: result.OrderID}, nil
}

// GetOrder возвращает заказ вместе с таймлайном.
func (s *CheckoutService) GetOrder(ctx context.Context, req *GetOrderRequest) (*GetOrderResponse, error) {
	if req == nil || strings.TrimSpace(req.OrderID) == "" {
		return nil, status.Error(codes.InvalidArgument, "orderId is required")
	}

	order, err := s.orders.Get(ctx, req.OrderID)
	if err != nil {
		return nil, s.domainStatus(err, "GetOrder")
	}
	events, err := s.orders.Timeline(ctx, req.OrderID)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", req.OrderID).Warn("failed to list timeline events")
	}
	return &GetOrderResponse{
		Order:    orders.NewView(order),
		Timeline: orders.NewTimelineViews(events),
	}, nil
}

// ListOrders возвращает заказы клиента или поставщика.
func (s *CheckoutService) ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersResponse, error) {
	if req == nil || (req.CustomerID == "") == (req.VendorID == "") {
		return nil, status.Error(codes.InvalidArgument, "exactly one of customerId or vendorId is required")
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultListOrdersLimit
	}

	var (
		list []orders.View
		err  error
	)
	if req.CustomerID != "" {
		found, listErr := s.orders.ListByCustomer(ctx, req.CustomerID, limit)
		list, err = orders.NewViews(found), listErr
	} else {
		found, listErr := s.orders.ListByVendor(ctx, req.VendorID, limit)
		list, err = orders.NewViews(found), listErr
	}
	if err != nil {
		return nil, s.domainStatus(err, "ListOrders")
	}
	return &ListOrdersResponse{Orders: list}, nil
}

// CancelOrder отменяет заказ клиента.
func (s *CheckoutService) CancelOrder(ctx context.Context, req *CancelOrderRequest) (*CancelOrderResponse, error) {
	if req == nil || strings.TrimSpace(req.OrderID) == "" {
		return nil, status.Error(codes.InvalidArgument, "orderId is required")
	}
	order, err := s.orders.Cancel(ctx, req.OrderID, req.CustomerID)
	if err != nil {
		return nil, s.domainStatus(err, "CancelOrder")
	}
	return &CancelOrderResponse{OrderID: order.ID, Status: string(order.Status)}, nil
}

// GetProduct возвращает товар каталога.
func (s *CheckoutService) GetProduct(ctx context.Context, req *GetProductRequest) (*GetProductResponse, error) {
	if req == nil || strings.TrimSpace(req.ProductID) == "" {
		return nil, status.Error(codes.InvalidArgument, "productId is required")
	}
	product, err := s.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		return nil, s.domainStatus(err, "GetProduct")
	}
	return &GetProductResponse{Product: catalog.NewProductView(product)}, nil
}

type replayError struct {
	Code    uint32 `json:"code"`
	Message string `json:"message"`
}

// remember сохраняет исход оформления под ключом. Временный отказ ключ освобождает.
func (s *CheckoutService) remember(key string, resp *PlaceOrderResponse, runErr, stErr error) {
	var (
		code codes.Code
		body []byte
		err  error
	)
	if runErr != nil {
		st := status.Convert(stErr)
		code = st.Code()
		body, err = json.Marshal(replayError{Code: uint32(st.Code()), Message: st.Message()})
	} else {
		code = codes.OK
		body, err = json.Marshal(resp)
	}
	if err != nil {
		s.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to encode idempotent response")
		_ = s.guard.Release(key)
		return
	}

	if err := s.guard.Settle(key, int(code), body, runErr); err != nil {
		entry := s.logger.WithError(err).WithField("idempotency_key", key)
		if resp != nil {
			entry = entry.WithField("order_id", resp.OrderID)
		}
		entry.Error("failed to settle idempotency key")
	}
}

func decodeReplay(replay *idempotency.Replay) (*PlaceOrderResponse, error) {
	if replay.Failed {
		var payload replayError
		if err := json.Unmarshal(replay.Body, &payload); err != nil || payload.Code == uint32(codes.OK) {
			return nil, status.Error(codes.Internal, "previous request with the same idempotency key failed")
		}
		return nil, status.Error(codes.Code(payload.Code), payload.Message)
	}

	resp := new(PlaceOrderResponse)
	if err := json.Unmarshal(replay.Body, resp); err != nil {
		return nil, status.Error(codes.Internal, "failed to decode cached idempotency response")
	}
	return resp, nil
}

func readIdempotencyKey(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(idempotencyKeyHeader)
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}
