package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/httpapi"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
	grpcsvc "github.com/vladislavdragonenkov/storefront/internal/service/grpc"
	"github.com/vladislavdragonenkov/storefront/internal/service/idempotency"
	"github.com/vladislavdragonenkov/storefront/internal/service/notification"
	"github.com/vladislavdragonenkov/storefront/internal/service/orders"
	"github.com/vladislavdragonenkov/storefront/internal/service/outbox"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

// recordingSender запоминает доставленные уведомления.
type recordingSender struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (s *recordingSender) Send(_ context.Context, n domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
	return nil
}

func (s *recordingSender) types(orderID string) []domain.NotificationType {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.NotificationType
	for _, n := range s.sent {
		if n.OrderID == orderID {
			out = append(out, n.Type)
		}
	}
	return out
}

// OrderLifecycleTestSuite прогоняет оформление и жизненный цикл заказа
// через gRPC и HTTP поверх in-memory хранилища.
type OrderLifecycleTestSuite struct {
	suite.Suite
	products domain.ProductRepository
	outbox   domain.OutboxRepository
	checkout *checkout.Service
	worker   *outbox.Worker
	sender   *recordingSender
	client   *grpcsvc.Client
	grpc     *grpc.Server
	conn     *grpc.ClientConn
	http     *httptest.Server
}

func (suite *OrderLifecycleTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel)
	logger := baseLogger.WithField("component", "integration-test")

	store := memory.NewStore()
	suite.products = memory.NewProductRepository(store)
	suite.outbox = memory.NewOutboxRepository()
	suite.sender = &recordingSender{}

	dispatcher := notification.NewDispatcher(suite.outbox, logger, nil)
	ordersSvc := orders.NewService(memory.NewOrderRepository(store), memory.NewRequestRepository(store),
		memory.NewTimelineRepository(), dispatcher, orders.WithLogger(logger))
	suite.checkout = checkout.NewService(checkout.NewEngine(store, checkout.WithLogger(logger), checkout.WithStrictTotals(true)),
		ordersSvc, logger)
	catalogSvc := catalog.NewService(suite.products, logger)
	guard := idempotency.NewGuard(memory.NewIdempotencyRepository(), time.Hour, logger)

	suite.worker = outbox.NewWorker(suite.outbox, notification.NewRelay(suite.sender, logger),
		outbox.WithLogger(logger), outbox.WithRetryBaseDelay(0))

	listener := bufconn.Listen(1 << 20)
	suite.grpc = grpc.NewServer()
	grpcsvc.RegisterCheckoutServiceServer(suite.grpc, grpcsvc.NewCheckoutService(suite.checkout, ordersSvc, catalogSvc, guard, logger))
	go func() { _ = suite.grpc.Serve(listener) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return listener.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	suite.Require().NoError(err)
	suite.conn = conn
	suite.client = grpcsvc.NewClient(conn)

	handler := httpapi.NewHandler(suite.checkout, ordersSvc, catalogSvc, guard, logger)
	suite.http = httptest.NewServer(httpapi.NewRouter(handler, health.NewHandler("integration"), 5*time.Second))

	suite.Require().NoError(suite.products.Create(context.Background(), domain.Product{
		ID: "brake-pad", VendorID: "vendor-1", Name: "Brake Pad", Price: decimal.RequireFromString("24.50"), Quantity: 3,
	}))
	suite.Require().NoError(suite.products.Create(context.Background(), domain.Product{
		ID: "spark-plug", VendorID: "vendor-2", Name: "Spark Plug", Price: decimal.RequireFromString("4.25"), Quantity: 10,
	}))
}

func (suite *OrderLifecycleTestSuite) TearDownTest() {
	suite.http.Close()
	_ = suite.conn.Close()
	suite.grpc.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	suite.Require().NoError(suite.checkout.Shutdown(ctx))
}

func (suite *OrderLifecycleTestSuite) TestCheckoutAndVendorWorkflow() {
	ctx := context.Background()

	resp, err := suite.client.PlaceOrder(ctx, suite.cart("customer-1", 2, 3))
	suite.Require().NoError(err)
	suite.Require().True(resp.Success)
	orderID := resp.OrderID

	suite.requireStock("brake-pad", 1)
	suite.requireStock("spark-plug", 7)

	got, err := suite.client.GetOrder(ctx, &grpcsvc.GetOrderRequest{OrderID: orderID})
	suite.Require().NoError(err)
	suite.Require().Equal(string(domain.OrderStatusPending), got.Order.Status)
	suite.Require().True(decimal.RequireFromString("61.75").Equal(got.Order.TotalAmount))
	suite.Require().Len(got.Order.Items, 2)

	suite.postJSON("/api/orders/"+orderID+"/status", map[string]any{"vendorId": "vendor-1", "status": "APPROVED"}, http.StatusOK)
	suite.postJSON("/api/orders/"+orderID+"/status", map[string]any{"vendorId": "vendor-1", "status": "SHIPPED"}, http.StatusOK)
	suite.postJSON("/api/orders/"+orderID+"/status", map[string]any{"vendorId": "vendor-2", "status": "DELIVERED"}, http.StatusOK)

	suite.postJSON("/api/orders/"+orderID+"/returns", map[string]any{"customerId": "customer-1", "reason": "wrong size"}, http.StatusOK)
	suite.postJSON("/api/orders/"+orderID+"/returns/review", map[string]any{"vendorId": "vendor-1", "approve": true}, http.StatusOK)

	got, err = suite.client.GetOrder(ctx, &grpcsvc.GetOrderRequest{OrderID: orderID})
	suite.Require().NoError(err)
	suite.Require().GreaterOrEqual(len(got.Timeline), 5)

	suite.drainOutbox()
	types := suite.sender.types(orderID)
	suite.Require().Contains(types, domain.NotificationOrderPlaced)
	suite.Require().Contains(types, domain.NotificationOrderApproved)
	suite.Require().Contains(types, domain.NotificationOrderShipped)
	suite.Require().Contains(types, domain.NotificationOrderDelivered)
	suite.Require().Contains(types, domain.NotificationReturnRequested)
	suite.Require().Contains(types, domain.NotificationReturnApproved)
}

func (suite *OrderLifecycleTestSuite) TestInsufficientStockRollsBackWholeCart() {
	_, err := suite.client.PlaceOrder(context.Background(), suite.cart("customer-2", 4, 1))
	suite.Require().Equal(codes.FailedPrecondition, status.Code(err))
	suite.Require().Contains(status.Convert(err).Message(), "Brake Pad")

	suite.requireStock("brake-pad", 3)
	suite.requireStock("spark-plug", 10)

	list, err := suite.client.ListOrders(context.Background(), &grpcsvc.ListOrdersRequest{CustomerID: "customer-2"})
	suite.Require().NoError(err)
	suite.Require().Empty(list.Orders)
}

func (suite *OrderLifecycleTestSuite) TestMissingAddressOverHTTP() {
	req := suite.cart("customer-3", 1, 1)
	req.Address = nil

	body := suite.postJSON("/api/checkout", req, http.StatusBadRequest)
	var result checkout.Result
	suite.Require().NoError(json.Unmarshal(body, &result))
	suite.Require().False(result.Success)
	suite.Require().Equal("Delivery address is missing.", result.Error)
	suite.requireStock("brake-pad", 3)
}

func (suite *OrderLifecycleTestSuite) TestCancelKeepsStockReserved() {
	ctx := context.Background()
	resp, err := suite.client.PlaceOrder(ctx, suite.cart("customer-4", 1, 0))
	suite.Require().NoError(err)

	cancelled, err := suite.client.CancelOrder(ctx, &grpcsvc.CancelOrderRequest{OrderID: resp.OrderID, CustomerID: "customer-4"})
	suite.Require().NoError(err)
	suite.Require().Equal(string(domain.OrderStatusCancelled), cancelled.Status)
	suite.requireStock("brake-pad", 2)

	_, err = suite.client.CancelOrder(ctx, &grpcsvc.CancelOrderRequest{OrderID: resp.OrderID, CustomerID: "customer-4"})
	suite.Require().Equal(codes.FailedPrecondition, status.Code(err))
}

func (suite *OrderLifecycleTestSuite) TestIdempotentCheckoutOverGRPC() {
	ctx := grpcsvc.WithIdempotencyKey(context.Background(), "checkout-once")
	req := suite.cart("customer-5", 1, 0)

	first, err := suite.client.PlaceOrder(ctx, req)
	suite.Require().NoError(err)
	second, err := suite.client.PlaceOrder(ctx, req)
	suite.Require().NoError(err)
	suite.Require().Equal(first.OrderID, second.OrderID)
	suite.requireStock("brake-pad", 2)

	req.CustomerName = "someone else"
	_, err = suite.client.PlaceOrder(ctx, req)
	suite.Require().Equal(codes.AlreadyExists, status.Code(err))
}

// cart собирает корзину из двух товаров; строки с нулевым количеством пропускаются.
func (suite *OrderLifecycleTestSuite) cart(customerID string, brakePads, sparkPlugs int) *grpcsvc.PlaceOrderRequest {
	req := &grpcsvc.PlaceOrderRequest{
		BuyerID:      customerID,
		CustomerName: "Integration Buyer",
		TotalAmount:  decimal.Zero,
		Address:      &domain.Address{Name: "Integration Buyer", Street: "5 Garage Rd", City: "Springfield"},
	}
	add := func(productID, vendorID, price string, qty int) {
		if qty == 0 {
			return
		}
		line := domain.CartLine{ProductID: productID, VendorID: vendorID, Quantity: qty, UnitPrice: decimal.RequireFromString(price)}
		req.CartLines = append(req.CartLines, line)
		req.TotalAmount = req.TotalAmount.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(qty))))
	}
	add("brake-pad", "vendor-1", "24.50", brakePads)
	add("spark-plug", "vendor-2", "4.25", sparkPlugs)
	return req
}

func (suite *OrderLifecycleTestSuite) requireStock(productID string, expected int) {
	resp, err := suite.client.GetProduct(context.Background(), &grpcsvc.GetProductRequest{ProductID: productID})
	suite.Require().NoError(err)
	suite.Require().Equal(expected, resp.Product.Quantity, productID)
}

func (suite *OrderLifecycleTestSuite) postJSON(path string, payload any, expectedStatus int) []byte {
	data, err := json.Marshal(payload)
	suite.Require().NoError(err)

	resp, err := http.Post(suite.http.URL+path, "application/json", bytes.NewReader(data))
	suite.Require().NoError(err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	suite.Require().NoError(err)
	suite.Require().Equal(expectedStatus, resp.StatusCode, string(body))
	return body
}

// drainOutbox ждёт асинхронных уведомлений и прогоняет outbox через relay.
func (suite *OrderLifecycleTestSuite) drainOutbox() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	suite.Require().NoError(suite.checkout.Shutdown(ctx))

	require.Eventually(suite.T(), func() bool {
		suite.worker.Drain(context.Background())
		stats, err := suite.outbox.Stats()
		return err == nil && stats.PendingCount == 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestOrderLifecycle(t *testing.T) {
	suite.Run(t, new(OrderLifecycleTestSuite))
}
