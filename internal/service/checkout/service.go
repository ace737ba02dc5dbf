package checkout

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const notifyTimeout = 5 * time.Second

// Notifier рассылает уведомления о новом заказе покупателю и поставщикам.
type Notifier interface {
	OrderPlaced(ctx context.Context, order domain.Order) error
}

// Service: точка входа оформления для транспортов.
// После коммита уведомления уходят в фоне и не влияют на результат.
type Service struct {
	engine   *Engine
	notifier Notifier
	logger   *log.Entry

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewService связывает движок и рассылку уведомлений. notifier может быть nil.
func NewService(engine *Engine, notifier Notifier, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "checkout-service")
	}
	return &Service{engine: engine, notifier: notifier, logger: logger}
}

// Checkout оформляет заказ. Result годится для ответа клиенту,
// ошибка (*domain.OrderError) нужна транспорту для выбора кода.
func (s *Service) Checkout(ctx context.Context, req PlaceOrderRequest) (Result, error) {
	order, err := s.engine.Place(ctx, req)
	if err != nil {
		return ResultFrom("", err), err
	}
	s.notifyAsync(order)
	return ResultFrom(order.ID, nil), nil
}

// Shutdown ждёт завершения фоновых рассылок.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) notifyAsync(order domain.Order) {
	if s.notifier == nil {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.WithField("order_id", order.ID).Warn("order notification skipped during shutdown")
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()

		// Контекст запроса к этому моменту может быть отменён.
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		if err := s.notifier.OrderPlaced(ctx, order); err != nil {
			s.logger.WithError(err).WithField("order_id", order.ID).Error("order placed notification failed")
		}
	}()
}
