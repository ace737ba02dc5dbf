package orders

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// RetryConfig управляет повторами сохранения при конфликте версий.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig возвращает конфигурацию по умолчанию.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  10 * time.Millisecond,
		MaxDelay:      200 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

func (c RetryConfig) normalized() RetryConfig {
	def := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.InitialDelay < 0 {
		c.InitialDelay = 0
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = def.MaxDelay
	}
	if c.BackoffFactor < 1 {
		c.BackoffFactor = def.BackoffFactor
	}
	return c
}

// mutate перечитывает заказ, применяет change и сохраняет результат.
// При ErrOrderVersionConflict цикл повторяется на свежей версии с экспоненциальной паузой.
// change не должен иметь побочных эффектов вне заказа: он может вызываться несколько раз.
func (s *Service) mutate(ctx context.Context, operation, orderID string, change func(order *domain.Order) error) (domain.Order, error) {
	delay := s.retry.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= s.retry.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return domain.Order{}, err
		}

		order, err := s.orders.Get(ctx, orderID)
		if err != nil {
			return domain.Order{}, err
		}
		if err := change(&order); err != nil {
			return domain.Order{}, err
		}
		order.UpdatedAt = s.now()

		err = s.orders.Save(ctx, order)
		if err == nil {
			order.Version++
			if attempt > 1 {
				s.logger.WithFields(log.Fields{
					"operation": operation,
					"order_id":  orderID,
					"attempt":   attempt,
				}).Info("order saved after retry")
			}
			return order, nil
		}
		if !domain.IsVersionConflict(err) {
			return domain.Order{}, err
		}

		lastErr = err
		s.metrics.RecordConflict()
		if attempt == s.retry.MaxAttempts {
			break
		}

		s.logger.WithFields(log.Fields{
			"operation": operation,
			"order_id":  orderID,
			"attempt":   attempt,
			"delay":     delay,
		}).Warn("order version conflict, retrying")

		if delay > 0 {
			select {
			case <-ctx.Done():
				return domain.Order{}, ctx.Err()
			case <-time.After(delay):
			}
		}
		delay = time.Duration(float64(delay) * s.retry.BackoffFactor)
		if delay > s.retry.MaxDelay {
			delay = s.retry.MaxDelay
		}
	}

	s.logger.WithFields(log.Fields{
		"operation":    operation,
		"order_id":     orderID,
		"max_attempts": s.retry.MaxAttempts,
	}).Error("order update failed after all retry attempts")
	return domain.Order{}, lastErr
}
