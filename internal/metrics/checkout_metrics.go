package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты попытки оформления (значения label result).
const (
	ResultSuccess            = "success"
	ResultInsufficientStock  = "insufficient_stock"
	ResultMissingAddress     = "missing_address"
	ResultInvalidCart        = "invalid_cart"
	ResultTransactionFailure = "transaction_failure"
)

// CheckoutMetrics содержит метрики оформления заказов.
type CheckoutMetrics struct {
	attempts        *prometheus.CounterVec
	duration        prometheus.Histogram
	items           prometheus.Counter
	stockDecrements prometheus.Counter
	inFlight        prometheus.Gauge
}

// NewCheckoutMetrics регистрирует метрики в DefaultRegisterer.
func NewCheckoutMetrics() *CheckoutMetrics {
	return NewCheckoutMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewCheckoutMetricsWithRegisterer регистрирует метрики в переданном registerer.
func NewCheckoutMetricsWithRegisterer(registerer prometheus.Registerer) *CheckoutMetrics {
	return &CheckoutMetrics{
		attempts: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_checkout_attempts_total",
			Help: "Total number of checkout attempts by result",
		}, []string{"result"}),
		duration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "storefront_checkout_duration_seconds",
			Help:    "Duration of checkout attempts in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		items: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_checkout_items_total",
			Help: "Total number of order items committed by checkout",
		}),
		stockDecrements: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_stock_decrements_total",
			Help: "Total number of stock units decremented by committed orders",
		}),
		inFlight: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_checkout_in_flight",
			Help: "Number of checkout transactions currently running",
		}),
	}
}

// Started отмечает начало попытки и возвращает функцию завершения.
func (m *CheckoutMetrics) Started() func(result string, elapsed time.Duration) {
	if m == nil {
		return func(string, time.Duration) {}
	}
	m.inFlight.Inc()
	return func(result string, elapsed time.Duration) {
		m.inFlight.Dec()
		m.attempts.WithLabelValues(result).Inc()
		m.duration.Observe(elapsed.Seconds())
	}
}

// RecordCommitted учитывает позиции и списанные единицы зафиксированного заказа.
func (m *CheckoutMetrics) RecordCommitted(items, units int) {
	if m == nil {
		return
	}
	m.items.Add(float64(items))
	m.stockDecrements.Add(float64(units))
}
