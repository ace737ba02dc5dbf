package metrics

import "github.com/prometheus/client_golang/prometheus"

// OrderMetrics: метрики жизненного цикла заказа после оформления.
type OrderMetrics struct {
	transitions   *prometheus.CounterVec
	conflicts     prometheus.Counter
	notifications *prometheus.CounterVec
}

// NewOrderMetrics регистрирует метрики в DefaultRegisterer.
func NewOrderMetrics() *OrderMetrics {
	return NewOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOrderMetricsWithRegisterer регистрирует метрики в переданном registerer.
func NewOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	return &OrderMetrics{
		transitions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_order_transitions_total",
			Help: "Total number of order status transitions by target status",
		}, []string{"status"}),
		conflicts: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_order_version_conflicts_total",
			Help: "Total number of optimistic locking conflicts on order saves",
		}),
		notifications: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_notifications_enqueued_total",
			Help: "Total number of notifications enqueued by type",
		}, []string{"type"}),
	}
}

func (m *OrderMetrics) RecordTransition(status string) {
	if m != nil {
		m.transitions.WithLabelValues(status).Inc()
	}
}

func (m *OrderMetrics) RecordConflict() {
	if m != nil {
		m.conflicts.Inc()
	}
}

func (m *OrderMetrics) RecordNotification(notificationType string) {
	if m != nil {
		m.notifications.WithLabelValues(notificationType).Inc()
	}
}
