package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты попытки публикации outbox-уведомления.
const (
	PublishSent      = "sent"
	PublishRetry     = "retry_error"
	PublishFailed    = "failed"
	PublishDLQ       = "dlq"
	PublishDLQFailed = "dlq_failed"
)

// OutboxMetrics: метрики доставки уведомлений из outbox.
type OutboxMetrics struct {
	attempts    *prometheus.CounterVec
	published   *prometheus.CounterVec
	pending     prometheus.Gauge
	oldestAge   prometheus.Gauge
	lastDrained prometheus.Gauge
}

// NewOutboxMetrics регистрирует метрики в DefaultRegisterer.
func NewOutboxMetrics() *OutboxMetrics {
	return NewOutboxMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOutboxMetricsWithRegisterer регистрирует метрики в переданном registerer.
func NewOutboxMetricsWithRegisterer(registerer prometheus.Registerer) *OutboxMetrics {
	return &OutboxMetrics{
		attempts: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_outbox_publish_attempts_total",
			Help: "Total number of outbox publish attempts grouped by result",
		}, []string{"result"}),
		published: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_outbox_published_total",
			Help: "Total number of notifications published from outbox by notification type",
		}, []string{"type"}),
		pending: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_outbox_pending_records",
			Help: "Current number of pending notifications in outbox",
		}),
		oldestAge: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_outbox_oldest_pending_age_seconds",
			Help: "Age in seconds of the oldest pending notification",
		}),
		lastDrained: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_outbox_last_drain_count",
			Help: "Number of notifications delivered by the last shutdown drain",
		}),
	}
}

func (m *OutboxMetrics) RecordAttempt(result string) {
	if m != nil {
		m.attempts.WithLabelValues(result).Inc()
	}
}

func (m *OutboxMetrics) RecordPublished(notificationType string) {
	if m != nil {
		m.published.WithLabelValues(notificationType).Inc()
	}
}

// SetBacklog обновляет размер очереди и возраст самой старой записи.
func (m *OutboxMetrics) SetBacklog(pending int, oldest, now time.Time) {
	if m == nil {
		return
	}
	m.pending.Set(float64(pending))
	if pending == 0 || oldest.IsZero() {
		m.oldestAge.Set(0)
		return
	}
	m.oldestAge.Set(max(now.Sub(oldest).Seconds(), 0))
}

func (m *OutboxMetrics) RecordDrain(n int) {
	if m != nil {
		m.lastDrained.Set(float64(n))
	}
}
