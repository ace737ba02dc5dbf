package metrics

import "github.com/prometheus/client_golang/prometheus"

// IdempotencyMetrics: метрики очистки ключей оформления.
type IdempotencyMetrics struct {
	sweeps      *prometheus.CounterVec
	removed     prometheus.Counter
	lastRemoved prometheus.Gauge
	duration    prometheus.Histogram
}

func NewIdempotencyMetrics() *IdempotencyMetrics {
	return NewIdempotencyMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func NewIdempotencyMetricsWithRegisterer(registerer prometheus.Registerer) *IdempotencyMetrics {
	return &IdempotencyMetrics{
		sweeps: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_idempotency_sweeps_total",
			Help: "Total number of expired idempotency key sweeps grouped by result",
		}, []string{"result"}),
		removed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_idempotency_keys_removed_total",
			Help: "Total number of expired idempotency keys removed",
		}),
		lastRemoved: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_idempotency_last_sweep_removed",
			Help: "Number of keys removed by the last successful sweep",
		}),
		duration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "storefront_idempotency_sweep_duration_seconds",
			Help:    "Duration of idempotency key sweeps",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}
}

// RecordSweep учитывает завершённый проход; err != nil считается ошибкой.
func (m *IdempotencyMetrics) RecordSweep(removed int, seconds float64, err error) {
	if m == nil {
		return
	}
	m.duration.Observe(seconds)
	if removed > 0 {
		m.removed.Add(float64(removed))
	}
	if err != nil {
		m.sweeps.WithLabelValues("error").Inc()
		return
	}
	m.sweeps.WithLabelValues("ok").Inc()
	m.lastRemoved.Set(float64(removed))
}
