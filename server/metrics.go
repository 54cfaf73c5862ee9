package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pool's Prometheus collectors on a private registry so
// tests can run several servers without collector name collisions.
type Metrics struct {
	registry *prometheus.Registry

	depositsTotal    prometheus.Counter
	withdrawalsTotal prometheus.Counter
	rejectionsTotal  *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		depositsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "pool_deposits_total",
			Help: "Number of accepted deposits.",
		}),
		withdrawalsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "pool_withdrawals_total",
			Help: "Number of paid withdrawals.",
		}),
		rejectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_rejections_total",
			Help: "Number of rejected operations by error code.",
		}, []string{"operation", "code"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
