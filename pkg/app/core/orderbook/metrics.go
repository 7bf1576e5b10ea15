package orderbook

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "tickbook"

// Metrics are the Prometheus collectors a book reports to.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ordersHandled  *prometheus.CounterVec
	fills          prometheus.Counter
	filledQuantity prometheus.Counter
	sweepLevels    prometheus.Histogram
	priceLevels    prometheus.Gauge
}

// NewMetrics creates the book collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ordersHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "orders_handled_total",
			Help:      "Orders submitted to the book by type, direction and result",
		}, []string{"type", "direction", "result"}),

		fills: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "fills_total",
			Help:      "Resting orders filled, fully or partially",
		}),

		filledQuantity: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "filled_quantity_total",
			Help:      "Quote asset units exchanged",
		}),

		sweepLevels: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "sweep_levels",
			Help:      "Price levels touched by one sweep",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 34},
		}),

		priceLevels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "price_levels",
			Help:      "Live price levels on both sides of the book",
		}),
	}

	for _, c := range []prometheus.Collector{m.ordersHandled, m.fills, m.filledQuantity, m.sweepLevels, m.priceLevels} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register book metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) observeOrder(o *Order, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "rejected"
	}
	m.ordersHandled.WithLabelValues(o.Type.String(), o.Direction.String(), result).Inc()
}

func (m *Metrics) observeFill(quantity uint64) {
	if m == nil {
		return
	}
	m.fills.Inc()
	m.filledQuantity.Add(float64(quantity))
}

func (m *Metrics) observeSweep(levels int) {
	if m == nil {
		return
	}
	m.sweepLevels.Observe(float64(levels))
}

func (m *Metrics) setPriceLevels(n int) {
	if m == nil {
		return
	}
	m.priceLevels.Set(float64(n))
}
