package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics instruments the matching loop
// A nil *Metrics is valid and records nothing, so the book can run uninstrumented in tests.
type Metrics struct {
	OrdersTotal     prometheus.Counter
	RejectedTotal   prometheus.Counter
	ModifiesTotal   prometheus.Counter
	TradesTotal     prometheus.Counter
	MatchesPerOrder prometheus.Histogram
	MatchLatency    prometheus.Histogram
	RestingOrders   prometheus.Gauge
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OrdersTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickbook_orders_total", Help: "Orders submitted to the book",
		}),
		RejectedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickbook_orders_rejected_total", Help: "Orders rejected as invalid",
		}),
		ModifiesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickbook_modifies_total", Help: "Quantity changes and cancels applied",
		}),
		TradesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickbook_trades_total", Help: "Pairings between takers and makers",
		}),
		MatchesPerOrder: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tickbook_matches_per_order",
			Help:    "Makers touched by one incoming order",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64},
		}),
		MatchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tickbook_match_latency_seconds",
			Help:    "Time spent in one match call",
			Buckets: prometheus.ExponentialBuckets(25e-9, 2, 16),
		}),
		RestingOrders: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tickbook_resting_orders", Help: "Orders resting in the book",
		}),
	}

	reg.MustRegister(
		m.OrdersTotal, m.RejectedTotal, m.ModifiesTotal, m.TradesTotal,
		m.MatchesPerOrder, m.MatchLatency, m.RestingOrders,
	)
	return m
}

// ObserveMatch records one match call
func (m *Metrics) ObserveMatch(elapsed time.Duration, matches uint32, err error) {
	if m == nil {
		return
	}
	m.OrdersTotal.Inc()
	if err != nil {
		m.RejectedTotal.Inc()
		return
	}
	m.TradesTotal.Add(float64(matches))
	m.MatchesPerOrder.Observe(float64(matches))
	m.MatchLatency.Observe(elapsed.Seconds())
}

// ObserveModify records one SetQuantity call
func (m *Metrics) ObserveModify() {
	if m == nil {
		return
	}
	m.ModifiesTotal.Inc()
}

// SetResting publishes the current number of resting orders
func (m *Metrics) SetResting(n int) {
	if m == nil {
		return
	}
	m.RestingOrders.Set(float64(n))
}
