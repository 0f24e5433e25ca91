package metrics

import "github.com/prometheus/client_golang/prometheus"

// CoreMetrics counts the business outcomes the kitchen and ledger produce.
type CoreMetrics struct {
	ordersServed          prometheus.Counter
	lowStockAlerts        prometheus.Counter
	reservationRejections prometheus.Counter
	txRetries             *prometheus.CounterVec
}

// NewCoreMetrics registers the core counters on the provided registerer.
func NewCoreMetrics(reg prometheus.Registerer) *CoreMetrics {
	if reg == nil {
		return &CoreMetrics{}
	}
	ordersServed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_served_total",
		Help: "Orders settled and marked served.",
	})
	lowStockAlerts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "low_stock_alerts_total",
		Help: "Low-stock notifications raised by settlement.",
	})
	reservationRejections := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reservation_rejections_total",
		Help: "Add-to-cart or accept attempts refused by the stock check.",
	})
	txRetries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tx_conflict_retries_total",
		Help: "Transaction retries caused by concurrent writers.",
	}, []string{"operation"})
	reg.MustRegister(ordersServed, lowStockAlerts, reservationRejections, txRetries)
	return &CoreMetrics{
		ordersServed:          ordersServed,
		lowStockAlerts:        lowStockAlerts,
		reservationRejections: reservationRejections,
		txRetries:             txRetries,
	}
}

// IncOrdersServed increments the served order counter.
func (m *CoreMetrics) IncOrdersServed() {
	if m == nil || m.ordersServed == nil {
		return
	}
	m.ordersServed.Inc()
}

// AddLowStockAlerts records how many ingredients a settlement flagged.
func (m *CoreMetrics) AddLowStockAlerts(count int) {
	if m == nil || m.lowStockAlerts == nil || count <= 0 {
		return
	}
	m.lowStockAlerts.Add(float64(count))
}

// IncReservationRejections increments the shortage rejection counter.
func (m *CoreMetrics) IncReservationRejections() {
	if m == nil || m.reservationRejections == nil {
		return
	}
	m.reservationRejections.Inc()
}

// IncTxRetry records one conflict-driven retry of the named operation.
func (m *CoreMetrics) IncTxRetry(operation string) {
	if m == nil || m.txRetries == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	m.txRetries.WithLabelValues(operation).Inc()
}
