package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// ProcurementMetrics counts purchase order workflow events.
type ProcurementMetrics struct {
	created     *prometheus.CounterVec
	transitions *prometheus.CounterVec
	rejected    *prometheus.CounterVec
	skipped     prometheus.Counter
	retries     *prometheus.CounterVec
}

// NewProcurementMetrics registers the workflow collectors on reg.
func NewProcurementMetrics(reg prometheus.Registerer) *ProcurementMetrics {
	m := &ProcurementMetrics{
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kitchen_purchase_orders_created_total",
			Help: "Purchase orders created, by initial status and whether auto-approval applied.",
		}, []string{"status", "auto_approved"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kitchen_purchase_order_transitions_total",
			Help: "Committed purchase order status transitions.",
		}, []string{"from", "to"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kitchen_purchase_order_transitions_rejected_total",
			Help: "Transition requests refused before commit.",
		}, []string{"reason"}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kitchen_delivery_items_skipped_total",
			Help: "Delivered items whose ingredient no longer exists.",
		}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kitchen_procurement_tx_retries_total",
			Help: "Procurement transactions retried after a serialization conflict.",
		}, []string{"operation"}),
	}
	reg.MustRegister(m.created, m.transitions, m.rejected, m.skipped, m.retries)
	return m
}

func (m *ProcurementMetrics) OrderCreated(status string, autoApproved bool) {
	m.created.WithLabelValues(status, strconv.FormatBool(autoApproved)).Inc()
}

func (m *ProcurementMetrics) OrderTransitioned(from, to string) {
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *ProcurementMetrics) TransitionRejected(reason string) {
	m.rejected.WithLabelValues(reason).Inc()
}

func (m *ProcurementMetrics) DeliveryItemSkipped() {
	m.skipped.Inc()
}

func (m *ProcurementMetrics) TransactionRetried(operation string) {
	m.retries.WithLabelValues(operation).Inc()
}
