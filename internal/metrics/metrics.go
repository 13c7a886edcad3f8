// Package metrics exposes the Prometheus instruments for the purchase-order
// workflow, the approval registry and the dashboard. A nil *Metrics is valid
// and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	transitions     *prometheus.CounterVec
	approvals       *prometheus.CounterVec
	conflictRetries prometheus.Counter
	degradedSources *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "procurement",
			Name:      "purchase_order_transitions_total",
			Help:      "Purchase order status transitions by action and result.",
		}, []string{"action", "result"}),
		approvals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "procurement",
			Name:      "approval_resolutions_total",
			Help:      "Approval request resolutions by entity type and outcome.",
		}, []string{"entity_type", "outcome"}),
		conflictRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "procurement",
			Name:      "purchase_order_conflict_retries_total",
			Help:      "Optimistic lock conflicts retried while updating purchase orders.",
		}),
		degradedSources: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "procurement",
			Name:      "dashboard_unavailable_sources_total",
			Help:      "Dashboard sources that failed to load and were treated as empty.",
		}, []string{"source"}),
	}

	if reg != nil {
		reg.MustRegister(m.transitions, m.approvals, m.conflictRetries, m.degradedSources)
	}
	return m
}

func (m *Metrics) ObserveTransition(action, result string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(action, result).Inc()
}

func (m *Metrics) ObserveApproval(entityType, outcome string) {
	if m == nil {
		return
	}
	m.approvals.WithLabelValues(entityType, outcome).Inc()
}

func (m *Metrics) ObserveConflictRetry() {
	if m == nil {
		return
	}
	m.conflictRetries.Inc()
}

func (m *Metrics) ObserveUnavailableSource(source string) {
	if m == nil {
		return
	}
	m.degradedSources.WithLabelValues(source).Inc()
}
