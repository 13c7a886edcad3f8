package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveTransition("approve", "applied")
	m.ObserveTransition("approve", "applied")
	m.ObserveTransition("approve", "invalid")
	m.ObserveApproval("customer", "approved")
	m.ObserveConflictRetry()
	m.ObserveUnavailableSource("vendors")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("approve", "applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("approve", "invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.approvals.WithLabelValues("customer", "approved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.conflictRetries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.degradedSources.WithLabelValues("vendors")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveTransition("approve", "applied")
		m.ObserveApproval("vendor", "rejected")
		m.ObserveConflictRetry()
		m.ObserveUnavailableSource("purchases")
	})
}
