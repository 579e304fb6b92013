package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Register(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveTransition("approve", "success", time.Now())
	m.ObserveTransition("approve", "conflict", time.Now())
	m.ObserveTransition("approve", "conflict", time.Now())
	m.ObserveAvailability("available")
	m.SetLedgerDrift(3)
	m.AddOverdue(5)
	m.AddOverdue(0)
	m.NotifyFailed()
	m.ObserveHTTP("POST", "/api/v1/applications/:id/approve", 409, 10*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("approve", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("approve", "conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.availabilityChecks.WithLabelValues("available")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ledgerDrift))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.overdueMarked))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifyFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "/api/v1/applications/:id/approve", "4xx")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "rental_transition_total")
	assert.Contains(t, names, "rental_ledger_drifted_properties")
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveTransition("approve", "success", time.Now())
		m.ObserveAvailability("available")
		m.SetLedgerDrift(1)
		m.AddOverdue(1)
		m.NotifyFailed()
		m.ObserveHTTP("GET", "/", 200, time.Millisecond)
	})
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(201))
	assert.Equal(t, "3xx", statusClass(304))
	assert.Equal(t, "4xx", statusClass(429))
	assert.Equal(t, "5xx", statusClass(503))
}
