package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sample returns the value of the series name{labels}. Histograms report
// their sample count.
func sample(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			matched := 0
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want == lp.GetValue() {
					matched++
				}
			}
			if matched != len(labels) {
				continue
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				return float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	t.Fatalf("series %s%v not found", name, labels)
	return 0
}

func TestInstruments(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.TransactionStatus("deposit", "succeeded")
	m.TransactionStatus("deposit", "succeeded")
	m.Compensation(false)
	m.Callback("deposit", "replayed")
	m.UnsettledWithdrawal()
	m.ReconcileRun(true, time.Unix(1700000000, 0))
	m.ObserveGatewayCall("verify_payment", errors.New("timeout"), 20*time.Millisecond)

	assert.Equal(t, 2.0, sample(t, reg, "cashier_transactions_status_changes_total", map[string]string{"kind": "deposit", "status": "succeeded"}))
	assert.Equal(t, 1.0, sample(t, reg, "cashier_transactions_compensations_total", map[string]string{"result": "error"}))
	assert.Equal(t, 1.0, sample(t, reg, "cashier_callbacks_received_total", map[string]string{"endpoint": "deposit", "outcome": "replayed"}))
	assert.Equal(t, 1.0, sample(t, reg, "cashier_reconcile_unsettled_withdrawals_total", nil))
	assert.Equal(t, 1.0, sample(t, reg, "cashier_reconcile_runs_total", map[string]string{"result": "success"}))
	assert.Equal(t, 1700000000.0, sample(t, reg, "cashier_reconcile_last_run_unix", nil))
	assert.Equal(t, 1.0, sample(t, reg, "cashier_gateway_call_duration_seconds", map[string]string{"operation": "verify_payment", "result": "error"}))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.TransactionStatus("deposit", "pending")
		m.Compensation(true)
		m.Callback("withdrawal", "accepted")
		m.UnsettledWithdrawal()
		m.ReconcileRun(false, time.Now())
		m.ObserveGatewayCall("list_banks", nil, time.Millisecond)
	})
}
