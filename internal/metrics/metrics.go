package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cashier"

type Metrics struct {
	transactionsTotal    *prometheus.CounterVec
	compensationsTotal   *prometheus.CounterVec
	callbacksTotal       *prometheus.CounterVec
	gatewayCallDuration  *prometheus.HistogramVec
	unsettledWithdrawals prometheus.Counter
	reconcileRunsTotal   *prometheus.CounterVec
	reconcileLastRunUnix prometheus.Gauge
}

// New registers the engine instruments on reg. Tests pass a fresh
// prometheus.NewRegistry() so instruments never collide.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		transactionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "transactions",
				Name:      "status_changes_total",
				Help:      "Transaction status changes partitioned by kind and resulting status.",
			},
			[]string{"kind", "status"},
		),
		compensationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "transactions",
				Name:      "compensations_total",
				Help:      "Balance compensations partitioned by result.",
			},
			[]string{"result"},
		),
		callbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "callbacks",
				Name:      "received_total",
				Help:      "Gateway callbacks partitioned by endpoint and outcome.",
			},
			[]string{"endpoint", "outcome"},
		),
		gatewayCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "call_duration_seconds",
				Help:      "Latency of outbound gateway calls.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation", "result"},
		),
		unsettledWithdrawals: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "reconcile",
				Name:      "unsettled_withdrawals_total",
				Help:      "Withdrawals whose payout verification did not report success.",
			},
		),
		reconcileRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "reconcile",
				Name:      "runs_total",
				Help:      "Reconciliation sweeps partitioned by result.",
			},
			[]string{"result"},
		),
		reconcileLastRunUnix: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "reconcile",
				Name:      "last_run_unix",
				Help:      "Unix time of the most recent reconciliation sweep.",
			},
		),
	}
}

func (m *Metrics) TransactionStatus(kind, status string) {
	if m == nil {
		return
	}
	m.transactionsTotal.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) Compensation(ok bool) {
	if m == nil {
		return
	}
	m.compensationsTotal.WithLabelValues(result(ok)).Inc()
}

func (m *Metrics) Callback(endpoint, outcome string) {
	if m == nil {
		return
	}
	m.callbacksTotal.WithLabelValues(endpoint, outcome).Inc()
}

func (m *Metrics) UnsettledWithdrawal() {
	if m == nil {
		return
	}
	m.unsettledWithdrawals.Inc()
}

func (m *Metrics) ReconcileRun(ok bool, at time.Time) {
	if m == nil {
		return
	}
	m.reconcileRunsTotal.WithLabelValues(result(ok)).Inc()
	m.reconcileLastRunUnix.Set(float64(at.Unix()))
}

// ObserveGatewayCall satisfies gateway.Observer.
func (m *Metrics) ObserveGatewayCall(operation string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.gatewayCallDuration.WithLabelValues(operation, result(err == nil)).Observe(elapsed.Seconds())
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}
