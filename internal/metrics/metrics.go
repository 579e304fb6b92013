package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rental"

// Metrics 审批流转与 HTTP 指标，方法允许 nil 接收者
type Metrics struct {
	transitions        *prometheus.CounterVec
	transitionDuration *prometheus.HistogramVec
	availabilityChecks *prometheus.CounterVec
	ledgerDrift        prometheus.Gauge
	overdueMarked      prometheus.Counter
	notifyFailures     prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New 创建并注册指标；reg 为 nil 时只创建不注册
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "transition",
				Name:      "total",
				Help:      "Application decisions by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		transitionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "transition",
				Name:      "duration_seconds",
				Help:      "Duration of application decisions.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
			},
			[]string{"operation"},
		),
		availabilityChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "availability",
				Name:      "checks_total",
				Help:      "Availability checks by result kind.",
			},
			[]string{"result"},
		),
		ledgerDrift: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "drifted_properties",
				Help:      "Properties whose occupied_units disagreed with live tenancies at the last reconciliation.",
			},
		),
		overdueMarked: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "payments",
				Name:      "overdue_marked_total",
				Help:      "Payments moved from pending to overdue.",
			},
		),
		notifyFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "notifier",
				Name:      "failures_total",
				Help:      "Transition notifications that could not be delivered.",
			},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests handled.",
			},
			[]string{"method", "path", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.transitions,
			m.transitionDuration,
			m.availabilityChecks,
			m.ledgerDrift,
			m.overdueMarked,
			m.notifyFailures,
			m.httpRequests,
			m.httpDuration,
		)
	}
	return m
}

// ObserveTransition 记录一次 approve/reject/terminate 的结果与耗时
func (m *Metrics) ObserveTransition(operation, outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(operation, outcome).Inc()
	m.transitionDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func (m *Metrics) ObserveAvailability(result string) {
	if m == nil {
		return
	}
	m.availabilityChecks.WithLabelValues(result).Inc()
}

func (m *Metrics) SetLedgerDrift(n int) {
	if m == nil {
		return
	}
	m.ledgerDrift.Set(float64(n))
}

func (m *Metrics) AddOverdue(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.overdueMarked.Add(float64(n))
}

func (m *Metrics) NotifyFailed() {
	if m == nil {
		return
	}
	m.notifyFailures.Inc()
}

func (m *Metrics) ObserveHTTP(method, path string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, path, statusClass(status)).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
