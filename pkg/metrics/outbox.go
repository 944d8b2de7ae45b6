package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics records dispatcher activity. All methods are nil safe so the
// dispatcher can run without a registry in tests.
type OutboxMetrics struct {
	cycleDuration prometheus.Histogram
	published     prometheus.Counter
	attemptFailed prometheus.Counter
	terminal      prometheus.Counter
	cycleErrors   prometheus.Counter
	pendingDepth  prometheus.Gauge
	wakeups       *prometheus.CounterVec
}

// NewOutboxMetrics registers the dispatcher metrics on the provided registerer.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	cycleDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "outbox_cycle_duration_seconds",
		Help:    "Duration of dispatcher cycles in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	published := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outbox_events_published_total",
		Help: "Events acknowledged by the broker and marked published.",
	})
	attemptFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outbox_attempts_failed_total",
		Help: "Delivery attempts that ended in an error.",
	})
	terminal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outbox_events_failed_total",
		Help: "Events moved to the terminal failed state.",
	})
	cycleErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outbox_cycle_errors_total",
		Help: "Dispatcher cycles aborted by infrastructure errors.",
	})
	pendingDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "outbox_pending_events",
		Help: "Pending events observed at the start of the last cycle.",
	})
	wakeups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_wakeups_total",
		Help: "Dispatcher wake-ups by cause.",
	}, []string{"cause"})
	reg.MustRegister(cycleDuration, published, attemptFailed, terminal, cycleErrors, pendingDepth, wakeups)
	return &OutboxMetrics{
		cycleDuration: cycleDuration,
		published:     published,
		attemptFailed: attemptFailed,
		terminal:      terminal,
		cycleErrors:   cycleErrors,
		pendingDepth:  pendingDepth,
		wakeups:       wakeups,
	}
}

// ObserveCycle records the duration of one dispatcher cycle.
func (m *OutboxMetrics) ObserveCycle(duration time.Duration) {
	if m == nil || m.cycleDuration == nil {
		return
	}
	m.cycleDuration.Observe(duration.Seconds())
}

// IncPublished counts an event acknowledged and marked published.
func (m *OutboxMetrics) IncPublished() {
	if m == nil || m.published == nil {
		return
	}
	m.published.Inc()
}

// IncAttemptFailed counts a failed delivery attempt.
func (m *OutboxMetrics) IncAttemptFailed() {
	if m == nil || m.attemptFailed == nil {
		return
	}
	m.attemptFailed.Inc()
}

// IncTerminal counts an event exhausting its attempts.
func (m *OutboxMetrics) IncTerminal() {
	if m == nil || m.terminal == nil {
		return
	}
	m.terminal.Inc()
}

// IncCycleError counts a cycle aborted before its batch completed.
func (m *OutboxMetrics) IncCycleError() {
	if m == nil || m.cycleErrors == nil {
		return
	}
	m.cycleErrors.Inc()
}

// SetPendingDepth reports how many pending events the last fetch returned.
func (m *OutboxMetrics) SetPendingDepth(n int) {
	if m == nil || m.pendingDepth == nil {
		return
	}
	m.pendingDepth.Set(float64(n))
}

// IncWakeup counts a dispatcher wake-up with its cause label.
func (m *OutboxMetrics) IncWakeup(cause string) {
	if m == nil || m.wakeups == nil {
		return
	}
	if cause == "" {
		cause = "unknown"
	}
	m.wakeups.WithLabelValues(cause).Inc()
}
